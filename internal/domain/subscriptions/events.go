package subscriptions

// Event is the internal transition alphabet. Storefront notification
// payloads are decoded into one of these before touching the state machine,
// so payload-shape churn stays out of the transition logic.
type Event string

const (
	EventRenewed        Event = "renewed"
	EventStoreCancelled Event = "store_cancelled"
	EventBillingFailure Event = "billing_failure"
	EventGracePeriod    Event = "grace_period"
	EventExpired        Event = "expired"
)

// App Store server notification types we act on.
var appStoreEvents = map[string]Event{
	"INITIAL_BUY":         EventRenewed,
	"DID_RENEW":           EventRenewed,
	"DID_RECOVER":         EventRenewed,
	"INTERACTIVE_RENEWAL": EventRenewed,
	"CANCEL":              EventStoreCancelled,
	"REFUND":              EventStoreCancelled,
	"REVOKE":              EventStoreCancelled,
	"DID_FAIL_TO_RENEW":   EventBillingFailure,
	"EXPIRED":             EventExpired,
}

// Play real-time developer notification types (subscriptionNotification
// notificationType values).
const (
	playRecovered     = 1
	playRenewed       = 2
	playCanceled      = 3
	playPurchased     = 4
	playOnHold        = 5
	playInGracePeriod = 6
	playRestarted     = 7
	playRevoked       = 12
	playExpired       = 13
)

var playEvents = map[int]Event{
	playRecovered:     EventRenewed,
	playRenewed:       EventRenewed,
	playPurchased:     EventRenewed,
	playRestarted:     EventRenewed,
	playCanceled:      EventStoreCancelled,
	playRevoked:       EventStoreCancelled,
	playOnHold:        EventBillingFailure,
	playInGracePeriod: EventGracePeriod,
	playExpired:       EventExpired,
}
