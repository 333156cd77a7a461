package playstore

import (
	"sync"
	"time"
)

// tokenCache holds one access token for the whole process. The mutex only
// guards pointer-sized reads/writes; it is never held across a fetch.
type tokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

func (t *tokenCache) get() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == "" || time.Now().After(t.expires) {
		return ""
	}
	return t.token
}

func (t *tokenCache) put(token string, expiry time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
	t.expires = expiry.Add(-tokenExpirySkew)
}
