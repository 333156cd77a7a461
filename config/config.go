package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

var (
	PORT       string
	DB_URL     string
	JWT_SECRET string

	APPLE_SHARED_SECRET string
	APPLE_VERIFY_URL    string
	APPLE_SANDBOX_URL   string

	GOOGLE_SA_EMAIL       string
	GOOGLE_SA_PRIVATE_KEY string
	GOOGLE_TOKEN_URL      string
	GOOGLE_PLAY_API_URL   string

	CACHE_HOST string
	CACHE_PORT string

	SWEEP_INTERVAL_MINUTES string
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")

	// Storefront credentials are required up front: a missing secret must
	// fail the deploy, not the first paying user.
	APPLE_SHARED_SECRET = mustEnv("APPLE_SHARED_SECRET")
	APPLE_VERIFY_URL = getEnv("APPLE_VERIFY_URL", "https://buy.itunes.apple.com/verifyReceipt")
	APPLE_SANDBOX_URL = getEnv("APPLE_SANDBOX_URL", "https://sandbox.itunes.apple.com/verifyReceipt")

	GOOGLE_SA_EMAIL = mustEnv("GOOGLE_SA_EMAIL")
	GOOGLE_SA_PRIVATE_KEY = mustEnv("GOOGLE_SA_PRIVATE_KEY")
	GOOGLE_TOKEN_URL = getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token")
	GOOGLE_PLAY_API_URL = getEnv("GOOGLE_PLAY_API_URL", "https://androidpublisher.googleapis.com")

	CACHE_HOST = getEnv("CACHE_HOST", "localhost")
	CACHE_PORT = getEnv("CACHE_PORT", "6379")

	SWEEP_INTERVAL_MINUTES = getEnv("SWEEP_INTERVAL_MINUTES", "60")
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
