package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI            string
	DatabaseName        string
	RedisURL            string
	ServerPort          string
	JWTSecret           string
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPass            string
	SMTPFrom            string
	FirebaseCredentials string
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
}

// LoadConfig reads environment variables, optionally from a local .env.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))

	return &Config{
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName:        getEnv("MONGO_DB", "chem_admin"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		ServerPort:          getEnv("SERVER_PORT", ":8080"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            smtpPort,
		SMTPUser:            os.Getenv("SMTP_USER"),
		SMTPPass:            os.Getenv("SMTP_PASS"),
		SMTPFrom:            os.Getenv("SMTP_FROM"),
		FirebaseCredentials: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:    os.Getenv("TWILIO_FROM_NUMBER"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
