package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Delivery struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Concurrency int
	TaskTimeout time.Duration
}

type Scheduling struct {
	MinLeadTime   time.Duration
	SweepInterval string
}

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	TiktokClientKey       string
	TiktokClientSecret    string
	GoogleClientID        string
	GoogleClientSecret    string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	R2                    R2
	Delivery              Delivery
	Scheduling            Scheduling
	SecretKey             string
	CookieName            string
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		TiktokClientKey:       getEnv("TIKTOK_CLIENT_KEY", ""),
		TiktokClientSecret:    getEnv("TIKTOK_CLIENT_SECRET", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Delivery: Delivery{
			MaxAttempts: getEnvInt("DELIVERY_MAX_ATTEMPTS", 5),
			BackoffBase: getEnvDuration("DELIVERY_BACKOFF_BASE", 30*time.Second),
			BackoffCap:  getEnvDuration("DELIVERY_BACKOFF_CAP", 15*time.Minute),
			Concurrency: getEnvInt("DELIVERY_CONCURRENCY", 10),
			TaskTimeout: getEnvDuration("DELIVERY_TASK_TIMEOUT", 30*time.Minute),
		},
		Scheduling: Scheduling{
			MinLeadTime:   getEnvDuration("SCHEDULE_MIN_LEAD_TIME", time.Hour),
			SweepInterval: getEnv("SCHEDULE_SWEEP_INTERVAL", "@every 00h01m00s"),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
