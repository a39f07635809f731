package config

import (
	"os"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT verification (tokens are issued by the identity service)
	JWTSecret string

	// Payment gateway
	GatewayBaseURL    string
	GatewayMerchantID string
	GatewayUser       string
	GatewayPassword   string
	GatewayTimeout    time.Duration

	// Billing schedule
	FeePassCron   string
	ProRataCron   string
	ReconcileCron string

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string

	// Org registry
	OrgsConfigPath string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "sooq_billing"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", "https://pay.example.com/v1"),
		GatewayMerchantID: getEnv("GATEWAY_MERCHANT_ID", ""),
		GatewayUser:       getEnv("GATEWAY_USER", ""),
		GatewayPassword:   getEnv("GATEWAY_PASSWORD", ""),
		GatewayTimeout:    parseDuration(getEnv("GATEWAY_TIMEOUT", "30s")),

		FeePassCron:   getEnv("FEE_PASS_CRON", "0 2 * * *"),
		ProRataCron:   getEnv("PRO_RATA_CRON", "0 2 1 1 *"),
		ReconcileCron: getEnv("RECONCILE_CRON", "*/5 * * * *"),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		OrgsConfigPath: getEnv("ORGS_CONFIG_PATH", "orgs.json"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}
