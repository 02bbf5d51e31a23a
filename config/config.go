package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	GateScanChannel    string

	// Purchase configuration
	PerTransactionCap  int
	PurchaseLockTTL    time.Duration
	PendingPaymentTTL  time.Duration
	ReconcileInterval  time.Duration
	PaymentConfirmWait time.Duration

	// Verification configuration
	VerifyTimeout time.Duration
	GateKeyHash   string

	// Wallet configuration
	WalletProvider string
	WalletRPCURL   string
	WalletTimeout  time.Duration

	// Rate limiting
	PurchaseRateLimit int
	VerifyRateLimit   int
	RateLimitWindow   time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		GateScanChannel:    getEnv("GATE_SCAN_CHANNEL", "gate-scans"),

		// Purchase
		PerTransactionCap:  getEnvAsInt("PER_TRANSACTION_CAP", 10),
		PurchaseLockTTL:    getEnvAsDuration("PURCHASE_LOCK_TTL", "30s"),
		PendingPaymentTTL:  getEnvAsDuration("PENDING_PAYMENT_TTL", "10m"),
		ReconcileInterval:  getEnvAsDuration("RECONCILE_INTERVAL", "1m"),
		PaymentConfirmWait: getEnvAsDuration("PAYMENT_CONFIRM_WAIT", "15s"),

		// Verification
		VerifyTimeout: getEnvAsDuration("VERIFY_TIMEOUT", "5s"),
		GateKeyHash:   getEnv("GATE_KEY_HASH", ""),

		// Wallet
		WalletProvider: getEnv("WALLET_PROVIDER", "simulated"),
		WalletRPCURL:   getEnv("WALLET_RPC_URL", ""),
		WalletTimeout:  getEnvAsDuration("WALLET_TIMEOUT", "10s"),

		// Rate limiting
		PurchaseRateLimit: getEnvAsInt("PURCHASE_RATE_LIMIT", 10),
		VerifyRateLimit:   getEnvAsInt("VERIFY_RATE_LIMIT", 60),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
