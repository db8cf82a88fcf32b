package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env         string
	Port        string
	DatabaseURL string // postgres DSN; empty falls back to SQLitePath
	SQLitePath  string
	RedisURL    string
	LogLevel    string
	LogFile     string // optional rotating log file

	StripeSecretKey        string
	StripeWebhookSecret    string
	PaymentVerification    string // "status" (gateway poll) or "signature" (HMAC over orderId|paymentId)
	PaymentSignatureSecret string
	DefaultCurrency        string

	ChainRPCURL          string
	ChainID              int64
	ChainPrivateKey      string
	CarbonManagerAddress string
	CreditTokenAddress   string
	CompanyAddress       string
	ChainConfirmTimeout  time.Duration

	// CompensateOnChainFailure reverses the settlement ledger mutation when the completion
	// transaction fails. Off by default: the mutation stays and the payment is queued for an operator.
	CompensateOnChainFailure bool

	AdminKeyHash        string // bcrypt hash of the operator key sent as X-Admin-Key
	HealthAdminKey      string
	FrontendURLEndsWith string
	DevPassword         string
	RateLimitPerMinute  float64
	RateLimitBurst      int

	// Operator alerts via Brevo; disabled unless both key and recipient are set.
	BrevoAPIKey   string
	MailFrom      string
	OperatorEmail string
}

const (
	VerificationStatus    = "status"
	VerificationSignature = "signature"
)

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SQLITE_PATH", "unicarbon.db")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PAYMENT_VERIFICATION", VerificationStatus)
	viper.SetDefault("DEFAULT_CURRENCY", "INR")
	viper.SetDefault("CHAIN_CONFIRM_TIMEOUT", "45s")
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	viper.SetDefault("RATE_LIMIT_BURST", 20)

	return &Config{
		Env:         viper.GetString("APP_ENV"),
		Port:        viper.GetString("PORT"),
		DatabaseURL: viper.GetString("DATABASE_URL"),
		SQLitePath:  viper.GetString("SQLITE_PATH"),
		RedisURL:    viper.GetString("REDIS_URL"),
		LogLevel:    viper.GetString("LOG_LEVEL"),
		LogFile:     viper.GetString("LOG_FILE"),

		StripeSecretKey:        viper.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    viper.GetString("STRIPE_WEBHOOK_SECRET"),
		PaymentVerification:    verificationMode(viper.GetString("PAYMENT_VERIFICATION")),
		PaymentSignatureSecret: viper.GetString("PAYMENT_SIGNATURE_SECRET"),
		DefaultCurrency:        strings.ToUpper(viper.GetString("DEFAULT_CURRENCY")),

		ChainRPCURL:          viper.GetString("CHAIN_RPC_URL"),
		ChainID:              viper.GetInt64("CHAIN_ID"),
		ChainPrivateKey:      viper.GetString("CHAIN_PRIVATE_KEY"),
		CarbonManagerAddress: viper.GetString("CARBON_MANAGER_ADDRESS"),
		CreditTokenAddress:   viper.GetString("CREDIT_TOKEN_ADDRESS"),
		CompanyAddress:       viper.GetString("COMPANY_ADDRESS"),
		ChainConfirmTimeout:  viper.GetDuration("CHAIN_CONFIRM_TIMEOUT"),

		CompensateOnChainFailure: viper.GetBool("COMPENSATE_ON_CHAIN_FAILURE"),

		AdminKeyHash:        viper.GetString("ADMIN_KEY_HASH"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		RateLimitPerMinute:  viper.GetFloat64("RATE_LIMIT_PER_MINUTE"),
		RateLimitBurst:      viper.GetInt("RATE_LIMIT_BURST"),

		BrevoAPIKey:   viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:      viper.GetString("MAIL_FROM"),
		OperatorEmail: viper.GetString("OPERATOR_EMAIL"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func verificationMode(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), VerificationSignature) {
		return VerificationSignature
	}
	return VerificationStatus
}
