package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string `mapstructure:"SERVICE_NAME"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogFile     string `mapstructure:"LOG_FILE"`

	// HTTP surface
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	TerminalPath  string `mapstructure:"TERMINAL_PATH"`

	// Xendit gateway. An empty secret key selects the demo gateway.
	XenditBaseURL   string        `mapstructure:"XENDIT_BASE_URL"`
	XenditSecretKey string        `mapstructure:"XENDIT_SECRET_KEY"`
	XenditCurrency  string        `mapstructure:"XENDIT_CURRENCY"`
	XenditUSDRate   float64       `mapstructure:"XENDIT_USD_RATE"`
	InvoiceDuration time.Duration `mapstructure:"INVOICE_DURATION"`

	// Payment dialog timings
	PaymentPollInterval time.Duration `mapstructure:"PAYMENT_POLL_INTERVAL"`
	PaymentSettleDelay  time.Duration `mapstructure:"PAYMENT_SETTLE_DELAY"`
	PaymentSuccessDelay time.Duration `mapstructure:"PAYMENT_SUCCESS_DELAY"`
	NotificationTTL     time.Duration `mapstructure:"NOTIFICATION_TTL"`
	PendingCheckoutDir  string        `mapstructure:"PENDING_CHECKOUT_DIR"`

	OrderTransitions string `mapstructure:"ORDER_TRANSITIONS"`
	SeedDemoData     bool   `mapstructure:"SEED_DEMO_DATA"`
	SnowflakeNode    int64  `mapstructure:"SNOWFLAKE_NODE"`

	// Identity comes from an authenticating proxy in front of the terminal.
	AuthUserHeader  string `mapstructure:"AUTH_USER_HEADER"`
	AuthEmailHeader string `mapstructure:"AUTH_EMAIL_HEADER"`
	AuthSignOutURL  string `mapstructure:"AUTH_SIGN_OUT_URL"`
	AuthDevUser     string `mapstructure:"AUTH_DEV_USER"`

	// RabbitMQ relay. Disabled when the URL is empty.
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string `mapstructure:"RABBITMQ_EXCHANGE"`
}

// ReturnURL is the absolute terminal URL the gateway redirects to.
func (c Config) ReturnURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + c.TerminalPath
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "coffeerealm-pos")
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("TERMINAL_PATH", "/pos")

	v.SetDefault("XENDIT_BASE_URL", "https://api.xendit.co")
	v.SetDefault("XENDIT_SECRET_KEY", "")
	v.SetDefault("XENDIT_CURRENCY", "PHP")
	v.SetDefault("XENDIT_USD_RATE", 56.0)
	v.SetDefault("INVOICE_DURATION", 24*time.Hour)

	v.SetDefault("PAYMENT_POLL_INTERVAL", 3*time.Second)
	v.SetDefault("PAYMENT_SETTLE_DELAY", 2*time.Second)
	v.SetDefault("PAYMENT_SUCCESS_DELAY", 2*time.Second)
	v.SetDefault("NOTIFICATION_TTL", 5*time.Second)
	v.SetDefault("PENDING_CHECKOUT_DIR", "data")

	v.SetDefault("ORDER_TRANSITIONS", "permissive")
	v.SetDefault("SEED_DEMO_DATA", true)
	v.SetDefault("SNOWFLAKE_NODE", 1)

	v.SetDefault("AUTH_USER_HEADER", "X-Forwarded-User")
	v.SetDefault("AUTH_EMAIL_HEADER", "X-Forwarded-Email")
	v.SetDefault("AUTH_SIGN_OUT_URL", "/oauth2/sign_out")
	v.SetDefault("AUTH_DEV_USER", "")

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "coffeerealm.events")
}

// LoadConfig reads an optional app.env from path, then environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, err
		}
		err = nil
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	err = v.Unmarshal(&config)
	return
}
