package config

import (
	"os"
	"strings"
)

// Config is centralized process configuration.
// Feature toggles are resolved once here and passed into module builders as
// typed values; components never read the environment themselves.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	GatewayBaseURL  string
	AccountsBaseURL string
	OrgLookupURL    string

	ApportionEnabled      bool
	CancelEnabled         bool
	CallbackRelayEnabled  bool
	CallbackRelayTopic    string
	CallbackRelayInterval string
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "courtpay"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	topic := os.Getenv("CALLBACK_RELAY_TOPIC")
	if topic == "" {
		topic = "servicerequest.status_changed"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		GatewayBaseURL:  os.Getenv("GATEWAY_BASE_URL"),
		AccountsBaseURL: os.Getenv("ACCOUNTS_BASE_URL"),
		OrgLookupURL:    os.Getenv("ORG_LOOKUP_URL"),

		ApportionEnabled:      envBool("ENABLE_FEE_PAY_APPORTION", true),
		CancelEnabled:         envBool("ENABLE_PAYMENT_CANCEL", false),
		CallbackRelayEnabled:  envBool("ENABLE_CALLBACK_RELAY", true),
		CallbackRelayTopic:    topic,
		CallbackRelayInterval: os.Getenv("CALLBACK_RELAY_INTERVAL"),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
