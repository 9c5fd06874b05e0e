package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr   string `mapstructure:"LISTEN_ADDR"`
	DatabasePath string `mapstructure:"DB_PATH"`

	// PublicDomain is the domain names are served under; it shapes profile
	// URLs, NIP-05 aliases, and confirmation links.
	PublicDomain string `mapstructure:"PUBLIC_DOMAIN"`

	// OperatorHeader is set by the trusted reverse proxy on operator
	// requests. Its absence means 403 on every admin route.
	OperatorHeader string `mapstructure:"OPERATOR_HEADER"`

	// TrustedMints is a comma-separated allow-list of cashu mint URLs.
	TrustedMints string `mapstructure:"TRUSTED_MINTS"`

	// Pricing overrides are JSON bucket->price maps; malformed JSON is
	// ignored and the defaults stand.
	PricingOverride string `mapstructure:"PRICING_OVERRIDE"`
	RenewalOverride string `mapstructure:"RENEWAL_OVERRIDE"`
	PremiumWords    string `mapstructure:"PREMIUM_WORDS"`

	ReservationTTLHours int `mapstructure:"RESERVATION_TTL_HOURS"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("DB_PATH", "namify.db")
	viper.SetDefault("PUBLIC_DOMAIN", "namify.local")
	viper.SetDefault("OPERATOR_HEADER", "X-Operator")
	viper.SetDefault("TRUSTED_MINTS", "")
	viper.SetDefault("RESERVATION_TTL_HOURS", 48)

	viper.SetEnvPrefix("NAMIFY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Support fallback loading from a file for local development
	viper.SetConfigFile(".env")
	// Ignore err if .env doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Mints splits the mint allow-list into individual URLs.
func (c *Config) Mints() []string {
	return splitList(c.TrustedMints)
}

// Premium splits the extra premium words.
func (c *Config) Premium() []string {
	return splitList(c.PremiumWords)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
