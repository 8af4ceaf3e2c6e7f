package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration read from the environment.
type Config struct {
	Port   string `envconfig:"PORT" default:"3000"`
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	DatabaseURL     string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxOpenConns  int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBMaxIdleConns  int    `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBLogSlowMillis int    `envconfig:"DB_LOG_SLOW_MS" default:"200"`

	BaseURL     string `envconfig:"BASE_URL"`
	FrontendURL string `envconfig:"FRONTEND_URL"`
	CORSOrigin  string `envconfig:"CORS_ORIGIN"`

	// Loaded separately so their tags are the full variable names.
	Log LogConfig `ignored:"true"`

	PDFStorageDir      string `envconfig:"PDF_STORAGE_DIR" default:"uploads/invoices"`
	PublicLinksEnabled bool   `envconfig:"PUBLIC_LINKS_ENABLED" default:"true"`

	Wati WatiConfig `ignored:"true"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"console"`
	File       string `envconfig:"LOG_FILE"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"50"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"14"`
}

type WatiConfig struct {
	Enabled            bool          `envconfig:"WATI_ENABLED" default:"false"`
	APIEndpoint        string        `envconfig:"WATI_API_ENDPOINT"`
	APIToken           string        `envconfig:"WATI_API_TOKEN"`
	SenderNumber       string        `envconfig:"WATI_SENDER_NUMBER"`
	ChannelNumber      string        `envconfig:"WATI_CHANNEL_PHONE_NUMBER"`
	TemplateName       string        `envconfig:"WATI_INVOICE_TEMPLATE_NAME"`
	TestPDFURL         string        `envconfig:"WATI_TEST_PDF_URL"`
	Timeout            time.Duration `envconfig:"WATI_TIMEOUT" default:"30s"`
	DefaultCountryCode string        `envconfig:"DEFAULT_COUNTRY_CODE" default:"91"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	for _, section := range []interface{}{&cfg, &cfg.Log, &cfg.Wati} {
		if err := envconfig.Process("", section); err != nil {
			return nil, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.AppEnv {
	case "development", "production", "test":
	default:
		return fmt.Errorf("APP_ENV must be development, production or test, got %q", c.AppEnv)
	}

	for _, u := range []struct {
		name  string
		value *string
	}{
		{"BASE_URL", &c.BaseURL},
		{"FRONTEND_URL", &c.FrontendURL},
		{"WATI_API_ENDPOINT", &c.Wati.APIEndpoint},
		{"WATI_TEST_PDF_URL", &c.Wati.TestPDFURL},
	} {
		v := strings.TrimSpace(*u.value)
		if v != "" && !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return fmt.Errorf("%s must be a valid URL starting with http:// or https://", u.name)
		}
		*u.value = strings.TrimRight(v, "/")
	}

	c.Wati.TemplateName = strings.TrimSpace(c.Wati.TemplateName)
	if c.Wati.Enabled {
		if c.Wati.APIEndpoint == "" {
			return errors.New("WATI_API_ENDPOINT is required when WATI_ENABLED is true")
		}
		if c.Wati.APIToken == "" {
			return errors.New("WATI_API_TOKEN is required when WATI_ENABLED is true")
		}
	}
	return nil
}

// BackendURL is the externally reachable base of this API.
func (c *Config) BackendURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "http://localhost:" + c.Port
}

// PublicFrontendURL is where the web client is served.
func (c *Config) PublicFrontendURL() string {
	if c.FrontendURL != "" {
		return c.FrontendURL
	}
	return "http://localhost:5173"
}

// AllowedOrigins lists CORS origins; "*" when nothing is configured.
func (c *Config) AllowedOrigins() []string {
	raw := c.FrontendURL
	if raw == "" {
		raw = c.CORSOrigin
	}
	if raw == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
