package core

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultServiceName      = "bca"
	DefaultRequestTimeout   = 60 * time.Second
	DefaultTokenTTL         = time.Hour
	DefaultTokenRenewBefore = 2 * time.Minute
)

const (
	ActivityDriverSQLite   = "sqlite3"
	ActivityDriverPostgres = "postgres"
)

type TokenConfig struct {
	CacheEnabled bool          `koanf:"cache_enabled" mapstructure:"cache_enabled"`
	TTL          time.Duration `koanf:"ttl" mapstructure:"ttl"`
	RenewBefore  time.Duration `koanf:"renew_before" mapstructure:"renew_before"`
}

type ActivityConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	Driver  string `koanf:"driver" mapstructure:"driver" validate:"omitempty,oneof=sqlite3 postgres"`
	DSN     string `koanf:"dsn" mapstructure:"dsn"`
}

type Config struct {
	ServiceName  string         `koanf:"service_name" mapstructure:"service_name" validate:"required"`
	Environment  string         `koanf:"environment" mapstructure:"environment" validate:"required,oneof=sandbox production"`
	BaseURL      string         `koanf:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	ClientID     string         `koanf:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret string         `koanf:"client_secret" mapstructure:"client_secret" validate:"required"`
	APIKey       string         `koanf:"api_key" mapstructure:"api_key" validate:"required"`
	APIKeySecret string         `koanf:"api_key_secret" mapstructure:"api_key_secret" validate:"required"`
	AppKey       string         `koanf:"app_key" mapstructure:"app_key"`
	Timeout      time.Duration  `koanf:"timeout" mapstructure:"timeout"`
	Token        TokenConfig    `koanf:"token" mapstructure:"token"`
	Activity     ActivityConfig `koanf:"activity" mapstructure:"activity"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Environment: EnvironmentSandbox,
		Timeout:     DefaultRequestTimeout,
		Token: TokenConfig{
			TTL:         DefaultTokenTTL,
			RenewBefore: DefaultTokenRenewBefore,
		},
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c Config) Validate() error {
	fieldErrors := []goerrors.FieldError{}
	if err := configValidator.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if !goerrors.As(err, &validationErrs) {
			return fmt.Errorf("core: config validation: %w", err)
		}
		for _, fe := range validationErrs {
			fieldErrors = append(fieldErrors, goerrors.FieldError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: validationMessage(fe),
			})
		}
	}
	if c.Timeout < 0 {
		fieldErrors = append(fieldErrors, goerrors.FieldError{Field: "timeout", Message: "must not be negative"})
	}
	if c.Token.TTL < 0 || c.Token.RenewBefore < 0 {
		fieldErrors = append(fieldErrors, goerrors.FieldError{Field: "token", Message: "durations must not be negative"})
	}
	if c.Activity.Enabled {
		if strings.TrimSpace(c.Activity.Driver) == "" {
			fieldErrors = append(fieldErrors, goerrors.FieldError{Field: "activity.driver", Message: "is required when activity is enabled"})
		}
		if strings.TrimSpace(c.Activity.DSN) == "" {
			fieldErrors = append(fieldErrors, goerrors.FieldError{Field: "activity.dsn", Message: "is required when activity is enabled"})
		}
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return goerrors.NewValidation("core: config validation failed", fieldErrors...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid url"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// ResolvedBaseURL returns the explicit base url override or the url of the
// configured environment.
func (c Config) ResolvedBaseURL() string {
	if override := strings.TrimSpace(c.BaseURL); override != "" {
		return strings.TrimRight(override, "/")
	}
	if strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction) {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

func (c Config) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.Timeout
}

func (c Config) Credentials() Credentials {
	return Credentials{
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: strings.TrimSpace(c.ClientSecret),
		APIKey:       strings.TrimSpace(c.APIKey),
		APIKeySecret: strings.TrimSpace(c.APIKeySecret),
	}
}

func (c Config) String() string {
	return fmt.Sprintf(
		"service=%s environment=%s base_url=%s timeout=%s token_cache=%t activity=%t",
		c.ServiceName,
		c.Environment,
		c.ResolvedBaseURL(),
		c.RequestTimeout(),
		c.Token.CacheEnabled,
		c.Activity.Enabled,
	)
}
