package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvClientID         = "BCA_CLIENT_ID"
	EnvClientSecret     = "BCA_CLIENT_SECRET"
	EnvAPIKey           = "BCA_API_KEY"
	EnvAPIKeySecret     = "BCA_API_KEY_SECRET"
	EnvEnvironment      = "BCA_ENVIRONMENT"
	EnvNodeEnvironment  = "NODE_ENV"
	EnvBaseURL          = "BCA_BASE_URL"
	EnvTimeout          = "BCA_TIMEOUT"
	EnvServiceName      = "BCA_SERVICE_NAME"
	EnvTokenCache       = "BCA_TOKEN_CACHE"
	EnvTokenTTL         = "BCA_TOKEN_TTL"
	EnvTokenRenewBefore = "BCA_TOKEN_RENEW_BEFORE"
	EnvActivityEnabled  = "BCA_ACTIVITY_ENABLED"
	EnvActivityDriver   = "BCA_ACTIVITY_DRIVER"
	EnvActivityDSN      = "BCA_ACTIVITY_DSN"
	EnvAppKey           = "BCA_APP_KEY"
)

// EnvConfigLoader reads optional dotenv files and BCA_* variables into a raw
// config map. Process variables win over dotenv values.
type EnvConfigLoader struct {
	Files  []string
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader(files ...string) *EnvConfigLoader {
	return &EnvConfigLoader{Files: files, Lookup: os.LookupEnv}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	dotenv := map[string]string{}
	if l != nil {
		for _, file := range l.Files {
			values, err := godotenv.Read(file)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("core: read env file %s: %w", file, err)
			}
			for key, value := range values {
				dotenv[key] = value
			}
		}
	}
	lookup := os.LookupEnv
	if l != nil && l.Lookup != nil {
		lookup = l.Lookup
	}
	get := func(key string) (string, bool) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
		value, ok := dotenv[key]
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	raw := map[string]any{}
	strField := func(target map[string]any, field, key string) {
		if value, ok := get(key); ok {
			target[field] = value
		}
	}
	strField(raw, "service_name", EnvServiceName)
	strField(raw, "base_url", EnvBaseURL)
	strField(raw, "client_id", EnvClientID)
	strField(raw, "client_secret", EnvClientSecret)
	strField(raw, "api_key", EnvAPIKey)
	strField(raw, "api_key_secret", EnvAPIKeySecret)
	strField(raw, "app_key", EnvAppKey)

	if value, ok := get(EnvEnvironment); ok {
		raw["environment"] = strings.ToLower(value)
	} else if value, ok := get(EnvNodeEnvironment); ok && strings.EqualFold(value, EnvironmentProduction) {
		raw["environment"] = EnvironmentProduction
	}

	if err := durationField(raw, "timeout", EnvTimeout, get); err != nil {
		return nil, err
	}

	token := map[string]any{}
	if err := boolField(token, "cache_enabled", EnvTokenCache, get); err != nil {
		return nil, err
	}
	if err := durationField(token, "ttl", EnvTokenTTL, get); err != nil {
		return nil, err
	}
	if err := durationField(token, "renew_before", EnvTokenRenewBefore, get); err != nil {
		return nil, err
	}
	if len(token) > 0 {
		raw["token"] = token
	}

	activity := map[string]any{}
	if err := boolField(activity, "enabled", EnvActivityEnabled, get); err != nil {
		return nil, err
	}
	strField(activity, "driver", EnvActivityDriver)
	strField(activity, "dsn", EnvActivityDSN)
	if len(activity) > 0 {
		raw["activity"] = activity
	}
	return raw, nil
}

func durationField(target map[string]any, field, key string, get func(string) (string, bool)) error {
	value, ok := get(key)
	if !ok {
		return nil
	}
	parsed, err := parseDuration(value)
	if err != nil {
		return NewBadInputError(fmt.Sprintf("core: invalid duration in %s", key), map[string]any{"variable": key})
	}
	target[field] = parsed
	return nil
}

func boolField(target map[string]any, field, key string, get func(string) (string, bool)) error {
	value, ok := get(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return NewBadInputError(fmt.Sprintf("core: invalid boolean in %s", key), map[string]any{"variable": key})
	}
	target[field] = parsed
	return nil
}

// parseDuration accepts Go duration strings and bare millisecond counts.
func parseDuration(value string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(value)
}
