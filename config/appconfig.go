// config/appconfig.go
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppKey defines an application configuration key. The loader reads it from
// config files, environment variables and command-line flags with the same
// precedence as the core keys.
type AppKey struct {
	// Name is the key name (e.g., "smtp_host"). It is used as-is for config
	// files and CLI flags; the environment name is uppercased and prefixed
	// (CONTACTRELAY_SMTP_HOST).
	Name string

	// Default is the default value if not set elsewhere.
	// Supported types: string, int, int64, bool, []string.
	Default any

	// Desc is a short description for --help output.
	Desc string

	// Env lists additional environment variable names, checked after the
	// prefixed name (e.g., "SMTP_USER").
	Env []string

	// Secret values are redacted when the loaded config is logged.
	Secret bool
}

// AppConfigValues holds the loaded app configuration values, keyed by
// AppKey.Name. Values carry the type of the key's Default.
type AppConfigValues map[string]any

// String returns a string value or empty string if not found/wrong type.
func (a AppConfigValues) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an int value or 0 if not found/wrong type.
func (a AppConfigValues) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Int64 returns an int64 value or 0 if not found/wrong type.
func (a AppConfigValues) Int64(key string) int64 {
	switch v := a[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Bool returns a bool value or false if not found/wrong type.
func (a AppConfigValues) Bool(key string) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return false
}

// StringSlice returns a []string value or nil if not found/wrong type.
func (a AppConfigValues) StringSlice(key string) []string {
	if v, ok := a[key].([]string); ok {
		return v
	}
	return nil
}

// Duration parses a duration value from the config.
// Accepts duration strings ("30s", "2m"), numeric seconds (30), and plain
// numeric strings ("30"). Returns def if the key is missing, empty or invalid.
func (a AppConfigValues) Duration(key string, def time.Duration) time.Duration {
	raw := a[key]
	if raw == nil {
		return def
	}
	dur, err := parseDurationFlexible(raw, def)
	if err != nil {
		return def
	}
	return dur
}

// loadAppConfig resolves keys with the same precedence as the core config:
// flags > env > config files > defaults. File values are read from v, which
// already holds the merged config files.
func loadAppConfig(logger *zap.Logger, v *viper.Viper, fs *pflag.FlagSet, envPrefix string, keys []AppKey) (AppConfigValues, error) {
	if len(keys) == 0 {
		return make(AppConfigValues), nil
	}

	appV := viper.New()
	fileVals := make(map[string]any)

	for _, key := range keys {
		appV.SetDefault(key.Name, key.Default)

		names := append([]string{key.Name, envName(envPrefix, key.Name)}, key.Env...)
		_ = appV.BindEnv(names...)

		// Config files are loaded into the core viper instance. Merging them
		// as config (not Set) keeps env and flags above them.
		if v.InConfig(key.Name) {
			fileVals[key.Name] = v.Get(key.Name)
		}

		if f := fs.Lookup(key.Name); f != nil && f.Changed {
			_ = appV.BindPFlag(key.Name, f)
		}
	}
	if len(fileVals) > 0 {
		if err := appV.MergeConfigMap(fileVals); err != nil {
			return nil, fmt.Errorf("config: merge app config: %w", err)
		}
	}

	result := make(AppConfigValues, len(keys))
	for _, key := range keys {
		val, err := typedValue(appV, key)
		if err != nil {
			return nil, err
		}
		result[key.Name] = val
	}

	if logger != nil {
		fields := make([]zap.Field, 0, len(keys))
		for _, key := range keys {
			if isSecret(key) {
				if result.String(key.Name) == "" {
					fields = append(fields, zap.String(key.Name, ""))
				} else {
					fields = append(fields, zap.String(key.Name, "[REDACTED]"))
				}
				continue
			}
			fields = append(fields, zap.Any(key.Name, result[key.Name]))
		}
		logger.Info("app config loaded", fields...)
	}

	return result, nil
}

// typedValue reads key from appV converted to the type of key.Default.
// Environment and flag values arrive as strings; viper's getters coerce them.
func typedValue(appV *viper.Viper, key AppKey) (any, error) {
	switch key.Default.(type) {
	case string:
		return appV.GetString(key.Name), nil
	case int:
		return appV.GetInt(key.Name), nil
	case int64:
		return appV.GetInt64(key.Name), nil
	case bool:
		return appV.GetBool(key.Name), nil
	case []string:
		raw := appV.Get(key.Name)
		if s, ok := raw.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				return []string(nil), nil
			}
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return nil, fmt.Errorf("config key %q expects a JSON array string, got %q: %w", key.Name, s, err)
			}
			return arr, nil
		}
		return appV.GetStringSlice(key.Name), nil
	default:
		return nil, fmt.Errorf("config key %q has unsupported default type %T", key.Name, key.Default)
	}
}

func isSecret(key AppKey) bool {
	if key.Secret {
		return true
	}
	nameLower := strings.ToLower(key.Name)
	for _, marker := range []string{"key", "secret", "password", "token"} {
		if strings.Contains(nameLower, marker) {
			return true
		}
	}
	return false
}

// registerAppFlags registers command-line flags for app config keys.
// Must be called before the flag set is parsed.
func registerAppFlags(fs *pflag.FlagSet, keys []AppKey) error {
	for _, key := range keys {
		if fs.Lookup(key.Name) != nil {
			return fmt.Errorf("config key %q conflicts with existing flag", key.Name)
		}

		switch d := key.Default.(type) {
		case string:
			fs.String(key.Name, d, key.Desc)
		case int:
			fs.Int(key.Name, d, key.Desc)
		case int64:
			fs.Int64(key.Name, d, key.Desc)
		case bool:
			fs.Bool(key.Name, d, key.Desc)
		case []string:
			// For string slices, accept JSON array on command line
			fs.String(key.Name, "", key.Desc+" (JSON array)")
		default:
			return fmt.Errorf("config key %q has unsupported default type %T", key.Name, key.Default)
		}
	}
	return nil
}
