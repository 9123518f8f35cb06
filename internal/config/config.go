// Package config loads autodeploy settings from flags, environment, a .env
// file and ~/.autodeploy.yaml through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Bidon15/autodeploy/internal/catalog"
	"github.com/Bidon15/autodeploy/internal/orchestrator"
	"github.com/Bidon15/autodeploy/internal/registry"
)

// EnvPrefix namespaces environment variables (AUTODEPLOY_PACING_MIN, ...).
const EnvPrefix = "AUTODEPLOY"

// Setting keys
const (
	KeyNetworkType    = "network_type"
	KeyNetworks       = "networks"
	KeyCatalog        = "catalog"
	KeyPrivateKey     = "private_key"
	KeyPrivateKeys    = "private_keys"
	KeyArtifact       = "artifact"
	KeyWords          = "words"
	KeyDecimals       = "decimals"
	KeyPolicy         = "policy"
	KeyPacingMin      = "pacing_min"
	KeyPacingMax      = "pacing_max"
	KeyReceiptTimeout = "receipt_timeout"
	KeyMaxRounds      = "max_rounds"
	KeySeed           = "seed"
	KeyLedger         = "ledger"
	KeyMetricsAddr    = "metrics_addr"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
)

// Keys lists every recognised setting.
var Keys = []string{
	KeyNetworkType, KeyNetworks, KeyCatalog, KeyPrivateKey, KeyPrivateKeys, KeyArtifact, KeyWords,
	KeyDecimals, KeyPolicy, KeyPacingMin, KeyPacingMax, KeyReceiptTimeout, KeyMaxRounds, KeySeed,
	KeyLedger, KeyMetricsAddr, KeyLogLevel, KeyLogFormat,
}

// Defaults
const (
	DefaultDecimals       = 18
	DefaultReceiptTimeout = 5 * time.Minute
	DefaultLedger         = "deployments.jsonl"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Sentinel errors
var (
	ErrInvalid = errors.New("config: invalid configuration")
	ErrNoKeys  = errors.New("config: no private key configured, set PRIVATE_KEY or PRIVATE_KEYS")
)

// Config is the resolved configuration of one invocation.
type Config struct {
	NetworkType    string        `mapstructure:"network_type" validate:"required"`
	Networks       string        `mapstructure:"networks"`
	Catalog        string        `mapstructure:"catalog"`
	PrivateKey     string        `mapstructure:"private_key"`
	PrivateKeys    string        `mapstructure:"private_keys"`
	Artifact       string        `mapstructure:"artifact"`
	Words          string        `mapstructure:"words"`
	Decimals       uint8         `mapstructure:"decimals" validate:"lte=36"`
	Policy         string        `mapstructure:"policy" validate:"oneof=independent network-abort"`
	PacingMin      time.Duration `mapstructure:"pacing_min" validate:"gt=0"`
	PacingMax      time.Duration `mapstructure:"pacing_max" validate:"gtefield=PacingMin"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout" validate:"gt=0"`
	MaxRounds      int           `mapstructure:"max_rounds" validate:"gte=0"`
	Seed           uint64        `mapstructure:"seed"`
	Ledger         string        `mapstructure:"ledger"`
	MetricsAddr    string        `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel       string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string        `mapstructure:"log_format" validate:"oneof=text json"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyNetworkType, catalog.DefaultType)
	v.SetDefault(KeyDecimals, DefaultDecimals)
	v.SetDefault(KeyPolicy, string(orchestrator.PolicyIndependent))
	v.SetDefault(KeyPacingMin, orchestrator.DefaultPacingMin)
	v.SetDefault(KeyPacingMax, orchestrator.DefaultPacingMax)
	v.SetDefault(KeyReceiptTimeout, DefaultReceiptTimeout)
	v.SetDefault(KeyMaxRounds, 0)
	v.SetDefault(KeyLedger, DefaultLedger)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}

// BindEnv wires AUTODEPLOY_* variables plus the bare PRIVATE_KEY and
// PRIVATE_KEYS names into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		if key == KeyPrivateKey || key == KeyPrivateKeys {
			continue
		}
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv(KeyPrivateKey, EnvPrefix+"_PRIVATE_KEY", "PRIVATE_KEY")
	_ = v.BindEnv(KeyPrivateKeys, EnvPrefix+"_PRIVATE_KEYS", "PRIVATE_KEYS")
}

// MergeDotEnv merges a dotenv file into v's config layer, so it overrides the
// YAML config file but not real environment variables or flags. A missing file
// is not an error.
func MergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	prefix := strings.ToLower(EnvPrefix) + "_"
	values := make(map[string]interface{})
	for _, key := range dv.AllKeys() {
		name := strings.TrimPrefix(key, prefix)
		if !IsKey(name) {
			continue
		}
		values[name] = dv.Get(key)
	}
	if len(values) == 0 {
		return nil
	}
	return v.MergeConfigMap(values)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, formatValidationErrors(err))
	}
	return nil
}

// Credentials returns the PRIVATE_KEYS list, or nil when only the single
// default key is configured.
func (c *Config) Credentials() []registry.Credential {
	return registry.ParseCredentials(c.PrivateKeys)
}

// RequireKeys fails when neither PRIVATE_KEY nor PRIVATE_KEYS is set.
func (c *Config) RequireKeys() error {
	if strings.TrimSpace(c.PrivateKey) == "" && len(c.Credentials()) == 0 {
		return ErrNoKeys
	}
	return nil
}

// OrchestratorPolicy returns the parsed failure policy.
func (c *Config) OrchestratorPolicy() orchestrator.Policy {
	p, err := orchestrator.ParsePolicy(c.Policy)
	if err != nil {
		return orchestrator.PolicyIndependent
	}
	return p
}

func (c *Config) normalize() {
	c.NetworkType = strings.ToLower(strings.TrimSpace(c.NetworkType))
	c.Policy = strings.ToLower(strings.TrimSpace(c.Policy))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.PrivateKey = strings.TrimSpace(c.PrivateKey)
}

// IsKey reports whether name is a recognised setting key.
func IsKey(name string) bool {
	for _, k := range Keys {
		if k == name {
			return true
		}
	}
	return false
}

func formatValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := fieldError.Field()
		switch fieldError.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+fieldError.Param())
		case "gt":
			msgs = append(msgs, field+" must be greater than "+fieldError.Param())
		case "gte":
			msgs = append(msgs, field+" must be at least "+fieldError.Param())
		case "lte":
			msgs = append(msgs, field+" must be at most "+fieldError.Param())
		case "gtefield":
			msgs = append(msgs, field+" must not be less than "+fieldError.Param())
		case "hostname_port":
			msgs = append(msgs, field+" must be host:port")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
