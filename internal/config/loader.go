package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes the environment variables Load reads.
const EnvPrefix = "TRANSACT_"

// Load layers TRANSACT_* environment variables over Default and validates
// the result.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}
	paths := envToPath()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// unknown TRANSACT_* variables are ignored
			return paths[key], value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the settings each driver needs.
func (c Config) Validate() error {
	v := validator.New()
	v.RegisterStructValidation(validateStorage, StorageConfig{})
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func validateStorage(sl validator.StructLevel) {
	s := sl.Current().Interface().(StorageConfig)
	switch s.Driver {
	case DriverPostgres:
		if s.Postgres.DSN == "" {
			sl.ReportError(s.Postgres.DSN, "Postgres.DSN", "DSN", "required_for_driver", s.Driver)
		}
	case DriverRedis:
		if s.Redis.Addr == "" {
			sl.ReportError(s.Redis.Addr, "Redis.Addr", "Addr", "required_for_driver", s.Driver)
		}
	case DriverS3:
		if s.S3.Bucket == "" {
			sl.ReportError(s.S3.Bucket, "S3.Bucket", "Bucket", "required_for_driver", s.Driver)
		}
	case DriverFS:
		if s.FS.Root == "" {
			sl.ReportError(s.FS.Root, "FS.Root", "Root", "required_for_driver", s.Driver)
		}
	}
}
