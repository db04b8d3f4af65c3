package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validate tags,
// plus the cross-field rules the tags cannot express. It does not
// require the fields only 'silo start' needs; see ValidateServe.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				return fmt.Errorf("invalid value for %s: failed %q constraint", fe.Namespace(), fe.Tag())
			}
		}
		return err
	}

	if cfg.Transfer.ThresholdBytes > cfg.Transfer.MaxObjectBytes {
		return fmt.Errorf("transfer.threshold_bytes (%d) exceeds transfer.max_object_bytes (%d)",
			cfg.Transfer.ThresholdBytes, cfg.Transfer.MaxObjectBytes)
	}

	return nil
}

// ValidateServe checks the additional requirements for running the
// hub server: a signing secret and a reachable object store.
func ValidateServe(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required to start the server (run 'silo init' or set SILO_AUTH_JWT_SECRET)")
	}

	if cfg.Storage.Backend == "s3" {
		if cfg.Storage.S3.Endpoint == "" {
			return fmt.Errorf("storage.s3.endpoint is required for the s3 backend")
		}
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	}

	return nil
}
