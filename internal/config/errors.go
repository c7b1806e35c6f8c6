package config

import "errors"

var (
	// ErrMissingCredential indicates the model API key is not configured.
	ErrMissingCredential = errors.New("model credential not configured: set ANTHROPIC_API_KEY or model.api_key")

	// ErrInvalidConfig indicates a configuration value failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigFileTooLarge indicates the YAML file exceeds the size cap.
	ErrConfigFileTooLarge = errors.New("config file too large")
)
