package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// envAliases maps well-known variables onto config keys.
var envAliases = map[string]string{
	"ANTHROPIC_API_KEY":  "model.api_key",
	"ANTHROPIC_BASE_URL": "model.base_url",
}

// Load reads defaults, then the YAML file at path (skipped when path is
// empty or the file does not exist), then environment variables.
//
// Environment variables split on the first underscore:
//
//	MODEL_MAX_RETRIES         -> model.max_retries
//	QUALITY_PASS_THRESHOLD    -> quality.pass_threshold
//	LIFECYCLE_EXECUTOR_TIMEOUT -> lifecycle.executor_timeout
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

var sections = map[string]bool{
	"model": true, "memory": true, "prompts": true, "quality": true,
	"lifecycle": true, "server": true, "logging": true, "telemetry": true,
}

// envTransform maps SECTION_FIELD to section.field. Variables outside the
// known sections are dropped so unrelated environment does not leak in.
func envTransform(key, value string) (string, interface{}) {
	if alias, ok := envAliases[key]; ok {
		return alias, value
	}
	parts := strings.SplitN(strings.ToLower(key), "_", 2)
	if len(parts) != 2 || !sections[parts[0]] {
		return "", nil
	}
	return parts[0] + "." + parts[1], value
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidConfig, path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigFileTooLarge, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
