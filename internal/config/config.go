// Package config resolves profiler settings from, in rising precedence,
// built-in defaults, an optional YAML file, and environment variables.
// Command-line flags sit on top and are applied by the cmd layer.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables the profiler honors.
const (
	EnvRPCURL = "RPC_URL"
	EnvBlocks = "ZK_FEE_BLOCKS"
	EnvStep   = "ZK_FEE_STEP"
)

// Built-in sampling defaults.
const (
	DefaultBlocks = 256
	DefaultStep   = 4
)

// Settings is the resolved configuration for one run.
type Settings struct {
	RPCURL string `yaml:"rpc_url"` // RPC endpoint URL (supports ${VAR} env expansion)
	Blocks int    `yaml:"blocks"`  // how many recent blocks the walk spans
	Step   int    `yaml:"step"`    // sample every Step-th block
}

// LoadEnv pulls a .env file from the working directory into the environment
// when one exists. Variables that are already set win.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load resolves settings. path names an optional YAML file; an empty path
// skips the file layer entirely.
func Load(path string) (*Settings, error) {
	s := &Settings{Blocks: DefaultBlocks, Step: DefaultStep}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		// Expand ${VAR} references so API keys can stay out of the file.
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), s); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if endpoint := os.Getenv(EnvRPCURL); endpoint != "" {
		s.RPCURL = endpoint
	}

	var err error
	if s.Blocks, err = intFromEnv(EnvBlocks, s.Blocks); err != nil {
		return nil, err
	}
	if s.Step, err = intFromEnv(EnvStep, s.Step); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate rejects settings no run could succeed with.
func (s *Settings) Validate() error {
	if s.RPCURL == "" {
		return fmt.Errorf("rpc url is required (set %s or rpc_url in the config file)", EnvRPCURL)
	}

	u, err := url.Parse(s.RPCURL)
	if err != nil {
		return fmt.Errorf("invalid rpc url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid rpc url (missing scheme or host)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid rpc url scheme %q (expected http or https)", u.Scheme)
	}

	if s.Blocks <= 0 {
		return fmt.Errorf("blocks must be > 0, got %d", s.Blocks)
	}
	if s.Step <= 0 {
		return fmt.Errorf("step must be > 0, got %d", s.Step)
	}

	return nil
}

// HasPlaceholderURL reports whether the endpoint still carries a template
// placeholder instead of a real API key.
func (s *Settings) HasPlaceholderURL() bool {
	return strings.Contains(s.RPCURL, "your_api_key")
}

func intFromEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", name, raw)
	}
	return n, nil
}
