package genealogy

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/netgenealogy-backend/internal/platform/envutil"
)

const configPathEnv = "GENEALOGY_CONFIG_YAML"

//go:embed genealogy.yaml
var configFS embed.FS

type SearchConfig struct {
	PageSize  int `yaml:"page_size"`
	MaxRounds int `yaml:"max_rounds"`
}

type ChainConfig struct {
	TimeoutSeconds       int               `yaml:"timeout_seconds"`
	BlockCacheTTLSeconds int               `yaml:"block_cache_ttl_seconds"`
	DefaultRPCURL        string            `yaml:"default_rpc_url"`
	Endpoints            map[string]string `yaml:"endpoints"`
}

func (c ChainConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ChainConfig) BlockCacheTTL() time.Duration {
	return time.Duration(c.BlockCacheTTLSeconds) * time.Second
}

type Config struct {
	Version int          `yaml:"version"`
	Search  SearchConfig `yaml:"search"`
	Chain   ChainConfig  `yaml:"chain"`
}

// LoadConfig reads the embedded defaults, or the file named by GENEALOGY_CONFIG_YAML, then
// applies env overrides.
func LoadConfig() (Config, error) {
	raw, err := configFS.ReadFile("genealogy.yaml")
	if err != nil {
		return Config{}, fmt.Errorf("read embedded genealogy config: %w", err)
	}
	if path := envutil.String(configPathEnv, ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s=%s: %w", configPathEnv, path, err)
		}
		raw = b
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return Config{}, err
	}
	return cfg.withEnv(), nil
}

// ParseConfig decodes YAML and fills defaults for missing or invalid values.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse genealogy config: %w", err)
	}
	return cfg.normalized(), nil
}

func (c Config) withEnv() Config {
	c.Search.PageSize = envutil.Int("GENEALOGY_PAGE_SIZE", c.Search.PageSize)
	c.Search.MaxRounds = envutil.Int("GENEALOGY_MAX_ROUNDS", c.Search.MaxRounds)
	c.Chain.DefaultRPCURL = envutil.String("CHAIN_RPC_URL", c.Chain.DefaultRPCURL)
	c.Chain.TimeoutSeconds = envutil.Int("CHAIN_RPC_TIMEOUT_SECONDS", c.Chain.TimeoutSeconds)
	c.Chain.BlockCacheTTLSeconds = envutil.Int("BLOCK_CACHE_TTL_SECONDS", c.Chain.BlockCacheTTLSeconds)
	return c.normalized()
}

func (c Config) normalized() Config {
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 5
	}
	if c.Search.MaxRounds < 0 {
		c.Search.MaxRounds = 0
	}
	if c.Chain.TimeoutSeconds <= 0 {
		c.Chain.TimeoutSeconds = 15
	}
	if c.Chain.BlockCacheTTLSeconds < 0 {
		c.Chain.BlockCacheTTLSeconds = 0
	}
	c.Chain.DefaultRPCURL = strings.TrimSpace(c.Chain.DefaultRPCURL)
	eps := make(map[string]string, len(c.Chain.Endpoints))
	for k, v := range c.Chain.Endpoints {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			eps[k] = v
		}
	}
	c.Chain.Endpoints = eps
	return c
}
