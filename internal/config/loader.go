// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 从 CONFIG_DIR（默认 configs）加载配置
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "configs"
	}
	return LoadFrom(dir)
}

// LoadFrom 从指定目录加载配置
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), true); err != nil {
		return nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := loadConfigFile(v, filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env)), true); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并合并到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := v.MergeConfig(strings.NewReader(expandEnv(string(content)))); err != nil {
		return fmt.Errorf("failed to merge config %s: %w", path, err)
	}
	return nil
}

// expandEnv 替换 ${VAR} 与 ${VAR:default} 占位符，未定义且无默认值时保留原样
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := envPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bedtime-story-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	// 同步生成整篇故事可能耗时数分钟
	v.SetDefault("server.http.write_timeout", "10m")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "bedtime_story")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 50)
	v.SetDefault("database.postgres.max_idle_conns", 10)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")

	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 50)
	v.SetDefault("cache.redis.min_idle_conns", 5)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.dir", "data/blobs")
	v.SetDefault("storage.local.public_url", "http://localhost:8080/blobs")

	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.providers.openai.model", "gpt-4.1-mini")
	v.SetDefault("llm.providers.openai.max_tokens", 4096)
	v.SetDefault("llm.providers.openai.temperature", 0.7)
	v.SetDefault("llm.providers.openai.timeout", "120s")

	v.SetDefault("image.provider", "openai")
	v.SetDefault("image.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("image.providers.openai.model", "gpt-image-1")
	v.SetDefault("image.providers.openai.size", "1024x1024")
	v.SetDefault("image.providers.openai.quality", "medium")
	v.SetDefault("image.providers.openai.timeout", "180s")
	v.SetDefault("image.requests_per_minute", 30)
	v.SetDefault("image.burst", 4)
	v.SetDefault("image.reference_cache_ttl", "30m")

	v.SetDefault("pipeline.planner.retries", 2)
	v.SetDefault("pipeline.planner.temperature", 0.8)
	v.SetDefault("pipeline.planner.max_tokens", 4096)
	v.SetDefault("pipeline.draft.temperature", 0.9)
	v.SetDefault("pipeline.draft.frequency_penalty", 0.4)
	v.SetDefault("pipeline.draft.presence_penalty", 0.2)
	v.SetDefault("pipeline.draft.words_per_minute", 170)
	v.SetDefault("pipeline.draft.min_page_words", 80)
	v.SetDefault("pipeline.draft.facts_cap", 60)
	v.SetDefault("pipeline.draft.threads_cap", 30)
	v.SetDefault("pipeline.repetition.trigram_ratio", 0.02)
	v.SetDefault("pipeline.repetition.max_duplicate_paragraphs", 0)
	v.SetDefault("pipeline.structured.retries", 1)
	v.SetDefault("pipeline.identity.max_attempts", 3)
	v.SetDefault("pipeline.illustration.batch_size", 4)
	v.SetDefault("pipeline.illustration.max_attempts", 3)
	v.SetDefault("pipeline.illustration.backoff_base", "250ms")
	v.SetDefault("pipeline.illustration.lease", "redis")
	v.SetDefault("pipeline.illustration.lease_ttl", "10m")
	v.SetDefault("pipeline.illustration.dispatch", "stream")
	v.SetDefault("pipeline.illustration.style_cache_ttl", "24h")
	v.SetDefault("pipeline.illustration.generate_cover", true)

	v.SetDefault("messaging.redis_stream.max_len", 10000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "cg")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 3)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "1m")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.limit", 10)
	v.SetDefault("security.rate_limit.window", "1m")
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
}
