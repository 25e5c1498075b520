// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Image         ImageConfig         `yaml:"image" mapstructure:"image"`
	Pricing       []PriceConfig       `yaml:"pricing" mapstructure:"pricing"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	// Driver: r2 | local
	Driver string             `yaml:"driver" mapstructure:"driver"`
	R2     R2Config           `yaml:"r2" mapstructure:"r2"`
	Local  LocalStorageConfig `yaml:"local" mapstructure:"local"`
}

// R2Config Cloudflare R2 配置
type R2Config struct {
	AccountID       string `yaml:"account_id" mapstructure:"account_id"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	PublicURL       string `yaml:"public_url" mapstructure:"public_url"`
}

// LocalStorageConfig 本地文件存储，开发环境使用
type LocalStorageConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	PublicURL string `yaml:"public_url" mapstructure:"public_url"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	// VisionProvider 用于照片特征提取，为空时使用默认提供商
	VisionProvider string `yaml:"vision_provider" mapstructure:"vision_provider"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ImageConfig 图像生成配置
type ImageConfig struct {
	// Provider: openai | gemini
	Provider          string                         `yaml:"provider" mapstructure:"provider"`
	Providers         map[string]ImageProviderConfig `yaml:"providers" mapstructure:"providers"`
	RequestsPerMinute int                            `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int                            `yaml:"burst" mapstructure:"burst"`
	ReferenceCacheTTL time.Duration                  `yaml:"reference_cache_ttl" mapstructure:"reference_cache_ttl"`
}

// ImageProviderConfig 图像提供商配置
type ImageProviderConfig struct {
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Size    string        `yaml:"size" mapstructure:"size"`
	Quality string        `yaml:"quality" mapstructure:"quality"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PriceConfig 每百万 token 的美元价格，覆盖内置价格表
type PriceConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	Input       float64 `yaml:"input" mapstructure:"input"`
	CachedInput float64 `yaml:"cached_input" mapstructure:"cached_input"`
	Output      float64 `yaml:"output" mapstructure:"output"`
}

// PipelineConfig 故事流水线参数
type PipelineConfig struct {
	Planner      PlannerConfig      `yaml:"planner" mapstructure:"planner"`
	Draft        DraftConfig        `yaml:"draft" mapstructure:"draft"`
	Repetition   RepetitionConfig   `yaml:"repetition" mapstructure:"repetition"`
	Structured   StructuredConfig   `yaml:"structured" mapstructure:"structured"`
	Identity     IdentityConfig     `yaml:"identity" mapstructure:"identity"`
	Illustration IllustrationConfig `yaml:"illustration" mapstructure:"illustration"`
}

// PlannerConfig 大纲规划参数
type PlannerConfig struct {
	Retries     int     `yaml:"retries" mapstructure:"retries"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DraftConfig 正文起草参数
type DraftConfig struct {
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature"`
	FrequencyPenalty float64 `yaml:"frequency_penalty" mapstructure:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty" mapstructure:"presence_penalty"`
	WordsPerMinute   int     `yaml:"words_per_minute" mapstructure:"words_per_minute"`
	MinPageWords     int     `yaml:"min_page_words" mapstructure:"min_page_words"`
	FactsCap         int     `yaml:"facts_cap" mapstructure:"facts_cap"`
	ThreadsCap       int     `yaml:"threads_cap" mapstructure:"threads_cap"`
}

// RepetitionConfig 重复检测阈值
type RepetitionConfig struct {
	TrigramRatio           float64 `yaml:"trigram_ratio" mapstructure:"trigram_ratio"`
	MaxDuplicateParagraphs int     `yaml:"max_duplicate_paragraphs" mapstructure:"max_duplicate_paragraphs"`
}

// StructuredConfig 结构化输出调用参数
type StructuredConfig struct {
	Retries int `yaml:"retries" mapstructure:"retries"`
}

// IdentityConfig 角色形象参数
type IdentityConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// IllustrationConfig 插画任务参数
type IllustrationConfig struct {
	BatchSize   int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`
	// Lease: redis | memory
	Lease    string        `yaml:"lease" mapstructure:"lease"`
	LeaseTTL time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
	// Dispatch: stream | inprocess
	Dispatch      string        `yaml:"dispatch" mapstructure:"dispatch"`
	StyleCacheTTL time.Duration `yaml:"style_cache_ttl" mapstructure:"style_cache_ttl"`
	GenerateCover bool          `yaml:"generate_cover" mapstructure:"generate_cover"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置，作用于生成类接口
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int           `yaml:"limit" mapstructure:"limit"`
	Window  time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
