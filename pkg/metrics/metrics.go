// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "bedtime_story"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 120},
		},
		[]string{"method", "path"},
	)

	// 故事生成
	StoryGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generation_total",
			Help:      "Total number of story generations",
		},
		[]string{"spark", "status"},
	)

	StoryGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generation_duration_seconds",
			Help:      "Story generation duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"spark"},
	)

	StoryWordCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "word_count",
			Help:      "Generated story word count",
			Buckets:   []float64{250, 500, 1000, 2000, 3000, 5000, 10000},
		},
	)

	PipelineFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "fallback_total",
			Help:      "Total number of deterministic fallbacks by stage",
		},
		[]string{"stage"},
	)

	PipelineWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "warnings_total",
			Help:      "Total number of non-fatal pipeline warnings",
		},
		[]string{"kind"},
	)

	// 结构化输出
	StructuredCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structured",
			Name:      "call_total",
			Help:      "Structured output calls by schema and outcome",
		},
		[]string{"schema", "status"}, // status: ok/repaired/failed
	)

	// LLM 指标
	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total tokens used for LLM calls",
		},
		[]string{"provider", "model", "type"}, // type: prompt/completion
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM call duration in seconds",
			Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	LLMCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_total",
			Help:      "Total number of LLM calls",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cost",
			Name:      "usd_total",
			Help:      "Accumulated provider cost in USD",
		},
		[]string{"step", "model"},
	)

	// 插画
	ImageCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "call_total",
			Help:      "Total number of image generation calls",
		},
		[]string{"provider", "model", "status"},
	)

	ImageCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "call_duration_seconds",
			Help:      "Image generation duration in seconds",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 120},
		},
		[]string{"provider", "model"},
	)

	IllustrationPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "illustration",
			Name:      "pages_total",
			Help:      "Illustrated pages by terminal status",
		},
		[]string{"status"},
	)

	IllustrationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "illustration",
			Name:      "runs_total",
			Help:      "Illustration runs by outcome",
		},
		[]string{"outcome"}, // started/skipped/completed
	)

	IdentityConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "version_conflicts_total",
			Help:      "Identity bible insert conflicts resolved by reread",
		},
	)

	// 队列指标
	RedisStreamLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "stream_lag",
			Help:      "Redis stream consumer lag",
		},
		[]string{"stream", "consumer_group"},
	)

	RedisStreamProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "stream_processed_total",
			Help:      "Total number of Redis stream messages processed",
		},
		[]string{"stream", "status"},
	)
)
