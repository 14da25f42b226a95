package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"card-advisor-api/internal/cache"
)

// Collector exports pipeline and cache metrics.
type Collector struct {
	cache cache.Cache

	answersTotal  *prometheus.CounterVec
	apiCallsSaved prometheus.Counter
	llmLatency    prometheus.Histogram
	llmTokens     prometheus.Counter
	cacheEntries  *prometheus.GaugeVec
}

// New creates the collector. The cache is polled on Refresh.
func New(c cache.Cache) *Collector {
	col := &Collector{cache: c}

	col.answersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "advisor",
		Name:      "answers_total",
		Help:      "Chat answers by envelope source",
	}, []string{"source"})

	col.apiCallsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "advisor",
		Name:      "api_calls_saved_total",
		Help:      "LLM calls avoided by the deterministic and cached paths",
	})

	col.llmLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "advisor",
		Name:      "llm_latency_seconds",
		Help:      "Latency of live LLM completions",
		Buckets:   prometheus.DefBuckets,
	})

	col.llmTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "advisor",
		Name:      "llm_tokens_total",
		Help:      "Tokens consumed by live LLM completions",
	})

	col.cacheEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "advisor",
		Name:      "cache_entries",
		Help:      "Response cache entries by state",
	}, []string{"state"})

	return col
}

// Register registers all metrics with the given registerer.
func (c *Collector) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.answersTotal,
		c.apiCallsSaved,
		c.llmLatency,
		c.llmTokens,
		c.cacheEntries,
	)
}

// ObserveAnswer records one pipeline answer.
func (c *Collector) ObserveAnswer(source string, apiCallsSaved int) {
	if c == nil {
		return
	}
	c.answersTotal.WithLabelValues(source).Inc()
	if apiCallsSaved > 0 {
		c.apiCallsSaved.Add(float64(apiCallsSaved))
	}
}

// ObserveLLMCall records one live completion.
func (c *Collector) ObserveLLMCall(latencySeconds float64, tokens int) {
	if c == nil {
		return
	}
	c.llmLatency.Observe(latencySeconds)
	c.llmTokens.Add(float64(tokens))
}

// Refresh recomputes cache gauges (call on each scrape).
func (c *Collector) Refresh(ctx context.Context) error {
	if c == nil || c.cache == nil {
		return nil
	}
	stats, err := c.cache.Stats(ctx)
	if err != nil {
		return err
	}
	c.cacheEntries.WithLabelValues("total").Set(float64(stats.Total))
	c.cacheEntries.WithLabelValues("active").Set(float64(stats.Active))
	c.cacheEntries.WithLabelValues("expired").Set(float64(stats.Expired))
	return nil
}
