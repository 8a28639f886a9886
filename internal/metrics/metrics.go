// Package metrics exposes gateway counters for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_requests_total",
		Help: "Generate requests by provider, calling service, and outcome.",
	}, []string{"provider", "service", "outcome"}) // outcome: success, cache_hit, error

	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_tokens_total",
		Help: "Tokens consumed upstream by provider and direction.",
	}, []string{"provider", "direction"}) // direction: input, output

	CostUSDTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_cost_usd_total",
		Help: "Accumulated upstream spend in USD by provider.",
	}, []string{"provider"})
)
