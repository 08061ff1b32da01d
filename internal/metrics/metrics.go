// Package metrics регистрирует счётчики Prometheus шлюза.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateDecisions — решения проверки лимитов по функциям и исходу.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_gate_decisions_total",
		Help: "Feature gate decisions by feature and outcome.",
	}, []string{"feature", "outcome"})

	// DispatchTasks — фоновые задачи по типу и исходу.
	DispatchTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_dispatch_tasks_total",
		Help: "Background dispatch tasks by kind and outcome.",
	}, []string{"kind", "outcome"})

	// UsageIncrementRetries — повторы инкремента счётчиков использования.
	UsageIncrementRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_usage_increment_retries_total",
		Help: "Retries of usage increment RPC calls.",
	})

	// TTSCacheHits — попадания в кэш синтеза речи.
	TTSCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_tts_cache_total",
		Help: "Speech synthesis cache lookups by result.",
	}, []string{"result"})
)
