package gemini

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики для клиента Gemini
//
// Метрики позволяют отслеживать:
// - Время выполнения запросов генерации
// - Использование токенов (prompt/completion)
// - Ошибки по видам (kind)

const metricsNamespace = "shastrarthi"

var (
	// llmRequestDuration измеряет время выполнения запросов генерации.
	// Labels:
	//   - model: название модели
	//   - job_type: источник запроса (chat, tool, synthesis, cli)
	//   - status: результат (success, error)
	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of generation requests in seconds",
			// Buckets для типичных времён LLM: 0.5s - 60s
			Buckets: []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 20, 30, 45, 60},
		},
		[]string{"model", "job_type", "status"},
	)

	// llmRequestsTotal считает количество запросов генерации.
	// Labels:
	//   - model: название модели
	//   - job_type: источник запроса
	//   - kind: вид результата (success или kind ошибки)
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"model", "job_type", "kind"},
	)

	// llmTokensTotal считает использованные токены.
	// Labels:
	//   - model: название модели
	//   - type: тип токенов (prompt, completion)
	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total number of tokens used for generation requests",
		},
		[]string{"model", "type"},
	)
)

const (
	statusSuccess   = "success"
	statusError     = "error"
	tokenTypePrompt = "prompt"
	tokenTypeCompl  = "completion"
)

// RecordLLMRequest записывает метрики запроса генерации.
// Пустой kind означает успешный запрос.
func RecordLLMRequest(model, jobType string, durationSeconds float64, kind Kind, promptTokens, completionTokens int) {
	status := statusSuccess
	kindLabel := statusSuccess
	if kind != "" {
		status = statusError
		kindLabel = string(kind)
	}

	llmRequestDuration.WithLabelValues(model, jobType, status).Observe(durationSeconds)
	llmRequestsTotal.WithLabelValues(model, jobType, kindLabel).Inc()

	if promptTokens > 0 {
		llmTokensTotal.WithLabelValues(model, tokenTypePrompt).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		llmTokensTotal.WithLabelValues(model, tokenTypeCompl).Add(float64(completionTokens))
	}
}
