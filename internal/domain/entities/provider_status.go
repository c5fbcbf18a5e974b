package entities

import "time"

// ProviderStatus is the terminal outcome of one adapter invocation
type ProviderStatus string

const (
	ProviderStatusOK          ProviderStatus = "ok"
	ProviderStatusError       ProviderStatus = "error"
	ProviderStatusTimeout     ProviderStatus = "timeout"
	ProviderStatusRateLimited ProviderStatus = "rate_limited"
	ProviderStatusExhausted   ProviderStatus = "exhausted"
)

// ProviderStatusSnapshot records one adapter's outcome for one query.
// Created once per invocation and never mutated; consumed by observability
// and the provider-health display.
type ProviderStatusSnapshot struct {
	ProviderID  string         `json:"provider_id"`
	Status      ProviderStatus `json:"status"`
	ResultCount int            `json:"result_count"`
	LatencyMs   int64          `json:"latency_ms"`
	Message     string         `json:"message,omitempty"`
}

// Failed reports whether the invocation produced no usable batch
func (s ProviderStatusSnapshot) Failed() bool {
	return s.Status != ProviderStatusOK
}

// AggregatedSearchResponse is the blocking fan-out payload returned to callers
type AggregatedSearchResponse struct {
	RequestID        string                   `json:"request_id,omitempty"`
	Results          []*NormalizedResult      `json:"results"`
	ProviderStatuses []ProviderStatusSnapshot `json:"provider_statuses"`
	AllFailed        bool                     `json:"all_failed"`
	UserMessage      string                   `json:"user_message,omitempty"`
	GeneratedAt      time.Time                `json:"generated_at"`
}

// ProviderSummary indexes statuses by provider id
func (r *AggregatedSearchResponse) ProviderSummary() map[string]ProviderStatusSnapshot {
	summary := make(map[string]ProviderStatusSnapshot, len(r.ProviderStatuses))
	for _, status := range r.ProviderStatuses {
		summary[status.ProviderID] = status
	}
	return summary
}

// StreamBatch is one streaming fan-out emission: the batch of one provider
// that just completed, in completion order. ProvidersRemaining reaches zero
// on the final batch.
type StreamBatch struct {
	Provider           string                 `json:"provider"`
	Results            []*NormalizedResult    `json:"results"`
	Status             ProviderStatusSnapshot `json:"status"`
	ProvidersRemaining int                    `json:"providers_remaining"`
}
