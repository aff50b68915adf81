package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClaimDuration tracks the latency of voucher claim confirmations
	ClaimDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "voucher_claim_duration_seconds",
			Help: "Duration of voucher claim confirmations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"status"}, // success, conflict or error
	)

	// LookupTotal counts voucher lookups by outcome
	LookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_lookup_total",
			Help: "Total voucher code lookups by outcome",
		},
		[]string{"outcome"}, // found, not_found, already_claimed or error
	)
)

// RecordClaimDuration records the duration of a claim confirmation
func RecordClaimDuration(status string, duration float64) {
	ClaimDuration.WithLabelValues(status).Observe(duration)
}

// RecordLookup counts one lookup with the given outcome
func RecordLookup(outcome string) {
	LookupTotal.WithLabelValues(outcome).Inc()
}
