// Package metrics defines Prometheus metrics for the scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan pipeline metrics
var (
	// ScansTotal tracks scans by source and final status.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescan_scans_total",
			Help: "Total number of scans by source and status",
		},
		[]string{"source", "status"},
	)

	// ScanDuration tracks end-to-end scan pipeline duration.
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vibescan_scan_duration_seconds",
			Help:    "Scan pipeline duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// ScannerInvocations tracks scan tool runs by tool and outcome.
	ScannerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescan_scanner_invocations_total",
			Help: "Total scan tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)
)

// Enrichment metrics
var (
	// EnrichmentDuration tracks one enrichment pass duration.
	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vibescan_enrichment_duration_seconds",
			Help:    "Enrichment pass duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	// ModelCalls tracks batched model calls by outcome.
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescan_model_calls_total",
			Help: "Total batched model calls by outcome",
		},
		[]string{"outcome"},
	)

	// FindingsEnriched tracks enriched findings by provenance.
	FindingsEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescan_findings_enriched_total",
			Help: "Total enriched findings by generated_by",
		},
		[]string{"generated_by"},
	)
)

// Credit ledger metrics
var (
	// CreditGrants tracks session grants by result.
	CreditGrants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescan_credit_grants_total",
			Help: "Total credit grant attempts by result",
		},
		[]string{"result"},
	)

	// CreditsConsumed tracks scan credit consumption.
	CreditsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibescan_credits_consumed_total",
			Help: "Total scan credits consumed",
		},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks HTTP requests by method, path, status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescan_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibescan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
