// Package metrics holds the Prometheus instruments for gallery mutations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Insert outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeCodec    = "codec_error"
	OutcomeTooLarge = "too_large"
	OutcomeIO       = "io_error"
	OutcomeNotFound = "not_found"
)

var (
	// AssetsInsertedTotal counts insert attempts by outcome.
	AssetsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgbed",
			Subsystem: "gallery",
			Name:      "inserts_total",
			Help:      "Total number of image inserts by outcome",
		},
		[]string{"outcome"},
	)

	// AssetsDeletedTotal counts removed assets.
	AssetsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imgbed",
			Subsystem: "gallery",
			Name:      "deletes_total",
			Help:      "Total number of deleted images",
		},
	)

	// RenamesTotal counts renames performed by renumbering passes.
	RenamesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imgbed",
			Subsystem: "gallery",
			Name:      "renames_total",
			Help:      "Total number of files renamed while renumbering",
		},
	)

	// RenumberFailuresTotal counts renumbering passes that stopped partway.
	RenumberFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imgbed",
			Subsystem: "gallery",
			Name:      "renumber_failures_total",
			Help:      "Total number of renumbering passes aborted by a filesystem error",
		},
	)

	// TranscodeDuration observes decode+encode time per image.
	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgbed",
			Subsystem: "codec",
			Name:      "transcode_duration_seconds",
			Help:      "Time spent decoding and re-encoding one source image",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source_format"},
	)
)
