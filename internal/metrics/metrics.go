// Package metrics exposes prometheus instrumentation and the health endpoints.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_messages_fetched_total",
		Help: "The total number of messages fetched from telegram",
	}, []string{"channel"})

	MessagesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_messages_classified_total",
		Help: "The total number of classified messages by result",
	}, []string{"channel", "result"})

	ImagesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_images_stored_total",
		Help: "The total number of photos stored on disk",
	}, []string{"channel"})

	ImageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_image_failures_total",
		Help: "Total photo handling failures by pipeline stage",
	}, []string{"channel", "stage"})

	ChannelRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_channel_runs_total",
		Help: "The total number of per-channel collection runs by outcome",
	}, []string{"channel", "status"})

	ChannelRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newswire_channel_run_duration_seconds",
		Help:    "Duration in seconds of a single channel collection run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
)
