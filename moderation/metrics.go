package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsQueued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigia_moderation_items_queued_total",
	Help: "Number of content items enqueued for classification",
})

var itemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigia_moderation_items_processed_total",
	Help: "Number of content items fully processed by the moderation workers",
})

var classifierFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigia_moderation_classifier_failures_total",
	Help: "Number of classification calls that errored or timed out (deny-by-default rejections)",
})

var verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigia_moderation_verdicts_total",
	Help: "Number of applied moderation outcomes by content kind and state",
}, []string{"kind", "state"})

var workersActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "vigia_moderation_workers",
	Help: "Number of moderation workers",
})
