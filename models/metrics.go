package models

import (
	"time"

	"github.com/aukilabs/octree/octree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	shapeLabel = "shape"
)

var (
	worldCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "world_count",
		Help: "The number of worlds.",
	})

	worldCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "world_count_total",
		Help: "The total number of worlds.",
	})

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "entity_count",
		Help: "The number of entities across all worlds.",
	})

	octreeUpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "octree_update_duration_seconds",
		Help:    "The time to update the index of a world on a frame.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	octreeRehomedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_rehomed_total",
		Help: "The total number of entities re-inserted after leaving their node.",
	})

	octreePushedDownTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_pushed_down_total",
		Help: "The total number of entities pushed down from overloaded nodes.",
	})

	queryCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_count_total",
		Help: "The total number of spatial queries.",
	}, []string{shapeLabel})
)

func instrumentIncreaseWorldGauge() {
	worldCount.Inc()
	worldCountTotal.Inc()
}

func instrumentDecreaseWorldGauge(entities int) {
	worldCount.Dec()
	entityCount.Sub(float64(entities))
}

func instrumentIncreaseEntityGauge() {
	entityCount.Inc()
}

func instrumentDecreaseEntityGauge() {
	entityCount.Dec()
}

func instrumentUpdate(stats octree.UpdateStats, duration time.Duration) {
	octreeUpdateDuration.Observe(duration.Seconds())
	octreeRehomedTotal.Add(float64(stats.Rehomed))
	octreePushedDownTotal.Add(float64(stats.PushedDown))
}

func instrumentCountQuery(shape string) {
	queryCountTotal.
		With(prometheus.Labels{shapeLabel: shape}).
		Inc()
}
