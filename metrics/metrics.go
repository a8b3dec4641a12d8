// Package metrics exposes queue and publishing activity as Prometheus metrics.
package metrics

import (
	"github.com/BranchIntl/postqueue/queue"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postqueue"

// Collector holds the Prometheus metrics fed by queue events and publish results
type Collector struct {
	Events    *prometheus.CounterVec
	QueueWait prometheus.Histogram
	Attempts  *prometheus.HistogramVec
	Publishes *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Queue lifecycle events by kind.",
		}, []string{"event"}),
		QueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time between an item being added and being claimed.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		Attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempts",
			Help:      "Attempts made before an item reached a terminal state.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}, []string{"outcome"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Publish attempts by platform and result.",
		}, []string{"platform", "result"}),
	}

	for _, m := range []prometheus.Collector{c.Events, c.QueueWait, c.Attempts, c.Publishes} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObservePublish counts one publish attempt
func (c *Collector) ObservePublish(platform string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.Publishes.WithLabelValues(platform, result).Inc()
}

// Instrument attaches listeners for every queue event to bus and returns a
// func that detaches them
func Instrument[T any](c *Collector, bus *queue.Bus[T]) func() {
	listeners := make(map[queue.Event]*queue.Listener[T], len(queue.Events))

	for _, event := range queue.Events {
		event := event
		counter := c.Events.WithLabelValues(string(event))

		l := queue.Listen(func(item queue.Item[T], _ any) error {
			counter.Inc()

			switch event {
			case queue.EventProcessing:
				if wait := item.UpdatedAt.Sub(item.AddedAt); wait >= 0 {
					c.QueueWait.Observe(wait.Seconds())
				}
			case queue.EventCompleted:
				c.Attempts.WithLabelValues("completed").Observe(float64(item.Attempt + 1))
			case queue.EventFailed:
				c.Attempts.WithLabelValues("failed").Observe(float64(item.Attempt + 1))
			}
			return nil
		})

		listeners[event] = l
		bus.On(event, l)
	}

	return func() {
		for event, l := range listeners {
			bus.Off(event, l)
		}
	}
}

// RegisterQueueDepth exports the number of tracked items per status as
// gauges read from q at scrape time
func RegisterQueueDepth[T any](reg prometheus.Registerer, q *queue.Queue[T]) error {
	for _, status := range []queue.Status{
		queue.StatusPending, queue.StatusProcessing, queue.StatusCompleted, queue.StatusFailed,
	} {
		status := status
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "items",
			Help:        "Tracked queue items by status.",
			ConstLabels: prometheus.Labels{"status": string(status)},
		}, func() float64 {
			return float64(q.Counts()[status])
		})
		if err := reg.Register(gauge); err != nil {
			return err
		}
	}
	return nil
}
