// Package metrics registers the Prometheus instruments shared by the API
// and the push worker. All are registered on the default registry and
// exposed via /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BroadcastDelivered counts per-student notification appends that
	// persisted during a fan-out.
	BroadcastDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_broadcast_delivered_total",
		Help: "Notification fan-out appends that were persisted.",
	})

	// BroadcastFailed counts per-student appends that failed mid fan-out.
	BroadcastFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_broadcast_failed_total",
		Help: "Notification fan-out appends that failed.",
	})

	// PushSent counts push messages accepted by the push gateway.
	PushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_push_sent_total",
		Help: "Push notifications accepted by the gateway.",
	})

	// PushFailed counts push messages the gateway rejected.
	PushFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_push_failed_total",
		Help: "Push notifications rejected or undeliverable.",
	})
)
