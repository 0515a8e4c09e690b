// Package metrics exposes the Prometheus instrumentation for the fabric:
// connection/room counts and the error classes from spec §7.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kazahane_connections_active",
		Help: "Current number of registered connection mailboxes.",
	})
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kazahane_rooms_active",
		Help: "Current number of live room tasks on this server.",
	})
	BroadcastsLocalTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kazahane_broadcasts_local_total",
		Help: "Total broadcasts fanned out to same-server room members.",
	})
	BroadcastsRemoteTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kazahane_broadcasts_remote_total",
		Help: "Total broadcasts fanned out to members via the pub/sub bus.",
	})
	MailboxFullTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kazahane_mailbox_full_total",
		Help: "Total publishes that blocked on a full mailbox, labeled by mailbox class.",
	}, []string{"class"})
	BusErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kazahane_bus_errors_total",
		Help: "Total pub/sub publish or subscribe failures.",
	})
	StoreErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kazahane_store_errors_total",
		Help: "Total state-store get/set/delete failures.",
	})
	ProtocolErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kazahane_protocol_errors_total",
		Help: "Total connections closed due to a malformed frame.",
	})
)
