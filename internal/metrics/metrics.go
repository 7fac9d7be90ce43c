// Package metrics defines the Prometheus metrics for the voting core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vote pipeline metrics
var (
	// VotesTotal tracks applied votes by direction
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_total",
			Help: "Total votes applied by direction",
		},
		[]string{"direction"},
	)

	// VotesRetractedTotal tracks retracted votes
	VotesRetractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votes_retracted_total",
			Help: "Total votes retracted",
		},
	)

	// ItemsCreatedTotal tracks created items
	ItemsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "items_created_total",
			Help: "Total items created",
		},
	)
)

// Change feed metrics
var (
	// FeedEventsTotal tracks change-feed events by type
	FeedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_total",
			Help: "Total change-feed events published by type",
		},
		[]string{"type"},
	)

	// FeedSubscriptions tracks currently open change-feed subscriptions
	FeedSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_subscriptions_current",
			Help: "Currently open change-feed subscriptions",
		},
	)
)

// Websocket metrics
var (
	// WSConnectedClients tracks connected websocket clients by stream
	WSConnectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Connected websocket clients by stream",
		},
		[]string{"stream"},
	)

	// WSRejectedTotal tracks rejected websocket connections by reason
	WSRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_rejected_total",
			Help: "Rejected websocket connections by reason",
		},
		[]string{"reason"},
	)
)
