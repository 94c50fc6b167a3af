package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wyr_votes_cast_total",
		Help: "Votes cast, split by whether an earlier vote was replaced.",
	}, []string{"replaced"})

	CommentsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wyr_comments_added_total",
		Help: "Discussion comments written to the store.",
	})

	TopicsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wyr_topics_created_total",
		Help: "Topics written to the store.",
	})

	WritesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wyr_writes_rejected_total",
		Help: "Store writes that failed, by operation.",
	}, []string{"op"})

	SnapshotsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wyr_snapshots_applied_total",
		Help: "Collection snapshots that replaced the in-memory state.",
	}, []string{"collection"})

	CollectionSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wyr_collection_size",
		Help: "Documents in the latest snapshot of a collection.",
	}, []string{"collection"})

	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wyr_open_sessions",
		Help: "Authenticated sessions held in memory.",
	})
)
