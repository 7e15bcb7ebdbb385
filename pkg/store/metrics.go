package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsSaved tracks inserted items by backend
	ItemsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jokepool_store_items_saved_total",
			Help: "Total number of items inserted into the store",
		},
		[]string{"backend"}, // "memory", "redis", "sqlite", "postgres"
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jokepool_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"backend", "operation"}, // "find_all", "exists", "save_all"
	)
)

const (
	opFindAll = "find_all"
	opExists  = "exists"
	opSaveAll = "save_all"
)
