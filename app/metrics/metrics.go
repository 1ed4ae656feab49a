// Package metrics holds the Prometheus collectors shared by the feed
// pipeline. They register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DirectoryLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mprss_directory_loads_total",
		Help: "Account directory loads by result",
	}, []string{"result"})

	RowsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mprss_store_rows_fetched_total",
		Help: "Raw msglog rows read for feed requests",
	})

	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mprss_store_rows_dropped_total",
		Help: "msglog rows dropped before rendering, by reason",
	}, []string{"reason"})

	FeedsRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mprss_feeds_rendered_total",
		Help: "Documents rendered, by format",
	}, []string{"format"})

	FeedItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mprss_feed_items",
		Help:    "Items per rendered RSS feed",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Drop reasons for RowsDropped.
const (
	DropDecode    = "decode"
	DropNoURL     = "no_url"
	DropDomain    = "domain"
	DropDuplicate = "duplicate"
)
