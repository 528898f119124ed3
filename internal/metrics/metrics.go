package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks chain RPC calls per network and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_rpc_calls_total",
			Help: "Total number of chain RPC calls",
		},
		[]string{"network", "method"},
	)

	// RPCErrorsTotal tracks failed chain RPC calls
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_rpc_errors_total",
			Help: "Total number of chain RPC errors",
		},
		[]string{"network", "method", "error_type"},
	)

	// RPCLatency tracks chain RPC latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_rpc_latency_seconds",
			Help:    "Chain RPC latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "method"},
	)

	// SoftFailures counts reads that reverted with a recognised "no value yet" reason
	SoftFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_soft_failures_total",
			Help: "Reads mapped to an empty value",
		},
		[]string{"function", "reason"},
	)

	// BlocksSynced counts persisted block snapshots
	BlocksSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_blocks_synced_total",
			Help: "Total number of persisted block snapshots",
		},
		[]string{"network", "path"},
	)

	// BlockRetries counts failed block attempts
	BlockRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_block_retries_total",
			Help: "Block attempts discarded after a hard read failure",
		},
		[]string{"network"},
	)

	// SyncedBlock is the highest contiguous persisted block
	SyncedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_synced_block",
			Help: "Highest fully persisted block",
		},
		[]string{"network"},
	)

	// ChainHead is the latest block reported by the node
	ChainHead = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_chain_head_block",
			Help: "Latest block reported by the node",
		},
		[]string{"network"},
	)

	// MissingBlocks is the number of holes found by the last backfill scan
	MissingBlocks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_missing_blocks",
			Help: "Missing blocks found by the last backfill scan",
		},
		[]string{"network"},
	)

	// EventsCrawled counts normalized events per protocol
	EventsCrawled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_events_crawled_total",
			Help: "Normalized events returned by complete crawls",
		},
		[]string{"protocol"},
	)

	// EventsDropped counts raw events rejected by normalization
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_events_dropped_total",
			Help: "Raw indexer events dropped during normalization",
		},
		[]string{"protocol"},
	)

	// CrawlFailures counts crawls discarded after a hard error
	CrawlFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_crawl_failures_total",
			Help: "Crawls discarded after a transport or parse error",
		},
		[]string{"protocol"},
	)
)
