package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Syncer metrics
var (
	LastCommittedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncer_last_committed_block",
		Help: "The height of the last successfully committed burnchain block",
	})

	CommittedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncer_committed_blocks_total",
		Help: "The total number of burnchain blocks committed",
	})

	SyncRoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "syncer_round_duration_seconds",
		Help:    "Duration of a full sync round (headers, reorg check, pipeline)",
		Buckets: prometheus.DefBuckets,
	})

	ReorgCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncer_reorgs_total",
		Help: "The number of burnchain reorgs detected",
	})
)

// Header sync metrics
var (
	HighestHeader = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "headers_highest_synced",
		Help: "The height of the highest locally synced burnchain header",
	})
)

// Pipeline metrics
var (
	DownloadedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_downloaded_blocks_total",
		Help: "The total number of burnchain blocks downloaded",
	})

	ParsedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_parsed_blocks_total",
		Help: "The total number of burnchain blocks parsed",
	})

	PipelineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_failures_total",
		Help: "The number of pipeline stage failures by stage",
	}, []string{"stage"})
)
