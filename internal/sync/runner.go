package sync

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/common"
	"github.com/burnsync/burnsync/internal/coordinator"
)

const DEFAULT_SYNC_INTERVAL = 2000

// Runner drives sync rounds back to back until the target height is
// reached or the process is told to stop. Exactly one round runs at a
// time.
type Runner struct {
	syncer      *Syncer
	indexer     Indexer
	channels    *coordinator.Channels
	intervalMs  int
	keepRunning atomic.Bool
	stop        chan struct{}
}

func NewRunner(indexer Indexer, channels *coordinator.Channels) *Runner {
	interval := config.Cfg.Sync.Interval
	if interval == 0 {
		interval = DEFAULT_SYNC_INTERVAL
	}
	runner := &Runner{
		syncer:     NewSyncer(),
		indexer:    indexer,
		channels:   channels,
		intervalMs: interval,
		stop:       make(chan struct{}),
	}
	runner.keepRunning.Store(true)
	return runner
}

func (r *Runner) Start() error {
	// Every exit path counts as a shutdown: the coordinator is stopped
	// and the signal watcher released.
	defer r.Shutdown()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Msgf("Received signal %v, initiating graceful shutdown", sig)
			r.Shutdown()
		case <-r.stop:
		}
	}()

	if config.Cfg.Metrics.Enabled {
		go r.serveMetrics()
	}

	var targetHeight *uint64
	if config.Cfg.Sync.TargetHeight > 0 {
		target := config.Cfg.Sync.TargetHeight
		targetHeight = &target
	}
	var maxBlocks *uint64
	if config.Cfg.Sync.MaxBlocks > 0 {
		max := config.Cfg.Sync.MaxBlocks
		maxBlocks = &max
	}

	ticker := time.NewTicker(time.Duration(r.intervalMs) * time.Millisecond)
	defer ticker.Stop()

	log.Info().Msg("Syncer running")
	for r.keepRunning.Load() {
		tip, err := r.syncer.SyncWithIndexer(r.indexer, r.channels, targetHeight, maxBlocks, &r.keepRunning)
		if err != nil {
			if common.IsDownloadError(err) {
				// Transient burnchain trouble; retry next round.
				log.Error().Err(err).Msg("Sync round failed, will retry")
			} else {
				return fmt.Errorf("sync round failed: %w", err)
			}
		} else {
			log.Debug().Uint64("tip", tip.Height).Msg("Sync round complete")
			if targetHeight != nil && tip.Height >= *targetHeight {
				log.Info().Uint64("height", tip.Height).Msg("Reached target height, stopping")
				return nil
			}
		}

		select {
		case <-ticker.C:
		case <-r.stop:
			return nil
		}
	}
	return nil
}

// Shutdown stops the round loop. Idempotent; safe to call from any
// goroutine.
func (r *Runner) Shutdown() {
	if r.keepRunning.CompareAndSwap(true, false) {
		r.channels.Stop()
		close(r.stop)
	}
}

func (r *Runner) serveMetrics() {
	addr := fmt.Sprintf(":%d", config.Cfg.Metrics.Port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}
