package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/burnsync/burnsync/internal/common"
	"github.com/burnsync/burnsync/internal/metrics"
)

// errAborted marks a stage that was interrupted because a peer stage
// failed first. It never outranks the peer's own error during outcome
// resolution.
var errAborted = errors.New("pipeline aborted")

const cancelPollInterval = 25 * time.Millisecond

// pipeline carries the per-round state shared by the three stages: an
// abort context that unblocks stranded channel operations when any
// stage fails, and the caller's cancellation flag.
type pipeline struct {
	ctx         context.Context
	abort       context.CancelFunc
	keepRunning *atomic.Bool
}

func newPipeline(keepRunning *atomic.Bool) *pipeline {
	ctx, abort := context.WithCancel(context.Background())
	p := &pipeline{
		ctx:         ctx,
		abort:       abort,
		keepRunning: keepRunning,
	}
	if keepRunning != nil {
		go p.watchCancelFlag()
	}
	return p
}

// watchCancelFlag aborts the round context once the caller's flag goes
// false, so stages blocked on a channel operation stop promptly.
func (p *pipeline) watchCancelFlag() {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if !p.keepRunning.Load() {
				p.abort()
				return
			}
		}
	}
}

func (p *pipeline) shouldKeepRunning() bool {
	return p.keepRunning == nil || p.keepRunning.Load()
}

// interruptErr classifies an interrupted channel operation. A false
// cancellation flag means a graceful stop (no error). An abort caused
// by a peer's failure is collateral. Anything else is an unexpected
// closure.
func (p *pipeline) interruptErr(label string) error {
	if !p.shouldKeepRunning() {
		return nil
	}
	if p.ctx.Err() != nil {
		return fmt.Errorf("%s stage: %w", label, errAborted)
	}
	return fmt.Errorf("%s stage observed unexpected channel closure: %w", label, common.ErrThreadChannel)
}

// downloadStage fetches each block in the range in ascending height
// order. A nil value on the outbound channel is the end-of-stream
// marker; the channel closing without it signals failure downstream.
func (p *pipeline) downloadStage(downloader Downloader, headers []common.HeaderIPC, out chan<- *common.BlockIPC) error {
	defer close(out)

	for i := range headers {
		if !p.shouldKeepRunning() {
			return nil
		}

		blockIPC, err := downloader.Download(headers[i])
		if err != nil {
			metrics.PipelineFailures.WithLabelValues("download").Inc()
			p.abort()
			if common.IsDownloadError(err) {
				return err
			}
			return &common.DownloadError{Err: err}
		}
		metrics.DownloadedBlocks.Inc()

		select {
		case out <- blockIPC:
		case <-p.ctx.Done():
			return p.interruptErr("download")
		}
	}

	select {
	case out <- nil:
	case <-p.ctx.Done():
		return p.interruptErr("download")
	}
	return nil
}

// parseStage decodes downloaded blocks under the epoch active at each
// block's height and forwards them in order.
func (p *pipeline) parseStage(parser BlockParser, epochs common.EpochList, in <-chan *common.BlockIPC, out chan<- *common.BlockData) error {
	defer close(out)

	for {
		if !p.shouldKeepRunning() {
			return nil
		}

		var blockIPC *common.BlockIPC
		var ok bool
		select {
		case blockIPC, ok = <-in:
			if !ok {
				return p.interruptErr("parse")
			}
		case <-p.ctx.Done():
			return p.interruptErr("parse")
		}

		if blockIPC == nil {
			// Upstream ended cleanly; propagate the marker.
			select {
			case out <- nil:
			case <-p.ctx.Done():
				return p.interruptErr("parse")
			}
			return nil
		}

		epoch := epochs.EpochAt(blockIPC.Header.Height)
		blockData, err := parser.Parse(blockIPC, epoch.ID)
		if err != nil {
			metrics.PipelineFailures.WithLabelValues("parse").Inc()
			p.abort()
			if common.IsParseError(err) {
				return err
			}
			return &common.ParseError{Err: err}
		}
		metrics.ParsedBlocks.Inc()

		select {
		case out <- blockData:
		case <-p.ctx.Done():
			return p.interruptErr("parse")
		}
	}
}

// commitStage commits parsed blocks strictly in ascending height order
// and pings the coordinator once per committed block. It returns the
// header of the last block it durably committed, which may be short of
// the range end on graceful cancellation.
func (p *pipeline) commitStage(indexer Indexer, coordinator CoordinatorChannels, in <-chan *common.BlockData) (*common.BurnBlockHeader, error) {
	var lastCommitted *common.BurnBlockHeader

	for {
		if !p.shouldKeepRunning() {
			return lastCommitted, nil
		}

		var blockData *common.BlockData
		var ok bool
		select {
		case blockData, ok = <-in:
			if !ok {
				return lastCommitted, p.interruptErr("commit")
			}
		case <-p.ctx.Done():
			return lastCommitted, p.interruptErr("commit")
		}

		if blockData == nil {
			return lastCommitted, nil
		}

		if err := indexer.ProcessBlock(blockData); err != nil {
			metrics.PipelineFailures.WithLabelValues("commit").Inc()
			p.abort()
			if common.IsDBError(err) {
				return lastCommitted, err
			}
			return lastCommitted, &common.DBError{Err: err}
		}

		if !coordinator.AnnounceNewBurnBlock() {
			p.abort()
			return lastCommitted, common.ErrCoordinatorClosed
		}

		header := blockData.Header
		lastCommitted = &header
		metrics.CommittedBlocks.Inc()
		metrics.LastCommittedBlock.Set(float64(header.Height))
	}
}

// resolvePipelineError picks the single error surfaced to the caller
// when multiple stages fail in one round. Precedence, highest first:
// download, parse, thread-channel, db, coordinator. Collateral aborts
// rank below everything so the root cause is never masked by a stage
// that merely died because its peer did.
func resolvePipelineError(stageErrs ...error) error {
	rank := func(err error) int {
		switch {
		case errors.Is(err, errAborted):
			return 5
		case common.IsDownloadError(err):
			return 0
		case common.IsParseError(err):
			return 1
		case common.IsThreadChannelError(err):
			return 2
		case common.IsDBError(err):
			return 3
		default:
			return 4
		}
	}

	var best error
	bestRank := 6
	for _, err := range stageErrs {
		if err == nil {
			continue
		}
		if r := rank(err); r < bestRank {
			best = err
			bestRank = r
		}
	}
	if best != nil && errors.Is(best, errAborted) {
		return fmt.Errorf("pipeline did not complete cleanly: %w", common.ErrThreadChannel)
	}
	return best
}
