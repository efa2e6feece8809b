package sync

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/common"
	"github.com/burnsync/burnsync/internal/metrics"
)

const DEFAULT_CHANNEL_CAPACITY = 16

// CoordinatorChannels is the downstream signal pinged once per
// committed block.
type CoordinatorChannels interface {
	AnnounceNewBurnBlock() bool
}

// Syncer drives one burnchain synchronization round at a time:
// refresh headers, detect reorgs, then run the download, parse and
// commit stages as a bounded pipeline. Rounds never overlap; a round
// tears its pipeline down fully before returning.
type Syncer struct {
	firstBlockHeight uint64
	channelCapacity  int
}

type SyncerOption func(*Syncer)

func WithChannelCapacity(capacity int) SyncerOption {
	return func(s *Syncer) {
		if capacity > 0 {
			s.channelCapacity = capacity
		}
	}
}

func WithFirstBlockHeight(height uint64) SyncerOption {
	return func(s *Syncer) {
		s.firstBlockHeight = height
	}
}

func NewSyncer(opts ...SyncerOption) *Syncer {
	channelCapacity := config.Cfg.Sync.ChannelCapacity
	if channelCapacity == 0 {
		channelCapacity = DEFAULT_CHANNEL_CAPACITY
	}

	syncer := &Syncer{
		firstBlockHeight: config.Cfg.Burnchain.FirstBlockHeight,
		channelCapacity:  channelCapacity,
	}
	for _, opt := range opts {
		opt(syncer)
	}
	return syncer
}

// SyncWithIndexer runs one synchronization round against the indexer
// and returns the new canonical tip, or the first error encountered
// per the stage precedence rule. A nil targetHeight follows the
// burnchain tip; a nil maxBlocks leaves the round unbounded; a nil
// keepRunning flag disables cancellation. When keepRunning goes false
// the round stops cleanly and the tip is the last block actually
// committed.
func (s *Syncer) SyncWithIndexer(
	indexer Indexer,
	coordinator CoordinatorChannels,
	targetHeight *uint64,
	maxBlocks *uint64,
	keepRunning *atomic.Bool,
) (common.BurnBlockHeader, error) {
	roundStart := time.Now()
	defer func() {
		metrics.SyncRoundDuration.Observe(time.Since(roundStart).Seconds())
	}()

	if err := indexer.Connect(); err != nil {
		return common.BurnBlockHeader{}, asDownloadClass(err)
	}

	localHeight, err := indexer.GetHeadersHeight()
	if err != nil {
		return common.BurnBlockHeader{}, asDownloadClass(err)
	}

	var target uint64
	if targetHeight != nil {
		target = *targetHeight
	}
	syncedHeight, err := indexer.SyncHeaders(localHeight, target)
	if err != nil {
		return common.BurnBlockHeader{}, asDownloadClass(err)
	}
	metrics.HighestHeader.Set(float64(syncedHeight))

	commonAncestor, err := indexer.FindChainReorg()
	if err != nil {
		return common.BurnBlockHeader{}, asDownloadClass(err)
	}

	chainTip, err := indexer.GetCanonicalChainTip()
	if err != nil {
		return common.BurnBlockHeader{}, asDBClass(err)
	}

	// A common ancestor below the committed tip means blocks above it
	// are no longer on the canonical burnchain branch. They must be
	// invalidated before any new commit, or chain-state ordering would
	// be corrupted.
	if chainTip != nil && commonAncestor < chainTip.Height {
		log.Warn().
			Uint64("common_ancestor", commonAncestor).
			Uint64("chain_tip", chainTip.Height).
			Msg("Burnchain reorg detected, invalidating chain state above ancestor")
		metrics.ReorgCounter.Inc()
		if err := indexer.DropChainState(commonAncestor); err != nil {
			return common.BurnBlockHeader{}, asDBClass(err)
		}
		chainTip, err = indexer.GetCanonicalChainTip()
		if err != nil {
			return common.BurnBlockHeader{}, asDBClass(err)
		}
	}

	startHeight := s.firstBlockHeight
	if chainTip != nil && chainTip.Height+1 > startHeight {
		startHeight = chainTip.Height + 1
	}
	endHeight := syncedHeight
	if targetHeight != nil && *targetHeight < endHeight {
		endHeight = *targetHeight
	}
	// Compare by block count: computing start+max-1 directly wraps for
	// very large bounds.
	if maxBlocks != nil && *maxBlocks > 0 && startHeight <= endHeight && endHeight-startHeight+1 > *maxBlocks {
		endHeight = startHeight + *maxBlocks - 1
	}

	if startHeight > endHeight {
		log.Debug().
			Uint64("start", startHeight).
			Uint64("end", endHeight).
			Msg("Sync range is empty, nothing to do")
		return s.currentTip(chainTip), nil
	}

	headers, err := indexer.ReadHeaders(startHeight, endHeight+1)
	if err != nil {
		return common.BurnBlockHeader{}, asDBClass(err)
	}
	if len(headers) == 0 {
		return s.currentTip(chainTip), nil
	}

	log.Debug().
		Uint64("start", headers[0].Height).
		Uint64("end", headers[len(headers)-1].Height).
		Int("blocks", len(headers)).
		Msg("Launching sync pipeline")

	p := newPipeline(keepRunning)
	defer p.abort()

	downloadCh := make(chan *common.BlockIPC, s.channelCapacity)
	commitCh := make(chan *common.BlockData, s.channelCapacity)

	downloader := indexer.GetDownloader()
	parser := indexer.GetBlockParser()
	epochs := indexer.GetEpochs()

	downloadHandle := spawnWorker("download", p.abort, func() (struct{}, error) {
		return struct{}{}, p.downloadStage(downloader, headers, downloadCh)
	})
	parseHandle := spawnWorker("parse", p.abort, func() (struct{}, error) {
		return struct{}{}, p.parseStage(parser, epochs, downloadCh, commitCh)
	})
	commitHandle := spawnWorker("commit", p.abort, func() (*common.BurnBlockHeader, error) {
		return p.commitStage(indexer, coordinator, commitCh)
	})

	_, downloadErr := handleThreadJoin(downloadHandle)
	_, parseErr := handleThreadJoin(parseHandle)
	lastCommitted, commitErr := handleThreadJoin(commitHandle)

	if err := resolvePipelineError(downloadErr, parseErr, commitErr); err != nil {
		return common.BurnBlockHeader{}, err
	}

	if lastCommitted != nil {
		return *lastCommitted, nil
	}
	return s.currentTip(chainTip), nil
}

// currentTip is what an empty round returns: the committed tip, or a
// placeholder at the first block height when nothing was ever
// committed.
func (s *Syncer) currentTip(chainTip *common.BurnBlockHeader) common.BurnBlockHeader {
	if chainTip != nil {
		return *chainTip
	}
	return common.BurnBlockHeader{Height: s.firstBlockHeight}
}

// asDownloadClass wraps unclassified errors from header sync and
// connection calls as download-class failures.
func asDownloadClass(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	return &common.DownloadError{Err: err}
}

func asDBClass(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	return &common.DBError{Err: err}
}

func isClassified(err error) bool {
	return common.IsDownloadError(err) ||
		common.IsParseError(err) ||
		common.IsDBError(err) ||
		common.IsThreadChannelError(err)
}
