package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog/log"

	config "github.com/burnsync/burnsync/configs"
)

// IBitcoinClient is the subset of the bitcoind JSON-RPC surface the
// indexer needs. *rpcclient.Client satisfies it directly; tests
// substitute a fake chain.
type IBitcoinClient interface {
	GetBlockCount() (int64, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlockHeader(blockHash *chainhash.Hash) (*wire.BlockHeader, error)
	GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error)
	Shutdown()
}

func NewRPCClient(cfg *config.RPCConfig) (IBitcoinClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.Username,
		Pass:         cfg.Password,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitcoin rpc client for %s: %w", cfg.Host, err)
	}
	log.Debug().Str("host", cfg.Host).Msg("Created bitcoin rpc client")
	return client, nil
}
