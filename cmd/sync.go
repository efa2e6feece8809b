package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/bitcoin"
	"github.com/burnsync/burnsync/internal/coordinator"
	"github.com/burnsync/burnsync/internal/storage"
	syncer "github.com/burnsync/burnsync/internal/sync"
)

var (
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Run the burnchain syncer",
		Long:  "Synchronize headers and blocks from the burnchain and commit derived chain-state",
		Run: func(cmd *cobra.Command, args []string) {
			RunSyncer(cmd, args)
		},
	}
)

func RunSyncer(cmd *cobra.Command, args []string) {
	log.Info().Msg("Starting burnchain syncer")

	client, err := bitcoin.NewRPCClient(&config.Cfg.RPC)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bitcoin rpc client")
	}
	defer client.Shutdown()

	store, err := storage.NewStorageConnector(&config.Cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage")
	}
	defer store.HeaderStorage.Close()
	defer store.ChainStorage.Close()

	indexer := bitcoin.NewBitcoinIndexer(client, store)
	channels := coordinator.NewChannels()

	runner := syncer.NewRunner(indexer, channels)
	if err := runner.Start(); err != nil {
		log.Fatal().Err(err).Msg("Syncer failed")
	}
}
