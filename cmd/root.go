package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configs "github.com/burnsync/burnsync/configs"
	customLogger "github.com/burnsync/burnsync/internal/log"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "burnsync",
		Short: "Burnchain synchronization node",
		Long:  "Keeps a local view of the burnchain synchronized: headers, reorgs, blocks and derived chain-state",
		Run: func(cmd *cobra.Command, args []string) {
			RunSyncer(cmd, args)
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().String("rpc-host", "", "Bitcoin node RPC host:port")
	rootCmd.PersistentFlags().String("rpc-username", "", "Bitcoin node RPC username")
	rootCmd.PersistentFlags().String("rpc-password", "", "Bitcoin node RPC password")
	rootCmd.PersistentFlags().Bool("rpc-disable-tls", true, "Disable TLS for the bitcoin RPC connection")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().Uint64("burnchain-first-block-height", 0, "First burnchain block height to process")
	rootCmd.PersistentFlags().String("burnchain-magic-bytes", "X2", "Two-byte magic identifying burnchain operations")
	rootCmd.PersistentFlags().Int("sync-interval", 2000, "How often to run a sync round in milliseconds")
	rootCmd.PersistentFlags().Uint64("sync-target-height", 0, "Stop syncing once this height is committed (0 = follow the tip)")
	rootCmd.PersistentFlags().Uint64("sync-max-blocks", 0, "Max blocks to process per sync round (0 = unbounded)")
	rootCmd.PersistentFlags().Int("sync-channel-capacity", 0, "Capacity of the pipeline channels between stages")
	rootCmd.PersistentFlags().String("storage-headers-badger-path", "", "Badger path for header storage")
	rootCmd.PersistentFlags().String("storage-chain-badger-path", "", "Badger path for chain storage")
	rootCmd.PersistentFlags().Bool("metrics-enabled", false, "Toggle the prometheus metrics endpoint")
	rootCmd.PersistentFlags().Int("metrics-port", 2112, "Port for the prometheus metrics endpoint")
	viper.BindPFlag("rpc.host", rootCmd.PersistentFlags().Lookup("rpc-host"))
	viper.BindPFlag("rpc.username", rootCmd.PersistentFlags().Lookup("rpc-username"))
	viper.BindPFlag("rpc.password", rootCmd.PersistentFlags().Lookup("rpc-password"))
	viper.BindPFlag("rpc.disableTLS", rootCmd.PersistentFlags().Lookup("rpc-disable-tls"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("burnchain.firstBlockHeight", rootCmd.PersistentFlags().Lookup("burnchain-first-block-height"))
	viper.BindPFlag("burnchain.magicBytes", rootCmd.PersistentFlags().Lookup("burnchain-magic-bytes"))
	viper.BindPFlag("sync.interval", rootCmd.PersistentFlags().Lookup("sync-interval"))
	viper.BindPFlag("sync.targetHeight", rootCmd.PersistentFlags().Lookup("sync-target-height"))
	viper.BindPFlag("sync.maxBlocks", rootCmd.PersistentFlags().Lookup("sync-max-blocks"))
	viper.BindPFlag("sync.channelCapacity", rootCmd.PersistentFlags().Lookup("sync-channel-capacity"))
	viper.BindPFlag("storage.headers.badger.path", rootCmd.PersistentFlags().Lookup("storage-headers-badger-path"))
	viper.BindPFlag("storage.chain.badger.path", rootCmd.PersistentFlags().Lookup("storage-chain-badger-path"))
	viper.BindPFlag("metrics.enabled", rootCmd.PersistentFlags().Lookup("metrics-enabled"))
	viper.BindPFlag("metrics.port", rootCmd.PersistentFlags().Lookup("metrics-port"))
	rootCmd.AddCommand(syncCmd)
}

func initConfig() {
	configs.LoadConfig(cfgFile)
	customLogger.InitLogger()
}
