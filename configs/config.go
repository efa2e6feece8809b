package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Prettify bool   `mapstructure:"prettify"`
}

type RPCConfig struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// DisableTLS should stay true for plain bitcoind HTTP endpoints.
	DisableTLS bool `mapstructure:"disableTLS"`
}

type BurnchainConfig struct {
	// FirstBlockHeight is the burnchain height the node starts
	// processing from; nothing below it is ever downloaded.
	FirstBlockHeight uint64 `mapstructure:"firstBlockHeight"`
	FirstBlockHash   string `mapstructure:"firstBlockHash"`
	// MagicBytes is the two-byte prefix identifying burnchain
	// operations inside OP_RETURN outputs.
	MagicBytes string `mapstructure:"magicBytes"`
}

type SyncConfig struct {
	// Interval between sync rounds in milliseconds.
	Interval int `mapstructure:"interval"`
	// TargetHeight stops syncing once reached; 0 means follow the tip.
	TargetHeight uint64 `mapstructure:"targetHeight"`
	// MaxBlocks bounds the number of blocks processed per round.
	MaxBlocks uint64 `mapstructure:"maxBlocks"`
	// ChannelCapacity bounds the pipeline queues between stages.
	ChannelCapacity int `mapstructure:"channelCapacity"`
}

type StorageConfig struct {
	Headers StorageConnectionConfig `mapstructure:"headers"`
	Chain   StorageConnectionConfig `mapstructure:"chain"`
}

type StorageConnectionConfig struct {
	Badger *BadgerConfig `mapstructure:"badger"`
	Memory *MemoryConfig `mapstructure:"memory"`
}

type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

type MemoryConfig struct {
	MaxItems int `mapstructure:"maxItems"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type Config struct {
	RPC       RPCConfig       `mapstructure:"rpc"`
	Log       LogConfig       `mapstructure:"log"`
	Burnchain BurnchainConfig `mapstructure:"burnchain"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

var Cfg Config

func LoadConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")
	}
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %s", err)
	}

	// sets e.g. RPC_HOST to rpc.host
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.Unmarshal(&Cfg)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	return nil
}
