package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/0xphantomotr/mental/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mental-node",
	Short: "Form a peer-to-peer card room",
	Long: `mental-node hosts a room or joins one hosted by another node.

The owner's key is the host:port it advertises. Once running, the node
reads commands from stdin: roster, lock, shuffle, state, history, exit.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mental.yaml)")
	flags.String(config.KeyListen, "", "peer listen address (env MENTAL_LISTEN)")
	flags.String(config.KeyAdvertise, "", "address peers dial to reach this node (env MENTAL_ADVERTISE)")
	flags.String(config.KeyStatus, "", "status server address, empty disables (env MENTAL_STATUS)")
	flags.String(config.KeyJournalDir, "", "journal directory, empty keeps it in memory (env MENTAL_JOURNAL_DIR)")
	flags.Int(config.KeyStreamBuffer, 0, "per-subscriber stream buffer (env MENTAL_STREAM_BUFFER)")
	flags.Duration(config.KeyHandshakeTimeout, 0, "peer dial timeout (env MENTAL_HANDSHAKE_TIMEOUT)")
	flags.Bool(config.KeyDebug, false, "development logging (env MENTAL_DEBUG)")

	for _, key := range []string{
		config.KeyListen,
		config.KeyAdvertise,
		config.KeyStatus,
		config.KeyJournalDir,
		config.KeyStreamBuffer,
		config.KeyHandshakeTimeout,
		config.KeyDebug,
	} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(hostCmd, joinCmd)
}

func initConfig() {
	if err := config.ReadFile(viper.GetViper(), cfgFile); err != nil {
		config.Exitf("mental-node: %v", err)
	}
}

// loadConfig resolves env, file and flags, in that order of precedence
// from lowest to highest, and builds the matching logger.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
