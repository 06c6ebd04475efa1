package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/danmuck/shackles/internal/config"
	"github.com/danmuck/shackles/internal/observability"
	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/ring"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	envFileVar    = "SHACKLES_ENV_FILE"
	envConfigPath = "SHACKLES_CONFIG"
)

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "ringctl: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("ringctl")
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ringctl: %v\n", err)
		os.Exit(1)
	}
}

// loadEnv reads .env (or $SHACKLES_ENV_FILE) before logging is configured so
// SHACKLES_LOG_* values in it take effect. A missing default file is fine.
func loadEnv() error {
	path, explicit := os.LookupEnv(envFileVar)
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

type rootFlags struct {
	configPath string
	peers      string
	chain      bool
	admin      string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "ringctl",
		Short:         "Start and wire a ring of loopback peers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv(envConfigPath), "ring config TOML (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&flags.peers, "peers", "p", "", "comma-separated peer list overriding the config, in ring order")
	rootCmd.PersistentFlags().BoolVar(&flags.chain, "chain", false, "do not wire the last peer back to the first")
	rootCmd.PersistentFlags().StringVar(&flags.admin, "admin", "", "admin HTTP listen address overriding the config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Bind every peer, wire the ring and wait until it ends or a signal arrives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			log.Info().
				Int("peers", len(cfg.Peers)).
				Bool("close_ring", cfg.CloseRing).
				Str("admin", cfg.AdminListenAddr).
				Msg("ringctl.run starting")
			return ring.NewServiceWithConfig(cfg).Run()
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a ring config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(flags.configPath) == "" {
				return errors.New("validate requires --config")
			}
			if _, err := config.LoadRingConfig(flags.configPath); err != nil {
				return err
			}
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d peers, close_ring=%t)\n", flags.configPath, len(cfg.Peers), cfg.CloseRing)
			return nil
		},
	}

	pairsCmd := &cobra.Command{
		Use:   "pairs",
		Short: "Print the connect instructions the ring would send, in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			for _, p := range ring.Pairs(cfg.Peers, cfg.CloseRing) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", p[0], p[1])
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, validateCmd, pairsCmd)
	return rootCmd
}

// resolveConfig layers defaults, the config file, then explicit flags.
func resolveConfig(cmd *cobra.Command, flags *rootFlags) (ring.ServiceConfig, error) {
	cfg := ring.DefaultServiceConfig()
	if path := strings.TrimSpace(flags.configPath); path != "" {
		loaded, err := loadServiceConfig(path)
		if err != nil {
			return ring.ServiceConfig{}, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("peers") {
		peers, err := peer.ParseList(flags.peers)
		if err != nil {
			return ring.ServiceConfig{}, err
		}
		cfg.Peers = peers
	}
	if cmd.Flags().Changed("chain") {
		cfg.CloseRing = !flags.chain
	}
	if cmd.Flags().Changed("admin") {
		cfg.AdminListenAddr = strings.TrimSpace(flags.admin)
	}
	if err := cfg.Validate(); err != nil {
		return ring.ServiceConfig{}, err
	}
	return cfg, nil
}
