package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/rtracker/internal/config"
	"github.com/rudransh-shrivastava/rtracker/internal/db"
	"github.com/rudransh-shrivastava/rtracker/internal/logger"
	"github.com/rudransh-shrivastava/rtracker/internal/store"
	"github.com/rudransh-shrivastava/rtracker/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	confPath string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   `rtracker`,
	Short: "runs the UDP tracker",
	Long:  `rtracker is a BitTorrent UDP tracker, it keeps the swarm of every info hash in SQLite`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.Load(confPath)
		if err != nil {
			return err
		}

		log := logger.New(os.Stdout, debug || cfg.Debug)
		if used == "" {
			log.Info("No config file found, using defaults")
		} else {
			log.WithField("path", used).Info("Loaded config")
		}

		gdb, err := db.Open(cfg.StorageTarget, cfg.PoolSize)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(gdb) }()
		log.WithField("pool_size", cfg.PoolSize).Debug("DB initialized")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		swarm := store.NewSwarmStore(gdb)
		if err := swarm.DropAllPeers(ctx); err != nil {
			return err
		}

		srv, err := tracker.NewServer(tracker.Config{
			Addr:          cfg.ListenAddress,
			Workers:       cfg.Workers,
			PeerTTL:       cfg.PeerTTL,
			PruneInterval: cfg.PruneInterval,
			Logger:        log,
		}, swarm)
		if err != nil {
			return err
		}

		if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		log.Info("Shutdown complete")
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&confPath, "conf", "c", "", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logs")
	rootCmd.AddCommand(announceCmd)
}
