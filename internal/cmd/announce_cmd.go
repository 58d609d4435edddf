package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rudransh-shrivastava/rtracker/internal/logger"
	"github.com/rudransh-shrivastava/rtracker/internal/peer"
	"github.com/rudransh-shrivastava/rtracker/internal/protocol"
	"github.com/spf13/cobra"
)

var (
	announcePort      uint16
	announceRemaining int64
	announceNumWant   int32
)

var announceCmd = &cobra.Command{
	Use:   "announce tracker-address info-hash",
	Short: "announces to a tracker and prints the swarm",
	Long:  `connects to a UDP tracker, announces once for the given hex info hash and prints the returned peers`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		trackerAddr := args[0]
		infoHash, err := protocol.ParseHash(args[1])
		if err != nil {
			return fmt.Errorf("info hash: %w", err)
		}

		log := logger.New(os.Stderr, debug)
		log.Debugf("Tracker Address: %s", trackerAddr)
		log.Debugf("Info Hash: %s", infoHash)

		client, err := peer.NewClient(peer.Config{TrackerAddr: trackerAddr, Logger: log})
		if err != nil {
			return err
		}
		defer func() { _ = client.Shutdown() }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Connect(ctx); err != nil {
			return err
		}

		var peerID protocol.Hash
		copy(peerID[:], "-RT0001-")
		for i := 8; i < protocol.HashSize; i++ {
			peerID[i] = byte('0' + rand.Intn(10))
		}

		res, err := client.Announce(ctx, protocol.ClientAnnounce{
			InfoHash:  infoHash,
			PeerID:    peerID,
			Remaining: announceRemaining,
			Event:     protocol.EventStarted,
			Key:       rand.Uint32(),
			NumWant:   announceNumWant,
			Port:      announcePort,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "interval: %ds seeders: %d leechers: %d\n", res.Interval, res.Seeders, res.Leechers)
		for _, p := range res.Peers {
			fmt.Fprintln(out, p.String())
		}
		return nil
	},
}

func init() {
	announceCmd.Flags().Uint16VarP(&announcePort, "port", "p", 6881, "listening port to announce")
	announceCmd.Flags().Int64Var(&announceRemaining, "remaining", 0, "bytes left to download, 0 announces as a seeder")
	announceCmd.Flags().Int32VarP(&announceNumWant, "num-want", "n", -1, "maximum peers to return, negative for no limit")
}
