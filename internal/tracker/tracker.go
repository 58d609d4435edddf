// Package tracker serves the UDP tracker protocol: it answers connect and
// announce datagrams from a shared swarm store and evicts stale peers in
// the background.
package tracker

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPeerTTL is both how long a silent peer stays in the swarm and
	// how often the sweeper runs.
	DefaultPeerTTL = 1860 * time.Second

	DefaultWorkers = 128

	msgUnsupportedAction = "Unsupported Action"
	msgMalformedAnnounce = "Malformed announce"
	msgInternalError     = "Internal error"
)

type Config struct {
	Addr          string
	Workers       int
	PeerTTL       time.Duration
	PruneInterval time.Duration
	Logger        *logrus.Logger
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = DefaultWorkers
	}
	if c.PeerTTL <= 0 {
		c.PeerTTL = DefaultPeerTTL
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = c.PeerTTL
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}
