package tracker

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/rudransh-shrivastava/rtracker/internal/protocol"
	"github.com/rudransh-shrivastava/rtracker/internal/store"
	"github.com/sirupsen/logrus"
)

// Announcer turns a decoded announce into a swarm update and the encoded
// response.
type Announcer struct {
	swarm  store.SwarmRepository
	logger *logrus.Logger
}

func NewAnnouncer(swarm store.SwarmRepository, logger *logrus.Logger) *Announcer {
	return &Announcer{swarm: swarm, logger: logger}
}

// effectiveIP is the address stored for a peer: the announced ip field when
// it is set, the datagram source otherwise.
func effectiveIP(ipField uint32, source netip.Addr) string {
	if ipField != 0 {
		return netip.AddrFrom4([4]byte{
			byte(ipField >> 24), byte(ipField >> 16), byte(ipField >> 8), byte(ipField),
		}).String()
	}
	return source.Unmap().String()
}

// Announce records req and returns the response for it. The upsert runs
// before the swarm query so the caller is counted in its own response.
func (a *Announcer) Announce(ctx context.Context, transactionID int32, req protocol.ClientAnnounce, source netip.Addr) ([]byte, error) {
	ip := effectiveIP(req.IP, source)

	if err := a.swarm.Upsert(ctx, req.InfoHash[:], ip, req.Port, req.PeerID[:], req.Remaining); err != nil {
		return nil, fmt.Errorf("recording announce: %w", err)
	}

	swarm, err := a.swarm.SwarmFor(ctx, req.InfoHash[:])
	if err != nil {
		return nil, fmt.Errorf("querying swarm: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"info_hash": req.InfoHash.String(),
		"peer":      protocol.PeerAddr{IP: ip, Port: req.Port}.String(),
		"event":     req.Event.String(),
		"remaining": req.Remaining,
		"num_want":  req.NumWant,
		"seeders":   swarm.Seeders,
		"leechers":  swarm.Leechers,
		"peers":     len(swarm.Peers),
	}).Debug("Announce recorded")

	return protocol.EncodeAnnounce(transactionID, swarm.Peers, req.NumWant, swarm.Leechers, swarm.Seeders), nil
}
