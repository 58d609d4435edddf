package store

import (
	"context"
	"time"
)

// SwarmRepository records announces and answers swarm queries.
type SwarmRepository interface {
	Upsert(ctx context.Context, infoHash []byte, ip string, port uint16, peerID []byte, remaining int64) error
	SwarmFor(ctx context.Context, infoHash []byte) (Swarm, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
