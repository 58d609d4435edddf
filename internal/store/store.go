// Package store keeps the swarm: one row per announcing peer identity.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rudransh-shrivastava/rtracker/internal/db"
	"github.com/rudransh-shrivastava/rtracker/internal/protocol"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStore matches every error returned by SwarmStore.
var ErrStore = errors.New("swarm store")

// Error wraps a storage failure with the operation that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrStore
}

// Swarm is the answer to a swarm query. Peers lists every distinct
// (ip, port) among seeders, then every distinct (ip, port) among leechers.
type Swarm struct {
	Peers    []protocol.PeerAddr
	Seeders  int32
	Leechers int32
}

type SwarmStore struct {
	db *gorm.DB
}

func NewSwarmStore(gdb *gorm.DB) *SwarmStore {
	return &SwarmStore{db: gdb}
}

// Upsert inserts the peer or replaces the row with the same
// (info_hash, ip, port, peer_id) and stamps it with the current time.
func (s *SwarmStore) Upsert(ctx context.Context, infoHash []byte, ip string, port uint16, peerID []byte, remaining int64) error {
	row := db.Peer{
		InfoHash:   infoHash,
		IP:         ip,
		Port:       int(port),
		PeerID:     peerID,
		Remaining:  remaining,
		LastActive: time.Now().Unix(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.Insert{Modifier: "OR REPLACE"}).
		Create(&row).Error
	if err != nil {
		return &Error{Op: "upsert", Err: err}
	}
	return nil
}

type peerGroup struct {
	IP      string
	Port    int
	Members int32
}

func (s *SwarmStore) groups(ctx context.Context, infoHash []byte, remaining string) ([]peerGroup, error) {
	var groups []peerGroup
	err := s.db.WithContext(ctx).
		Model(&db.Peer{}).
		Select("ip, port, COUNT(*) AS members").
		Where("info_hash = ? AND remaining "+remaining, infoHash).
		Group("ip, port").
		Order("ip, port").
		Scan(&groups).Error
	return groups, err
}

// SwarmFor lists the swarm of infoHash. Seeders and Leechers are the size
// of the largest (ip, port) group among seeding and leeching rows
// respectively, not the number of distinct peers.
func (s *SwarmStore) SwarmFor(ctx context.Context, infoHash []byte) (Swarm, error) {
	var swarm Swarm

	seeding, err := s.groups(ctx, infoHash, "= 0")
	if err != nil {
		return Swarm{}, &Error{Op: "seeders", Err: err}
	}
	leeching, err := s.groups(ctx, infoHash, "> 0")
	if err != nil {
		return Swarm{}, &Error{Op: "leechers", Err: err}
	}

	swarm.Peers = make([]protocol.PeerAddr, 0, len(seeding)+len(leeching))
	for _, g := range seeding {
		swarm.Peers = append(swarm.Peers, protocol.PeerAddr{IP: g.IP, Port: uint16(g.Port)})
		swarm.Seeders = max(swarm.Seeders, g.Members)
	}
	for _, g := range leeching {
		swarm.Peers = append(swarm.Peers, protocol.PeerAddr{IP: g.IP, Port: uint16(g.Port)})
		swarm.Leechers = max(swarm.Leechers, g.Members)
	}

	return swarm, nil
}

// Prune deletes every peer whose last announce is older than olderThan and
// returns how many were removed.
func (s *SwarmStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan).Unix()
	res := s.db.WithContext(ctx).
		Where("last_active < ?", deadline).
		Delete(&db.Peer{})
	if res.Error != nil {
		return 0, &Error{Op: "prune", Err: res.Error}
	}
	return res.RowsAffected, nil
}

// Count returns the number of peer rows across all swarms.
func (s *SwarmStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&db.Peer{}).Count(&n).Error; err != nil {
		return 0, &Error{Op: "count", Err: err}
	}
	return n, nil
}

// DropAllPeers empties every swarm. The tracker calls it on startup since
// rows left from a previous run are stale by definition.
func (s *SwarmStore) DropAllPeers(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&db.Peer{}).Error
	if err != nil {
		return &Error{Op: "drop", Err: err}
	}
	return nil
}

var _ SwarmRepository = (*SwarmStore)(nil)
