package db

// Peer is one announce row. The composite primary key is the peer identity;
// a newer announce from the same identity replaces the row.
type Peer struct {
	InfoHash   []byte `gorm:"primaryKey;type:blob"`
	IP         string `gorm:"primaryKey;column:ip"`
	Port       int    `gorm:"primaryKey;autoIncrement:false"`
	PeerID     []byte `gorm:"primaryKey;type:blob"`
	Remaining  int64
	LastActive int64 `gorm:"index"`
}

func (Peer) TableName() string {
	return "torrent"
}
