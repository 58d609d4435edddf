package protocol

import (
	"encoding/hex"
	"errors"
	"net"
	"strconv"
)

// ErrMalformedPacket is returned when a buffer is too short for the packet
// it is decoded as.
var ErrMalformedPacket = errors.New("malformed packet")

// Hash is a 20-byte info_hash or peer_id.
type Hash [HashSize]byte

func NewHash(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a 40 character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, errors.New("hash must be 20 bytes")
	}
	copy(h[:], b)
	return h, nil
}

type PacketHeader struct {
	ConnectionID  int64
	Action        Action
	TransactionID int32
}

type ConnectResponse struct {
	TransactionID int32
	ConnectionID  int64
}

type ClientAnnounce struct {
	InfoHash   Hash
	PeerID     Hash
	Downloaded int64
	Remaining  int64
	Uploaded   int64
	Event      Event
	IP         uint32
	Key        uint32
	NumWant    int32
	Port       uint16
}

// Seeding reports whether the announcing peer has the complete content.
func (a ClientAnnounce) Seeding() bool {
	return a.Remaining == 0
}

// PeerAddr is one entry of a compact peer list. IP holds a textual IPv4 or
// IPv6 literal.
type PeerAddr struct {
	IP   string
	Port uint16
}

func (p PeerAddr) String() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(int(p.Port)))
}

type ServerAnnounce struct {
	TransactionID int32
	Interval      int32
	Leechers      int32
	Seeders       int32
	Peers         []PeerAddr
}

type ServerError struct {
	TransactionID int32
	Message       string
}

func (e ServerError) Error() string {
	return "tracker error: " + e.Message
}
