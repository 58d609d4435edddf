package protocol

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Request header: [connection_id:8][action:4][transaction_id:4]
//
// Announce body (after the header):
//
//	[info_hash:20][peer_id:20][downloaded:8][left:8][uploaded:8]
//	[event:4][ip:4][key:4][num_want:4][port:2][extensions...]

// DecodeHeader parses the first 16 bytes of a datagram. Anything past the
// header is ignored.
func DecodeHeader(b []byte) (PacketHeader, error) {
	if len(b) < HeaderSize {
		return PacketHeader{}, fmt.Errorf("header of %d bytes: %w", len(b), ErrMalformedPacket)
	}
	return PacketHeader{
		ConnectionID:  int64(binary.BigEndian.Uint64(b[0:8])),
		Action:        Action(int32(binary.BigEndian.Uint32(b[8:12]))),
		TransactionID: int32(binary.BigEndian.Uint32(b[12:16])),
	}, nil
}

// DecodeAnnounce parses an announce body, i.e. the datagram with its
// 16-byte header removed. Bytes past the fixed 82-byte body are an
// extension region and are dropped.
func DecodeAnnounce(body []byte) (ClientAnnounce, error) {
	if len(body) < AnnounceBodySize {
		return ClientAnnounce{}, fmt.Errorf("announce body of %d bytes: %w", len(body), ErrMalformedPacket)
	}
	return ClientAnnounce{
		InfoHash:   NewHash(body[0:20]),
		PeerID:     NewHash(body[20:40]),
		Downloaded: int64(binary.BigEndian.Uint64(body[40:48])),
		Remaining:  int64(binary.BigEndian.Uint64(body[48:56])),
		Uploaded:   int64(binary.BigEndian.Uint64(body[56:64])),
		Event:      Event(int32(binary.BigEndian.Uint32(body[64:68]))),
		IP:         binary.BigEndian.Uint32(body[68:72]),
		Key:        binary.BigEndian.Uint32(body[72:76]),
		NumWant:    int32(binary.BigEndian.Uint32(body[76:80])),
		Port:       binary.BigEndian.Uint16(body[80:82]),
	}, nil
}

// EncodeConnect builds a connect response: [action:4][transaction_id:4][connection_id:8]
func EncodeConnect(connectionID int64, transactionID int32) []byte {
	buf := make([]byte, ConnectResponseSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(ActionConnect))
	binary.BigEndian.PutUint32(buf[4:8], uint32(transactionID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(connectionID))
	return buf
}

// EncodeAnnounce builds an announce response followed by the compact peer
// list. peers is cut down to numWant entries when numWant is non-negative
// and smaller than the list; order is kept.
//
// Addresses come from the swarm store, not from the network, so an
// unparsable one is a bug and panics.
func EncodeAnnounce(transactionID int32, peers []PeerAddr, numWant, leechers, seeders int32) []byte {
	if numWant >= 0 && int(numWant) < len(peers) {
		peers = peers[:numWant]
	}

	buf := make([]byte, AnnounceResponseSize, AnnounceResponseSize+len(peers)*18)
	binary.BigEndian.PutUint32(buf[0:4], uint32(ActionAnnounce))
	binary.BigEndian.PutUint32(buf[4:8], uint32(transactionID))
	binary.BigEndian.PutUint32(buf[8:12], uint32(AnnounceInterval.Seconds()))
	binary.BigEndian.PutUint32(buf[12:16], uint32(leechers))
	binary.BigEndian.PutUint32(buf[16:20], uint32(seeders))

	for _, p := range peers {
		addr, err := netip.ParseAddr(p.IP)
		if err != nil {
			panic(fmt.Sprintf("protocol: invalid peer address %q: %v", p.IP, err))
		}
		buf = append(buf, addr.AsSlice()...)
		buf = binary.BigEndian.AppendUint16(buf, p.Port)
	}

	return buf
}

// EncodeError builds an error response: [action:4][transaction_id:4][message...]
func EncodeError(transactionID int32, message string) []byte {
	buf := make([]byte, ErrorHeaderSize, ErrorHeaderSize+len(message))
	binary.BigEndian.PutUint32(buf[0:4], uint32(ActionError))
	binary.BigEndian.PutUint32(buf[4:8], uint32(transactionID))
	return append(buf, message...)
}
