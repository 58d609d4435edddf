package protocol

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Client side of the wire format, used by the diagnostic client and tests.

func encodeHeader(buf []byte, h PacketHeader) {
	binary.BigEndian.PutUint64(buf[0:8], uint64(h.ConnectionID))
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.Action))
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.TransactionID))
}

// EncodeConnectRequest builds the 16-byte connect handshake carrying the
// protocol magic.
func EncodeConnectRequest(transactionID int32) []byte {
	buf := make([]byte, HeaderSize)
	encodeHeader(buf, PacketHeader{
		ConnectionID:  ProtocolID,
		Action:        ActionConnect,
		TransactionID: transactionID,
	})
	return buf
}

// EncodeAnnounceRequest builds a full announce datagram, header included.
func EncodeAnnounceRequest(h PacketHeader, a ClientAnnounce) []byte {
	buf := make([]byte, HeaderSize+AnnounceBodySize)
	encodeHeader(buf, h)

	body := buf[HeaderSize:]
	copy(body[0:20], a.InfoHash[:])
	copy(body[20:40], a.PeerID[:])
	binary.BigEndian.PutUint64(body[40:48], uint64(a.Downloaded))
	binary.BigEndian.PutUint64(body[48:56], uint64(a.Remaining))
	binary.BigEndian.PutUint64(body[56:64], uint64(a.Uploaded))
	binary.BigEndian.PutUint32(body[64:68], uint32(a.Event))
	binary.BigEndian.PutUint32(body[68:72], a.IP)
	binary.BigEndian.PutUint32(body[72:76], a.Key)
	binary.BigEndian.PutUint32(body[76:80], uint32(a.NumWant))
	binary.BigEndian.PutUint16(body[80:82], a.Port)
	return buf
}

func responseAction(b []byte) (Action, int32, error) {
	if len(b) < 8 {
		return 0, 0, fmt.Errorf("response of %d bytes: %w", len(b), ErrMalformedPacket)
	}
	return Action(int32(binary.BigEndian.Uint32(b[0:4]))), int32(binary.BigEndian.Uint32(b[4:8])), nil
}

// DecodeConnectResponse parses a connect response. A tracker error packet
// is returned as a ServerError error value.
func DecodeConnectResponse(b []byte) (ConnectResponse, error) {
	action, tid, err := responseAction(b)
	if err != nil {
		return ConnectResponse{}, err
	}
	if action == ActionError {
		return ConnectResponse{}, ServerError{TransactionID: tid, Message: string(b[ErrorHeaderSize:])}
	}
	if action != ActionConnect || len(b) < ConnectResponseSize {
		return ConnectResponse{}, fmt.Errorf("connect response action %s, %d bytes: %w", action, len(b), ErrMalformedPacket)
	}
	return ConnectResponse{
		TransactionID: tid,
		ConnectionID:  int64(binary.BigEndian.Uint64(b[8:16])),
	}, nil
}

// DecodeAnnounceResponse parses an announce response whose compact peers
// use addrSize-byte addresses (4 for IPv4, 16 for IPv6).
func DecodeAnnounceResponse(b []byte, addrSize int) (ServerAnnounce, error) {
	if addrSize != 4 && addrSize != 16 {
		return ServerAnnounce{}, fmt.Errorf("unsupported address size %d", addrSize)
	}
	action, tid, err := responseAction(b)
	if err != nil {
		return ServerAnnounce{}, err
	}
	if action == ActionError {
		return ServerAnnounce{}, ServerError{TransactionID: tid, Message: string(b[ErrorHeaderSize:])}
	}
	if action != ActionAnnounce || len(b) < AnnounceResponseSize {
		return ServerAnnounce{}, fmt.Errorf("announce response action %s, %d bytes: %w", action, len(b), ErrMalformedPacket)
	}

	res := ServerAnnounce{
		TransactionID: tid,
		Interval:      int32(binary.BigEndian.Uint32(b[8:12])),
		Leechers:      int32(binary.BigEndian.Uint32(b[12:16])),
		Seeders:       int32(binary.BigEndian.Uint32(b[16:20])),
	}

	entry := addrSize + 2
	peers := b[AnnounceResponseSize:]
	if len(peers)%entry != 0 {
		return ServerAnnounce{}, fmt.Errorf("peer list of %d bytes: %w", len(peers), ErrMalformedPacket)
	}
	for off := 0; off < len(peers); off += entry {
		addr, _ := netip.AddrFromSlice(peers[off : off+addrSize])
		res.Peers = append(res.Peers, PeerAddr{
			IP:   addr.String(),
			Port: binary.BigEndian.Uint16(peers[off+addrSize : off+entry]),
		})
	}
	return res, nil
}

// DecodeError parses an error response.
func DecodeError(b []byte) (ServerError, error) {
	action, tid, err := responseAction(b)
	if err != nil {
		return ServerError{}, err
	}
	if action != ActionError {
		return ServerError{}, fmt.Errorf("expected error response, got %s: %w", action, ErrMalformedPacket)
	}
	return ServerError{TransactionID: tid, Message: string(b[ErrorHeaderSize:])}, nil
}
