package tracker

import (
	"context"
	"crypto/sha1"
	"net"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/rtracker/internal/logger"
	"github.com/rudransh-shrivastava/rtracker/internal/peer"
	"github.com/rudransh-shrivastava/rtracker/internal/protocol"
)

func announcePacket(tid int32, a protocol.ClientAnnounce) []byte {
	return protocol.EncodeAnnounceRequest(protocol.PacketHeader{
		ConnectionID:  1,
		Action:        protocol.ActionAnnounce,
		TransactionID: tid,
	}, a)
}

func TestHandlePacketConnect(t *testing.T) {
	srv, conn := newTestServer(t, newTestStore(t))
	addr := &net.UDPAddr{IP: net.IPv4(198, 51, 100, 7), Port: 50000}

	before := time.Now().Unix()
	srv.handlePacket(context.Background(), addr, protocol.EncodeConnectRequest(77))

	sent := conn.packets()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(sent))
	}
	if sent[0].addr != addr {
		t.Errorf("Expected response to %v, got %v", addr, sent[0].addr)
	}

	res, err := protocol.DecodeConnectResponse(sent[0].data)
	if err != nil {
		t.Fatalf("DecodeConnectResponse failed: %v", err)
	}
	if res.TransactionID != 77 {
		t.Errorf("Expected transaction id 77, got %d", res.TransactionID)
	}
	if high := res.ConnectionID >> 32; high < before || high > time.Now().Unix() {
		t.Errorf("Expected timestamp in high bits, got %d", high)
	}
}

func TestHandlePacketAnnounceScenario(t *testing.T) {
	swarm := newTestStore(t)
	srv, conn := newTestServer(t, swarm)
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 40000}

	infoHash := protocol.Hash(sha1.Sum([]byte("H")))
	req := protocol.ClientAnnounce{
		InfoHash:  infoHash,
		PeerID:    protocol.NewHash([]byte("-P1-0000000000000001")),
		Remaining: 0,
		NumWant:   -1,
		Port:      6881,
	}
	srv.handlePacket(context.Background(), addr, announcePacket(5, req))

	sent := conn.packets()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(sent))
	}
	res, err := protocol.DecodeAnnounceResponse(sent[0].data, 4)
	if err != nil {
		t.Fatalf("DecodeAnnounceResponse failed: %v", err)
	}
	if res.TransactionID != 5 || res.Seeders != 1 || res.Leechers != 0 || res.Interval != 1800 {
		t.Errorf("Unexpected response %+v", res)
	}
	if len(res.Peers) != 1 || res.Peers[0] != (protocol.PeerAddr{IP: "203.0.113.5", Port: 6881}) {
		t.Errorf("Expected own address in peers, got %v", res.Peers)
	}

	stored, err := swarm.SwarmFor(context.Background(), infoHash[:])
	if err != nil {
		t.Fatalf("SwarmFor failed: %v", err)
	}
	if stored.Seeders != 1 || stored.Leechers != 0 {
		t.Errorf("Expected 1 seeder and 0 leechers, got %+v", stored)
	}
}

func TestHandlePacketAnnounceUsesIPField(t *testing.T) {
	swarm := newTestStore(t)
	srv, _ := newTestServer(t, swarm)
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 40000}

	req := protocol.ClientAnnounce{
		InfoHash:  protocol.NewHash([]byte("hash-with-ip-field---")),
		PeerID:    protocol.NewHash([]byte("peer")),
		Remaining: 10,
		IP:        0x0A000001,
		NumWant:   -1,
		Port:      6882,
	}
	srv.handlePacket(context.Background(), addr, announcePacket(1, req))

	stored, err := swarm.SwarmFor(context.Background(), req.InfoHash[:])
	if err != nil {
		t.Fatalf("SwarmFor failed: %v", err)
	}
	if len(stored.Peers) != 1 || stored.Peers[0].IP != "10.0.0.1" {
		t.Errorf("Expected announced ip 10.0.0.1, got %v", stored.Peers)
	}
	if stored.Leechers != 1 {
		t.Errorf("Expected 1 leecher, got %d", stored.Leechers)
	}
}

func TestHandlePacketAnnounceIPv6Source(t *testing.T) {
	srv, conn := newTestServer(t, newTestStore(t))
	addr := &net.UDPAddr{IP: net.ParseIP("2001:db8::5"), Port: 40000}

	req := protocol.ClientAnnounce{
		InfoHash: protocol.NewHash([]byte("v6")),
		PeerID:   protocol.NewHash([]byte("peer")),
		NumWant:  -1,
		Port:     51413,
	}
	srv.handlePacket(context.Background(), addr, announcePacket(9, req))

	sent := conn.packets()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(sent))
	}
	if len(sent[0].data) != protocol.AnnounceResponseSize+18 {
		t.Fatalf("Expected one 18-byte peer entry, got %d bytes", len(sent[0].data))
	}
	res, err := protocol.DecodeAnnounceResponse(sent[0].data, 16)
	if err != nil {
		t.Fatalf("DecodeAnnounceResponse failed: %v", err)
	}
	if res.Peers[0] != (protocol.PeerAddr{IP: "2001:db8::5", Port: 51413}) {
		t.Errorf("Unexpected peer %v", res.Peers[0])
	}
}

func TestHandlePacketUnsupportedAction(t *testing.T) {
	srv, conn := newTestServer(t, newTestStore(t))

	pkt := protocol.EncodeConnectRequest(42)
	pkt[11] = 99 // action
	srv.handlePacket(context.Background(), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}, pkt)

	sent := conn.packets()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(sent))
	}
	e, err := protocol.DecodeError(sent[0].data)
	if err != nil {
		t.Fatalf("DecodeError failed: %v", err)
	}
	if e.TransactionID != 42 {
		t.Errorf("Expected transaction id 42, got %d", e.TransactionID)
	}
	if e.Message != msgUnsupportedAction {
		t.Errorf("Unexpected message %q", e.Message)
	}
}

func TestHandlePacketDropsShortPacket(t *testing.T) {
	srv, conn := newTestServer(t, newTestStore(t))

	srv.handlePacket(context.Background(), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}, make([]byte, 10))

	if n := len(conn.packets()); n != 0 {
		t.Errorf("Expected no response, got %d", n)
	}
}

func TestHandlePacketMalformedAnnounce(t *testing.T) {
	srv, conn := newTestServer(t, newTestStore(t))

	pkt := announcePacket(13, protocol.ClientAnnounce{Port: 1})
	srv.handlePacket(context.Background(), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}, pkt[:50])

	sent := conn.packets()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(sent))
	}
	e, err := protocol.DecodeError(sent[0].data)
	if err != nil {
		t.Fatalf("DecodeError failed: %v", err)
	}
	if e.TransactionID != 13 || e.Message != msgMalformedAnnounce {
		t.Errorf("Unexpected error %+v", e)
	}
}

func TestHandlePacketStoreFailure(t *testing.T) {
	srv, conn := newTestServer(t, &failingStore{})

	srv.handlePacket(context.Background(), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1},
		announcePacket(21, protocol.ClientAnnounce{Port: 1, NumWant: -1}))

	sent := conn.packets()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(sent))
	}
	e, err := protocol.DecodeError(sent[0].data)
	if err != nil {
		t.Fatalf("DecodeError failed: %v", err)
	}
	if e.TransactionID != 21 || e.Message != msgInternalError {
		t.Errorf("Unexpected error %+v", e)
	}
}

func setupServerClient(t *testing.T) (*Server, *peer.Client) {
	t.Helper()

	srv, err := NewServer(Config{
		Addr:    "127.0.0.1:0",
		Workers: 8,
		Logger:  logger.Discard(),
	}, newTestStore(t))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Start(ctx)
	}()

	client, err := peer.NewClient(peer.Config{
		TrackerAddr: srv.Addr(),
		Timeout:     2 * time.Second,
		Logger:      logger.Discard(),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Shutdown()
		cancel()
		<-done
	})

	return srv, client
}

func TestServerConnectAndAnnounce(t *testing.T) {
	_, client := setupServerClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Announce(ctx, protocol.ClientAnnounce{}); err != peer.ErrNotConnected {
		t.Errorf("Expected ErrNotConnected before Connect, got %v", err)
	}

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if client.ConnectionID() == 0 {
		t.Error("Expected non-zero connection id")
	}

	infoHash := protocol.Hash(sha1.Sum([]byte("debian.iso")))
	res, err := client.Announce(ctx, protocol.ClientAnnounce{
		InfoHash:  infoHash,
		PeerID:    protocol.NewHash([]byte("-TR3000-aaaaaaaaaaaa")),
		Remaining: 100,
		NumWant:   -1,
		Port:      6881,
	})
	if err != nil {
		t.Fatalf("Announce failed: %v", err)
	}
	if res.Leechers != 1 || res.Seeders != 0 {
		t.Errorf("Expected 1 leecher, got %+v", res)
	}
	if len(res.Peers) != 1 || res.Peers[0] != (protocol.PeerAddr{IP: "127.0.0.1", Port: 6881}) {
		t.Errorf("Unexpected peers %v", res.Peers)
	}
}

func TestServerSwarmOfTwo(t *testing.T) {
	_, client := setupServerClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	infoHash := protocol.Hash(sha1.Sum([]byte("shared")))
	seed := protocol.ClientAnnounce{
		InfoHash: infoHash,
		PeerID:   protocol.NewHash([]byte("-TR3000-seed--------")),
		IP:       0x0A000002,
		NumWant:  -1,
		Port:     7000,
	}
	if _, err := client.Announce(ctx, seed); err != nil {
		t.Fatalf("seed Announce failed: %v", err)
	}

	leech := protocol.ClientAnnounce{
		InfoHash:  infoHash,
		PeerID:    protocol.NewHash([]byte("-TR3000-leech-------")),
		Remaining: 1,
		NumWant:   1,
		Port:      7001,
	}
	res, err := client.Announce(ctx, leech)
	if err != nil {
		t.Fatalf("leech Announce failed: %v", err)
	}
	if res.Seeders != 1 || res.Leechers != 1 {
		t.Errorf("Expected 1 seeder and 1 leecher, got %+v", res)
	}
	// num_want 1 keeps only the seeder, which is listed first.
	if len(res.Peers) != 1 || res.Peers[0] != (protocol.PeerAddr{IP: "10.0.0.2", Port: 7000}) {
		t.Errorf("Unexpected peers %v", res.Peers)
	}
}

func TestServerStartStops(t *testing.T) {
	srv, err := NewServer(Config{Addr: "127.0.0.1:0", Logger: logger.Discard()}, newTestStore(t))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
