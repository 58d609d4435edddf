// Package peer is the announcing side of the UDP tracker protocol.
package peer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rudransh-shrivastava/rtracker/internal/protocol"
	"github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("not connected to tracker")

type Client struct {
	config       Config
	logger       *logrus.Logger
	conn         *net.UDPConn
	connectionID int64
	connected    bool
}

func NewClient(cfg Config) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", cfg.TrackerAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving tracker address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		config: cfg,
		logger: logger,
		conn:   conn,
	}, nil
}

func (c *Client) Addr() string {
	return c.conn.LocalAddr().String()
}

// ConnectionID is the id handed out by the last successful Connect.
func (c *Client) ConnectionID() int64 {
	return c.connectionID
}

func (c *Client) Connect(ctx context.Context) error {
	c.logger.WithField("tracker", c.config.TrackerAddr).Debug("Connecting to tracker")

	tid := rand.Int31()
	res, err := c.roundTrip(ctx, tid, protocol.EncodeConnectRequest(tid))
	if err != nil {
		return err
	}

	connect, err := protocol.DecodeConnectResponse(res)
	if err != nil {
		return err
	}

	c.connectionID = connect.ConnectionID
	c.connected = true
	c.logger.WithField("connection_id", connect.ConnectionID).Debug("Connected to tracker")
	return nil
}

// Announce sends req and returns the tracker's answer. The compact peer
// list is read with the address width of the tracker's own family.
func (c *Client) Announce(ctx context.Context, req protocol.ClientAnnounce) (protocol.ServerAnnounce, error) {
	if !c.connected {
		return protocol.ServerAnnounce{}, ErrNotConnected
	}

	tid := rand.Int31()
	header := protocol.PacketHeader{
		ConnectionID:  c.connectionID,
		Action:        protocol.ActionAnnounce,
		TransactionID: tid,
	}
	res, err := c.roundTrip(ctx, tid, protocol.EncodeAnnounceRequest(header, req))
	if err != nil {
		return protocol.ServerAnnounce{}, err
	}

	addrSize := 4
	if raddr, ok := c.conn.RemoteAddr().(*net.UDPAddr); ok && raddr.IP.To4() == nil {
		addrSize = 16
	}
	return protocol.DecodeAnnounceResponse(res, addrSize)
}

// roundTrip writes packet and waits for a response carrying tid. Responses
// to other transactions are skipped.
func (c *Client) roundTrip(ctx context.Context, tid int32, packet []byte) ([]byte, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(packet); err != nil {
		return nil, fmt.Errorf("sending to tracker: %w", err)
	}

	buf := make([]byte, protocol.MaxPacketSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading from tracker: %w", err)
		}
		if n >= 8 && int32(binary.BigEndian.Uint32(buf[4:8])) == tid {
			return buf[:n], nil
		}
		c.logger.WithField("size", n).Debug("Skipping response for another transaction")
	}
}

func (c *Client) Shutdown() error {
	return c.conn.Close()
}
