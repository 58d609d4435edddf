package tracker

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/rudransh-shrivastava/rtracker/internal/protocol"
	"github.com/rudransh-shrivastava/rtracker/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PacketConn is the socket the server reads datagrams from and answers on.
// *net.UDPConn satisfies it.
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	LocalAddr() net.Addr
	Close() error
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, protocol.MaxPacketSize)
		return &b
	},
}

type Server struct {
	config    Config
	logger    *logrus.Logger
	conn      PacketConn
	announcer *Announcer
	sweeper   *Sweeper
	closeOnce sync.Once
}

// NewServer binds cfg.Addr and serves the swarm held by swarm.
func NewServer(cfg Config, swarm store.SwarmRepository) (*Server, error) {
	conn, err := net.ListenPacket("udp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, swarm, conn), nil
}

func newServer(cfg Config, swarm store.SwarmRepository, conn PacketConn) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		config:    cfg,
		logger:    cfg.Logger,
		conn:      conn,
		announcer: NewAnnouncer(swarm, cfg.Logger),
		sweeper:   NewSweeper(swarm, cfg.PruneInterval, cfg.PeerTTL, cfg.Logger),
	}
}

func (s *Server) Addr() string {
	return s.conn.LocalAddr().String()
}

func (s *Server) Shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down tracker server")
		err = s.conn.Close()
	})
	return err
}

// Start reads datagrams until ctx is done, handing each one to a worker.
// At most cfg.Workers datagrams are handled at once; the read loop waits
// for a free worker beyond that. Start returns once in-flight datagrams
// have been answered.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.Addr()).Info("Tracker server started")

	go s.sweeper.Run(ctx)
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	// In-flight announces finish against the store even after ctx is done.
	reqCtx := context.WithoutCancel(ctx)

	var workers errgroup.Group
	workers.SetLimit(s.config.Workers)

	for {
		buf := bufPool.Get().(*[]byte)
		n, addr, err := s.conn.ReadFrom(*buf)
		if err != nil {
			bufPool.Put(buf)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.WithError(err).Error("Failed to read packet")
			continue
		}

		workers.Go(func() error {
			defer bufPool.Put(buf)
			s.handlePacket(reqCtx, addr, (*buf)[:n])
			return nil
		})
	}

	s.logger.Info("Waiting for in-flight requests to complete")
	_ = workers.Wait()
	return ctx.Err()
}

// handlePacket answers one datagram. Packets shorter than a header are
// dropped without a reply.
func (s *Server) handlePacket(ctx context.Context, addr net.Addr, packet []byte) {
	header, err := protocol.DecodeHeader(packet)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"peer": addr, "size": len(packet)}).Debug("Dropping short packet")
		return
	}

	log := s.logger.WithFields(logrus.Fields{
		"peer":           addr,
		"action":         header.Action.String(),
		"transaction_id": header.TransactionID,
	})
	log.Debug("Packet received")

	switch header.Action {
	case protocol.ActionConnect:
		s.handleConnect(addr, header)
	case protocol.ActionAnnounce:
		s.handleAnnounce(ctx, log, addr, header, packet[protocol.HeaderSize:])
	default:
		s.sendError(addr, header.TransactionID, msgUnsupportedAction)
	}
}

func (s *Server) handleConnect(addr net.Addr, header protocol.PacketHeader) {
	if header.ConnectionID != protocol.ProtocolID {
		s.logger.WithFields(logrus.Fields{"peer": addr, "connection_id": header.ConnectionID}).
			Debug("Connect without protocol id")
	}
	s.send(addr, protocol.EncodeConnect(newConnectionID(), header.TransactionID))
}

func (s *Server) handleAnnounce(ctx context.Context, log *logrus.Entry, addr net.Addr, header protocol.PacketHeader, body []byte) {
	req, err := protocol.DecodeAnnounce(body)
	if err != nil {
		log.WithError(err).Debug("Rejecting announce")
		s.sendError(addr, header.TransactionID, msgMalformedAnnounce)
		return
	}

	source, ok := sourceAddr(addr)
	if !ok {
		log.Warn("Announce from non-IP source")
		s.sendError(addr, header.TransactionID, msgInternalError)
		return
	}

	res, err := s.announcer.Announce(ctx, header.TransactionID, req, source)
	if err != nil {
		log.WithError(err).Error("Announce failed")
		s.sendError(addr, header.TransactionID, msgInternalError)
		return
	}
	s.send(addr, res)
}

func (s *Server) sendError(addr net.Addr, transactionID int32, message string) {
	s.send(addr, protocol.EncodeError(transactionID, message))
}

func (s *Server) send(addr net.Addr, packet []byte) {
	if _, err := s.conn.WriteTo(packet, addr); err != nil {
		s.logger.WithFields(logrus.Fields{"peer": addr, "error": err}).Info("Failed to send response")
	}
}

func sourceAddr(addr net.Addr) (netip.Addr, bool) {
	if ua, ok := addr.(*net.UDPAddr); ok {
		a := ua.AddrPort().Addr()
		return a, a.IsValid()
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.Addr{}, false
	}
	return ap.Addr(), true
}
