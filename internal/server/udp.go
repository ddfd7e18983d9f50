package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/bitplane"
	"github.com/skypro1111/binaural-intercom/internal/config"
	"github.com/skypro1111/binaural-intercom/internal/metrics"
	"github.com/skypro1111/binaural-intercom/internal/protocol"
)

// PeerState describes what is known about the remote session
type PeerState int

const (
	PeerUnknown PeerState = iota
	PeerAccepted
	PeerRejected
)

func (s PeerState) String() string {
	switch s {
	case PeerUnknown:
		return "unknown"
	case PeerAccepted:
		return "accepted"
	case PeerRejected:
		return "rejected"
	default:
		return fmt.Sprintf("PeerState(%d)", int(s))
	}
}

// Drop reasons reported for received bitplanes that are not stored
const (
	DropRejected  = "rejected"
	DropLayout    = "layout"
	DropLate      = "late"
	DropDuplicate = "duplicate"
	DropInvalid   = "invalid"
)

// Peer exchanges bitplane packets with the remote intercom over UDP. Sent
// chunks are sliced into bitplanes; received bitplanes are merged into the
// jitter buffer.
type Peer struct {
	conn    *net.UDPConn
	remote  *net.UDPAddr
	config  *config.TransportConfig
	logger  *slog.Logger
	buffer  *audio.Buffer
	metrics *metrics.Metrics
	local   protocol.Announce

	// Concurrency management
	cancel context.CancelFunc
	group  *errgroup.Group

	// Packet processing
	packetChan chan *incomingPacket

	// Send path scratch, used by the single sending goroutine
	sendBuf  []byte
	planeBuf []byte

	// Remote session
	peerState    PeerState
	peerAnnounce *protocol.Announce

	// Counters
	packetsReceived  uint64
	packetsProcessed uint64
	packetsSent      uint64
	packetsDropped   uint64
	parseErrors      uint64
	sendErrors       uint64
	bitplanesStored  uint64
	bitplanesDropped uint64
	mu               sync.RWMutex
}

// incomingPacket represents a received UDP packet with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr *net.UDPAddr
	timestamp  time.Time
}

// NewPeer creates a peer announcing local and storing into buffer
func NewPeer(cfg *config.TransportConfig, local protocol.Announce, buffer *audio.Buffer,
	m *metrics.Metrics, logger *slog.Logger) *Peer {

	return &Peer{
		config:     cfg,
		logger:     logger,
		buffer:     buffer,
		metrics:    m,
		local:      local,
		packetChan: make(chan *incomingPacket, cfg.QueueSize),
		sendBuf:    make([]byte, 0, protocol.HeaderSize+bitplane.PlaneBytes(int(local.Frames))),
	}
}

// Start binds the socket, resolves the remote peer and starts the receive
// loop, the packet workers and the announce loop
func (p *Peer) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", p.config.ListenAddress, p.config.ListenPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	remote, err := net.ResolveUDPAddr("udp", p.config.PeerAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve peer address: %w", err)
	}
	p.remote = remote

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	p.conn = conn

	if err := p.conn.SetReadBuffer(p.config.BufferSize); err != nil {
		p.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", p.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	p.logger.Info("UDP peer started",
		slog.String("address", p.conn.LocalAddr().String()),
		slog.String("peer", remote.String()),
		slog.Int("workers", p.config.Workers),
		slog.Int("buffer_size", p.config.BufferSize),
	)

	ctx, p.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	p.group = g

	for i := 0; i < p.config.Workers; i++ {
		g.Go(func() error {
			p.packetProcessor(i)
			return nil
		})
	}
	g.Go(func() error {
		p.receiveLoop(gctx)
		return nil
	})
	g.Go(func() error {
		p.announceLoop(gctx)
		return nil
	})

	return nil
}

// Stop closes the socket and waits for every goroutine to finish
func (p *Peer) Stop() error {
	p.logger.Info("Stopping UDP peer...")

	if p.cancel != nil {
		p.cancel()
	}

	// Closing the connection unblocks the receive loop
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	var err error
	if p.group != nil {
		err = p.group.Wait()
	}

	stats := p.GetStatistics()
	p.logger.Info("UDP peer stopped",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("packets_sent", stats.PacketsSent),
		slog.Uint64("bitplanes_stored", stats.BitplanesStored),
		slog.Uint64("bitplanes_dropped", stats.BitplanesDropped),
	)

	return err
}

// LocalAddr returns the bound address, nil before Start
func (p *Peer) LocalAddr() *net.UDPAddr {
	if p.conn == nil {
		return nil
	}
	return p.conn.LocalAddr().(*net.UDPAddr)
}

// SendAnnounce sends the local session layout to the remote peer
func (p *Peer) SendAnnounce() error {
	packet, err := p.local.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode announce: %w", err)
	}
	return p.write(packet)
}

// SendChunk slices a packed chunk into bitplane packets and sends them most
// significant plane first, so the sign plane leaves before any magnitude
// plane. planes is the number of planes per word; when max_bitplanes is set
// only that many of the top planes are sent. It returns the number of
// packets sent.
func (p *Peer) SendChunk(chunkNumber uint16, packed *audio.Chunk, planes int) (int, error) {
	limit := planes
	if p.config.MaxBitplanes > 0 && p.config.MaxBitplanes < planes {
		limit = p.config.MaxBitplanes
	}

	sent := 0
	defer func() { p.metrics.RecordBitplanesSent(sent) }()

	for plane := planes - 1; plane >= planes-limit; plane-- {
		for ch := 0; ch < packed.Channels; ch++ {
			p.planeBuf = bitplane.ExtractPlane(packed.Samples, packed.Channels, ch, plane, p.planeBuf)

			var err error
			p.sendBuf, err = protocol.AppendBitplane(p.sendBuf[:0], chunkNumber, ch, plane, planes, p.planeBuf)
			if err != nil {
				return sent, fmt.Errorf("failed to encode bitplane %d of channel %d: %w", plane, ch, err)
			}

			if err := p.write(p.sendBuf); err != nil {
				return sent, err
			}
			sent++
		}
	}

	return sent, nil
}

func (p *Peer) write(packet []byte) error {
	if p.conn == nil {
		return fmt.Errorf("UDP peer not started")
	}

	if _, err := p.conn.WriteToUDP(packet, p.remote); err != nil {
		p.mu.Lock()
		p.sendErrors++
		p.mu.Unlock()
		p.metrics.RecordSendError()
		return fmt.Errorf("failed to send packet to %s: %w", p.remote, err)
	}

	p.mu.Lock()
	p.packetsSent++
	p.mu.Unlock()
	p.metrics.RecordPacketSent()
	return nil
}

// announceLoop sends the announce on start and then periodically
func (p *Peer) announceLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.GetAnnounceInterval())
	defer ticker.Stop()

	for {
		if err := p.SendAnnounce(); err != nil {
			p.logger.Debug("Failed to send announce", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// receiveLoop is the main packet receiving loop. It owns packetChan and
// closes it on exit so the workers drain and stop.
func (p *Peer) receiveLoop(ctx context.Context) {
	defer close(p.packetChan)

	buffer := make([]byte, p.config.BufferSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Receive loop stopping due to context cancellation")
			return
		default:
		}

		// Set read deadline to check for context cancellation periodically
		if err := p.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			p.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := p.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			p.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
			continue
		}

		p.mu.Lock()
		p.packetsReceived++
		p.mu.Unlock()
		p.metrics.RecordPacketReceived()

		// Copy out of the read buffer, which is reused
		packetData := make([]byte, n)
		copy(packetData, buffer[:n])

		packet := &incomingPacket{
			data:       packetData,
			remoteAddr: remoteAddr,
			timestamp:  time.Now(),
		}

		select {
		case p.packetChan <- packet:
			p.metrics.SetQueueSize(len(p.packetChan))
		default:
			p.mu.Lock()
			p.packetsDropped++
			p.mu.Unlock()
			p.logger.Warn("Packet processing queue full, dropping packet",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// packetProcessor processes packets from the packet channel
func (p *Peer) packetProcessor(workerID int) {
	p.logger.Debug("Packet processor started", slog.Int("worker_id", workerID))

	for packet := range p.packetChan {
		p.handlePacket(packet, workerID)
	}

	p.logger.Debug("Packet processor stopped", slog.Int("worker_id", workerID))
}

// handlePacket processes a single incoming packet
func (p *Peer) handlePacket(packet *incomingPacket, workerID int) {
	parsed, err := protocol.ParsePacket(packet.data)
	if err != nil {
		p.mu.Lock()
		p.parseErrors++
		p.mu.Unlock()
		p.metrics.RecordParseError()

		p.logger.Debug("Failed to parse packet",
			slog.String("remote_addr", packet.remoteAddr.String()),
			slog.Int("packet_size", len(packet.data)),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
		)
		return
	}

	p.mu.Lock()
	p.packetsProcessed++
	p.mu.Unlock()
	p.metrics.RecordPacketProcessed()

	switch parsed.Header.PacketType {
	case protocol.PacketTypeAnnounce:
		p.processAnnounce(parsed.Announce, packet.remoteAddr)
	case protocol.PacketTypeBitplane:
		p.processBitplane(parsed.Header, parsed.Plane, workerID)
	}
}

// processAnnounce accepts or rejects the remote session layout
func (p *Peer) processAnnounce(remote *protocol.Announce, addr *net.UDPAddr) {
	err := p.local.Matches(remote)

	p.mu.Lock()
	previous := p.peerState
	p.peerAnnounce = remote
	if err != nil {
		p.peerState = PeerRejected
	} else {
		p.peerState = PeerAccepted
	}
	p.mu.Unlock()

	if err != nil {
		p.metrics.RecordPeerRejected()
		if previous != PeerRejected {
			p.logger.Warn("Rejecting peer session",
				slog.String("remote_addr", addr.String()),
				slog.String("announce", remote.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if previous != PeerAccepted {
		p.logger.Info("Peer session accepted",
			slog.String("remote_addr", addr.String()),
			slog.String("announce", remote.String()),
		)
	}
}

// processBitplane stores one received bitplane in the jitter buffer
func (p *Peer) processBitplane(header *protocol.Header, plane []byte, workerID int) {
	p.mu.RLock()
	state := p.peerState
	p.mu.RUnlock()

	var reason string
	switch {
	case state == PeerRejected:
		reason = DropRejected
	case int(header.Planes) != int(p.local.Bitplanes)+1 ||
		int(header.Channel) >= int(p.local.Channels) ||
		len(plane) != bitplane.PlaneBytes(int(p.local.Frames)):
		reason = DropLayout
	default:
		err := p.buffer.StoreBitplane(header.ChunkNumber, int(header.Channel), int(header.Bitplane),
			int(header.Planes), plane)
		switch {
		case err == nil:
			p.mu.Lock()
			p.bitplanesStored++
			p.mu.Unlock()
			p.metrics.RecordBitplaneReceived()
			return
		case errors.Is(err, audio.ErrLateBitplane):
			reason = DropLate
		case errors.Is(err, audio.ErrDuplicateBitplane):
			reason = DropDuplicate
		default:
			reason = DropInvalid
		}
		p.logger.Debug("Bitplane not stored",
			slog.String("packet", header.String()),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
		)
	}

	p.mu.Lock()
	p.bitplanesDropped++
	p.mu.Unlock()
	p.metrics.RecordBitplaneDropped(reason)
}

// GetStatistics returns current peer statistics
func (p *Peer) GetStatistics() PeerStatistics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PeerStatistics{
		PacketsReceived:  p.packetsReceived,
		PacketsProcessed: p.packetsProcessed,
		PacketsSent:      p.packetsSent,
		PacketsDropped:   p.packetsDropped,
		ParseErrors:      p.parseErrors,
		SendErrors:       p.sendErrors,
		BitplanesStored:  p.bitplanesStored,
		BitplanesDropped: p.bitplanesDropped,
		PeerState:        p.peerState.String(),
		QueueSize:        uint64(len(p.packetChan)),
		QueueCapacity:    uint64(cap(p.packetChan)),
	}
	if p.peerAnnounce != nil {
		stats.PeerAnnounce = p.peerAnnounce.String()
	}
	return stats
}

// State returns what is known about the remote session
func (p *Peer) State() PeerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peerState
}

// PeerStatistics represents peer transport counters
type PeerStatistics struct {
	PacketsReceived  uint64 `json:"packets_received"`
	PacketsProcessed uint64 `json:"packets_processed"`
	PacketsSent      uint64 `json:"packets_sent"`
	PacketsDropped   uint64 `json:"packets_dropped"`
	ParseErrors      uint64 `json:"parse_errors"`
	SendErrors       uint64 `json:"send_errors"`
	BitplanesStored  uint64 `json:"bitplanes_stored"`
	BitplanesDropped uint64 `json:"bitplanes_dropped"`
	PeerState        string `json:"peer_state"`
	PeerAnnounce     string `json:"peer_announce,omitempty"`
	QueueSize        uint64 `json:"queue_size"`
	QueueCapacity    uint64 `json:"queue_capacity"`
}
