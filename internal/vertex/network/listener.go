package network

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/banshee-data/vertex.report/internal/vertex"
)

// PacketStatsInterface provides packet statistics management.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDropped()
	AddTracks(count int)
	LogStats()
}

// BatchSink receives decoded track packets, typically a
// vertex.BatchBuilder.
type BatchSink interface {
	AddPacket(pkt *vertex.TrackPacket)
}

// UDPListener receives VTRK track-record packets over UDP and feeds them
// into a batch sink.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	conn        *net.UDPConn
	stats       PacketStatsInterface
	sink        BatchSink
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Stats       PacketStatsInterface
	Sink        BatchSink
}

// NewUDPListener creates a new UDP listener with the provided
// configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	// A no-op stats implementation keeps the packet path free of nil
	// checks when no collector is supplied.
	var stats PacketStatsInterface
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		stats:       stats,
		sink:        config.Sink,
	}
}

// noopStats is a PacketStatsInterface implementation that does nothing.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddDropped()         {}
func (n *noopStats) AddTracks(count int) {}
func (n *noopStats) LogStats()           {}

// Start begins listening for UDP packets and processing them. It returns
// when ctx is cancelled or the socket fails.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			log.Printf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	log.Printf("Track listener started on %s", conn.LocalAddr())

	go l.startStatsLogging(ctx)

	// VTRK packets top out well under the MTU.
	buffer := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			log.Print("Track listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// A short read deadline keeps context cancellation responsive.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			if err := l.handlePacket(buffer[:n]); err != nil {
				log.Printf("Error handling packet from %v: %v", addr, err)
			}
		}
	}
}

// LocalAddr returns the bound socket address, or nil before Start.
func (l *UDPListener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// handlePacket processes a single received UDP payload. Parse failures
// are dropped and counted, never fatal: the network is untrusted input.
func (l *UDPListener) handlePacket(payload []byte) error {
	l.stats.AddPacket(len(payload))

	pkt, err := vertex.ParseTrackPacket(payload)
	if err != nil {
		l.stats.AddDropped()
		return fmt.Errorf("VTRK parse failed: %w", err)
	}
	l.stats.AddTracks(len(pkt.Z))

	if l.sink != nil {
		l.sink.AddPacket(pkt)
	}
	return nil
}

// startStatsLogging periodically logs packet statistics.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	// An early first report avoids a long silence after startup.
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats()
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}
