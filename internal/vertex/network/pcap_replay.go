package network

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/vertex.report/internal/vertex"
)

// ReplayConfig configures PCAP replay behaviour.
type ReplayConfig struct {
	// SpeedMultiplier controls pacing against the capture timestamps
	// (1.0 = original timing, 2.0 = twice as fast). Zero or negative
	// replays as fast as possible.
	SpeedMultiplier float64

	// UDPPort filters packets by destination port; zero accepts any.
	UDPPort int
}

// ReplayPCAPFile reads a capture of VTRK track-record traffic and pushes
// the payloads through the same parse path as the live listener. It
// returns the number of VTRK packets delivered to the sink.
func ReplayPCAPFile(ctx context.Context, pcapFile string, config ReplayConfig, stats PacketStatsInterface, sink BatchSink) (int, error) {
	if stats == nil {
		stats = &noopStats{}
	}

	f, err := os.Open(pcapFile)
	if err != nil {
		return 0, fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("failed to read PCAP header of %s: %w", pcapFile, err)
	}

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	source.Lazy = true

	var (
		delivered int
		parseErrs int
		lastTS    time.Time
	)
	for packet := range source.Packets() {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		default:
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if config.UDPPort != 0 && int(udp.DstPort) != config.UDPPort {
			continue
		}

		// Pace against capture timestamps when real-time replay is wanted.
		ts := packet.Metadata().Timestamp
		if config.SpeedMultiplier > 0 && !lastTS.IsZero() && ts.After(lastTS) {
			delay := time.Duration(float64(ts.Sub(lastTS)) / config.SpeedMultiplier)
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-time.After(delay):
			}
		}
		lastTS = ts

		payload := udp.Payload
		stats.AddPacket(len(payload))
		pkt, err := vertex.ParseTrackPacket(payload)
		if err != nil {
			stats.AddDropped()
			parseErrs++
			if parseErrs <= 5 {
				log.Printf("PCAP replay: VTRK parse failed: %v", err)
			}
			continue
		}
		stats.AddTracks(len(pkt.Z))
		if sink != nil {
			sink.AddPacket(pkt)
		}
		delivered++
	}

	if parseErrs > 5 {
		log.Printf("PCAP replay: %d further parse failures suppressed", parseErrs-5)
	}
	return delivered, nil
}
