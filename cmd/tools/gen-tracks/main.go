// Command gen-tracks generates synthetic VTRK track traffic for testing
// the vertexing pipeline. It either sends packets to a UDP address or
// writes them into a PCAP file for later replay.
package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/vertex.report/internal/vertex"
)

func main() {
	target := flag.String("udp", "127.0.0.1:9500", "UDP target address")
	output := flag.String("o", "", "write a PCAP file instead of sending UDP")
	events := flag.Int("n", 100, "number of events")
	rate := flag.Float64("rate", 20, "events per second (0 = no pacing)")
	seed := flag.Int64("seed", 1, "random seed")
	meanVertices := flag.Int("vertices", 8, "average vertices per event")
	meanTracks := flag.Int("tracks", 40, "average tracks per vertex")
	flag.Parse()

	cfg := vertex.DefaultSyntheticConfig()
	cfg.MeanVertices = *meanVertices
	cfg.MeanTracks = *meanTracks
	rng := rand.New(rand.NewSource(*seed))

	var send func(payload []byte) error
	if *output != "" {
		writer, closeFn, err := newPCAPSender(*output, *target)
		if err != nil {
			log.Fatalf("failed to open PCAP output: %v", err)
		}
		defer closeFn()
		send = writer
	} else {
		conn, err := net.Dial("udp", *target)
		if err != nil {
			log.Fatalf("failed to dial %s: %v", *target, err)
		}
		defer conn.Close()
		send = func(payload []byte) error {
			_, err := conn.Write(payload)
			return err
		}
	}

	var interval time.Duration
	if *rate > 0 {
		interval = time.Duration(float64(time.Second) / *rate)
	}

	totalTracks := 0
	for ev := 0; ev < *events; ev++ {
		batch := vertex.GenerateBatch(rng, uint64(ev+1), cfg)
		totalTracks += len(batch.Z)

		packets, err := vertex.PacketizeBatch(batch)
		if err != nil {
			log.Fatalf("failed to packetize event %d: %v", ev+1, err)
		}
		for _, payload := range packets {
			if err := send(payload); err != nil {
				log.Fatalf("failed to send packet: %v", err)
			}
		}

		if interval > 0 {
			time.Sleep(interval)
		}
		if (ev+1)%50 == 0 {
			log.Printf("%d/%d events", ev+1, *events)
		}
	}
	log.Printf("✓ Generated %d events, %d tracks", *events, totalTracks)
}

// newPCAPSender returns a send function that wraps each VTRK payload in
// Ethernet/IPv4/UDP framing and appends it to a PCAP file, paced with
// wall-clock timestamps so replays can reproduce the original timing.
func newPCAPSender(path, target string) (func([]byte) error, func(), error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, nil, err
	}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(127, 0, 0, 1),
		DstIP:    addr.IP,
	}
	if ip.DstIP == nil {
		ip.DstIP = net.IPv4(127, 0, 0, 1)
	}
	udp := &layers.UDP{
		SrcPort: 49152,
		DstPort: layers.UDPPort(addr.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		f.Close()
		return nil, nil, err
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	send := func(payload []byte) error {
		buf := gopacket.NewSerializeBuffer()
		if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
			return err
		}
		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(data),
			Length:        len(data),
		}
		return w.WritePacket(ci, data)
	}
	closeFn := func() {
		if err := f.Close(); err != nil {
			log.Printf("failed to close PCAP file: %v", err)
		}
	}
	return send, closeFn, nil
}
