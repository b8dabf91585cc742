// Command pcap-replay runs a captured VTRK stream through the clustering
// kernel offline and prints a per-event summary. It needs no database or
// network; use it to sanity-check a capture or a parameter choice before
// a full vertexd run. With -plots it also writes one PNG per event.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/vertex.report/internal/config"
	"github.com/banshee-data/vertex.report/internal/vertex"
	"github.com/banshee-data/vertex.report/internal/vertex/monitor"
	"github.com/banshee-data/vertex.report/internal/vertex/network"
)

func main() {
	pcapFile := flag.String("pcap", "", "PCAP file to replay (required)")
	udpPort := flag.Int("port", 0, "filter by UDP destination port (0 = any)")
	configPath := flag.String("config", "", "path to a tuning config JSON (optional)")
	plotsDir := flag.String("plots", "", "write per-event z plots to this directory")
	verbose := flag.Bool("v", false, "print every event, not just the summary")
	flag.Parse()

	if *pcapFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	var plotter *monitor.ZPlotter
	if *plotsDir != "" {
		var err error
		plotter, err = monitor.NewZPlotter(*plotsDir)
		if err != nil {
			log.Fatalf("failed to create plot dir: %v", err)
		}
	}

	clusterer := vertex.NewParallelClusterer(cfg.ClusterParams(), cfg.GetWorkers())
	stats := vertex.NewPipelineStats()

	pipeline := vertex.NewPipeline(clusterer, stats, func(b *vertex.TrackBatch, vertices []vertex.Vertex, noise int) {
		if *verbose {
			fmt.Printf("event %d: %d tracks -> %d vertices, %d noise\n", b.EventID, len(b.Z), len(vertices), noise)
		}
		if plotter != nil {
			if _, err := plotter.PlotEvent(b, vertices); err != nil {
				log.Printf("failed to plot event %d: %v", b.EventID, err)
			}
		}
	})

	builder := vertex.NewBatchBuilder(cfg.GetBatchTimeout(), pipeline.Process)

	replayCfg := network.ReplayConfig{UDPPort: *udpPort}
	delivered, err := network.ReplayPCAPFile(context.Background(), *pcapFile, replayCfg, stats, builder)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	builder.Flush()

	events, vertices, noise := pipeline.Totals()
	fmt.Printf("%s: %d packets, %d events, %d vertices, %d noise tracks\n",
		*pcapFile, delivered, events, vertices, noise)
	if dropped := builder.Dropped(); dropped > 0 {
		fmt.Printf("warning: %d tracks dropped on overflowing events\n", dropped)
	}
}
