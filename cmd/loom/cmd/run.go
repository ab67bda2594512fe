package cmd

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/loom/network"
	"github.com/sarchlab/loom/stats"
)

var runFlags = struct {
	topology      string
	numTerminals  int
	numRouters    int
	numVCs        int
	bufDepth      int
	inputSpeedup  int
	outputSpeedup int
	swAllocDelay  int
	crossbarDelay int
	creditDelay   int
	holdSwitch    bool
	allocator     string
	allocIters    int
	numPackets    int
	packetSize    int
	seed          int64
	traceWatch    bool
	monitor       bool
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a traffic simulation on one router or a ring of routers",
	Run: func(cmd *cobra.Command, args []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runFlags.topology, "topology", "single",
		"topology to simulate, single or ring")
	f.IntVar(&runFlags.numTerminals, "terminals", 4,
		"number of terminals on the single router")
	f.IntVar(&runFlags.numRouters, "routers", 4,
		"number of routers in the ring")
	f.IntVar(&runFlags.numVCs, "num-vcs", 4,
		"virtual channels per input")
	f.IntVar(&runFlags.bufDepth, "buf-depth", 4,
		"per-VC buffer depth in flits")
	f.IntVar(&runFlags.inputSpeedup, "input-speedup", 1,
		"crossbar input speedup")
	f.IntVar(&runFlags.outputSpeedup, "output-speedup", 1,
		"crossbar output speedup")
	f.IntVar(&runFlags.swAllocDelay, "sw-alloc-delay", 1,
		"switch allocation delay in cycles")
	f.IntVar(&runFlags.crossbarDelay, "crossbar-delay", 1,
		"crossbar traversal delay in cycles")
	f.IntVar(&runFlags.creditDelay, "credit-delay", 1,
		"credit return delay in cycles")
	f.BoolVar(&runFlags.holdSwitch, "hold-switch", false,
		"hold crossbar slots for whole packets")
	f.StringVar(&runFlags.allocator, "allocator", "islip",
		"switch allocator, islip or sep")
	f.IntVar(&runFlags.allocIters, "alloc-iters", 1,
		"allocator iterations per cycle")
	f.IntVar(&runFlags.numPackets, "packets", 16,
		"packets injected per terminal")
	f.IntVar(&runFlags.packetSize, "packet-size", 4,
		"flits per packet")
	f.Int64Var(&runFlags.seed, "seed", 1,
		"random seed for destination selection")
	f.BoolVar(&runFlags.traceWatch, "trace-watch", false,
		"log the progress of every flit")
	f.BoolVar(&runFlags.monitor, "monitor", false,
		"start the monitoring HTTP server")
}

func run() {
	engine := sim.NewSerialEngine()

	b := network.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithNumVCs(runFlags.numVCs).
		WithBufDepth(runFlags.bufDepth).
		WithInputSpeedup(runFlags.inputSpeedup).
		WithOutputSpeedup(runFlags.outputSpeedup).
		WithSwitchAllocDelay(runFlags.swAllocDelay).
		WithCrossbarDelay(runFlags.crossbarDelay).
		WithCreditDelay(runFlags.creditDelay).
		WithAllocator(runFlags.allocator, runFlags.allocIters)
	if runFlags.holdSwitch {
		b = b.WithSwitchHoldForPacket()
	}

	var n *network.Network
	switch runFlags.topology {
	case "single":
		n = b.BuildSingleRouter("Loom", runFlags.numTerminals)
	case "ring":
		n = b.BuildRing("Loom", runFlags.numRouters)
	default:
		fmt.Fprintf(os.Stderr, "unknown topology %q\n", runFlags.topology)
		os.Exit(1)
	}

	if runFlags.monitor {
		startMonitor(engine, n)
	}

	injectTraffic(n)

	atexit.Register(func() {
		stats.Report(os.Stdout, n)
	})

	err := engine.Run()
	if err != nil {
		panic(err)
	}

	if n.TotalPacketsReceived() != n.TotalPacketsSent() {
		fmt.Fprintf(os.Stderr, "lost packets: sent %d, received %d\n",
			n.TotalPacketsSent(), n.TotalPacketsReceived())
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// injectTraffic enqueues uniform-random traffic, each terminal sending to
// every node but itself.
func injectTraffic(n *network.Network) {
	rng := rand.New(rand.NewSource(runFlags.seed))
	numNodes := n.NumTerminals()

	for src := 0; src < numNodes; src++ {
		g := n.Generator(src)
		for p := 0; p < runFlags.numPackets; p++ {
			dst := rng.Intn(numNodes - 1)
			if dst >= src {
				dst++
			}

			if runFlags.traceWatch {
				g.EnqueueWatchedPacket(dst, runFlags.packetSize, 0)
			} else {
				g.EnqueuePacket(dst, runFlags.packetSize, 0)
			}
		}
	}
}

func startMonitor(engine sim.Engine, n *network.Network) {
	monitor := monitoring.NewMonitor()
	monitor.RegisterEngine(engine)

	for i := 0; i < n.NumRouters(); i++ {
		monitor.RegisterComponent(n.Router(i))
	}
	for i := 0; i < n.NumTerminals(); i++ {
		monitor.RegisterComponent(n.Generator(i))
		monitor.RegisterComponent(n.Sink(i))
	}

	monitor.StartServer()
}
