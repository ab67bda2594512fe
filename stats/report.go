// Package stats renders simulation results.
package stats

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/loom/network"
)

// Report writes per-router and per-terminal result tables.
func Report(w io.Writer, n *network.Network) {
	reportRouters(w, n)
	reportTerminals(w, n)
}

func reportRouters(w io.Writer, n *network.Network) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Routers")
	t.AppendHeader(table.Row{"Router", "Flits Transferred", "Credits Returned"})

	for i := 0; i < n.NumRouters(); i++ {
		r := n.Router(i)
		t.AppendRow(table.Row{
			r.Name(),
			r.NumFlitsTransferred(),
			r.NumCreditsReturned(),
		})
	}

	t.Render()
}

func reportTerminals(w io.Writer, n *network.Network) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Terminals")
	t.AppendHeader(table.Row{
		"Node", "Packets Sent", "Flits Sent",
		"Packets Received", "Flits Received", "Avg Latency (s)",
	})

	for i := 0; i < n.NumTerminals(); i++ {
		g := n.Generator(i)
		s := n.Sink(i)
		t.AppendRow(table.Row{
			i,
			g.NumPacketsSent(),
			g.NumFlitsSent(),
			s.NumPacketsReceived(),
			s.NumFlitsReceived(),
			float64(s.AvgLatency()),
		})
	}

	t.AppendFooter(table.Row{
		"Total",
		n.TotalPacketsSent(), "",
		n.TotalPacketsReceived(), "", "",
	})

	t.Render()
}
