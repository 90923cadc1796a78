package wfplot

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes d as an interactive go-echarts graph using the computed
// positions.
func RenderHTML(d *Diagram, w io.Writer) error {
	title := d.Options.Title
	if title == "" {
		title = "Workflow"
	}

	graph := charts.NewGraph()
	graph.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	names := make(map[int]string, len(d.Positions))
	for _, l := range d.Labels {
		if _, ok := names[l.Node]; !ok && l.Text != "" {
			names[l.Node] = l.Text
		}
	}
	nodeName := func(id int) string {
		// Chart node names must be unique, so the id is always included.
		s := strconv.Itoa(id)
		if text, ok := names[id]; ok && text != s {
			s += ": " + text
		}
		return s
	}

	ids := make([]int, 0, len(d.Positions))
	seen := make(map[int]bool, len(d.Positions))
	for _, s := range d.Segments {
		for _, id := range []int{s.From, s.To} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	symbolSize := d.Options.Style.MarkerSize
	if symbolSize <= 0 {
		symbolSize = 10
	}
	nodes := make([]opts.GraphNode, 0, len(ids))
	for _, id := range ids {
		p := d.Positions[id]
		// Chart y grows downward.
		nodes = append(nodes, opts.GraphNode{
			Name:       nodeName(id),
			X:          float32(p.X * 100),
			Y:          float32(-p.Y * 100),
			SymbolSize: symbolSize,
		})
	}
	links := make([]opts.GraphLink, 0, len(d.Segments))
	for _, s := range d.Segments {
		links = append(links, opts.GraphLink{Source: nodeName(s.From), Target: nodeName(s.To)})
	}

	graph.AddSeries("workflow", nodes, links,
		charts.WithGraphChartOpts(opts.GraphChart{Layout: "none"}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(d.Options.LabelsOn)}),
	)
	return graph.Render(w)
}
