// Package wfplot draws a workflow graph as a node/edge diagram.
//
// Layout places nodes with a simple depth/breadth heuristic: the highest node
// ID is the root, every other node sits at the depth of the first parent that
// reaches it and is spread horizontally around zero among its siblings. No
// acyclicity check is made.
package wfplot

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strconv"

	"gonum.org/v1/plot/vg/draw"
)

var (
	// ErrUnknownNode is returned when a link points at a node that is not a
	// key of the graph.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnplacedNode is returned for a node with children that no parent
	// reaches and that is not the root.
	ErrUnplacedNode = errors.New("node has no position")
)

// Graph is the read-only view of a workflow the renderer needs.
// *workflow.Workflow implements it.
type Graph interface {
	NodeIDs() []int
	Children(id int) ([]int, bool)
	DisplayName(id int) string
}

// Style controls how edges and their endpoints are drawn.
type Style struct {
	LineColor  color.Color
	Dashed     bool
	Marker     draw.GlyphDrawer
	MarkerSize float64 // points
	MarkerFill color.Color
}

// Options controls layout and labelling.
type Options struct {
	DepthFactor    float64
	BreadthFactor  float64
	LabelsOn       bool
	NumericalLabel bool
	TextLocFactor  float64
	FontSize       float64 // points
	Style          Style
	Title          string
}

// DefaultOptions returns the standard diagram settings: red dashed edges,
// blue-filled box markers, labels by display name.
func DefaultOptions() Options {
	return Options{
		DepthFactor:   1.0,
		BreadthFactor: 2.0,
		LabelsOn:      true,
		TextLocFactor: 1.0,
		FontSize:      12,
		Style: Style{
			LineColor:  color.RGBA{R: 255, A: 255},
			Dashed:     true,
			Marker:     draw.BoxGlyph{},
			MarkerSize: 10,
			MarkerFill: color.RGBA{B: 255, A: 255},
		},
	}
}

// Point is a node position in diagram units.
type Point struct {
	X, Y float64
}

func (p Point) scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Segment is one drawn edge.
type Segment struct {
	From, To int
	A, B     Point
}

// Label is a text label at an edge endpoint.
type Label struct {
	Node int
	Text string
	At   Point
}

// Diagram is a laid-out graph ready to render.
type Diagram struct {
	Positions map[int]Point
	Segments  []Segment
	Labels    []Label
	Options   Options
}

// Layout computes node positions, one segment per edge and, when labels are
// enabled, two labels per edge (parent then child).
func Layout(g Graph, opt Options) (*Diagram, error) {
	keys := append([]int(nil), g.NodeIDs()...)
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	d := &Diagram{Positions: make(map[int]Point, len(keys)), Options: opt}
	if len(keys) == 0 {
		return d, nil
	}

	root := keys[0]
	d.Positions[root] = Point{
		X: -0.5 * opt.BreadthFactor,
		Y: float64(root+1) * opt.DepthFactor,
	}
	for _, k := range keys {
		children, _ := g.Children(k)
		n := float64(len(children))
		for i, j := range children {
			if _, placed := d.Positions[j]; placed {
				continue
			}
			d.Positions[j] = Point{
				X: (float64(i) - n/2) * opt.BreadthFactor,
				Y: float64(k) * opt.DepthFactor,
			}
		}
	}

	for _, k := range keys {
		children, _ := g.Children(k)
		if len(children) == 0 {
			continue
		}
		from, ok := d.Positions[k]
		if !ok {
			return nil, fmt.Errorf("node %d: %w", k, ErrUnplacedNode)
		}
		for _, j := range children {
			if _, ok := g.Children(j); !ok {
				return nil, fmt.Errorf("link %d -> %d: %w", k, j, ErrUnknownNode)
			}
			to := d.Positions[j]
			d.Segments = append(d.Segments, Segment{From: k, To: j, A: from, B: to})
			if opt.LabelsOn {
				d.Labels = append(d.Labels,
					Label{Node: k, Text: labelText(g, k, opt.NumericalLabel), At: from.scale(opt.TextLocFactor)},
					Label{Node: j, Text: labelText(g, j, opt.NumericalLabel), At: to.scale(opt.TextLocFactor)},
				)
			}
		}
	}
	return d, nil
}

func labelText(g Graph, id int, numeric bool) string {
	if numeric {
		return strconv.Itoa(id)
	}
	return g.DisplayName(id)
}
