package wfplot

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/matflow/wkshp/internal/fsutil"
	"github.com/matflow/wkshp/internal/monitoring"
)

// Canvas size used by Render and Save.
var (
	Width  = 8 * vg.Inch
	Height = 6 * vg.Inch
)

// Plot builds the gonum plot for d with axes hidden.
func Plot(d *Diagram) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = d.Options.Title
	p.HideAxes()

	st := d.Options.Style
	for _, s := range d.Segments {
		line, points, err := plotter.NewLinePoints(plotter.XYs{{X: s.A.X, Y: s.A.Y}, {X: s.B.X, Y: s.B.Y}})
		if err != nil {
			return nil, fmt.Errorf("edge %d -> %d: %w", s.From, s.To, err)
		}
		if st.LineColor != nil {
			line.Color = st.LineColor
		}
		if st.Dashed {
			line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		}
		if st.Marker != nil {
			points.GlyphStyle.Shape = st.Marker
		}
		if st.MarkerSize > 0 {
			points.GlyphStyle.Radius = vg.Points(st.MarkerSize / 2)
		}
		if st.MarkerFill != nil {
			points.GlyphStyle.Color = st.MarkerFill
		}
		p.Add(line, points)
	}

	if len(d.Labels) > 0 {
		xyl := plotter.XYLabels{
			XYs:    make(plotter.XYs, len(d.Labels)),
			Labels: make([]string, len(d.Labels)),
		}
		for i, l := range d.Labels {
			xyl.XYs[i] = plotter.XY{X: l.At.X, Y: l.At.Y}
			xyl.Labels[i] = l.Text
		}
		labels, err := plotter.NewLabels(xyl)
		if err != nil {
			return nil, fmt.Errorf("labels: %w", err)
		}
		if d.Options.FontSize > 0 {
			for i := range labels.TextStyle {
				labels.TextStyle[i].Font.Size = vg.Points(d.Options.FontSize)
			}
		}
		p.Add(labels)
	}
	return p, nil
}

// Render writes d to w in the given format (png, svg, pdf, eps, jpg, tif).
func Render(d *Diagram, w io.Writer, format string) error {
	p, err := Plot(d)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save renders d to path, choosing the format from the file extension.
// An .html extension produces the interactive chart from RenderHTML.
func Save(fsys fsutil.FileSystem, d *Diagram, path string) error {
	fsys = fsutil.Or(fsys)
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return fmt.Errorf("output %q has no extension", path)
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if format == "html" || format == "htm" {
		err = RenderHTML(d, f)
	} else {
		err = Render(d, f, format)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	monitoring.Logf("wfplot: wrote %d edges to %s", len(d.Segments), path)
	return nil
}
