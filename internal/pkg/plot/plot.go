// Package plot renders recorded series as line plots for visual inspection.
package plot

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
)

// Series renders one recorded signal to a PNG file.
func Series(s trajectory.Series, title, yLabel, path string) error {
	if len(s.Time) == 0 {
		return fmt.Errorf("plot: series %q holds no samples", s.Key)
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = yLabel

	pts := make(plotter.XYs, len(s.Time))
	for i := range s.Time {
		pts[i].X = s.Time[i]
		pts[i].Y = s.Value[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(plotter.NewGrid(), line)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
