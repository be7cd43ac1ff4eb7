package display

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/humidity.report/internal/fsutil"
)

// PNG canvas size.
const (
	pngWidth  = 10 * vg.Inch
	pngHeight = 6 * vg.Inch
)

var (
	temperatureColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	humidityColor    = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
)

// PNGFileName returns the snapshot name that sits next to a CSV log.
func PNGFileName(logPath string) string {
	return strings.TrimSuffix(logPath, ".csv") + ".png"
}

func (c *Chart) buildPlot() (*plot.Plot, error) {
	snap := c.Snapshot()

	p := plot.New()
	p.Title.Text = snap.Title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Value"
	p.Add(plotter.NewGrid())

	if len(snap.Samples) > 0 {
		tempPts := make(plotter.XYs, len(snap.Samples))
		humPts := make(plotter.XYs, len(snap.Samples))
		for i, s := range snap.Samples {
			tempPts[i] = plotter.XY{X: s.Elapsed, Y: s.Temperature}
			humPts[i] = plotter.XY{X: s.Elapsed, Y: s.Humidity}
		}

		tempLine, err := plotter.NewLine(tempPts)
		if err != nil {
			return nil, fmt.Errorf("temperature series: %w", err)
		}
		tempLine.Color = temperatureColor
		tempLine.Width = vg.Points(1.5)

		humLine, err := plotter.NewLine(humPts)
		if err != nil {
			return nil, fmt.Errorf("humidity series: %w", err)
		}
		humLine.Color = humidityColor
		humLine.Width = vg.Points(1.5)

		p.Add(tempLine, humLine)
		p.Legend.Add("Temperature (C)", tempLine)
		p.Legend.Add("Humidity (%)", humLine)
		p.Legend.Top = true
		p.Legend.Left = true
	}

	// Fixed window; Add widens axes to fit the data, so this comes last.
	p.X.Min, p.X.Max = snap.Axes.XMin, snap.Axes.XMax
	p.Y.Min, p.Y.Max = snap.Axes.YMin, snap.Axes.YMax
	return p, nil
}

// RenderPNG draws the current plot as a PNG image to w.
func (c *Chart) RenderPNG(w io.Writer) error {
	p, err := c.buildPlot()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// SavePNG writes the current plot to path.
func (c *Chart) SavePNG(fsys fsutil.FileSystem, path string) (err error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return c.RenderPNG(f)
}
