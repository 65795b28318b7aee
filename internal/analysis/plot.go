// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Plot generation related functionality.

package analysis

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"os"
	"sort"

	"github.com/evolution-gaming/anaglyph/internal/metric"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrNoData = errors.New("no data to plot")

var (
	defaultPlotWidth  = vg.Centimeter * 24
	defaultPlotHeight = vg.Centimeter * 7
	// Upper bound of histogram bins.
	maxBins = 100
)

// A custom color palette: color1 as base color and color2 as a darker variant.
var ColorPalette = []color.RGBA{
	// red1
	{R: 230, G: 57, B: 70, A: 255},
	// red2
	{R: 143, G: 35, B: 43, A: 255},
	// green1
	{R: 84, G: 184, B: 50, A: 255},
	// green2
	{R: 50, G: 110, B: 30, A: 255},
	// cyan1
	{R: 31, G: 180, B: 206, A: 255},
	// cyan2
	{R: 11, G: 123, B: 143, A: 255},
	// purple1
	{R: 86, G: 11, B: 173, A: 255},
	// purple2
	{R: 62, G: 8, B: 125, A: 255},
}

// CreateCDFPlot creates Cumulative Distribution Function plot for given values.
func CreateCDFPlot(values []float64, name string) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("CreateCDFPlot() %w", ErrNoData)
	}
	p := plot.New()
	p.X.Label.Text = name
	p.Y.Label.Text = "Probability"
	p.Y.Min = 0

	// Sorting in place would reorder caller's per-frame series.
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	cdf := make(plotter.XYs, len(sorted))
	for i, v := range sorted {
		cdf[i].X = v
		cdf[i].Y = stat.CDF(v, stat.Empirical, sorted, nil)
	}

	cdfLine, err := plotter.NewLine(cdf)
	if err != nil {
		return p, fmt.Errorf("CreateCDFPlot() creating new Line: %w", err)
	}
	cdfLine.Color = ColorPalette[2]

	p.Add(cdfLine, plotter.NewGrid())
	p.Add(createQuantileLines(p, sorted, 0.5, 0.95, 0.99)...)

	return p, nil
}

// CreateHistogramPlot creates histogram plot for given values.
func CreateHistogramPlot(values []float64, name string) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("CreateHistogramPlot() %w", ErrNoData)
	}
	p := plot.New()
	p.X.Label.Text = name
	p.Y.Label.Text = "N"

	bins := len(values)
	if bins > maxBins {
		bins = maxBins
	}
	hist, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return p, fmt.Errorf("CreateHistogramPlot() creating new histogram: %w", err)
	}
	hist.Color = color.Transparent
	hist.FillColor = ColorPalette[6]

	p.Add(hist, plotter.NewGrid())

	return p, nil
}

// CreateTimingPlot creates per-frame plot of combine and write times.
//
// Index into value slices is assumed to be the frame number.
func CreateTimingPlot(combine, write []float64, name string) (*plot.Plot, error) {
	if len(combine) == 0 || len(combine) != len(write) {
		return nil, fmt.Errorf("CreateTimingPlot() %w", ErrNoData)
	}
	p := plot.New()
	p.X.Label.Text = "Frame #"
	p.Y.Label.Text = name
	p.Y.Min = 0

	combineLine, err := frameLine(combine)
	if err != nil {
		return p, fmt.Errorf("CreateTimingPlot() creating combine Line: %w", err)
	}
	combineLine.Color = ColorPalette[0]

	writeLine, err := frameLine(write)
	if err != nil {
		return p, fmt.Errorf("CreateTimingPlot() creating write Line: %w", err)
	}
	writeLine.Color = ColorPalette[4]

	mean := stat.Mean(combine, nil)
	meanLine, meanLabel := horizontalLineWithLabel(mean, 0, float64(len(combine)-1),
		fmt.Sprintf("combine mean=%.3f", mean))

	p.Y.Max = floats.Max(append([]float64{floats.Max(combine)}, write...)) * 1.1
	p.Add(combineLine, writeLine, meanLine, meanLabel, plotter.NewGrid())
	p.Legend.Add("combine", combineLine)
	p.Legend.Add("write", writeLine)
	p.Legend.Top = true

	return p, nil
}

func frameLine(values []float64) (*plotter.Line, error) {
	xy := make(plotter.XYs, len(values))
	for i, v := range values {
		xy[i].X = float64(i)
		xy[i].Y = v
	}
	return plotter.NewLine(xy)
}

// MultiPlotTiming creates per-frame timing multi plot and saves it to outFile
// as PNG.
//
// Resulting plot includes per-frame combine and write times, histogram of
// combine times and CDF of write times all in one canvas.
func MultiPlotTiming(store *metric.Store, title, outFile string) (err error) {
	combine, write := metric.Durations(store)
	if len(combine) == 0 {
		return fmt.Errorf("MultiPlotTiming() %w", ErrNoData)
	}
	// Milliseconds read better on axes.
	floats.Scale(1000, combine)
	floats.Scale(1000, write)

	// Create a 2D slice to hold subplots. This is the sad state of gonum's API
	// at this point unfortunately.
	const rows, cols = 3, 1
	plots := make([][]*plot.Plot, rows)
	for i := range plots {
		plots[i] = make([]*plot.Plot, cols)
	}

	if plots[0][0], err = CreateTimingPlot(combine, write, "ms"); err != nil {
		return err
	}
	if plots[1][0], err = CreateHistogramPlot(combine, "Combine time (ms)"); err != nil {
		return err
	}
	if plots[2][0], err = CreateCDFPlot(write, "Write time (ms)"); err != nil {
		return err
	}

	// Tweak titles and labels to have better layout and make plots less busy.
	plots[0][0].Title.Text = title + "\n\nPer frame timing"
	plots[1][0].Title.Text = "Combine time histogram"
	plots[2][0].Title.Text = "Write time CDF"

	img := vgimg.New(defaultPlotWidth, defaultPlotHeight*rows)
	dc := draw.New(img)

	t := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadY: vg.Points(10),
	}

	canvases := plot.Align(plots, t, dc)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			if plots[j][i] != nil {
				plots[j][i].Draw(canvases[j][i])
			}
		}
	}

	w, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("MultiPlotTiming() os.Create: %w", err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("MultiPlotTiming() writing png file: %w", err)
	}

	return nil
}

// verticalLine is helper to create a vertical line.
func verticalLine(x, ymin, ymax float64) *plotter.Line {
	line, err := plotter.NewLine(plotter.XYs{
		{X: x, Y: ymin},
		{X: x, Y: ymax},
	})
	// Unlikely to have error here - so just panic in that case.
	if err != nil {
		log.Panic(err)
	}
	return line
}

// horizontalLineWithLabel creates a labeled horizontal line.
func horizontalLineWithLabel(y, xMin, xMax float64, label string) (*plotter.Line, *plotter.Labels) {
	hLine, err := plotter.NewLine(plotter.XYs{
		{X: xMin, Y: y},
		{X: xMax, Y: y},
	})
	if err != nil {
		log.Panic(err)
	}
	hLine.Color = ColorPalette[7]
	hLabel, _ := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: xMin, Y: y}},
		Labels: []string{label},
	})
	hLabel.Offset.X = 5
	hLabel.Offset.Y = 5

	return hLine, hLabel
}

// createQuantileLines is helper to create vertical quantile lines.
func createQuantileLines(p *plot.Plot, sorted []float64, quantiles ...float64) []plot.Plotter {
	var plotters []plot.Plotter
	for i, q := range quantiles {
		qVal := stat.Quantile(q, stat.Empirical, sorted, nil)
		qLine := verticalLine(qVal, p.Y.Min, p.Y.Max)
		qLine.LineStyle.Width = vg.Points(1)
		qLine.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		qLine.Color = ColorPalette[(i*3)%len(ColorPalette)]

		labels, _ := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: qVal, Y: q}},
			Labels: []string{fmt.Sprintf("q(%.2f)=%.3f", q, qVal)},
		})
		labels.Offset.X = 5
		labels.Offset.Y = -5

		plotters = append(plotters, qLine, labels)
	}
	return plotters
}
