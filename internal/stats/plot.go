package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteFitnessPlot draws best and mean angle per generation against the
// target angle and saves the chart; the file extension picks the format.
func WriteFitnessPlot(path, title string, history FitnessHistory) error {
	n := len(history.BestAngle)
	if n == 0 {
		return fmt.Errorf("fitness history is empty")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Angle (deg)"

	best := make(plotter.XYs, n)
	mean := make(plotter.XYs, n)
	target := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		best[i].X, best[i].Y = float64(i), history.BestAngle[i]
		mean[i].X = float64(i)
		if i < len(history.MeanAngle) {
			mean[i].Y = history.MeanAngle[i]
		}
		target[i].X, target[i].Y = float64(i), history.TargetAngle
	}

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return err
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return err
	}
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	targetLine, err := plotter.NewLine(target)
	if err != nil {
		return err
	}
	targetLine.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}

	p.Add(bestLine, meanLine, targetLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Add("target", targetLine)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
