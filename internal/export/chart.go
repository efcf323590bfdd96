// Package export renders score history to CSV and PNG files.
package export

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Henry6262/opus-x-sub001/internal/feed"
)

// Downsample thins a series to at most max points, keeping the first and
// last observation and evenly spaced points between them.
func Downsample(points []feed.ScorePoint, max int) []feed.ScorePoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]feed.ScorePoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

// WriteCSV writes score points to path, creating parent directories.
func WriteCSV(path string, points []feed.ScorePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"at", "token_mint", "score"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.At.Format(time.RFC3339),
			p.TokenMint,
			strconv.FormatFloat(p.Score, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// WritePNG renders the score series as a time chart.
func WritePNG(path string, points []feed.ScorePoint) error {
	if len(points) < 2 {
		return errors.New("need at least two points to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	scores := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.At
		scores[i] = p.Score
	}

	scoreFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Score",
			ValueFormatter: scoreFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    points[0].TokenMint,
				XValues: x,
				YValues: scores,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
