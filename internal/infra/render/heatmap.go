package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"crypto_swarm/internal/influence"

	"github.com/disintegration/imaging"
)

// HeatmapOptions sizes the rendered influence matrix.
type HeatmapOptions struct {
	// CellSize is the edge length in pixels of one matrix cell.
	CellSize int
	// MaxSize caps the output edge; larger images are downscaled.
	MaxSize int
}

// DefaultHeatmapOptions renders 12px cells, capped at 1024px.
func DefaultHeatmapOptions() HeatmapOptions {
	return HeatmapOptions{CellSize: 12, MaxSize: 1024}
}

// Heatmap draws the co-activity matrix: cell (i,j) at row i, column j,
// shaded from white (0) to dark red (matrix max).
func Heatmap(m *influence.Matrix, opts HeatmapOptions) (*image.NRGBA, error) {
	n := m.Size()
	if n == 0 {
		return nil, fmt.Errorf("cannot render an empty matrix")
	}
	if opts.CellSize < 1 {
		opts.CellSize = 1
	}

	// One pixel per cell, then scale up with nearest neighbor to keep cell edges crisp.
	img := imaging.New(n, n, color.White)
	max := m.Max()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			img.SetNRGBA(j, i, shade(m.At(i, j), max))
		}
	}

	size := n * opts.CellSize
	if opts.MaxSize > 0 && size > opts.MaxSize {
		size = opts.MaxSize
	}
	if size == n {
		return img, nil
	}
	return imaging.Resize(img, size, size, imaging.NearestNeighbor), nil
}

func shade(v, max int64) color.NRGBA {
	if v <= 0 || max <= 0 {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	t := float64(v) / float64(max)
	return color.NRGBA{
		R: uint8(255 - 95*t),
		G: uint8(255 * (1 - t)),
		B: uint8(255 * (1 - t)),
		A: 255,
	}
}

// SaveHeatmap renders m and writes it to path; the format follows the extension.
func SaveHeatmap(m *influence.Matrix, path string, opts HeatmapOptions) error {
	img, err := Heatmap(m, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create heatmap directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save heatmap: %w", err)
	}
	return nil
}
