package scape

import (
	"encoding/json"
	"os"

	"bendgen/internal/model"
	"bendgen/internal/render"
)

const (
	// ExportStride keeps every fourth path cell; dense outlines need a much
	// finer simulation mesh.
	ExportStride = 4
	// PixelsPerMM converts grid cells to millimetres.
	PixelsPerMM = 10.0
)

// Point is an exported coordinate in millimetres.
type Point [2]float64

// ExportCoordinates turns a half cross-section into the closed outline the
// simulator expects: the path is down-sampled, joined to the mid-line at
// x = width, mirrored about it and scaled to millimetres.
func ExportCoordinates(path []model.Coord, canvas render.Canvas) []Point {
	if len(path) == 0 {
		return nil
	}

	reduced := make([]Point, 0, len(path)/ExportStride+2)
	for i := 0; i < len(path); i += ExportStride {
		reduced = append(reduced, Point{float64(path[i].X), float64(path[i].Y)})
	}
	mid := float64(canvas.Width)
	reduced = append(reduced, Point{mid, float64(path[len(path)-1].Y)})

	mirrored := make([]Point, 0, len(reduced)-1)
	for i := len(reduced) - 2; i >= 0; i-- {
		mirrored = append(mirrored, Point{2*mid - reduced[i][0], reduced[i][1]})
	}

	out := make([]Point, 0, len(reduced)+len(mirrored))
	for _, p := range append(reduced, mirrored...) {
		out = append(out, Point{p[0] / PixelsPerMM, p[1] / PixelsPerMM})
	}
	return out
}

// WriteCoordinatesJSON writes exported coordinates as an indented JSON list
// of [x, y] pairs.
func WriteCoordinatesJSON(path string, points []Point) error {
	data, err := json.MarshalIndent(points, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
