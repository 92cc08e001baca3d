package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"bendgen/internal/model"
)

// Rasterize draws path cells black on a white canvas. Row 0 of the image is
// the top of the canvas, so the path origin ends up in the lower-left corner.
func Rasterize(path []model.Coord, canvas Canvas) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, canvas.Width, canvas.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for _, p := range path {
		if !canvas.Contains(p) {
			continue
		}
		img.SetGray(p.X, canvas.Height-1-p.Y, color.Gray{Y: 0})
	}
	return img
}

// EncodePNG writes the rasterised path scaled up by scale pixels per cell.
func EncodePNG(w io.Writer, path []model.Coord, canvas Canvas, scale int) error {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return fmt.Errorf("invalid canvas %dx%d", canvas.Width, canvas.Height)
	}
	if scale < 1 {
		scale = 1
	}
	src := Rasterize(path, canvas)
	if scale == 1 {
		return png.Encode(w, src)
	}
	dst := image.NewGray(image.Rect(0, 0, canvas.Width*scale, canvas.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return png.Encode(w, dst)
}
