package render

import "bendgen/internal/model"

// Canvas is the bounded grid a phenotype is drawn on.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (c Canvas) Contains(p model.Coord) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < c.Width && p.Y < c.Height
}

// Verdict is the outcome of a neighbour check for a candidate cell.
type Verdict int

const (
	Accept      Verdict = 1
	Reject      Verdict = 2
	OutOfBounds Verdict = 3
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case OutOfBounds:
		return "out_of_bounds"
	default:
		return "unknown"
	}
}

// Grid tracks occupied cells of a canvas.
type Grid struct {
	canvas Canvas
	cells  []bool
}

func NewGrid(canvas Canvas) *Grid {
	size := 0
	if canvas.Width > 0 && canvas.Height > 0 {
		size = canvas.Width * canvas.Height
	}
	return &Grid{canvas: canvas, cells: make([]bool, size)}
}

func (g *Grid) Canvas() Canvas {
	return g.canvas
}

func (g *Grid) Occupied(x, y int) bool {
	if !g.canvas.Contains(model.Coord{X: x, Y: y}) {
		return false
	}
	return g.cells[y*g.canvas.Width+x]
}

func (g *Grid) Mark(p model.Coord) {
	if !g.canvas.Contains(p) {
		return
	}
	g.cells[p.Y*g.canvas.Width+p.X] = true
}

// CheckNeighbours decides whether pos may join the path. Border cells earn
// one point for sitting on the border and accept with exactly two points in
// total. Interior cells accept with at most two occupied neighbours.
func (g *Grid) CheckNeighbours(pos model.Coord) Verdict {
	if !g.canvas.Contains(pos) {
		return OutOfBounds
	}

	x, y := pos.X, pos.Y
	maxX, maxY := g.canvas.Width-1, g.canvas.Height-1
	hit := func(dx, dy int) int {
		if g.Occupied(x+dx, y+dy) {
			return 1
		}
		return 0
	}

	var offsets [][2]int
	border := true
	switch {
	case x == 0 && y > 0 && y < maxY: // left
		offsets = [][2]int{{0, 1}, {1, 0}, {0, -1}}
	case x == maxX && y > 0 && y < maxY: // right
		offsets = [][2]int{{0, 1}, {-1, 0}, {0, -1}}
	case y == 0 && x > 0 && x < maxX: // bottom
		offsets = [][2]int{{0, 1}, {-1, 0}, {1, 0}}
	case y == maxY && x > 0 && x < maxX: // top
		offsets = [][2]int{{-1, 0}, {1, 0}, {0, -1}}
	case x == 0 && y == 0:
		offsets = [][2]int{{0, 1}, {1, 0}}
	case x == maxX && y == 0:
		offsets = [][2]int{{0, 1}, {-1, 0}}
	case x == 0 && y == maxY:
		offsets = [][2]int{{0, -1}, {1, 0}}
	case x == maxX && y == maxY:
		offsets = [][2]int{{0, -1}, {-1, 0}}
	default:
		border = false
		// The lower-right diagonal is checked twice and the upper-left never.
		offsets = [][2]int{{0, 1}, {-1, 0}, {1, 0}, {0, -1}, {-1, -1}, {1, -1}, {1, 1}, {1, -1}}
	}

	condition := 0
	if border {
		condition++
	}
	for _, p := range offsets {
		condition += hit(p[0], p[1])
	}

	if border {
		if condition == 2 {
			return Accept
		}
		return Reject
	}
	if condition <= 2 {
		return Accept
	}
	return Reject
}
