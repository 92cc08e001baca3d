package render

import (
	"bytes"
	"image/png"
	"reflect"
	"testing"

	"bendgen/internal/grammar"
	"bendgen/internal/model"
)

func TestCheckNeighboursOutOfBounds(t *testing.T) {
	grid := NewGrid(Canvas{Width: 10, Height: 5})
	for _, p := range []model.Coord{{X: -1, Y: 0}, {X: 0, Y: -1}, {X: 10, Y: 0}, {X: 0, Y: 5}} {
		if got := grid.CheckNeighbours(p); got != OutOfBounds {
			t.Fatalf("pos %+v: got %s want out_of_bounds", p, got)
		}
	}
}

func TestCheckNeighboursBorderNeedsExactlyOneNeighbour(t *testing.T) {
	grid := NewGrid(Canvas{Width: 10, Height: 10})
	// Bottom border cell with no occupied neighbours scores only the border point.
	if got := grid.CheckNeighbours(model.Coord{X: 3, Y: 0}); got != Reject {
		t.Fatalf("isolated border cell: got %s want reject", got)
	}
	grid.Mark(model.Coord{X: 2, Y: 0})
	if got := grid.CheckNeighbours(model.Coord{X: 3, Y: 0}); got != Accept {
		t.Fatalf("border cell with one neighbour: got %s want accept", got)
	}
	grid.Mark(model.Coord{X: 3, Y: 1})
	if got := grid.CheckNeighbours(model.Coord{X: 3, Y: 0}); got != Reject {
		t.Fatalf("border cell with two neighbours: got %s want reject", got)
	}
}

func TestCheckNeighboursCorner(t *testing.T) {
	grid := NewGrid(Canvas{Width: 4, Height: 4})
	grid.Mark(model.Coord{X: 0, Y: 0})
	if got := grid.CheckNeighbours(model.Coord{X: 1, Y: 0}); got != Accept {
		t.Fatalf("bottom cell next to origin: got %s", got)
	}
	grid.Mark(model.Coord{X: 2, Y: 3})
	if got := grid.CheckNeighbours(model.Coord{X: 3, Y: 3}); got != Accept {
		t.Fatalf("top-right corner with left neighbour: got %s", got)
	}
}

func TestCheckNeighboursInterior(t *testing.T) {
	grid := NewGrid(Canvas{Width: 10, Height: 10})
	pos := model.Coord{X: 5, Y: 5}
	if got := grid.CheckNeighbours(pos); got != Accept {
		t.Fatalf("empty interior: got %s", got)
	}
	grid.Mark(model.Coord{X: 4, Y: 5})
	grid.Mark(model.Coord{X: 4, Y: 4})
	if got := grid.CheckNeighbours(pos); got != Accept {
		t.Fatalf("two neighbours: got %s", got)
	}
	grid.Mark(model.Coord{X: 5, Y: 6})
	if got := grid.CheckNeighbours(pos); got != Reject {
		t.Fatalf("three neighbours: got %s", got)
	}

	// The lower-right diagonal counts twice.
	grid = NewGrid(Canvas{Width: 10, Height: 10})
	grid.Mark(model.Coord{X: 6, Y: 4})
	grid.Mark(model.Coord{X: 4, Y: 5})
	if got := grid.CheckNeighbours(pos); got != Reject {
		t.Fatalf("double-counted diagonal: got %s", got)
	}
}

func TestRenderStraightLine(t *testing.T) {
	canvas := Canvas{Width: 8, Height: 4}
	path := Render("F", canvas, DefaultRepeatFactor)
	want := make([]model.Coord, 0, canvas.Width)
	for x := 0; x < canvas.Width; x++ {
		want = append(want, model.Coord{X: x, Y: 0})
	}
	if !reflect.DeepEqual(path, want) {
		t.Fatalf("unexpected path: %+v", path)
	}
}

func TestRenderTurnsAndCompletes(t *testing.T) {
	canvas := Canvas{Width: 12, Height: 12}
	path := Render("F+F+F-F", canvas, DefaultRepeatFactor)
	if path[0] != (model.Coord{}) {
		t.Fatalf("path must start at origin, got %+v", path[0])
	}
	if last := path[len(path)-1]; last.X != canvas.Width-1 {
		t.Fatalf("expected completion to the right border, last=%+v", last)
	}
	rose := false
	for _, p := range path {
		if p.Y > 0 {
			rose = true
		}
	}
	if !rose {
		t.Fatal("expected turns to lift the path off the bottom row")
	}
}

func TestRenderWithoutPlacementsOnlyCompletes(t *testing.T) {
	canvas := Canvas{Width: 5, Height: 5}
	path := Render("+-+", canvas, DefaultRepeatFactor)
	if len(path) != canvas.Width {
		t.Fatalf("expected completion only, got %+v", path)
	}
}

func TestRenderRetriesRejectedPlacementWithLastOperator(t *testing.T) {
	cases := []struct {
		name     string
		sentence string
		canvas   Canvas
		want     []model.Coord
	}{
		{
			name:     "plus turn climbs after right border reject",
			sentence: "F+F",
			canvas:   Canvas{Width: 5, Height: 5},
			want: []model.Coord{
				{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0},
				{X: 3, Y: 1}, {X: 3, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 3},
			},
		},
		{
			name:     "plus turn moves from diagonal to up",
			sentence: "+F",
			canvas:   Canvas{Width: 5, Height: 2},
			want: []model.Coord{
				{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 1},
			},
		},
		{
			name:     "minus turn moves from diagonal to forward",
			sentence: "--F",
			canvas:   Canvas{Width: 5, Height: 2},
			want: []model.Coord{
				{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 0},
			},
		},
	}
	for _, tc := range cases {
		got := Render(tc.sentence, tc.canvas, DefaultRepeatFactor)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
	}
}

func TestRunStopsRetryingAfterMaxRewinds(t *testing.T) {
	canvas := Canvas{Width: 10, Height: 10}
	cases := []struct {
		name    string
		turns   string
		wantDir int
	}{
		// 1+maxRewinds rejections starting forward: 1 -> 2 -> 3 -> 1 -> 2.
		{name: "plus", turns: "", wantDir: dirDiagonal},
		// Starting up after '-': 3 -> 2 -> 1 -> 3 -> 2.
		{name: "minus", turns: "-", wantDir: dirDiagonal},
	}
	for _, tc := range cases {
		it := newInterpreter(canvas)
		// Every candidate around the origin now has too many neighbours.
		it.grid.Mark(model.Coord{X: 2, Y: 0})
		it.grid.Mark(model.Coord{X: 0, Y: 2})
		for _, cand := range []model.Coord{{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}} {
			if got := it.grid.CheckNeighbours(cand); got != Reject {
				t.Fatalf("%s: candidate %+v: got %s want reject", tc.name, cand, got)
			}
		}

		it.run(tc.turns+"F", 4)
		if len(it.path) != 1 {
			t.Fatalf("%s: expected no placements, got %+v", tc.name, it.path)
		}
		if it.direction != tc.wantDir {
			t.Fatalf("%s: expected direction %d after capped retries, got %d", tc.name, tc.wantDir, it.direction)
		}

		it.complete()
		if last := it.path[len(it.path)-1]; last != (model.Coord{X: canvas.Width - 1, Y: 0}) {
			t.Fatalf("%s: expected completion to the right border, last=%+v", tc.name, last)
		}
	}
}

func TestRenderedPhenotypesStayInBoundsAndConnected(t *testing.T) {
	canvas := Canvas{Width: 80, Height: 160}
	for seed := int64(1324); seed < 1324+60; seed += 2 {
		g := grammar.NewGenotype("A", seed, nil, grammar.DefaultConfig())
		path := Render(g.Sentence, canvas, DefaultRepeatFactor)
		if path[0] != (model.Coord{}) {
			t.Fatalf("seed %d: path does not start at origin", seed)
		}
		for i, p := range path {
			if !canvas.Contains(p) {
				t.Fatalf("seed %d: coordinate %+v outside canvas", seed, p)
			}
			if i == 0 {
				continue
			}
			prev := path[i-1]
			if abs(p.X-prev.X) > 1 || abs(p.Y-prev.Y) > 1 {
				t.Fatalf("seed %d: disconnected step %+v -> %+v", seed, prev, p)
			}
		}
		again := Render(g.Sentence, canvas, DefaultRepeatFactor)
		if !reflect.DeepEqual(path, again) {
			t.Fatalf("seed %d: render is not deterministic", seed)
		}
	}
}

func TestPlacementsPerSymbol(t *testing.T) {
	canvas := Canvas{Width: 80, Height: 160}
	if got := PlacementsPerSymbol("FFF", canvas); got != 27 {
		t.Fatalf("expected ceil(80/3)=27, got %d", got)
	}
	if got := PlacementsPerSymbol("+-", canvas); got != 0 {
		t.Fatalf("expected 0 without placements, got %d", got)
	}
}

func TestEncodePNGScales(t *testing.T) {
	canvas := Canvas{Width: 6, Height: 3}
	path := Render("F", canvas, DefaultRepeatFactor)
	var buf bytes.Buffer
	if err := EncodePNG(&buf, path, canvas, 4); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 12 {
		t.Fatalf("unexpected bounds %v", b)
	}
	// Origin is drawn in the lower-left corner.
	if r, _, _, _ := img.At(0, 11).RGBA(); r != 0 {
		t.Fatalf("expected black origin pixel, got r=%d", r)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r == 0 {
		t.Fatal("expected white top-left pixel")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
