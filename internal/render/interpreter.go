package render

import (
	"bendgen/internal/grammar"
	"bendgen/internal/model"
)

// DefaultRepeatFactor is the bracket repeat factor applied before drawing.
const DefaultRepeatFactor = 3

// maxRewinds bounds how often one placement symbol is reconsidered without
// any cell being accepted. Three rewinds visit every direction once.
const maxRewinds = 3

// Directions: 1 grows along +x, 2 along the +x+y diagonal, 3 along +y.
const (
	dirForward  = 1
	dirDiagonal = 2
	dirUp       = 3
)

type interpreter struct {
	grid         *Grid
	direction    int
	lastOperator byte
	path         []model.Coord
}

func newInterpreter(canvas Canvas) *interpreter {
	origin := model.Coord{X: 0, Y: 0}
	grid := NewGrid(canvas)
	grid.Mark(origin)
	return &interpreter{
		grid:         grid,
		direction:    dirForward,
		lastOperator: '+',
		path:         []model.Coord{origin},
	}
}

func (it *interpreter) turn(op byte) {
	switch op {
	case '-':
		it.direction--
	case '+':
		it.direction++
	default:
		return
	}
	it.lastOperator = op
	if it.direction < dirForward {
		it.direction = dirUp
	}
	if it.direction > dirUp {
		it.direction = dirForward
	}
}

func (it *interpreter) candidate() model.Coord {
	cur := it.path[len(it.path)-1]
	switch it.direction {
	case dirForward:
		cur.X++
	case dirDiagonal:
		cur.X++
		cur.Y++
	case dirUp:
		cur.Y++
	}
	return cur
}

// place runs up to n placement attempts and reports whether a rejection
// asked for the current symbol to be reconsidered. The attempts left after a
// rejection are dropped; the retried symbol starts a fresh batch of n.
func (it *interpreter) place(n int) (rewind bool, placed int) {
	for k := 0; k < n; k++ {
		next := it.candidate()
		switch it.grid.CheckNeighbours(next) {
		case Accept:
			it.grid.Mark(next)
			it.path = append(it.path, next)
			placed++
		case Reject:
			it.turn(it.lastOperator)
			return true, placed
		case OutOfBounds:
		}
	}
	return false, placed
}

// complete extends the path straight to the right border.
func (it *interpreter) complete() {
	last := it.path[len(it.path)-1]
	for x := last.X + 1; x < it.grid.canvas.Width; x++ {
		cell := model.Coord{X: x, Y: last.Y}
		it.grid.Mark(cell)
		it.path = append(it.path, cell)
	}
}

// PlacementsPerSymbol is ceil(width / count of placement symbols).
func PlacementsPerSymbol(sentence string, canvas Canvas) int {
	count := grammar.CountPlacements(sentence)
	if count == 0 {
		return 0
	}
	return (canvas.Width + count - 1) / count
}

// Render interprets sentence on canvas and returns the ordered path,
// starting at the origin and ending on the right border.
func Render(sentence string, canvas Canvas, factor int) []model.Coord {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return []model.Coord{{X: 0, Y: 0}}
	}
	perSymbol := PlacementsPerSymbol(sentence, canvas)
	expanded := grammar.ExpandRepeats(sentence, factor)

	it := newInterpreter(canvas)
	it.run(expanded, perSymbol)
	it.complete()
	return it.path
}

// run walks the expanded sentence with an explicit index. A rejected
// placement symbol is revisited in place, at most maxRewinds times in a row
// while nothing is accepted.
func (it *interpreter) run(expanded string, perSymbol int) {
	rewinds := 0
	for i := 0; i < len(expanded); i++ {
		switch c := expanded[i]; c {
		case '+', '-':
			it.turn(c)
		case grammar.Placement:
			rewind, placed := it.place(perSymbol)
			if placed > 0 {
				rewinds = 0
			}
			if rewind && rewinds < maxRewinds {
				rewinds++
				i--
				continue
			}
			rewinds = 0
		}
	}
}
