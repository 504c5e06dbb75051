package sim

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/robotalks/mouse.go/pkg/model"
)

// ErrBadMaze is returned when a maze text can't be parsed.
var ErrBadMaze = errors.New("bad maze")

// Maze is a set of walls. Cell (x, y) spans [90x, 90x+90] by
// [90y, 90y+90] with y growing upward.
type Maze struct {
	Walls []Segment
}

// AddWall adds a wall from (x0, y0) to (x1, y1), given in posts.
func (m *Maze) AddWall(x0, y0, x1, y1 int) *Maze {
	const w = model.SegWidthFull
	m.Walls = append(m.Walls, Segment{
		A: Pos2D{X: float64(x0) * w, Y: float64(y0) * w},
		B: Pos2D{X: float64(x1) * w, Y: float64(y1) * w},
	})
	return m
}

// ParseMaze parses the usual text form, the top row first:
//
//	+---+---+
//	|       |
//	+   +---+
//	|   |   |
//	+---+---+
func ParseMaze(text string) (*Maze, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		// leading tabs are indentation, spaces are missing walls.
		if line = strings.TrimRight(strings.TrimLeft(line, "\t"), " \r"); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 3 || len(lines)%2 == 0 {
		return nil, fmt.Errorf("%w: %d lines", ErrBadMaze, len(lines))
	}
	rows := (len(lines) - 1) / 2
	m := &Maze{}
	for i, line := range lines {
		if i%2 == 0 {
			// horizontal walls at post row rows-i/2.
			y := rows - i/2
			for x := 0; 4*x+2 < len(line); x++ {
				if line[4*x+2] == '-' {
					m.AddWall(x, y, x+1, y)
				}
			}
			continue
		}
		y := rows - 1 - i/2
		for x := 0; 4*x < len(line); x++ {
			if line[4*x] == '|' {
				m.AddWall(x, y, x, y+1)
			}
		}
	}
	return m, nil
}

// Cast returns the distance from origin along dir to the nearest wall
// surface within maxRange.
func (m *Maze) Cast(origin Pos2D, dir Angle, maxRange float64) (float64, bool) {
	r := dir.Project(1)
	best, hit := maxRange, false
	for _, w := range m.Walls {
		s := w.B.Sub(w.A)
		denom := r.cross(s)
		if math.Abs(denom) < 1e-9 {
			continue
		}
		ao := w.A.Sub(origin)
		t := ao.cross(s) / denom
		u := ao.cross(r) / denom
		if t < 0 || u < 0 || u > 1 {
			continue
		}
		// the surface is half a wall closer than the center line.
		incidence := math.Max(math.Abs(denom)/math.Hypot(s.X, s.Y), 0.1)
		if d := t - model.WallThickness/2/incidence; d < best {
			best, hit = math.Max(d, 0), true
		}
	}
	return best, hit
}
