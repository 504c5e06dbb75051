package nav

import (
	"errors"
	"fmt"
)

// ErrInvalidPath is returned when a path contains actions which can't be
// converted into fast actions.
var ErrInvalidPath = errors.New("invalid path")

// corner is a turn of the search path. before is the number of half
// segments between the previous corner, or the start, and this one.
type corner struct {
	left   bool
	before int
}

type pathConverter struct {
	corners []corner
	tail    int
	diag    bool
	out     []FastAction
}

// ConvertSearchToFast rewrites a search path made of ST_HALF, ST_FULL,
// TURN_L and TURN_R into fast actions covering the same ground. Corners
// become small or large slaloms depending on the straight length around
// them, and when diag is set, runs of corners one segment apart are cut
// diagonally.
func ConvertSearchToFast(path []Action, diag bool) ([]FastAction, error) {
	c := &pathConverter{diag: diag}
	halves := 0
	for _, a := range path {
		switch a {
		case StHalf:
			halves++
		case StFull:
			halves += 2
		case TurnL, TurnR:
			c.corners = append(c.corners, corner{left: a == TurnL, before: halves + 1})
			halves = 1
		default:
			return nil, fmt.Errorf("%w: unexpected %v", ErrInvalidPath, a)
		}
	}
	c.tail = halves
	return c.convert(), nil
}

func (c *pathConverter) convert() []FastAction {
	n := len(c.corners)
	if n == 0 {
		c.straight(c.tail)
		return c.out
	}
	carry := c.corners[0].before
	for i := 0; i < n; {
		cur := c.corners[i]
		if c.diag {
			if j := c.chainEnd(i); j > i && carry >= 2 && c.after(j)-c.reserve(j+1) >= 2 {
				c.straight(carry - 2)
				c.diagonal(i, j)
				carry = c.after(j) - 2
				i = j + 1
				continue
			}
		}
		if i+1 < n && c.corners[i+1].before == 2 && c.corners[i+1].left == cur.left &&
			carry >= 1 && c.after(i+1)-c.reserve(i+2) >= 1 {
			c.straight(carry - 1)
			c.turn(cur.left, FastL180, FastR180)
			carry = c.after(i+1) - 1
			i += 2
			continue
		}
		if carry >= 2 && c.after(i)-c.reserve(i+1) >= 2 {
			c.straight(carry - 2)
			c.turn(cur.left, FastL90, FastR90)
			carry = c.after(i) - 2
		} else {
			c.straight(carry - 1)
			c.turn(cur.left, FastLS90, FastRS90)
			carry = c.after(i) - 1
		}
		i++
	}
	c.straight(carry)
	return c.out
}

// after returns the half segments following corner i.
func (c *pathConverter) after(i int) int {
	if i+1 < len(c.corners) {
		return c.corners[i+1].before
	}
	return c.tail
}

// reserve returns the half segments corner k needs before it.
func (c *pathConverter) reserve(k int) int {
	if k < len(c.corners) {
		return 1
	}
	return 0
}

// chainEnd returns the last corner of the diagonal run starting at i,
// or i if there is none. Three corners in a row turning the same way
// end a run.
func (c *pathConverter) chainEnd(i int) int {
	cs := c.corners
	j := i
	for j+1 < len(cs) && cs[j+1].before == 2 {
		if j > i && cs[j-1].left == cs[j].left && cs[j].left == cs[j+1].left {
			break
		}
		j++
	}
	if j == i+1 && cs[i].left == cs[j].left {
		return i
	}
	return j
}

// diagonal emits the run of corners i..j. Midpoint p lies between
// corner i+p and i+p+1; the robot runs diagonally from midpoint a to b.
func (c *pathConverter) diagonal(i, j int) {
	cs := c.corners
	a, b := 0, j-i-1
	if cs[i].left == cs[i+1].left {
		c.turn(cs[i].left, FastL135, FastR135)
		a = 1
	} else {
		c.turn(cs[i].left, FastL45, FastR45)
	}
	exit := [2]FastAction{FastL45P, FastR45P}
	if cs[j-1].left == cs[j].left {
		exit = [2]FastAction{FastL135P, FastR135P}
		b--
	}
	for p := a; p < b; {
		if k := i + p + 1; p+2 <= b && cs[k].left == cs[k+1].left {
			c.turn(cs[k].left, FastLV90, FastRV90)
			p += 2
		} else {
			c.out = append(c.out, FastStDiag)
			p++
		}
	}
	c.turn(cs[j].left, exit[0], exit[1])
}

func (c *pathConverter) straight(halves int) {
	for ; halves >= 2; halves -= 2 {
		c.out = append(c.out, FastStFull)
	}
	if halves > 0 {
		c.out = append(c.out, FastStHalf)
	}
}

func (c *pathConverter) turn(left bool, l, r FastAction) {
	if left {
		c.out = append(c.out, l)
	} else {
		c.out = append(c.out, r)
	}
}
