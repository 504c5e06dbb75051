package nav

import (
	"math"
	"sync"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/model"
)

const (
	segFull = model.SegWidthFull
	segDiag = model.SegWidthDiag
)

// ShapeKind selects a slalom shape from the table.
type ShapeKind int

// Slalom shapes, all designed as left turns.
const (
	// ShapeS90 is the small 90 degree turn used while searching.
	ShapeS90 ShapeKind = iota
	ShapeF45
	ShapeF90
	ShapeF135
	ShapeF180
	// ShapeFV90 turns 90 degrees between two diagonals.
	ShapeFV90
	ShapeFS90
	numShapes
)

// Angular limits at the reference speed of each shape.
const (
	shapeDddth = 1200 * math.Pi
	shapeDdth  = 36 * math.Pi
	shapeDth   = 3 * math.Pi
)

var (
	shapesOnce sync.Once
	shapes     [numShapes]*ctrl.Shape
)

// Shape returns the shape of kind k. The table is computed on first use.
func Shape(k ShapeKind) *ctrl.Shape {
	shapesOnce.Do(func() {
		newShape := func(x, y, th, yCurveEnd, xAdv float64) *ctrl.Shape {
			return ctrl.NewShape(ctrl.Pose{X: x, Y: y, Th: th}, yCurveEnd, xAdv, shapeDddth, shapeDdth, shapeDth)
		}
		shapes[ShapeS90] = newShape(45, 45, math.Pi/2, 44, 0)
		shapes[ShapeF45] = newShape(90, 45, math.Pi/4, 30, 0)
		shapes[ShapeF90] = newShape(90, 90, math.Pi/2, 70, 0)
		shapes[ShapeF135] = newShape(45, 90, 3*math.Pi/4, 80, 0)
		shapes[ShapeF180] = newShape(0, 90, math.Pi, 90, 24)
		shapes[ShapeFV90] = newShape(segDiag/2, segDiag/2, math.Pi/2, 48, 0)
		shapes[ShapeFS90] = shapes[ShapeS90]
	})
	return shapes[k]
}
