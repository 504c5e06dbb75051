package see

import (
	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/sim"
)

// Object is the data model used to represents an object.
type Object map[string]interface{}

// Rect is object rect area.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Pos is a position.
type Pos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Message is the message for see.
type Message struct {
	Action   string `json:"action"`
	Object   Object `json:"object,omitempty"`
	RemoveID string `json:"id,omitempty"`
}

// Actions
const (
	ActionReset  = "reset"
	ActionObject = "object"
	ActionRemove = "remove"
)

// Properties
const (
	PropID     = "id"
	PropType   = "type"
	PropRect   = "rect"
	PropOrigin = "origin"
	PropRadius = "radius"
	PropRotate = "rotate"
	PropPoints = "points"
)

const mouseSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="-150 -150 300 300">
		<g>
			<rect x="-100" y="-100" width="160" height="50" rx="5" />
			<rect x="-100" y="50" width="160" height="50" rx="5" />
			<circle cx="-45" cy="0" r="45" fill="none" stroke="black" stroke-width="2" />
			<path d="M 15 -50 L 100 0 L 15 50 Z" />
		</g>
	</svg>`

// NewObject creates Object.
func NewObject(typ, id string) Object {
	o := make(Object)
	o[PropID] = id
	o[PropType] = typ
	return o
}

// WallObject maps a maze wall to a rectangle.
func WallObject(id string, w sim.Segment) Object {
	x0, x1 := min(w.A.X, w.B.X), max(w.A.X, w.B.X)
	y0, y1 := min(w.A.Y, w.B.Y), max(w.A.Y, w.B.Y)
	const t = model.WallThickness
	return NewObject("wall", id).Rc(x0-t/2, y0-t/2, x1-x0+t, y1-y0+t)
}

// MouseObject maps the pose of the mouse.
func MouseObject(id string, pose sim.Pose2D, radius float64) Object {
	return NewObject("image", id).
		At(pose.X, pose.Y).
		Radius(radius).
		Rotate(ctrl.Degrees(float64(pose.Orientation))).
		With("src", "data:image/svg+xml;utf8,"+mouseSVG)
}

// Rc sets rect.
func (o Object) Rc(x, y, w, h float64) Object {
	o[PropRect] = &Rect{X: x, Y: y, W: w, H: h}
	return o
}

// At sets origin.
func (o Object) At(x, y float64) Object {
	o[PropOrigin] = &Pos{X: x, Y: y}
	return o
}

// Radius sets radius.
func (o Object) Radius(r float64) Object {
	o[PropRadius] = r
	return o
}

// Rotate sets rotate.
func (o Object) Rotate(deg float64) Object {
	o[PropRotate] = deg
	return o
}

// With sets a custom property.
func (o Object) With(key string, val interface{}) Object {
	o[key] = val
	return o
}
