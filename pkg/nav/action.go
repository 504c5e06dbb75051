package nav

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned when parsing an unknown token.
var ErrUnknownAction = errors.New("unknown action")

// Action is a maneuver token of the search run, produced by the planner.
type Action int

// Search actions.
const (
	StartStep Action = iota
	StartInit
	StFull
	StHalf
	StHalfStop
	TurnL
	TurnR
	Rotate180
)

var actionNames = [...]string{
	StartStep:  "START_STEP",
	StartInit:  "START_INIT",
	StFull:     "ST_FULL",
	StHalf:     "ST_HALF",
	StHalfStop: "ST_HALF_STOP",
	TurnL:      "TURN_L",
	TurnR:      "TURN_R",
	Rotate180:  "ROTATE_180",
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction parses a token like "ST_FULL".
func ParseAction(s string) (Action, error) {
	for i, name := range actionNames {
		if strings.EqualFold(s, name) {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// ParseActions parses a list of tokens.
func ParseActions(tokens []string) ([]Action, error) {
	actions := make([]Action, 0, len(tokens))
	for _, token := range tokens {
		a, err := ParseAction(token)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// FastAction is a maneuver of a fast run, as produced by
// ConvertSearchToFast.
type FastAction int

// Fast actions. The P variants leave a diagonal back onto the grid.
const (
	FastStFull FastAction = iota
	FastStHalf
	FastStDiag
	FastL45
	FastR45
	FastL45P
	FastR45P
	FastLV90
	FastRV90
	FastLS90
	FastRS90
	FastL90
	FastR90
	FastL135
	FastR135
	FastL135P
	FastR135P
	FastL180
	FastR180
)

var fastActionNames = [...]string{
	FastStFull: "F_ST_FULL",
	FastStHalf: "F_ST_HALF",
	FastStDiag: "F_ST_DIAG",
	FastL45:    "FL45",
	FastR45:    "FR45",
	FastL45P:   "FL45P",
	FastR45P:   "FR45P",
	FastLV90:   "FLV90",
	FastRV90:   "FRV90",
	FastLS90:   "FLS90",
	FastRS90:   "FRS90",
	FastL90:    "FL90",
	FastR90:    "FR90",
	FastL135:   "FL135",
	FastR135:   "FR135",
	FastL135P:  "FL135P",
	FastR135P:  "FR135P",
	FastL180:   "FL180",
	FastR180:   "FR180",
}

func (a FastAction) String() string {
	if a >= 0 && int(a) < len(fastActionNames) {
		return fastActionNames[a]
	}
	return fmt.Sprintf("FastAction(%d)", int(a))
}

// ParseFastAction parses a token like "FL45P".
func ParseFastAction(s string) (FastAction, error) {
	for i, name := range fastActionNames {
		if strings.EqualFold(s, name) {
			return FastAction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// slalom describes how a fast action turns.
type slalom struct {
	shape   ShapeKind
	mirror  bool
	reverse bool
}

var fastSlaloms = map[FastAction]slalom{
	FastL45:   {shape: ShapeF45},
	FastR45:   {shape: ShapeF45, mirror: true},
	FastL45P:  {shape: ShapeF45, reverse: true},
	FastR45P:  {shape: ShapeF45, mirror: true, reverse: true},
	FastLV90:  {shape: ShapeFV90},
	FastRV90:  {shape: ShapeFV90, mirror: true},
	FastLS90:  {shape: ShapeFS90},
	FastRS90:  {shape: ShapeFS90, mirror: true},
	FastL90:   {shape: ShapeF90},
	FastR90:   {shape: ShapeF90, mirror: true},
	FastL135:  {shape: ShapeF135},
	FastR135:  {shape: ShapeF135, mirror: true},
	FastL135P: {shape: ShapeF135, reverse: true},
	FastR135P: {shape: ShapeF135, mirror: true, reverse: true},
	FastL180:  {shape: ShapeF180},
	FastR180:  {shape: ShapeF180, mirror: true},
}

// straightLength is the length a straight fast action adds, 0 for turns.
func (a FastAction) straightLength() float64 {
	switch a {
	case FastStFull:
		return segFull
	case FastStHalf:
		return segFull / 2
	case FastStDiag:
		return segDiag / 2
	}
	return 0
}
