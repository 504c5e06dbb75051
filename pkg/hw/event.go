package hw

import "fmt"

// EventKind classifies indicator notifications.
type EventKind int

// Event kinds.
const (
	EventInfo EventKind = iota
	EventOverrun
	EventCorrection
	EventCollision
	EventCalibrated
	EventRunComplete
	EventError
)

var eventKindNames = map[EventKind]string{
	EventInfo:        "info",
	EventOverrun:     "overrun",
	EventCorrection:  "correction",
	EventCollision:   "collision",
	EventCalibrated:  "calibrated",
	EventRunComplete: "run-complete",
	EventError:       "error",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a fire-and-forget notification.
type Event struct {
	Kind    EventKind
	Message string
}

// Indicator receives events, e.g. to blink a LED or beep. Notify must
// not block.
type Indicator interface {
	Notify(Event)
}

// IndicatorFunc is the func form of Indicator.
type IndicatorFunc func(Event)

// Notify implements Indicator.
func (f IndicatorFunc) Notify(e Event) {
	f(e)
}

// Indicators fans an event out to multiple indicators.
type Indicators []Indicator

// Notify implements Indicator.
func (s Indicators) Notify(e Event) {
	for _, ind := range s {
		ind.Notify(e)
	}
}

// Notifyf is a helper to notify a formatted message.
func Notifyf(ind Indicator, kind EventKind, format string, args ...interface{}) {
	if ind != nil {
		ind.Notify(Event{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}
}
