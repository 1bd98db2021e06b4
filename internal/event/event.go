// Package event defines the leveled messages the scanning and download
// pipeline reports to whatever presentation layer is attached.
//
// The core never prints. Components accept a func(Event) and call it; the
// CLI renders events through logrus, the TUI keeps the last few on screen.
//
//	mgr := download.NewManager(settings, client, func(e event.Event) {
//	    if e.Level == event.LevelVerbose && !verbose {
//	        return
//	    }
//	    fmt.Println(e.Message)
//	})
package event

import "fmt"

// Level indicates the severity/type of an event.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Event is a single progress or diagnostic message.
type Event struct {
	Message string
	Level   Level
}

// Func receives events. A nil Func discards them.
type Func func(Event)

// Emit calls f with a formatted event if f is not nil.
func (f Func) Emit(level Level, format string, args ...any) {
	if f == nil {
		return
	}
	f(Event{Message: fmt.Sprintf(format, args...), Level: level})
}
