// Package viewstate models the loading lifecycle shared by the listing and
// detail flows.
package viewstate

import "githubexplorer/github"

// Kind is the tag of a State.
type Kind int

const (
	// Idle is the state before the first fetch.
	Idle Kind = iota
	// Loading is entered when a fetch starts and left when it resolves or is
	// canceled.
	Loading
	// Ready holds results.
	Ready
	// Error holds a fetch failure and offers a retry.
	Error
	// Empty is a successful fetch with nothing to show.
	Empty
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// State is the current view state. Notice carries the informational or
// error message to display; Err is set only in Error.
type State struct {
	Kind   Kind
	Notice string
	Err    error
}

// EventType enumerates fetch lifecycle events.
type EventType int

const (
	// Start marks the beginning of a fetch, retry or refresh.
	Start EventType = iota
	// Succeed marks a successful resolution.
	Succeed
	// Fail marks a failed resolution.
	Fail
	// Cancel marks a fetch abandoned before it resolved.
	Cancel
)

// Event is one lifecycle observation.
type Event struct {
	Type EventType
	// HasContent tells Succeed whether there is anything to show.
	HasContent bool
	Notice     string
	Err        error
}

// Started returns a Start event.
func Started() Event { return Event{Type: Start} }

// Succeeded returns a Succeed event.
func Succeeded(hasContent bool, notice string) Event {
	return Event{Type: Succeed, HasContent: hasContent, Notice: notice}
}

// Failed returns a Fail event.
func Failed(err error) Event { return Event{Type: Fail, Err: err} }

// Canceled returns a Cancel event. hasContent tells whether earlier results
// are still on screen.
func Canceled(hasContent bool) Event { return Event{Type: Cancel, HasContent: hasContent} }

// Apply applies an event to a previous state and returns the next state.
// Resolutions that arrive outside Loading are ignored.
func Apply(previous State, event Event) State {
	switch event.Type {
	case Start:
		return State{Kind: Loading}
	case Succeed:
		if previous.Kind != Loading {
			return previous
		}
		if !event.HasContent {
			return State{Kind: Empty, Notice: event.Notice}
		}
		return State{Kind: Ready, Notice: event.Notice}
	case Fail:
		if previous.Kind != Loading {
			return previous
		}
		return State{Kind: Error, Notice: github.UserMessage(event.Err), Err: event.Err}
	case Cancel:
		if previous.Kind != Loading {
			return previous
		}
		if event.HasContent {
			return State{Kind: Ready}
		}
		return State{Kind: Idle}
	}
	return previous
}

// Machine is a mutable holder around Apply for callers that keep one state.
// It is not safe for concurrent use; owners guard it with their own lock.
type Machine struct {
	state State
}

// Current returns the current state.
func (m *Machine) Current() State { return m.state }

// Fire applies the event and returns the new state.
func (m *Machine) Fire(event Event) State {
	m.state = Apply(m.state, event)
	return m.state
}
