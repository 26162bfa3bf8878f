package keycodes

import "strings"

// KeyCode is a canonical key, mouse button or controller button identifier.
type KeyCode string

const (
	// Unbound marks an action that intentionally has no key.
	Unbound KeyCode = "_UNBOUND"
	// awaitingCapture is the transient marker used while a client waits for a key press.
	awaitingCapture KeyCode = ""
)

// String returns the identifier.
func (code KeyCode) String() string {
	return string(code)
}

// IsMouse reports whether the code names a mouse button.
func (code KeyCode) IsMouse() bool {
	return mouseButtonPattern.MatchString(string(code))
}

// IsController reports whether the code names a controller button.
func (code KeyCode) IsController() bool {
	return strings.HasPrefix(string(code), "Gamepad")
}

type assignmentState uint8

const (
	stateAwaitingCapture assignmentState = iota
	stateUnbound
	stateBound
)

// Assignment is the key assigned to an action: a bound key, explicitly unbound,
// or awaiting capture from the editor. The zero value is awaiting capture.
type Assignment struct {
	state assignmentState
	key   KeyCode
}

// Bound returns an assignment to the normalized key. Sentinel spellings collapse
// into their variants so a Bound assignment always carries a real key.
func Bound(key KeyCode) Assignment {
	normalized := Normalize(string(key))
	switch normalized {
	case awaitingCapture:
		return AwaitingCapture()
	case Unbound:
		return UnboundAssignment()
	}
	return Assignment{state: stateBound, key: normalized}
}

// UnboundAssignment returns the explicitly disabled assignment.
func UnboundAssignment() Assignment {
	return Assignment{state: stateUnbound}
}

// AwaitingCapture returns the pending assignment.
func AwaitingCapture() Assignment {
	return Assignment{state: stateAwaitingCapture}
}

// ParseAssignment decodes a stored or wire value.
func ParseAssignment(raw string) Assignment {
	return Bound(KeyCode(raw))
}

// Key returns the bound key and true, or false for unbound and pending assignments.
func (a Assignment) Key() (KeyCode, bool) {
	if a.state != stateBound {
		return "", false
	}
	return a.key, true
}

// IsBound reports whether the assignment carries a key.
func (a Assignment) IsBound() bool {
	return a.state == stateBound
}

// IsUnbound reports whether the assignment is explicitly disabled.
func (a Assignment) IsUnbound() bool {
	return a.state == stateUnbound
}

// IsAwaitingCapture reports whether the editor is still waiting for a key.
func (a Assignment) IsAwaitingCapture() bool {
	return a.state == stateAwaitingCapture
}

// StorageValue is the persisted spelling. Pending assignments are stored as unbound
// so the database never holds an empty key code.
func (a Assignment) StorageValue() string {
	if a.state == stateBound {
		return a.key.String()
	}
	return Unbound.String()
}

// WireValue is the spelling sent to editing clients.
func (a Assignment) WireValue() string {
	switch a.state {
	case stateBound:
		return a.key.String()
	case stateUnbound:
		return Unbound.String()
	default:
		return awaitingCapture.String()
	}
}
