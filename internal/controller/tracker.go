package controller

import "github.com/urbanroute/routeview/internal/route"

// State is the controller's position in the endpoint selection flow.
type State int

const (
	Idle State = iota
	PartiallySelected
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PartiallySelected:
		return "partially_selected"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Role names one of the two endpoints.
type Role string

const (
	RoleOrigin      Role = "origin"
	RoleDestination Role = "destination"
)

// Tracker holds the origin and destination selections. A nil endpoint is
// absent.
type Tracker struct {
	origin      *route.Endpoint
	destination *route.Endpoint
}

func (t *Tracker) SetOrigin(e route.Endpoint)      { t.origin = &e }
func (t *Tracker) SetDestination(e route.Endpoint) { t.destination = &e }
func (t *Tracker) ClearOrigin()                    { t.origin = nil }
func (t *Tracker) ClearDestination()               { t.destination = nil }

// Set stores e under role.
func (t *Tracker) Set(role Role, e route.Endpoint) {
	if role == RoleOrigin {
		t.SetOrigin(e)
		return
	}
	t.SetDestination(e)
}

// Clear resets the endpoint under role to absent.
func (t *Tracker) Clear(role Role) {
	if role == RoleOrigin {
		t.ClearOrigin()
		return
	}
	t.ClearDestination()
}

// Origin returns a copy of the origin, or nil.
func (t *Tracker) Origin() *route.Endpoint { return clone(t.origin) }

// Destination returns a copy of the destination, or nil.
func (t *Tracker) Destination() *route.Endpoint { return clone(t.destination) }

// Complete reports whether both endpoints are present.
func (t *Tracker) Complete() bool {
	return t.origin != nil && t.destination != nil
}

// State derives the selection state from which endpoints are present.
func (t *Tracker) State() State {
	switch {
	case t.Complete():
		return Ready
	case t.origin != nil || t.destination != nil:
		return PartiallySelected
	default:
		return Idle
	}
}

func clone(e *route.Endpoint) *route.Endpoint {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
