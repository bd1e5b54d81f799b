package controller

import (
	"context"
	"fmt"

	"github.com/urbanroute/routeview/internal/route"
)

// Status is a read-only view of the controller.
type Status struct {
	State        string          `json:"state"`
	Origin       *route.Endpoint `json:"origin,omitempty"`
	Destination  *route.Endpoint `json:"destination,omitempty"`
	Selection    route.Selection `json:"selection"`
	Kind         string          `json:"kind"`
	Overlay      bool            `json:"overlay"`
	RouteVisible bool            `json:"routeVisible"`
	Paths        int             `json:"paths"`
	LatestToken  uint64          `json:"latestToken"`
	Pending      bool            `json:"pending"`
	LastError    string          `json:"lastError,omitempty"`
}

// Caller runs a command on the event loop and waits for its result.
type Caller interface {
	Call(ctx context.Context, command string, payload any) (any, error)
}

// CurrentStatus asks the event loop for a snapshot of the controller.
func CurrentStatus(ctx context.Context, c Caller) (Status, error) {
	v, err := c.Call(ctx, CmdSnapshot, nil)
	if err != nil {
		return Status{}, err
	}
	s, ok := v.(Status)
	if !ok {
		return Status{}, fmt.Errorf("unexpected snapshot type %T", v)
	}
	return s, nil
}
