// Package session tracks the identity of the running controller session and
// the state name that log records are tagged with.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context holds the current session identity and controller state
type Context struct {
	mu      sync.RWMutex
	id      string
	started time.Time
	state   string
}

// NewContext creates a new Context with a fresh session ID
func NewContext() *Context {
	return &Context{
		id:      uuid.NewString(),
		started: time.Now(),
		state:   "idle",
	}
}

// ID returns the session ID
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Started returns when the session began
func (c *Context) Started() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// State returns the last controller state recorded
func (c *Context) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState records the controller state
func (c *Context) SetState(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}
