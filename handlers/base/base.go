// Package base defines the handler contract the router dispatches on.
package base

import (
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
)

// Handler is one report category. CanHandle is a cheap indicator test
// (substring checks only, no I/O) the router runs for every handler on
// every email. Handle extracts the category's fields and persists the
// record; it returns common.ErrNotApplicable when the patterns miss,
// which is not a fault.
type Handler interface {
	Name() string
	CanHandle(msg *email.Message) bool
	Handle(msg *email.Message) error
}

// Priority constants define the registration order of handlers.
// Lower numbers register first. Order matters: it is the declared
// dispatch order and several categories share indicator words.
const (
	// PriorityHost - host-level backup reports, the primary source.
	PriorityHost = 10

	// PriorityDatabase - database dump reports.
	PriorityDatabase = 100

	// PriorityAuxiliary - pool health, inventory and other
	// side-channel reports.
	PriorityAuxiliary = 500
)

// BaseHandler carries the name and registration priority shared by
// all handlers.
type BaseHandler struct {
	name     string
	priority int
}

// NewBaseHandler creates a BaseHandler with the given name and
// priority.
func NewBaseHandler(name string, priority int) BaseHandler {
	return BaseHandler{name: name, priority: priority}
}

// Name returns the handler name used in logs.
func (h *BaseHandler) Name() string {
	return h.name
}

// Priority returns the registration priority (lower registers first).
func (h *BaseHandler) Priority() int {
	return h.priority
}
