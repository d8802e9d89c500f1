// Package router dispatches parsed emails across the registered
// report handlers.
package router

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/base"
	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
)

// Router owns the handler chain. The raw email is parsed exactly once
// and the resulting Message is shared read-only by every handler.
// Dispatch never short-circuits: an email may legitimately match more
// than one category. A failing handler is isolated; the rest of the
// chain still runs.
type Router struct {
	handlers []base.Handler
	log      *zap.Logger
}

// New creates an empty Router.
func New(log *zap.Logger) *Router {
	return &Router{log: log}
}

// Register appends a handler. Handlers dispatch in priority order,
// ties broken by registration order.
func (r *Router) Register(h base.Handler) {
	r.handlers = append(r.handlers, h)
	sort.SliceStable(r.handlers, func(i, j int) bool {
		return priorityOf(r.handlers[i]) < priorityOf(r.handlers[j])
	})
}

func priorityOf(h base.Handler) int {
	type prioritized interface{ Priority() int }
	if p, ok := h.(prioritized); ok {
		return p.Priority()
	}
	return base.PriorityAuxiliary
}

// Route parses raw email bytes and dispatches the message. Returns
// true when at least one handler processed the email. The error is
// non-nil only when the email itself could not be parsed; handler
// failures are logged and swallowed.
func (r *Router) Route(raw []byte, receivedAt time.Time) (bool, error) {
	msg, err := email.Parse(raw, receivedAt)
	if err != nil {
		return false, fmt.Errorf("cannot route unparseable email: %w", err)
	}
	return r.RouteMessage(msg), nil
}

// RouteMessage dispatches an already parsed message, for ingestion
// sources that produce a Message directly.
func (r *Router) RouteMessage(msg *email.Message) bool {
	processed := false

	for _, h := range r.handlers {
		if !h.CanHandle(msg) {
			continue
		}

		if err := r.runHandler(h, msg); err != nil {
			if errors.Is(err, common.ErrNotApplicable) {
				// Indicators matched but the patterns did
				// not; this handler simply does not apply.
				continue
			}
			r.log.Error("handler failed",
				zap.String("handler", h.Name()),
				zap.String("subject", msg.Subject()),
				zap.Error(err))
			continue
		}

		processed = true
		r.log.Info("email processed",
			zap.String("handler", h.Name()),
			zap.String("subject", msg.Subject()))
	}

	return processed
}

// runHandler isolates panics so one broken handler cannot take down
// the routing pass for the remaining handlers.
func (r *Router) runHandler(h base.Handler, msg *email.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return h.Handle(msg)
}
