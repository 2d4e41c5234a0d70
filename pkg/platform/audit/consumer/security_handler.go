package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	id "biovault/pkg/domain"
	audit "biovault/pkg/platform/audit"
)

// SecurityHandler stores validation events and raises an alert when a user
// accumulates Threshold failed validations within Window. A success resets
// the user's count.
type SecurityHandler struct {
	store     audit.Store
	logger    *slog.Logger
	threshold int
	window    time.Duration
	alerts    prometheus.Counter

	mu        sync.Mutex
	failures  map[id.UserID][]time.Time
	lastSweep time.Time
}

// SecurityOption configures a SecurityHandler.
type SecurityOption func(*SecurityHandler)

// WithFailureThreshold sets the number of failures within window that alerts.
func WithFailureThreshold(threshold int, window time.Duration) SecurityOption {
	return func(h *SecurityHandler) {
		if threshold > 0 {
			h.threshold = threshold
		}
		if window > 0 {
			h.window = window
		}
	}
}

// WithAlertCounter counts raised alerts.
func WithAlertCounter(c prometheus.Counter) SecurityOption {
	return func(h *SecurityHandler) {
		h.alerts = c
	}
}

// NewSecurityHandler creates a security event handler. Defaults: 5 failures
// within 10 minutes.
func NewSecurityHandler(store audit.Store, logger *slog.Logger, opts ...SecurityOption) *SecurityHandler {
	h := &SecurityHandler{
		store:     store,
		logger:    logger,
		threshold: 5,
		window:    10 * time.Minute,
		failures:  make(map[id.UserID][]time.Time),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle stores the event, then updates the user's failure window.
func (h *SecurityHandler) Handle(ctx context.Context, event audit.Event) error {
	if err := appendOnce(ctx, h.store, h.logger, event); err != nil {
		return err
	}
	if event.UserID.IsNil() {
		return nil
	}

	switch event.Action {
	case audit.ActionValidationSuccess:
		h.reset(event.UserID)
	case audit.ActionValidationFailed:
		if count, alert := h.recordFailure(event.UserID, event.Timestamp); alert {
			h.logger.WarnContext(ctx, "repeated biometric validation failures",
				"user_id", event.UserID,
				"failures", count,
				"window", h.window.String(),
				"request_id", event.RequestID,
			)
			if h.alerts != nil {
				h.alerts.Inc()
			}
		}
	}
	return nil
}

func (h *SecurityHandler) reset(userID id.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.failures, userID)
}

// recordFailure returns the failure count inside the window and whether it
// reached the threshold. Reaching it starts a new window.
func (h *SecurityHandler) recordFailure(userID id.UserID, at time.Time) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := at.Add(-h.window)
	h.sweep(at, cutoff)

	kept := h.failures[userID][:0]
	for _, t := range h.failures[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, at)

	if len(kept) >= h.threshold {
		delete(h.failures, userID)
		return len(kept), true
	}
	h.failures[userID] = kept
	return len(kept), false
}

// sweep drops users whose newest failure left the window, at most once per
// window of event time. Callers hold mu.
func (h *SecurityHandler) sweep(at, cutoff time.Time) {
	if at.Sub(h.lastSweep) < h.window {
		return
	}
	h.lastSweep = at
	for userID, times := range h.failures {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(h.failures, userID)
		}
	}
}

// tracked reports how many users have failures in memory.
func (h *SecurityHandler) tracked() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.failures)
}
