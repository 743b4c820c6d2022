// Package coordinator mediates a volunteer's shift mutations: sign up,
// cancel and mark complete. One Coordinator serves one volunteer dashboard.
// Mutations are serialized by an in-flight guard, and after each one the
// whole dashboard view is re-fetched rather than patched.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/application/projections"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/signup"
)

// SignupStore is the signup persistence the coordinator mutates and reads.
type SignupStore interface {
	projections.SignupStore
	SignUp(ctx context.Context, value signup.Signup, enforceCapacity bool) error
	Cancel(ctx context.Context, shiftID, volunteerID string, now time.Time) (bool, error)
	CompleteShift(ctx context.Context, shiftID, actorID string, isAdmin bool, now time.Time) error
}

// Actor is the signed-in user driving the dashboard.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// Deps holds dependencies for a Coordinator.
type Deps struct {
	ShiftStore      projections.ShiftStore
	SignupStore     SignupStore
	EnforceCapacity bool
	Now             func() time.Time
	GenerateID      func() string
}

// View is the volunteer dashboard as last fetched.
type View = projections.VolunteerDashboardResult

// Coordinator is the per-dashboard mutation mediator.
type Coordinator struct {
	actor Actor
	deps  Deps

	processing sync.Mutex // held while a mutation is in flight

	viewMu sync.RWMutex
	view   View
	loaded bool
}

// New creates a Coordinator for actor. The view is empty until Refresh.
func New(actor Actor, deps Deps) *Coordinator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Coordinator{actor: actor, deps: deps}
}

// SignUp books the actor onto shiftID.
// PRE: no mutation from this coordinator is in flight
// POST: On success the pair is SIGNED_UP and the view is re-fetched.
// Fails with BusyError, DuplicateSignupError, ValidationError (closed or full
// shift), NotFoundError or StoreError.
func (c *Coordinator) SignUp(ctx context.Context, shiftID string) (View, error) {
	return c.mutate(ctx, "signup_created", shiftID, func(ctx context.Context) error {
		value := signup.Signup{
			ID:          c.deps.GenerateID(),
			ShiftID:     shiftID,
			VolunteerID: c.actor.UserID,
			Status:      signup.StatusConfirmed,
			CreatedAt:   c.deps.Now(),
		}
		if err := value.Validate(); err != nil {
			return apperr.Validation(err)
		}
		return c.deps.SignupStore.SignUp(ctx, value, c.deps.EnforceCapacity)
	})
}

// Cancel releases the actor's active signup on shiftID. With no active
// signup it succeeds without change.
// POST: The pair is NONE; the cancelled row is kept for history
func (c *Coordinator) Cancel(ctx context.Context, shiftID string) (View, error) {
	return c.mutate(ctx, "signup_cancelled", shiftID, func(ctx context.Context) error {
		if shiftID == "" {
			return apperr.Validation(signup.ErrEmptyShiftID)
		}
		_, err := c.deps.SignupStore.Cancel(ctx, shiftID, c.actor.UserID, c.deps.Now())
		return err
	})
}

// MarkComplete moves shiftID to completed.
// PRE: the actor holds a confirmed signup on the shift or is an admin
// POST: The shift is completed, which is terminal for every pair on it
func (c *Coordinator) MarkComplete(ctx context.Context, shiftID string) (View, error) {
	return c.mutate(ctx, "shift_completed", shiftID, func(ctx context.Context) error {
		if shiftID == "" {
			return apperr.Validation(signup.ErrEmptyShiftID)
		}
		return c.deps.SignupStore.CompleteShift(ctx, shiftID, c.actor.UserID, c.actor.IsAdmin, c.deps.Now())
	})
}

// Refresh re-fetches the whole view. Refreshes are not guarded or
// coalesced; the last one to finish wins.
func (c *Coordinator) Refresh(ctx context.Context) (View, error) {
	view, err := projections.QueryGetVolunteerDashboard(ctx,
		projections.GetVolunteerDashboardQuery{VolunteerID: c.actor.UserID},
		projections.GetVolunteerDashboardDeps{ShiftStore: c.deps.ShiftStore, SignupStore: c.deps.SignupStore},
	)
	c.viewMu.Lock()
	c.view = view
	c.loaded = true
	c.viewMu.Unlock()
	if err != nil {
		return view, classify(err)
	}
	return view, nil
}

// Actor returns the user the coordinator acts for.
func (c *Coordinator) Actor() Actor {
	return c.actor
}

// View returns the last fetched view and whether one has been fetched.
func (c *Coordinator) View() (View, bool) {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view, c.loaded
}

// Processing reports whether a mutation is in flight.
func (c *Coordinator) Processing() bool {
	if c.processing.TryLock() {
		c.processing.Unlock()
		return false
	}
	return true
}

// mutate runs op under the in-flight guard, then re-fetches the view whether
// or not op succeeded. A refresh failure after a successful op is logged and
// the stale view is returned.
func (c *Coordinator) mutate(ctx context.Context, event, shiftID string, op func(context.Context) error) (View, error) {
	if !c.processing.TryLock() {
		view, _ := c.View()
		return view, apperr.Busy(apperr.ErrBusy)
	}
	defer c.processing.Unlock()

	opErr := op(ctx)
	if opErr != nil {
		zap.L().Info("signup_event",
			zap.String("event", event+"_rejected"),
			zap.String("shift_id", shiftID),
			zap.String("volunteer_id", c.actor.UserID),
			zap.String("kind", string(apperr.KindOf(opErr))),
			zap.Error(opErr),
		)
	} else {
		zap.L().Info("signup_event",
			zap.String("event", event),
			zap.String("shift_id", shiftID),
			zap.String("volunteer_id", c.actor.UserID),
		)
	}

	view, refreshErr := c.Refresh(ctx)
	if opErr != nil {
		return view, classify(opErr)
	}
	if refreshErr != nil {
		zap.L().Warn("signup_event", zap.String("event", "refresh_failed"), zap.Error(refreshErr))
	}
	return view, nil
}

// classify marks unclassified errors as store failures.
func classify(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Store(err)
}
