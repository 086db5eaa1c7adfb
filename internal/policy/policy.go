// Package policy decides what an authenticated actor may do to an appointment.
package policy

import (
	"context"
	"fmt"
)

type Role string

const (
	RolePatient Role = "Patient"
	RoleAdmin   Role = "Admin"
	RoleStaff   Role = "Staff"
)

// Action is an operation on an appointment-scoped resource.
type Action string

const (
	ActionBook               Action = "appointment:book"
	ActionBookForOther       Action = "appointment:book_for_other"
	ActionCancel             Action = "appointment:cancel"
	ActionUpdateStatus       Action = "appointment:update_status"
	ActionViewAppointment    Action = "appointment:view"
	ActionViewReceipt        Action = "appointment:receipt"
	ActionListAll            Action = "appointment:list_all"
	ActionManageAvailability Action = "availability:manage"
	ActionCreatePayment      Action = "payment:create"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
	Role   Role
}

// Privileged reports whether the actor holds an administrative or staff capability.
func (a Actor) Privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

func (a Actor) String() string {
	return fmt.Sprintf("user=%d role=%s", a.UserID, a.Role)
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allows evaluates action for actor against a resource owned by ownerID.
// ownerID is ignored for actions that are not owner-scoped.
func Allows(actor Actor, action Action, ownerID int64) Decision {
	if actor.Privileged() {
		return Decision{Allowed: true, Reason: "privileged role"}
	}

	switch action {
	case ActionBook:
		if actor.UserID > 0 {
			return Decision{Allowed: true, Reason: "authenticated user"}
		}
		return Decision{Allowed: false, Reason: "unknown user"}
	case ActionCancel, ActionViewAppointment, ActionViewReceipt, ActionCreatePayment:
		if actor.UserID > 0 && actor.UserID == ownerID {
			return Decision{Allowed: true, Reason: "owner"}
		}
		return Decision{Allowed: false, Reason: "not the appointment owner"}
	case ActionBookForOther, ActionUpdateStatus, ActionListAll, ActionManageAvailability:
		return Decision{Allowed: false, Reason: "requires Admin or Staff role"}
	}

	return Decision{Allowed: false, Reason: "no policy for " + string(action)}
}

// Can is Allows without the reason.
func Can(actor Actor, action Action, ownerID int64) bool {
	return Allows(actor, action, ownerID).Allowed
}

type contextKey struct{}

// WithActor stores the actor on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
