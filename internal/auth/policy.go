package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of identities a token can carry. Roles are
// validated once at token verification; nothing downstream compares
// raw strings.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleOfficer Role = "OFFICER"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normalizes a role claim into the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleOfficer:
		return RoleOfficer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsStaff reports whether the role is OFFICER or ADMIN.
func (r Role) IsStaff() bool {
	return r == RoleOfficer || r == RoleAdmin
}

// Action identifies an operation family for authorization purposes.
type Action int

const (
	// Self-or-staff: the student themselves, or any OFFICER/ADMIN.
	ActionReadStudent Action = iota
	ActionAddUpcomingEvent
	ActionRemoveUpcomingEvent
	ActionMarkAttendance
	ActionMarkEvaluation
	ActionAddRecentEvaluation
	ActionRemoveNotification

	// Staff-only.
	ActionCreateEvent
	ActionUpdateEvent
	ActionAddEventAttendance
	ActionAddStudentAttendance
	ActionListStudents
	ActionBroadcastNotification
	ActionListPushTokens

	// Admin-only.
	ActionDeleteEvent
	ActionPromoteStudent

	// Open to any authenticated role.
	ActionSubmitEvaluation
	ActionSetAttendeeCount
)

// Allow is the pure authorization policy: it maps (action, requester role,
// requester identity, resource-owner identity) to a decision. Owner is the
// student number owning the resource; it is ignored for actions that are
// not owner-scoped.
func Allow(action Action, role Role, requester, owner string) bool {
	switch action {
	case ActionReadStudent, ActionAddUpcomingEvent, ActionRemoveUpcomingEvent,
		ActionMarkAttendance, ActionMarkEvaluation, ActionAddRecentEvaluation,
		ActionRemoveNotification:
		return requester == owner || role.IsStaff()
	case ActionCreateEvent, ActionUpdateEvent, ActionAddEventAttendance,
		ActionAddStudentAttendance, ActionListStudents,
		ActionBroadcastNotification, ActionListPushTokens:
		return role.IsStaff()
	case ActionDeleteEvent, ActionPromoteStudent:
		return role == RoleAdmin
	case ActionSubmitEvaluation, ActionSetAttendeeCount:
		return role == RoleStudent || role.IsStaff()
	default:
		return false
	}
}

// Authorize is the checked form of Allow: a denial is ErrForbidden.
func Authorize(action Action, claims Claims, owner string) error {
	if !Allow(action, claims.Role, claims.Subject, owner) {
		return ErrForbidden
	}
	return nil
}
