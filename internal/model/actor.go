package model

// Role is the authenticated caller's role, asserted by the upstream gateway.
type Role string

const (
	RoleStudent   Role = "student"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleOrganizer || r == RoleAdmin
}

// Actor is an already-authenticated caller identity.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor is the organizer of the event.
func (a Actor) Owns(e *Event) bool {
	return a.Role == RoleOrganizer && a.ID != "" && a.ID == e.OrganizerID
}

// CanManage reports whether the actor may act on the event as its organizer
// or as an admin.
func (a Actor) CanManage(e *Event) bool {
	return a.IsAdmin() || a.Owns(e)
}

// CanView reports whether the event is visible to the actor.
func (a Actor) CanView(e *Event) bool {
	if a.CanManage(e) {
		return true
	}
	return e.Status == EventActive
}
