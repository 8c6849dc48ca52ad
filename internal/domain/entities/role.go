package entities

// Role governs what a collaborator may do on a task. The three roles form
// a total order: Viewer < Editor < Owner.
type Role string

const (
	RoleViewer Role = "Viewer"
	RoleEditor Role = "Editor"
	RoleOwner  Role = "Owner"
)

var roleLevels = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

func (r Role) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the role's position in the order, 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// Satisfies reports whether a holder of r may perform an action that
// requires the given role.
func (r Role) Satisfies(required Role) bool {
	return r.IsValid() && required.IsValid() && r.Level() >= required.Level()
}

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", ErrInvalidRole
	}
	return r, nil
}
