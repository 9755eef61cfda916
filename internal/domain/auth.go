package domain

// ResolvedIdentity is the caller as currently stored, rebuilt on every protected request.
type ResolvedIdentity struct {
	ID    string
	Email string
	Role  Role
}

// Identity projects the authorization-relevant fields of a user.
func (u *User) Identity() *ResolvedIdentity {
	return &ResolvedIdentity{ID: u.ID, Email: u.Email, Role: u.Role}
}
