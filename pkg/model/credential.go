package model

// Credential is a username/secret pair issued for a single download attempt.
// It is immutable once handed to a task; a rejected credential is reported
// back through the resolver rather than mutated.
type Credential struct {
	Username string
	Password string
}

// IsZero reports whether the credential carries no identity at all.
func (c Credential) IsZero() bool {
	return c.Username == "" && c.Password == ""
}
