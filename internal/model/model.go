package model

// Role identifies which DigiClassRoom audience a user belongs to. The set
// is closed: the session controller assigns it from the resolver that
// succeeded, never from a response body.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return Role(value), true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

type User struct {
	ID    string
	Name  string
	Email string
	Role  Role

	// role-specific fields; at most one group is populated
	InstitutionName string
	Subject         string
	RollNumber      string
}

// IsZero reports whether u is the absent user. The session never holds a
// partially populated record: it is either zero or fully formed.
func (u User) IsZero() bool {
	return u.ID == ""
}

type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type SignupPayload struct {
	Name            string `validate:"required"`
	InstitutionName string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
}
