package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Caller — аутентифицированный пользователь текущего запроса.
type Caller struct {
	UserID UserID
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
