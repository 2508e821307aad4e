package domain

type Role string

const (
	RoleDebater   Role = "debater"
	RoleSpectator Role = "spectator"
)

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User *User
	Role Role
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, role Role) *Member {
	if role == "" {
		role = RoleDebater
	}
	return &Member{User: user, Role: role}
}
