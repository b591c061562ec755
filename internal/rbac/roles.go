package rbac

// Role names. Keep these stable; they are stored on user_profiles and in tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsValidRole(role string) bool { return role == RoleUser || role == RoleAdmin }
