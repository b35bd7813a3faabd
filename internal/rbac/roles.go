package rbac

// Role names. Keep these stable; they are minted into operator tokens.
const (
	// RoleAdmin may change manager permissions and read exports.
	RoleAdmin = "admin"
	// RoleViewer may only read exports.
	RoleViewer = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// Known reports whether role is one cmd/admintoken may mint.
func Known(role string) bool { return role == RoleAdmin || role == RoleViewer }
