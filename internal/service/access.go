package service

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Principal is the authenticated caller of a service operation.
type Principal struct {
	UserID string
	Role   Role
}

// CanAccess is the single owner-or-admin policy shared by checkout and
// payment operations.
func (p Principal) CanAccess(ownerID string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.UserID != "" && p.UserID == ownerID
}
