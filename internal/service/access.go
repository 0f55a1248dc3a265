package service

import (
	"fmt"

	"github.com/iliyamo/storefront-api/internal/model"
)

// Caller is the authenticated subject of a request.
type Caller struct {
	ID   uint64
	Role model.Role
}

// Authorize returns ErrForbidden unless role is one of allowed.  Every
// restricted operation calls it before touching the store.
func Authorize(role model.Role, allowed ...model.Role) error {
	for _, r := range allowed {
		if role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q may not perform this action", ErrForbidden, role)
}

// authorizeOwner allows the resource owner and admins.
func authorizeOwner(c Caller, ownerID uint64) error {
	if c.Role == model.RoleAdmin || (c.ID != 0 && c.ID == ownerID) {
		return nil
	}
	return fmt.Errorf("%w: only the owner or an admin may modify this resource", ErrForbidden)
}
