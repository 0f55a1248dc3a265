package model

import "time"

// Role is a coarse authorization tag attached to an authenticated subject.
type Role string

const (
    RoleUser   Role = "user"
    RoleSeller Role = "seller"
    RoleAdmin  Role = "admin"
)

// ParseRole maps a claim or request value onto a known role.
func ParseRole(s string) (Role, bool) {
    switch r := Role(s); r {
    case RoleUser, RoleSeller, RoleAdmin:
        return r, true
    }
    return "", false
}

// User is a row of the users table.  Email is stored lower-cased and
// PasswordHash is a bcrypt hash; handlers never serialize this struct
// directly.
type User struct {
    ID           uint64
    Username     string
    Email        string
    PasswordHash string
    FullName     string
    Role         Role
    IsVerified   bool
    CreatedAt    time.Time
}
