package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the department an account belongs to. The set is closed.
type Role string

const (
	RoleStore     Role = "Store"
	RolePurchase  Role = "Purchase"
	RoleExecution Role = "Execution"
	RoleAccounts  Role = "Accounts"
	RoleBilling   Role = "Billing"
)

// ErrUnknownRole is returned when a role string is outside the known set.
var ErrUnknownRole = errors.New("rbac: unknown role")

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleStore, RolePurchase, RoleExecution, RoleAccounts, RoleBilling}
}

// ParseRole matches a role name case-insensitively.
func ParseRole(raw string) (Role, error) {
	trimmed := strings.TrimSpace(raw)
	for _, role := range Roles() {
		if strings.EqualFold(string(role), trimmed) {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStore, RolePurchase, RoleExecution, RoleAccounts, RoleBilling:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Department is the label stamped on ledger entries submitted by this role.
func (r Role) Department() (string, error) {
	switch r {
	case RoleStore:
		return "Store", nil
	case RolePurchase:
		return "Purchase", nil
	case RoleExecution:
		return "Execution", nil
	case RoleAccounts:
		return "Accounts", nil
	case RoleBilling:
		return "Billing", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
	}
}

// Permission is an atomic capability checked by route middleware.
type Permission string

const (
	PermDashboardView Permission = "dashboard.view"
	PermLedgerRead    Permission = "ledger.read"
	PermLedgerWrite   Permission = "ledger.write"
)

// Permissions returns the capabilities granted to the role.
func (r Role) Permissions() []Permission {
	switch r {
	case RoleStore, RolePurchase, RoleExecution:
		return []Permission{PermDashboardView, PermLedgerWrite}
	case RoleAccounts, RoleBilling:
		return []Permission{PermDashboardView, PermLedgerRead, PermLedgerWrite}
	default:
		return nil
	}
}

// Can reports whether the role holds perm.
func (r Role) Can(perm Permission) bool {
	for _, granted := range r.Permissions() {
		if granted == perm {
			return true
		}
	}
	return false
}

// Principal describes the authenticated actor of a request.
type Principal struct {
	AccountID int64
	Username  string
	Role      Role
}
