package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleFL Role = "FL"
	RoleVG Role = "VG"
	RoleEN Role = "EN"
	RoleRG Role = "RG"
	RoleGO Role = "GO"
	RolePO Role = "PO"
	RoleSV Role = "SV"

	// Tags assigned by Field Leader substitution.
	RoleFLKO  Role = "FL-KO"
	RoleFLSub Role = "FL-SUB"
)

type Division string

const (
	DivisionOperations   Division = "operations"
	DivisionIntelligence Division = "intelligence"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleFL, RoleVG, RoleEN, RoleRG, RoleGO, RolePO, RoleSV:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Base strips substitution tags: FL-KO and FL-SUB both report FL.
func (r Role) Base() Role {
	if i := strings.IndexByte(string(r), '-'); i > 0 {
		return r[:i]
	}
	return r
}

// Leads reports whether the role currently holds the Field Leader slot.
func (r Role) Leads() bool { return r == RoleFL || r == RoleFLSub }

func DivisionOf(r Role) Division {
	switch r.Base() {
	case RoleFL, RoleVG, RoleEN:
		return DivisionOperations
	default:
		return DivisionIntelligence
	}
}
