package service

import (
	"fmt"

	"github.com/nvinayak/pharmanet/internal/core/domain"
)

// Resolver maps a verified caller organisation to its role and hierarchy
// rank. The mapping is handed in at construction; there is no process-wide
// registry of organisations.
type Resolver struct {
	orgs map[string]domain.Role
}

func NewResolver(orgs map[string]domain.Role) *Resolver {
	m := make(map[string]domain.Role, len(orgs))
	for org, role := range orgs {
		m[org] = role
	}
	return &Resolver{orgs: m}
}

// Resolve returns the caller's hierarchy rank when its organisation carries
// one of the permitted roles. It performs no I/O; a failed resolve means
// the transaction stops before touching the ledger.
func (r *Resolver) Resolve(callerOrg string, permitted ...domain.Role) (int, error) {
	role, ok := r.orgs[callerOrg]
	if !ok {
		return 0, fmt.Errorf("organisation %q is not a network member: %w", callerOrg, ErrUnauthorized)
	}
	for _, p := range permitted {
		if role == p {
			return role.Rank(), nil
		}
	}
	return 0, fmt.Errorf("organisation %q (role %s) may not initiate this transaction: %w", callerOrg, role, ErrUnauthorized)
}
