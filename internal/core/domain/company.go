package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
	RoleRetailer     Role = "retailer"
	RoleTransporter  Role = "transporter"
)

// Rank places a role in the buyer/seller hierarchy: purchase orders only
// flow from rank N+1 buyers to rank N sellers. Transporters never buy or
// sell, so they are unranked.
func (r Role) Rank() int {
	switch r {
	case RoleManufacturer:
		return 1
	case RoleDistributor:
		return 2
	case RoleRetailer:
		return 3
	default:
		return 0
	}
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManufacturer, RoleDistributor, RoleRetailer, RoleTransporter:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown organisation role %q", s)
}

// Company is a registered participant. Its ID is its ledger key and never
// changes; drugs, purchase orders and shipments reference companies by it.
type Company struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Location      string    `json:"location"`
	Role          Role      `json:"role"`
	HierarchyRank int       `json:"hierarchyRank"`
	CreatedAt     time.Time `json:"createdAt"`
}
