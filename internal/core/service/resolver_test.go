package service

import (
	"errors"
	"testing"

	"github.com/nvinayak/pharmanet/internal/core/domain"
)

func testResolver() *Resolver {
	return NewResolver(map[string]domain.Role{
		"manufacturer.pharma-network.com": domain.RoleManufacturer,
		"distributor.pharma-network.com":  domain.RoleDistributor,
		"retailer.pharma-network.com":     domain.RoleRetailer,
		"transporter.pharma-network.com":  domain.RoleTransporter,
	})
}

func TestResolve_PermittedRole(t *testing.T) {
	r := testResolver()

	rank, err := r.Resolve("distributor.pharma-network.com", domain.RoleDistributor, domain.RoleRetailer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rank != 2 {
		t.Errorf("rank = %d, want 2", rank)
	}
}

func TestResolve_TransporterIsUnranked(t *testing.T) {
	r := testResolver()

	rank, err := r.Resolve("transporter.pharma-network.com", domain.RoleTransporter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rank != 0 {
		t.Errorf("rank = %d, want 0", rank)
	}
}

func TestResolve_RoleNotPermitted(t *testing.T) {
	r := testResolver()

	_, err := r.Resolve("retailer.pharma-network.com", domain.RoleManufacturer)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolve_UnknownOrganisation(t *testing.T) {
	r := testResolver()

	_, err := r.Resolve("stranger.example.com", domain.RoleManufacturer, domain.RoleDistributor,
		domain.RoleRetailer, domain.RoleTransporter)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
