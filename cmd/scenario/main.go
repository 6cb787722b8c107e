package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nvinayak/pharmanet/internal/adapter/storage"
	"github.com/nvinayak/pharmanet/internal/core/domain"
	"github.com/nvinayak/pharmanet/internal/core/service"
)

// Walks one drug through the full supply chain against in-memory adapters:
// manufacture, two purchase/ship/deliver hops, retail sale, then the audit
// queries. Exits non-zero on the first unexpected result.

const (
	manufacturerOrg = "manufacturer.pharma-network.com"
	distributorOrg  = "distributor.pharma-network.com"
	retailerOrg     = "retailer.pharma-network.com"
	transporterOrg  = "transporter.pharma-network.com"

	manufacturerCRN = "1234567895"
	distributorCRN  = "1234567893"
	retailerCRN     = "1234567892"
	transporterCRN  = "TRA001"

	drugName = "medicine4"
	serialNo = "serial5"
	consumer = "AAD1234567892"
)

func main() {
	ctx := context.Background()

	resolver := service.NewResolver(map[string]domain.Role{
		manufacturerOrg: domain.RoleManufacturer,
		distributorOrg:  domain.RoleDistributor,
		retailerOrg:     domain.RoleRetailer,
		transporterOrg:  domain.RoleTransporter,
	})

	ledger := storage.NewMemoryLedger()
	audit := storage.NewMemoryAudit()
	svc := service.NewPharmaService(resolver, ledger, storage.NewMemoryCache(), 100)
	defer svc.Close()

	// Drain the event feed into the audit log in background
	go func() {
		for event := range svc.Events() {
			audit.RecordEvent(ctx, event)
		}
	}()

	_, err := svc.RegisterCompany(ctx, manufacturerOrg, manufacturerCRN, "Sun Pharma", "Mumbai", "manufacturer")
	check("register manufacturer", err)
	_, err = svc.RegisterCompany(ctx, distributorOrg, distributorCRN, "VG Pharma", "Vizag", "distributor")
	check("register distributor", err)
	_, err = svc.RegisterCompany(ctx, retailerOrg, retailerCRN, "upgrad", "Bangalore", "retailer")
	check("register retailer", err)
	_, err = svc.RegisterCompany(ctx, transporterOrg, transporterCRN, "FedEx", "Delhi", "transporter")
	check("register transporter", err)

	drug, err := svc.AddDrug(ctx, manufacturerOrg, drugName, serialNo, "2024-01-01", "2026-01-01", manufacturerCRN)
	check("add drug", err)
	expectOwner("after addDrug", drug.Owner, companyKey(manufacturerCRN))

	// Manufacturer -> distributor
	_, err = svc.CreatePO(ctx, distributorOrg, distributorCRN, manufacturerCRN, drugName, 1)
	check("create PO (distributor<-manufacturer)", err)
	shipment, err := svc.CreateShipment(ctx, manufacturerOrg, distributorCRN, drugName, []string{serialNo}, transporterCRN)
	check("create shipment to distributor", err)
	if shipment.Status != domain.ShipmentStatusInTransit {
		log.Fatalf("FAIL: expected shipment in-transit, got %s", shipment.Status)
	}
	state, err := svc.ViewDrugCurrentState(ctx, drugName, serialNo)
	check("view state in transit", err)
	expectOwner("in transit", state.Owner, companyKey(transporterCRN))

	drugs, err := svc.UpdateShipment(ctx, transporterOrg, distributorCRN, drugName, transporterCRN)
	check("deliver to distributor", err)
	expectOwner("after delivery", drugs[0].Owner, companyKey(distributorCRN))

	// Distributor -> retailer
	_, err = svc.CreatePO(ctx, retailerOrg, retailerCRN, distributorCRN, drugName, 1)
	check("create PO (retailer<-distributor)", err)
	_, err = svc.CreateShipment(ctx, distributorOrg, retailerCRN, drugName, []string{serialNo}, transporterCRN)
	check("create shipment to retailer", err)
	drugs, err = svc.UpdateShipment(ctx, transporterOrg, retailerCRN, drugName, transporterCRN)
	check("deliver to retailer", err)
	expectOwner("at retailer", drugs[0].Owner, companyKey(retailerCRN))

	// Retail sale
	drug, err = svc.RetailDrug(ctx, retailerOrg, drugName, serialNo, retailerCRN, consumer)
	check("retail drug", err)
	expectOwner("after retail", drug.Owner, consumer)

	// Terminal state: a second sale must be refused
	if _, err := svc.RetailDrug(ctx, retailerOrg, drugName, serialNo, retailerCRN, "AAD0000000000"); err == nil {
		log.Fatal("FAIL: reselling a sold drug succeeded")
	}

	history, err := svc.ViewHistory(ctx, drugName, serialNo)
	check("view history", err)

	fmt.Println("========== SUPPLY CHAIN SCENARIO ==========")
	fmt.Printf("Drug:             %s/%s\n", drugName, serialNo)
	fmt.Printf("Final owner:      %s\n", drug.Owner)
	fmt.Printf("History versions: %d\n", len(history))
	fmt.Printf("Audit events:     %d\n", len(audit.Events()))
	fmt.Println("===========================================")

	// addDrug + 2x(createShipment, updateShipment) + retailDrug = 6 versions
	if len(history) == 6 {
		fmt.Println("PASS: drug history shows all 6 ownership versions")
	} else {
		log.Fatalf("FAIL: expected 6 history versions, got %d", len(history))
	}
}

func check(step string, err error) {
	if err != nil {
		log.Fatalf("FAIL: %s: %v", step, err)
	}
	fmt.Printf("ok: %s\n", step)
}

func expectOwner(step, got, want string) {
	if got != want {
		log.Fatalf("FAIL: %s: owner %q, want %q", step, strings.ReplaceAll(got, "\x00", "/"), strings.ReplaceAll(want, "\x00", "/"))
	}
}

func companyKey(crn string) string {
	key, err := domain.CompanyKey(crn)
	if err != nil {
		log.Fatalf("FAIL: company key %s: %v", crn, err)
	}
	return key
}
