package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nvinayak/pharmanet/internal/core/domain"
	"github.com/nvinayak/pharmanet/internal/port"
)

// Error kinds returned by the transaction functions. Callers match with
// errors.Is; the wrapped message names the offending key or rule.
var (
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("record not found")
	ErrValidation   = errors.New("validation failed")
	ErrState        = errors.New("invalid state")
)

// PharmaService implements the supply-chain transaction functions. Every
// write transaction validates all of its preconditions first, stages its
// writes, and commits them through a single ledger batch, so a failure at
// any point leaves the record set untouched.
type PharmaService struct {
	resolver *Resolver
	ledger   port.LedgerRepository
	cache    port.CacheRepository
	events   chan domain.TxEvent
	dispatch map[string]TxHandler
}

func NewPharmaService(resolver *Resolver, ledger port.LedgerRepository, cache port.CacheRepository, queueSize int) *PharmaService {
	s := &PharmaService{
		resolver: resolver,
		ledger:   ledger,
		cache:    cache,
		events:   make(chan domain.TxEvent, queueSize),
	}
	s.dispatch = buildDispatch(s)
	return s
}

// Events exposes the committed-transaction feed consumed by the audit
// workers. The channel blocks when full; size it for the expected burst.
func (s *PharmaService) Events() <-chan domain.TxEvent {
	return s.events
}

func (s *PharmaService) Close() {
	close(s.events)
}

// RegisterCompany writes a new Company record keyed by CRN. A CRN that is
// already registered is rejected: existing drugs and orders reference the
// company key, and re-ranking it would change what those references mean.
func (s *PharmaService) RegisterCompany(ctx context.Context, caller, crn, name, location, roleName string) (*domain.Company, error) {
	if _, err := s.resolver.Resolve(caller,
		domain.RoleManufacturer, domain.RoleDistributor, domain.RoleRetailer, domain.RoleTransporter); err != nil {
		return nil, err
	}

	role, err := domain.ParseRole(roleName)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}

	key, err := domain.CompanyKey(crn)
	if err != nil {
		return nil, fmt.Errorf("company CRN %q: %w", crn, ErrValidation)
	}

	if _, err := s.ledger.Get(ctx, key); err == nil {
		return nil, fmt.Errorf("company %s is already registered: %w", crn, ErrState)
	} else if !errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("read company %s: %w", crn, err)
	}

	company := &domain.Company{
		ID:            key,
		Name:          name,
		Location:      location,
		Role:          role,
		HierarchyRank: role.Rank(),
		CreatedAt:     time.Now().UTC(),
	}

	writes, err := stage(nil, key, company)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, "registerCompany", caller, writes); err != nil {
		return nil, err
	}
	return company, nil
}

// AddDrug creates a Drug record owned by its manufacturer. Only
// manufacturer organisations may call it, and the referenced company must
// be a registered manufacturer.
func (s *PharmaService) AddDrug(ctx context.Context, caller, drugName, serialNo, mfgDate, expDate, companyCRN string) (*domain.Drug, error) {
	if _, err := s.resolver.Resolve(caller, domain.RoleManufacturer); err != nil {
		return nil, err
	}

	company, companyKey, err := s.getCompany(ctx, companyCRN)
	if err != nil {
		return nil, err
	}
	if company.Role != domain.RoleManufacturer {
		return nil, fmt.Errorf("company %s has role %s, only a manufacturer can add drugs: %w",
			companyCRN, company.Role, ErrValidation)
	}

	key, err := domain.DrugKey(drugName, serialNo)
	if err != nil {
		return nil, fmt.Errorf("drug %q serial %q: %w", drugName, serialNo, ErrValidation)
	}

	if _, err := s.ledger.Get(ctx, key); err == nil {
		return nil, fmt.Errorf("drug %s serial %s already exists: %w", drugName, serialNo, ErrState)
	} else if !errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("read drug %s/%s: %w", drugName, serialNo, err)
	}

	drug := &domain.Drug{
		ID:           key,
		Name:         drugName,
		Manufacturer: companyKey,
		MfgDate:      mfgDate,
		ExpDate:      expDate,
		Owner:        companyKey,
		Shipment:     "",
		CreatedAt:    time.Now().UTC(),
	}

	writes, err := stage(nil, key, drug)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, "addDrug", caller, writes); err != nil {
		return nil, err
	}
	return drug, nil
}

// CreatePO records a purchase order from buyer to seller. The order is
// accepted only one hierarchy step down: distributor buying from
// manufacturer, or retailer buying from distributor.
func (s *PharmaService) CreatePO(ctx context.Context, caller, buyerCRN, sellerCRN, drugName string, quantity int) (*domain.PurchaseOrder, error) {
	if _, err := s.resolver.Resolve(caller, domain.RoleDistributor, domain.RoleRetailer); err != nil {
		return nil, err
	}

	if quantity <= 0 {
		return nil, fmt.Errorf("purchase order quantity must be positive, got %d: %w", quantity, ErrValidation)
	}

	buyer, buyerKey, err := s.getCompany(ctx, buyerCRN)
	if err != nil {
		return nil, err
	}
	seller, sellerKey, err := s.getCompany(ctx, sellerCRN)
	if err != nil {
		return nil, err
	}

	if seller.HierarchyRank < 1 || seller.HierarchyRank+1 != buyer.HierarchyRank {
		return nil, fmt.Errorf("purchase order does not follow hierarchy: seller %s rank %d, buyer %s rank %d: %w",
			sellerCRN, seller.HierarchyRank, buyerCRN, buyer.HierarchyRank, ErrValidation)
	}

	key, err := domain.PurchaseOrderKey(buyerCRN, drugName)
	if err != nil {
		return nil, fmt.Errorf("purchase order for %q/%q: %w", buyerCRN, drugName, ErrValidation)
	}

	po := &domain.PurchaseOrder{
		ID:        key,
		DrugName:  drugName,
		Quantity:  quantity,
		Buyer:     buyerKey,
		Seller:    sellerKey,
		CreatedAt: time.Now().UTC(),
	}

	writes, err := stage(nil, key, po)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, "createPO", caller, writes); err != nil {
		return nil, err
	}
	return po, nil
}

// CreateShipment binds a batch of drugs to an open purchase order and hands
// custody to the transporter. The batch size must equal the order quantity
// and every serial must already be registered; any violation rejects the
// whole shipment before a single drug changes owner.
func (s *PharmaService) CreateShipment(ctx context.Context, caller, buyerCRN, drugName string, assetSerials []string, transporterCRN string) (*domain.Shipment, error) {
	if _, err := s.resolver.Resolve(caller, domain.RoleManufacturer, domain.RoleDistributor); err != nil {
		return nil, err
	}

	poKey, err := domain.PurchaseOrderKey(buyerCRN, drugName)
	if err != nil {
		return nil, fmt.Errorf("purchase order for %q/%q: %w", buyerCRN, drugName, ErrValidation)
	}
	raw, err := s.ledger.Get(ctx, poKey)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("no purchase order for buyer %s and drug %s: %w", buyerCRN, drugName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read purchase order %s/%s: %w", buyerCRN, drugName, err)
	}
	var po domain.PurchaseOrder
	if err := json.Unmarshal(raw, &po); err != nil {
		return nil, fmt.Errorf("decode purchase order %s/%s: %w", buyerCRN, drugName, err)
	}

	if len(assetSerials) != po.Quantity {
		return nil, fmt.Errorf("shipment has %d assets but purchase order expects %d: %w",
			len(assetSerials), po.Quantity, ErrValidation)
	}

	shipmentKey, err := domain.ShipmentKey(buyerCRN, drugName)
	if err != nil {
		return nil, fmt.Errorf("shipment for %q/%q: %w", buyerCRN, drugName, ErrValidation)
	}
	if raw, err := s.ledger.Get(ctx, shipmentKey); err == nil {
		var existing domain.Shipment
		if err := json.Unmarshal(raw, &existing); err != nil {
			return nil, fmt.Errorf("decode shipment %s/%s: %w", buyerCRN, drugName, err)
		}
		if existing.Status == domain.ShipmentStatusInTransit {
			return nil, fmt.Errorf("shipment for buyer %s and drug %s is already in transit: %w",
				buyerCRN, drugName, ErrState)
		}
	} else if !errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("read shipment %s/%s: %w", buyerCRN, drugName, err)
	}

	transporter, transporterKey, err := s.getCompany(ctx, transporterCRN)
	if err != nil {
		return nil, err
	}
	if transporter.Role != domain.RoleTransporter {
		return nil, fmt.Errorf("company %s has role %s, custody requires a transporter: %w",
			transporterCRN, transporter.Role, ErrValidation)
	}

	var writes []port.Write
	assetKeys := make([]string, 0, len(assetSerials))
	seen := make(map[string]bool, len(assetSerials))
	for _, serial := range assetSerials {
		if seen[serial] {
			return nil, fmt.Errorf("serial %s listed twice in shipment: %w", serial, ErrValidation)
		}
		seen[serial] = true

		drug, drugKey, err := s.getDrug(ctx, drugName, serial)
		if err != nil {
			return nil, err
		}
		drug.Owner = transporterKey
		writes, err = stage(writes, drugKey, drug)
		if err != nil {
			return nil, err
		}
		assetKeys = append(assetKeys, drugKey)
	}

	now := time.Now().UTC()
	shipment := &domain.Shipment{
		ID:          shipmentKey,
		Creator:     caller,
		Assets:      assetKeys,
		Transporter: transporterKey,
		Status:      domain.ShipmentStatusInTransit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	writes, err = stage(writes, shipmentKey, shipment)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, "createShipment", caller, writes); err != nil {
		return nil, err
	}
	return shipment, nil
}

// UpdateShipment marks an in-transit shipment delivered and transfers
// ownership of every drug in the batch to the buyer. Only the transporter
// recorded on the shipment may deliver it.
func (s *PharmaService) UpdateShipment(ctx context.Context, caller, buyerCRN, drugName, transporterCRN string) ([]domain.Drug, error) {
	if _, err := s.resolver.Resolve(caller, domain.RoleTransporter); err != nil {
		return nil, err
	}

	shipmentKey, err := domain.ShipmentKey(buyerCRN, drugName)
	if err != nil {
		return nil, fmt.Errorf("shipment for %q/%q: %w", buyerCRN, drugName, ErrValidation)
	}
	raw, err := s.ledger.Get(ctx, shipmentKey)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("no shipment for buyer %s and drug %s: %w", buyerCRN, drugName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read shipment %s/%s: %w", buyerCRN, drugName, err)
	}
	var shipment domain.Shipment
	if err := json.Unmarshal(raw, &shipment); err != nil {
		return nil, fmt.Errorf("decode shipment %s/%s: %w", buyerCRN, drugName, err)
	}

	transporterKey, err := domain.CompanyKey(transporterCRN)
	if err != nil {
		return nil, fmt.Errorf("transporter CRN %q: %w", transporterCRN, ErrValidation)
	}
	if shipment.Transporter != transporterKey {
		return nil, fmt.Errorf("transporter %s is not the recorded custodian of this shipment: %w",
			transporterCRN, ErrUnauthorized)
	}
	if shipment.Status == domain.ShipmentStatusDelivered {
		return nil, fmt.Errorf("shipment for buyer %s and drug %s is already delivered: %w",
			buyerCRN, drugName, ErrState)
	}

	buyer, buyerKey, err := s.getCompany(ctx, buyerCRN)
	if err != nil {
		return nil, err
	}
	if buyer.Role != domain.RoleDistributor && buyer.Role != domain.RoleRetailer {
		return nil, fmt.Errorf("buyer %s has role %s, deliveries go to distributors or retailers: %w",
			buyerCRN, buyer.Role, ErrValidation)
	}

	var writes []port.Write
	delivered := make([]domain.Drug, 0, len(shipment.Assets))
	for _, assetKey := range shipment.Assets {
		raw, err := s.ledger.Get(ctx, assetKey)
		if errors.Is(err, port.ErrNotFound) {
			return nil, fmt.Errorf("shipment asset %q has no drug record: %w", assetKey, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("read shipment asset %q: %w", assetKey, err)
		}
		var drug domain.Drug
		if err := json.Unmarshal(raw, &drug); err != nil {
			return nil, fmt.Errorf("decode shipment asset %q: %w", assetKey, err)
		}

		drug.Shipment = shipmentKey
		drug.Owner = buyerKey
		writes, err = stage(writes, assetKey, &drug)
		if err != nil {
			return nil, err
		}
		delivered = append(delivered, drug)
	}

	shipment.Status = domain.ShipmentStatusDelivered
	shipment.UpdatedAt = time.Now().UTC()
	writes, err = stage(writes, shipmentKey, &shipment)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, "updateShipment", caller, writes); err != nil {
		return nil, err
	}
	return delivered, nil
}

// RetailDrug transfers a drug from the retailer that owns it to a consumer
// identifier. This is the terminal transition for the record.
func (s *PharmaService) RetailDrug(ctx context.Context, caller, drugName, serialNo, retailerCRN, customerAadhar string) (*domain.Drug, error) {
	if _, err := s.resolver.Resolve(caller, domain.RoleRetailer); err != nil {
		return nil, err
	}

	if customerAadhar == "" {
		return nil, fmt.Errorf("customer identifier is required: %w", ErrValidation)
	}

	retailer, retailerKey, err := s.getCompany(ctx, retailerCRN)
	if err != nil {
		return nil, err
	}
	if retailer.Role != domain.RoleRetailer {
		return nil, fmt.Errorf("company %s has role %s, only a retailer can sell to a consumer: %w",
			retailerCRN, retailer.Role, ErrValidation)
	}

	drug, drugKey, err := s.getDrug(ctx, drugName, serialNo)
	if err != nil {
		return nil, err
	}
	if drug.Owner != retailerKey {
		return nil, fmt.Errorf("retailer %s does not own drug %s serial %s, only the owner may sell it: %w",
			retailerCRN, drugName, serialNo, ErrUnauthorized)
	}

	drug.Owner = customerAadhar

	writes, err := stage(nil, drugKey, drug)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, "retailDrug", caller, writes); err != nil {
		return nil, err
	}
	return drug, nil
}

// HistoryRecord is one entry of a drug's version history. Value holds the
// decoded Drug when the stored bytes parse, otherwise the raw text, so a
// legacy or malformed version never aborts the whole query.
type HistoryRecord struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"isDelete"`
	Value     any       `json:"value"`
}

// ViewHistory returns every committed version of a drug, oldest first. No
// role restriction applies.
func (s *PharmaService) ViewHistory(ctx context.Context, drugName, serialNo string) ([]HistoryRecord, error) {
	key, err := domain.DrugKey(drugName, serialNo)
	if err != nil {
		return nil, fmt.Errorf("drug %q serial %q: %w", drugName, serialNo, ErrValidation)
	}

	cursor, err := s.ledger.History(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("history of drug %s/%s: %w", drugName, serialNo, err)
	}
	defer cursor.Close()

	var records []HistoryRecord
	for cursor.Next() {
		entry := cursor.Entry()
		record := HistoryRecord{
			TxID:      entry.TxID,
			Timestamp: entry.Timestamp,
			IsDelete:  entry.IsDelete,
		}

		var drug domain.Drug
		if err := json.Unmarshal(entry.Value, &drug); err == nil {
			record.Value = drug
		} else {
			record.Value = string(entry.Value)
		}
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("history of drug %s/%s: %w", drugName, serialNo, err)
	}
	return records, nil
}

// ViewDrugCurrentState returns the latest Drug snapshot, consulting the
// cache first. No role restriction applies.
func (s *PharmaService) ViewDrugCurrentState(ctx context.Context, drugName, serialNo string) (*domain.Drug, error) {
	key, err := domain.DrugKey(drugName, serialNo)
	if err != nil {
		return nil, fmt.Errorf("drug %q serial %q: %w", drugName, serialNo, ErrValidation)
	}

	if raw, err := s.cache.GetSnapshot(ctx, key); err == nil {
		var drug domain.Drug
		if err := json.Unmarshal(raw, &drug); err == nil {
			return &drug, nil
		}
		// Undecodable snapshot: fall through to the ledger.
	}

	raw, err := s.ledger.Get(ctx, key)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("drug %s serial %s is not registered: %w", drugName, serialNo, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read drug %s/%s: %w", drugName, serialNo, err)
	}

	var drug domain.Drug
	if err := json.Unmarshal(raw, &drug); err != nil {
		return nil, fmt.Errorf("decode drug %s/%s: %w", drugName, serialNo, err)
	}

	// Best effort: a failed fill only costs the next reader a ledger read.
	_ = s.cache.SetSnapshot(ctx, key, raw)

	return &drug, nil
}

func (s *PharmaService) getCompany(ctx context.Context, crn string) (*domain.Company, string, error) {
	key, err := domain.CompanyKey(crn)
	if err != nil {
		return nil, "", fmt.Errorf("company CRN %q: %w", crn, ErrValidation)
	}
	raw, err := s.ledger.Get(ctx, key)
	if errors.Is(err, port.ErrNotFound) {
		return nil, "", fmt.Errorf("company %s is not registered: %w", crn, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read company %s: %w", crn, err)
	}
	var company domain.Company
	if err := json.Unmarshal(raw, &company); err != nil {
		return nil, "", fmt.Errorf("decode company %s: %w", crn, err)
	}
	return &company, key, nil
}

func (s *PharmaService) getDrug(ctx context.Context, name, serialNo string) (*domain.Drug, string, error) {
	key, err := domain.DrugKey(name, serialNo)
	if err != nil {
		return nil, "", fmt.Errorf("drug %q serial %q: %w", name, serialNo, ErrValidation)
	}
	raw, err := s.ledger.Get(ctx, key)
	if errors.Is(err, port.ErrNotFound) {
		return nil, "", fmt.Errorf("drug %s serial %s is not registered: %w", name, serialNo, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read drug %s/%s: %w", name, serialNo, err)
	}
	var drug domain.Drug
	if err := json.Unmarshal(raw, &drug); err != nil {
		return nil, "", fmt.Errorf("decode drug %s/%s: %w", name, serialNo, err)
	}
	return &drug, key, nil
}

// stage appends a marshalled record to the pending write set.
func stage(writes []port.Write, key string, record any) ([]port.Write, error) {
	value, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record %q: %w", key, err)
	}
	return append(writes, port.Write{Key: key, Value: value}), nil
}

// commit flushes the staged writes as one atomic batch, drops stale
// snapshots and emits the transaction event.
func (s *PharmaService) commit(ctx context.Context, function, caller string, writes []port.Write) error {
	txID := uuid.NewString()
	if err := s.ledger.PutBatch(ctx, txID, writes); err != nil {
		return fmt.Errorf("%s: commit batch: %w", function, err)
	}

	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = w.Key
	}

	// The batch is already durable; if invalidation fails the snapshot TTL
	// bounds the staleness.
	_ = s.cache.Invalidate(ctx, keys...)

	s.events <- domain.TxEvent{
		TxID:      txID,
		Function:  function,
		Caller:    caller,
		Keys:      keys,
		Timestamp: time.Now().UTC(),
	}
	return nil
}
