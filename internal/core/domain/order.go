package domain

import "time"

type ShipmentStatus string

const (
	ShipmentStatusInTransit ShipmentStatus = "in-transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
)

// PurchaseOrder records intent to buy, keyed by (buyerCRN, drugName). A
// later order for the same pair supersedes the earlier one as a new version
// of the same key.
type PurchaseOrder struct {
	ID        string    `json:"id"`
	DrugName  string    `json:"drugName"`
	Quantity  int       `json:"quantity"`
	Buyer     string    `json:"buyer"`
	Seller    string    `json:"seller"`
	CreatedAt time.Time `json:"createdAt"`
}

// Shipment binds a batch of drugs to a purchase order and a transporter.
// Status only moves forward: in-transit, then delivered.
type Shipment struct {
	ID          string         `json:"id"`
	Creator     string         `json:"creator"`
	Assets      []string       `json:"assets"`
	Transporter string         `json:"transporter"`
	Status      ShipmentStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
