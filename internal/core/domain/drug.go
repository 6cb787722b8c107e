package domain

import "time"

// Drug is one physical unit identified by (name, serial number). Owner
// tracks custody through the workflow: the manufacturer at creation, a
// transporter while in transit, the buying company after delivery, and
// finally an opaque consumer identifier once sold. A consumer identifier is
// the terminal state; no transaction moves ownership off it.
type Drug struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer"`
	MfgDate      string    `json:"mfgDate"`
	ExpDate      string    `json:"expDate"`
	Owner        string    `json:"owner"`
	Shipment     string    `json:"shipment"`
	CreatedAt    time.Time `json:"createdAt"`
}
