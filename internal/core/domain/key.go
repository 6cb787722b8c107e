package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Ledger namespaces. Every record key starts with one of these.
const (
	NamespaceCompany       = "company"
	NamespacePurchaseOrder = "purchaseOrder"
	NamespaceDrug          = "drug"
	NamespaceShipment      = "shipment"
)

// keyDelimiter separates the namespace and parts of a composite key. A
// control byte can never appear in a CRN, drug name or serial number, so
// keys decompose unambiguously.
const keyDelimiter = "\x00"

var ErrInvalidKeyPart = errors.New("invalid key part")

// MakeKey builds a composite ledger key from a namespace and ordered parts.
// Parts must be non-empty and must not contain the delimiter byte.
func MakeKey(namespace string, parts ...string) (string, error) {
	if namespace == "" || strings.Contains(namespace, keyDelimiter) {
		return "", fmt.Errorf("%w: bad namespace %q", ErrInvalidKeyPart, namespace)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no parts for namespace %q", ErrInvalidKeyPart, namespace)
	}
	for _, p := range parts {
		if p == "" || strings.Contains(p, keyDelimiter) {
			return "", fmt.Errorf("%w: %q", ErrInvalidKeyPart, p)
		}
	}
	return namespace + keyDelimiter + strings.Join(parts, keyDelimiter), nil
}

func CompanyKey(crn string) (string, error) {
	return MakeKey(NamespaceCompany, crn)
}

func DrugKey(name, serialNo string) (string, error) {
	return MakeKey(NamespaceDrug, name, serialNo)
}

func PurchaseOrderKey(buyerCRN, drugName string) (string, error) {
	return MakeKey(NamespacePurchaseOrder, buyerCRN, drugName)
}

func ShipmentKey(buyerCRN, drugName string) (string, error) {
	return MakeKey(NamespaceShipment, buyerCRN, drugName)
}
