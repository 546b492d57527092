package models

import "errors"

type ProductType string

const (
	ProductTypeMenu    ProductType = "menu"
	ProductTypeKitchen ProductType = "kitchen"
	ProductTypeRaw     ProductType = "raw"
)

func (t *ProductType) Parse(str string) error {
	switch str {
	case "menu":
		*t = ProductTypeMenu
	case "kitchen":
		*t = ProductTypeKitchen
	case "raw":
		*t = ProductTypeRaw
	default:
		return errors.New("invalid product type")
	}
	return nil
}

type OutletType string

const (
	OutletTypeProduction OutletType = "production"
	OutletTypeSales      OutletType = "sales"
)

func (t *OutletType) Parse(str string) error {
	switch str {
	case "production":
		*t = OutletTypeProduction
	case "sales":
		*t = OutletTypeSales
	default:
		return errors.New("invalid outlet type")
	}
	return nil
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
)

// SyncReferenceType tags outbox records with the mutated record kind so
// downstream sync consumers can route them.
type SyncReferenceType string

const (
	SyncReferenceTypeStockCheck            SyncReferenceType = "SC"
	SyncReferenceTypeInventoryStock        SyncReferenceType = "IS"
	SyncReferenceTypeSalesDeduction        SyncReferenceType = "SD"
	SyncReferenceTypeReconciliationHistory SyncReferenceType = "RH"
	SyncReferenceTypeProductRequest        SyncReferenceType = "PR"
)

type SyncAction string

const (
	SyncActionCreate SyncAction = "C"
	SyncActionUpdate SyncAction = "U"
	SyncActionDelete SyncAction = "D"
)
