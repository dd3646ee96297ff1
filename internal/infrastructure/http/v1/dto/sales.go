package dto

import (
	"github.com/shopspring/decimal"

	"produceledger/internal/core/id"
	"produceledger/internal/domain/documents/sales"
)

type SalesLineRequest struct {
	ProductID   id.ID           `json:"productId" binding:"required"`
	GrossWeight decimal.Decimal `json:"grossWeight"`
	Discount    decimal.Decimal `json:"discount"`
	Rotten      decimal.Decimal `json:"rotten"`
	Price       decimal.Decimal `json:"price"`
	SalesLotID  *id.ID          `json:"salesLotId"`
}

func (r SalesLineRequest) ToInput() sales.LineInput {
	return sales.LineInput{
		ProductID:   r.ProductID,
		GrossWeight: r.GrossWeight,
		Discount:    r.Discount,
		Rotten:      r.Rotten,
		Price:       r.Price,
		SalesLotID:  r.SalesLotID,
	}
}

type SalesHeaderRequest struct {
	CustomerID               id.ID               `json:"customerId" binding:"required"`
	Date                     Date                `json:"date"`
	VehicleNumber            string              `json:"vehicleNumber" binding:"max=50"`
	GrossVehicleWeight       decimal.NullDecimal `json:"grossVehicleWeight"`
	Reference                string              `json:"reference" binding:"max=200"`
	NoOfCrates               decimal.Decimal     `json:"noOfCrates"`
	CostPerCrate             decimal.Decimal     `json:"costPerCrate"`
	PurchasedCratesQuantity  decimal.Decimal     `json:"purchasedCratesQuantity"`
	PurchasedCratesUnitPrice decimal.Decimal     `json:"purchasedCratesUnitPrice"`
	Version                  int                 `json:"version" binding:"min=0"`
}

func (r SalesHeaderRequest) ToInput() sales.HeaderInput {
	return sales.HeaderInput{
		CustomerID:               r.CustomerID,
		Date:                     r.Date.Time,
		VehicleNumber:            r.VehicleNumber,
		GrossVehicleWeight:       r.GrossVehicleWeight,
		Reference:                r.Reference,
		NoOfCrates:               r.NoOfCrates,
		CostPerCrate:             r.CostPerCrate,
		PurchasedCratesQuantity:  r.PurchasedCratesQuantity,
		PurchasedCratesUnitPrice: r.PurchasedCratesUnitPrice,
		Version:                  r.Version,
	}
}

type CreateSalesRequest struct {
	SalesHeaderRequest
	Lines []SalesLineRequest `json:"lines" binding:"max=500,dive"`
}

func (r CreateSalesRequest) ToInput() sales.CreateInput {
	in := sales.CreateInput{
		HeaderInput: r.SalesHeaderRequest.ToInput(),
		Lines:       make([]sales.LineInput, len(r.Lines)),
	}
	for i, l := range r.Lines {
		in.Lines[i] = l.ToInput()
	}
	return in
}

// SalesListQuery adds sales filters to the common list query.
type SalesListQuery struct {
	ListQuery
	CustomerID string `form:"customerId" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=draft finalized"`
}

func (q SalesListQuery) ToFilter() sales.ListFilter {
	f := sales.ListFilter{ListFilter: q.ListQuery.ToFilter()}
	if cid, err := id.Parse(q.CustomerID); err == nil {
		f.CustomerID = &cid
	}
	if q.Status != "" {
		st := sales.Status(q.Status)
		f.Status = &st
	}
	return f
}

// AllocationRequest draws quantity from a purchase lot.
type AllocationRequest struct {
	PurchaseInvoiceID id.ID           `json:"purchaseInvoiceId" binding:"required"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// AllocationUpdateRequest changes an allocation's quantity.
type AllocationUpdateRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}
