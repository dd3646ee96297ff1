package dto

import (
	"github.com/shopspring/decimal"

	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/catalogs/vendor"
)

// --- Vendor ---

type VendorRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Contact string `json:"contact" binding:"max=20"`
	Area    string `json:"area" binding:"max=100"`
	Version int    `json:"version" binding:"min=0"`
}

func (r VendorRequest) ToVendor() *vendor.Vendor {
	v := vendor.NewVendor(r.Name)
	v.Contact = r.Contact
	v.Area = r.Area
	return v
}

func (r VendorRequest) Apply(v *vendor.Vendor) *vendor.Vendor {
	v.Name = r.Name
	v.Contact = r.Contact
	v.Area = r.Area
	applyVersion(&v.Version, r.Version)
	return v
}

// --- Customer ---

type CustomerRequest struct {
	Name        string          `json:"name" binding:"required,max=100"`
	Contact     string          `json:"contact" binding:"max=15"`
	Address     string          `json:"address"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
	Version     int             `json:"version" binding:"min=0"`
}

func (r CustomerRequest) ToCustomer() *customer.Customer {
	c := customer.NewCustomer(r.Name)
	c.Contact = r.Contact
	c.Address = r.Address
	c.CreditLimit = r.CreditLimit
	return c
}

func (r CustomerRequest) Apply(c *customer.Customer) *customer.Customer {
	c.Name = r.Name
	c.Contact = r.Contact
	c.Address = r.Address
	c.CreditLimit = r.CreditLimit
	applyVersion(&c.Version, r.Version)
	return c
}

// --- Product ---

type ProductRequest struct {
	Name            string `json:"name" binding:"required,max=100"`
	IsWasteCategory bool   `json:"isWasteCategory"`
	Version         int    `json:"version" binding:"min=0"`
}

func (r ProductRequest) ToProduct() *product.Product {
	return product.NewProduct(r.Name, r.IsWasteCategory)
}

func (r ProductRequest) Apply(p *product.Product) *product.Product {
	p.Name = r.Name
	p.IsWasteCategory = r.IsWasteCategory
	applyVersion(&p.Version, r.Version)
	return p
}

// applyVersion replaces the loaded version with the client's so the
// repository's optimistic lock compares against what the client saw.
func applyVersion(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
