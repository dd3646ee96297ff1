package catalog_repo

import (
	"produceledger/internal/domain/catalogs/vendor"
	"produceledger/internal/infrastructure/storage/postgres"
)

const vendorTable = "cat_vendors"

// VendorRepo implements vendor.Repository.
type VendorRepo struct {
	*BaseCatalogRepo[*vendor.Vendor]
}

var _ vendor.Repository = (*VendorRepo)(nil)

func NewVendorRepo() *VendorRepo {
	return &VendorRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			vendorTable, "vendor",
			postgres.ExtractDBColumns[vendor.Vendor](),
			func() *vendor.Vendor { return &vendor.Vendor{} },
		),
	}
}
