package wbapi

import "strconv"

// Sale is one record of /api/v1/supplier/sales. Each record is one unit
// unless the payload carries an explicit quantity.
type Sale struct {
	NmID            int64   `json:"nmId"`
	WarehouseName   string  `json:"warehouseName"`
	TechSize        string  `json:"techSize"`
	Barcode         string  `json:"barcode"`
	Brand           string  `json:"brand"`
	Subject         string  `json:"subject"`
	SupplierArticle string  `json:"supplierArticle"`
	TotalPrice      float64 `json:"totalPrice"`
	Quantity        *int    `json:"quantity,omitempty"`
	IsRealization   *bool   `json:"isRealization,omitempty"`
}

// Units returns the number of items the record stands for.
func (s Sale) Units() int {
	if s.Quantity != nil {
		return *s.Quantity
	}
	return 1
}

// BoughtOut reports whether the sale counts as a buyout. Records without the
// flag are buyouts.
func (s Sale) BoughtOut() bool {
	return s.IsRealization == nil || *s.IsRealization
}

// StockWarehouse is a per-warehouse stock entry.
type StockWarehouse struct {
	WarehouseName string `json:"warehouseName"`
	Quantity      int    `json:"quantity"`
}

// Stock is one record of /api/v1/supplier/stocks. Newer payloads nest the
// quantities under Warehouses.
type Stock struct {
	NmID            int64            `json:"nmId"`
	WarehouseName   string           `json:"warehouseName"`
	TechSize        string           `json:"techSize"`
	Barcode         string           `json:"barcode"`
	Brand           string           `json:"brand"`
	Subject         string           `json:"subject"`
	SupplierArticle string           `json:"supplierArticle"`
	Quantity        int              `json:"quantity"`
	Warehouses      []StockWarehouse `json:"warehouses,omitempty"`
}

// CardSize is a size variant of a product card.
type CardSize struct {
	TechSize string   `json:"techSize"`
	Barcode  string   `json:"barcode"`
	Skus     []string `json:"skus"`
}

// Card is a product card from the content API.
type Card struct {
	NmID            int64      `json:"nmID"`
	Brand           string     `json:"brand"`
	Subject         string     `json:"subject"`
	SubjectName     string     `json:"subjectName"`
	Season          string     `json:"season"`
	Collection      string     `json:"collection"`
	ImtName         string     `json:"imtName"`
	Title           string     `json:"title"`
	SupplierArticle string     `json:"supplierArticle"`
	VendorCode      string     `json:"vendorCode"`
	Sizes           []CardSize `json:"sizes"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Name is the product name.
func (c Card) Name() string { return firstNonEmpty(c.ImtName, c.Title) }

// SubjectOf is the product type.
func (c Card) SubjectOf() string { return firstNonEmpty(c.Subject, c.SubjectName) }

// Article is the supplier's own SKU.
func (c Card) Article() string { return firstNonEmpty(c.SupplierArticle, c.VendorCode) }

// BarcodeFor returns the barcode of the given size variant.
func (c Card) BarcodeFor(size string) string {
	for _, s := range c.Sizes {
		if s.TechSize != size {
			continue
		}
		if s.Barcode != "" {
			return s.Barcode
		}
		if len(s.Skus) > 0 {
			return s.Skus[0]
		}
	}
	return ""
}

// DetailRow is one line of reportDetailByPeriod, used when the sales
// endpoint has nothing for the date.
type DetailRow struct {
	NmID          int64   `json:"nm_id"`
	TechSize      string  `json:"ts_name"`
	OfficeName    string  `json:"office_name"`
	Barcode       string  `json:"barcode"`
	BrandName     string  `json:"brand_name"`
	SubjectName   string  `json:"subject_name"`
	SupplierArt   string  `json:"sa_name"`
	Quantity      int     `json:"quantity"`
	RetailAmount  float64 `json:"retail_amount"`
	DocTypeName   string  `json:"doc_type_name"`
	SupplierOperN string  `json:"supplier_oper_name"`
}

// ToSale maps a detail line onto a sale. Only "Продажа" lines are buyouts.
func (d DetailRow) ToSale() Sale {
	q := d.Quantity
	realized := d.DocTypeName == "Продажа" || d.SupplierOperN == "Продажа"
	return Sale{
		NmID:            d.NmID,
		WarehouseName:   d.OfficeName,
		TechSize:        d.TechSize,
		Barcode:         d.Barcode,
		Brand:           d.BrandName,
		Subject:         d.SubjectName,
		SupplierArticle: d.SupplierArt,
		TotalPrice:      d.RetailAmount,
		Quantity:        &q,
		IsRealization:   &realized,
	}
}

// Row is a report line in canonical column order.
type Row struct {
	Brand           string
	Subject         string
	Season          string
	Collection      string
	Name            string
	SupplierArticle string
	NmID            int64
	Barcode         string
	Size            string
	Contract        string
	Warehouse       string
	OrderedQty      int
	OrderedCost     float64
	BoughtQty       int
	BoughtSum       float64
	Stock           int
}

// Values returns the cells of the row, A through P.
func (r Row) Values() []interface{} {
	return []interface{}{
		r.Brand, r.Subject, r.Season, r.Collection, r.Name, r.SupplierArticle,
		strconv.FormatInt(r.NmID, 10), r.Barcode, r.Size, r.Contract, r.Warehouse,
		r.OrderedQty, r.OrderedCost, r.BoughtQty, r.BoughtSum, r.Stock,
	}
}
