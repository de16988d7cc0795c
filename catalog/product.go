package catalog

import "fmt"

// product kinds as stored in the catalog table
const (
	TypeSimple    = "simple"
	TypeVariable  = "variable"
	TypeVariation = "variation"
)

// StatusPublish only published products are exported
const StatusPublish = "publish"

// Product one catalog item as materialized from the store database
type Product struct {
	ID          int64
	ParentID    int64
	Type        string
	Status      string
	SKU         string
	Title       string
	Description string
	Price       float64
	Currency    string
	StockQty    int
	Visible     bool
	Permalink   string
	ImageURL    string
}

// ItemKey stable identifier used when a skipped item is logged
func (p *Product) ItemKey() string {
	return fmt.Sprintf("product:%d", p.ID)
}
