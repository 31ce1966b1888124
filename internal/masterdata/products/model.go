package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product master record.
type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CategoryID  *int64          `json:"category_id"`
	UnitID      int64           `json:"unit_id"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PriceHistoryEntry records a past price of a product. A row is appended
// whenever an update changes the price.
type PriceHistoryEntry struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
	ChangedBy int64           `json:"changed_by"`
	ChangedAt time.Time       `json:"changed_at"`
}

// SearchResult is the trimmed shape returned to the purchase order form
// autocomplete.
type SearchResult struct {
	ID    int64           `json:"id"`
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
