package suppliers

import "time"

// Supplier represents a supplier master record. DefaultCurrency, PaymentTerms
// and LeadTimeDays seed new purchase orders for the supplier.
type Supplier struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	ContactName     string    `json:"contact_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Address         string    `json:"address"`
	City            string    `json:"city"`
	Country         string    `json:"country"`
	TaxID           string    `json:"tax_id"`
	DefaultCurrency string    `json:"default_currency"`
	PaymentTerms    string    `json:"payment_terms"`
	LeadTimeDays    int       `json:"lead_time_days"`
	IsActive        bool      `json:"is_active"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Metric is the derived delivery performance snapshot for a supplier,
// recomputed by the background worker.
type Metric struct {
	SupplierID       int64     `json:"supplier_id"`
	OrdersTotal      int       `json:"orders_total"`
	OrdersOnTime     int       `json:"orders_on_time"`
	OnTimePercentage float64   `json:"on_time_percentage"`
	CalculatedAt     time.Time `json:"calculated_at"`
}
