package categories

// Category represents a product category. Categories form a tree through
// ParentID; a nil parent marks a root.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
	IsActive    bool   `json:"is_active"`
}
