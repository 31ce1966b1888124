package rbac

// Permission represents an atomic capability, named "area.action".
type Permission struct {
	ID          int64
	Name        string
	Description string
}
