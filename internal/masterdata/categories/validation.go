package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

// validate checks the category fields and rejects parent assignments that
// would point a category at itself or at one of its own descendants.
func (s *Service) validate(ctx context.Context, id int64, c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name", shared.ErrRequiredField)
	}
	if c.ParentID == nil {
		return nil
	}
	if id != 0 && *c.ParentID == id {
		return fmt.Errorf("%w: category cannot be its own parent", shared.ErrValidation)
	}
	parent, err := s.repo.Get(ctx, *c.ParentID)
	if err != nil {
		return fmt.Errorf("%w: parent category", shared.ErrNotFound)
	}
	if id != 0 {
		// Walk up from the new parent; hitting the edited category means
		// the assignment would close a cycle.
		for parent.ParentID != nil {
			if *parent.ParentID == id {
				return fmt.Errorf("%w: parent assignment would create a cycle", shared.ErrValidation)
			}
			parent, err = s.repo.Get(ctx, *parent.ParentID)
			if err != nil {
				break
			}
		}
	}
	return nil
}
