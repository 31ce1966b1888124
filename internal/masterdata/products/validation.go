package products

import (
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: product SKU", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name", shared.ErrRequiredField)
	}
	if p.UnitID <= 0 {
		return fmt.Errorf("%w: default unit", shared.ErrRequiredField)
	}
	if p.Price.IsNegative() || p.Cost.IsNegative() {
		return fmt.Errorf("%w: price and cost must not be negative", shared.ErrValidation)
	}
	return nil
}
