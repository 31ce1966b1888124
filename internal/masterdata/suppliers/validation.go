package suppliers

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

func (s *Service) validate(sup Supplier) error {
	if strings.TrimSpace(sup.Code) == "" {
		return fmt.Errorf("%w: supplier code", shared.ErrRequiredField)
	}
	if strings.TrimSpace(sup.Name) == "" {
		return fmt.Errorf("%w: supplier name", shared.ErrRequiredField)
	}
	if sup.LeadTimeDays < 0 {
		return fmt.Errorf("%w: lead time days must not be negative", shared.ErrValidation)
	}
	if sup.DefaultCurrency != "" {
		if _, err := currency.ParseISO(sup.DefaultCurrency); err != nil {
			return fmt.Errorf("%w: unknown currency %q", shared.ErrValidation, sup.DefaultCurrency)
		}
	}
	return nil
}
