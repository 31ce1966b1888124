package units

import (
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

func (s *Service) validate(u Unit) error {
	if strings.TrimSpace(u.Code) == "" {
		return fmt.Errorf("%w: unit code", shared.ErrRequiredField)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: unit name", shared.ErrRequiredField)
	}
	return nil
}
