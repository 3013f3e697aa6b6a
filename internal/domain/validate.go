package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var ErrDuplicateEndpoint = errors.New("duplicate endpoint id")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a single spec. Call ApplyDefaults first.
func (e EndpointSpec) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("endpoint %q: field %s failed %q", e.ID, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("endpoint %q: %w", e.ID, err)
	}
	return nil
}

// ValidateSnapshot splits a configuration snapshot into usable specs and per-entry problems.
// A repeated id makes the whole snapshot unusable and is returned as err.
func ValidateSnapshot(specs []EndpointSpec) (valid []EndpointSpec, invalid []error, err error) {
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if s.ID == "" {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateEndpoint, s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	valid = make([]EndpointSpec, 0, len(specs))
	for _, s := range specs {
		if vErr := s.Validate(); vErr != nil {
			invalid = append(invalid, vErr)
			continue
		}
		valid = append(valid, s)
	}
	return valid, invalid, nil
}
