package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lazypower/visarea/internal/store"
)

var validate = validator.New()

// validateLocation rejects locations that cannot be placed on a timeline.
// It never touches the tail cache.
func validateLocation(loc *store.Location) error {
	if loc == nil {
		return fmt.Errorf("%w: nil location", ErrMalformedLocation)
	}
	err := validate.Struct(loc)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrMalformedLocation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: location %q: %s", ErrMalformedLocation, loc.ID, strings.Join(fields, ", "))
}
