package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrIntegrity marks a price list that cannot price a configuration it should cover.
	ErrIntegrity = errors.New("price list integrity violation")
	// ErrInvalidInput is returned for form state outside the product bounds.
	ErrInvalidInput = errors.New("invalid configuration input")
	// ErrProductUnavailable is returned when the price list has no products.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrUnsupportedPurchaseType is returned when a purchase type does not apply to the pricing type.
	ErrUnsupportedPurchaseType = errors.New("purchase type not supported for pricing type")
	// ErrUnknownAppliance is returned when the selected appliance is not in the catalogue.
	ErrUnknownAppliance = errors.New("unknown appliance")
	// ErrNoWarranty is returned when a warranty extension is requested for an appliance without one.
	ErrNoWarranty = errors.New("appliance has no warranty extension")
)

// IntegrityError describes a failed unit-band or extension resolution.
type IntegrityError struct {
	Op          string
	Years       decimal.Decimal
	Units       int
	MissingKeys []string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: no price band for %d units over %s years", e.Op, e.Units, e.Years.String())
	if len(e.MissingKeys) > 0 {
		msg += fmt.Sprintf(" (missing extensions: %s)", strings.Join(e.MissingKeys, ", "))
	}
	return msg
}

// Is lets errors.Is match IntegrityError against ErrIntegrity.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
