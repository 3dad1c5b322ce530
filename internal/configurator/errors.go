package configurator

import (
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-licence/internal/catalog"
	"github.com/noah-isme/backend-licence/internal/common"
	"github.com/noah-isme/backend-licence/internal/configstore"
	"github.com/noah-isme/backend-licence/internal/pricing"
)

// ValidationError wraps payload validation failures.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Fields lists the failing fields and their rules.
func (e *ValidationError) Fields() map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(e.Err, &verrs) {
		for _, fe := range verrs {
			out[lowerFirst(fe.Field())] = fe.Tag()
		}
	}
	return out
}

// ToAppError maps domain errors onto HTTP error responses. Failures never
// carry a price.
func ToAppError(err error) *common.AppError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &common.AppError{Code: "VALIDATION_ERROR", Message: "invalid request", HTTPStatus: http.StatusBadRequest, Err: err, Details: verr.Fields()}
	}
	var versioning *configstore.VersioningError
	if errors.As(err, &versioning) {
		return &common.AppError{
			Code:       "CONFIGURATION_EXPIRED",
			Message:    "this configuration is outdated",
			HTTPStatus: http.StatusGone,
			Err:        err,
			Details:    map[string]any{"stored": versioning.Stored, "required": versioning.Required},
		}
	}
	switch {
	case errors.Is(err, pricing.ErrIntegrity):
		return &common.AppError{Code: "PRICE_UNAVAILABLE", Message: "a price could not be determined for this configuration", HTTPStatus: http.StatusInternalServerError, Err: err}
	case errors.Is(err, configstore.ErrNotFound):
		return &common.AppError{Code: "NOT_FOUND", Message: "configuration not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, pricing.ErrProductUnavailable):
		return &common.AppError{Code: "PRODUCT_UNAVAILABLE", Message: "product is not available", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, pricing.ErrUnsupportedPurchaseType):
		return &common.AppError{Code: "UNSUPPORTED_PURCHASE_TYPE", Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, pricing.ErrUnknownAppliance):
		return &common.AppError{Code: "UNKNOWN_APPLIANCE", Message: "appliance not found", HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, pricing.ErrNoWarranty):
		return &common.AppError{Code: "NO_WARRANTY", Message: "appliance has no warranty extension", HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, pricing.ErrInvalidInput):
		return &common.AppError{Code: "INVALID_CONFIGURATION", Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, ErrNothingConfigured), errors.Is(err, configstore.ErrEmptyGroup):
		return &common.AppError{Code: "INVALID_CONFIGURATION", Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, catalog.ErrFamilyRequired):
		return &common.AppError{Code: "INVALID_FAMILY", Message: "product family is required", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	return &common.AppError{Code: "INTERNAL", Message: "internal error", HTTPStatus: http.StatusInternalServerError, Err: err}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
