// Package configurator turns purchase requests into priced, persisted
// configurations and quotes.
package configurator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-licence/internal/configstore"
	"github.com/noah-isme/backend-licence/internal/obs"
	"github.com/noah-isme/backend-licence/internal/pricelist"
	"github.com/noah-isme/backend-licence/internal/pricing"
)

// ErrNothingConfigured is returned when saving a configuration with no SKUs.
var ErrNothingConfigured = errors.New("configuration has nothing to purchase")

// PriceLists provides built price lists.
type PriceLists interface {
	PriceList(ctx context.Context, family, option string) (pricelist.PriceList, error)
	ApplianceList(ctx context.Context, family string) (pricelist.ApplianceList, error)
}

// Store persists configurations and quote groups.
type Store interface {
	Save(ctx context.Context, res pricing.Result) (string, error)
	Get(ctx context.Context, key string) (pricing.Result, error)
	SaveGroup(ctx context.Context, keys []string) (string, error)
	GetGroup(ctx context.Context, id string) (configstore.Group, error)
}

// Request is a purchase intent as submitted by a client.
type Request struct {
	Family            string           `json:"family" validate:"required,max=64"`
	Option            string           `json:"option,omitempty" validate:"max=64"`
	PricingType       string           `json:"pricingType,omitempty" validate:"omitempty,oneof=unit appliance"`
	PurchaseType      string           `json:"purchaseType,omitempty" validate:"omitempty,oneof=renewal new add-units add-extension spare-hardware warranty-extension"`
	ExistingUnits     int              `json:"existingUnits" validate:"gte=0"`
	UnitsChange       int              `json:"unitsChange"`
	Years             *decimal.Decimal `json:"years,omitempty"`
	MonthsRemaining   *int             `json:"monthsRemaining,omitempty" validate:"omitempty,gte=0,lte=1200"`
	ExtensionKeys     []string         `json:"extensionKeys,omitempty" validate:"max=32,dive,required,max=128"`
	ApplianceID       string           `json:"applianceId,omitempty" validate:"max=64"`
	Quantity          int              `json:"quantity" validate:"gte=0,lte=10000"`
	WarrantyExtension bool             `json:"warrantyExtension,omitempty"`
	Licence           string           `json:"licence,omitempty" validate:"max=128"`
}

// Preview is a clamped form state with its computed configuration.
type Preview struct {
	Form          pricing.FormState `json:"form"`
	Configuration pricing.Result    `json:"configuration"`
}

// Saved is a persisted configuration and its key.
type Saved struct {
	Key           string         `json:"key"`
	Configuration pricing.Result `json:"configuration"`
}

// Service is the configurator application service.
type Service struct {
	lists     PriceLists
	store     Store
	processor *pricing.Processor
	validate  *validator.Validate
	log       zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	PriceLists PriceLists
	Store      Store
	Processor  *pricing.Processor
	Logger     zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.PriceLists == nil {
		return nil, errors.New("configurator: price lists are required")
	}
	if cfg.Store == nil {
		return nil, errors.New("configurator: store is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("configurator: processor is required")
	}
	return &Service{
		lists:     cfg.PriceLists,
		store:     cfg.Store,
		processor: cfg.Processor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       cfg.Logger,
	}, nil
}

// Preview clamps the request into the product bounds and prices it without
// persisting anything.
func (s *Service) Preview(ctx context.Context, req Request) (Preview, error) {
	pricingType, form, err := s.parse(req)
	if err != nil {
		return Preview{}, err
	}
	if pricingType == pricing.PricingAppliance {
		list, err := s.lists.ApplianceList(ctx, req.Family)
		if err != nil {
			return Preview{}, err
		}
		res, err := s.observe(pricingType, form, func() (pricing.Result, error) {
			return s.processor.ProcessAppliance(list, form)
		})
		if err != nil {
			return Preview{}, err
		}
		return Preview{Form: form, Configuration: res}, nil
	}

	list, err := s.lists.PriceList(ctx, req.Family, req.Option)
	if err != nil {
		return Preview{}, err
	}
	if !list.Available() {
		return Preview{}, pricing.ErrProductUnavailable
	}
	clamped := pricing.Clamp(list, form)
	res, err := s.observe(pricingType, clamped, func() (pricing.Result, error) {
		return s.processor.Process(list, clamped)
	})
	if err != nil {
		return Preview{}, err
	}
	return Preview{Form: clamped, Configuration: res}, nil
}

// Save validates the request against the product bounds, prices it and
// persists the result.
func (s *Service) Save(ctx context.Context, req Request) (Saved, error) {
	res, err := s.compute(ctx, req)
	if err != nil {
		return Saved{}, err
	}
	if res.Empty() {
		return Saved{}, ErrNothingConfigured
	}
	key, err := s.store.Save(ctx, res)
	if err != nil {
		return Saved{}, err
	}
	s.log.Info().Str("key", key).Str("family", res.Inputs.Family).Str("purchase_type", string(res.PurchaseType)).Str("price", res.Price.StringFixed(2)).Msg("configuration saved")
	return Saved{Key: key, Configuration: res}, nil
}

// Get loads a saved configuration.
func (s *Service) Get(ctx context.Context, key string) (pricing.Result, error) {
	res, err := s.store.Get(ctx, strings.TrimSpace(key))
	if err != nil {
		s.logLookup(err, key)
		return pricing.Result{}, err
	}
	return res, nil
}

// Quote is a stored configuration group and the keys it holds.
type Quote struct {
	ID   string   `json:"id"`
	Keys []string `json:"keys"`
}

// SaveQuote groups saved configurations under a shareable identifier.
func (s *Service) SaveQuote(ctx context.Context, keys []string) (Quote, error) {
	keys = configstore.GroupKeys(keys)
	id, err := s.store.SaveGroup(ctx, keys)
	if err != nil {
		s.logLookup(err, strings.Join(keys, ","))
		return Quote{}, err
	}
	return Quote{ID: id, Keys: keys}, nil
}

// GetQuote restores every configuration of a quote.
func (s *Service) GetQuote(ctx context.Context, id string) (configstore.Group, error) {
	g, err := s.store.GetGroup(ctx, strings.TrimSpace(id))
	if err != nil {
		s.logLookup(err, id)
		return configstore.Group{}, err
	}
	return g, nil
}

// compute is the strict pricing path used before persisting.
func (s *Service) compute(ctx context.Context, req Request) (pricing.Result, error) {
	pricingType, form, err := s.parse(req)
	if err != nil {
		return pricing.Result{}, err
	}
	if pricingType == pricing.PricingAppliance {
		list, err := s.lists.ApplianceList(ctx, req.Family)
		if err != nil {
			return pricing.Result{}, err
		}
		if form.Quantity < 1 {
			return pricing.Result{}, fmt.Errorf("quantity must be at least 1: %w", pricing.ErrInvalidInput)
		}
		return s.observe(pricingType, form, func() (pricing.Result, error) {
			return s.processor.ProcessAppliance(list, form)
		})
	}

	list, err := s.lists.PriceList(ctx, req.Family, req.Option)
	if err != nil {
		return pricing.Result{}, err
	}
	if err := pricing.ValidateRange(list, form); err != nil {
		return pricing.Result{}, err
	}
	return s.observe(pricingType, form, func() (pricing.Result, error) {
		return s.processor.Process(list, form)
	})
}

func (s *Service) parse(req Request) (pricing.PricingType, pricing.FormState, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", pricing.FormState{}, &ValidationError{Err: err}
	}
	pricingType, err := pricing.ParsePricingType(req.PricingType)
	if err != nil {
		return "", pricing.FormState{}, err
	}
	purchaseType := pricing.PurchaseRenewal
	if req.PurchaseType != "" {
		if purchaseType, err = pricing.ParsePurchaseType(req.PurchaseType); err != nil {
			return "", pricing.FormState{}, err
		}
	}
	form := pricing.FormState{
		PurchaseType:      purchaseType,
		ExistingUnits:     req.ExistingUnits,
		UnitsChange:       req.UnitsChange,
		Years:             decimal.Zero,
		ExtensionKeys:     append([]string(nil), req.ExtensionKeys...),
		ApplianceID:       strings.TrimSpace(req.ApplianceID),
		Quantity:          req.Quantity,
		WarrantyExtension: req.WarrantyExtension,
		Licence:           strings.TrimSpace(req.Licence),
	}
	if req.Years != nil {
		form.Years = *req.Years
	}
	partial := purchaseType == pricing.PurchaseAddUnits || purchaseType == pricing.PurchaseAddExtension
	if req.MonthsRemaining != nil && partial {
		form.Years = pricing.RemainingYears(*req.MonthsRemaining)
	}
	return pricingType, form, nil
}

// observe runs a computation, recording its outcome and logging integrity failures.
func (s *Service) observe(pricingType pricing.PricingType, form pricing.FormState, fn func() (pricing.Result, error)) (pricing.Result, error) {
	res, err := fn()
	result := "ok"
	var integrity *pricing.IntegrityError
	switch {
	case err == nil && res.Empty():
		result = "empty"
	case errors.As(err, &integrity):
		result = "integrity_error"
		s.log.Error().Err(err).
			Str("op", integrity.Op).
			Str("years", integrity.Years.String()).
			Int("units", integrity.Units).
			Strs("missing_keys", integrity.MissingKeys).
			Msg("price list integrity violation")
	case err != nil:
		result = "error"
	}
	obs.ObserveConfigurationComputed(string(pricingType), string(form.PurchaseType), result)
	return res, err
}

func (s *Service) logLookup(err error, key string) {
	switch {
	case errors.Is(err, configstore.ErrNotFound), errors.Is(err, configstore.ErrVersionMismatch), errors.Is(err, configstore.ErrEmptyGroup):
		s.log.Debug().Err(err).Str("key", key).Msg("configuration lookup rejected")
	default:
		s.log.Error().Err(err).Str("key", key).Msg("configuration lookup failed")
	}
}
