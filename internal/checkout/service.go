// Package checkout re-derives stored configurations from the authoritative
// price list and turns them into payment line items.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-licence/internal/configstore"
	"github.com/noah-isme/backend-licence/internal/configurator"
	"github.com/noah-isme/backend-licence/internal/obs"
	"github.com/noah-isme/backend-licence/internal/pricing"
)

var (
	// ErrStaleConfiguration is returned when a stored configuration no longer
	// re-derives to the same SKUs and price.
	ErrStaleConfiguration = errors.New("configuration no longer matches the price list")
	// ErrNoConfigurations is returned when checkout names nothing to buy.
	ErrNoConfigurations = errors.New("checkout requires configuration keys or a quote id")
)

// Store loads persisted configurations.
type Store interface {
	Get(ctx context.Context, key string) (pricing.Result, error)
	GetGroup(ctx context.Context, id string) (configstore.Group, error)
}

// Request names the configurations to check out, either directly or via a quote.
type Request struct {
	Keys    []string `json:"keys,omitempty" validate:"max=50,dive,required,max=64"`
	QuoteID string   `json:"quoteId,omitempty" validate:"max=64"`
}

// LineItem is a payment line for one configuration.
type LineItem struct {
	Key         string                     `json:"key"`
	SKUs        map[string]decimal.Decimal `json:"skus"`
	Price       decimal.Decimal            `json:"price"`
	Description string                     `json:"description"`
	Shipping    bool                       `json:"shipping"`
}

// Order is the set of line items handed to the payment collaborator.
type Order struct {
	Items            []LineItem      `json:"items"`
	Total            decimal.Decimal `json:"total"`
	ShippingRequired bool            `json:"shippingRequired"`
}

// Service prepares checkouts.
type Service struct {
	lists     configurator.PriceLists
	store     Store
	processor *pricing.Processor
	validate  *validator.Validate
	log       zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	PriceLists configurator.PriceLists
	Store      Store
	Processor  *pricing.Processor
	Logger     zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.PriceLists == nil || cfg.Store == nil || cfg.Processor == nil {
		return nil, errors.New("checkout: price lists, store and processor are required")
	}
	return &Service{
		lists:     cfg.PriceLists,
		store:     cfg.Store,
		processor: cfg.Processor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       cfg.Logger,
	}, nil
}

// Prepare loads the requested configurations, recomputes each from its
// stored inputs and returns line items. Prices submitted by clients are never
// consulted; a configuration whose recomputation differs is rejected.
func (s *Service) Prepare(ctx context.Context, req Request) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, &configurator.ValidationError{Err: err}
	}
	keys, stored, err := s.load(ctx, req)
	if err != nil {
		return Order{}, err
	}

	order := Order{Items: make([]LineItem, 0, len(keys)), Total: decimal.Zero}
	for _, key := range keys {
		res, err := s.rederive(ctx, key, stored[key])
		if err != nil {
			return Order{}, err
		}
		order.Items = append(order.Items, LineItem{
			Key:         key,
			SKUs:        res.SKUs,
			Price:       res.Price,
			Description: res.Summary.Description(),
			Shipping:    res.Shipping,
		})
		order.Total = order.Total.Add(res.Price)
		order.ShippingRequired = order.ShippingRequired || res.Shipping
	}
	s.log.Info().Int("items", len(order.Items)).Str("total", order.Total.StringFixed(2)).Bool("shipping", order.ShippingRequired).Msg("checkout prepared")
	return order, nil
}

func (s *Service) load(ctx context.Context, req Request) ([]string, map[string]pricing.Result, error) {
	if id := strings.TrimSpace(req.QuoteID); id != "" {
		g, err := s.store.GetGroup(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return g.Keys, g.Configurations, nil
	}
	keys := configstore.GroupKeys(req.Keys)
	if len(keys) == 0 {
		return nil, nil, ErrNoConfigurations
	}
	stored := make(map[string]pricing.Result, len(keys))
	for _, key := range keys {
		res, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		stored[key] = res
	}
	return keys, stored, nil
}

func (s *Service) rederive(ctx context.Context, key string, stored pricing.Result) (pricing.Result, error) {
	res, err := s.compute(ctx, stored)
	switch {
	case errors.Is(err, pricing.ErrInvalidInput), errors.Is(err, pricing.ErrProductUnavailable),
		errors.Is(err, pricing.ErrUnknownAppliance), errors.Is(err, pricing.ErrNoWarranty):
		obs.ObserveCheckoutItem("stale")
		s.log.Warn().Err(err).Str("key", key).Msg("stored configuration no longer valid")
		return pricing.Result{}, fmt.Errorf("configuration %s: %w: %w", key, ErrStaleConfiguration, err)
	case err != nil:
		obs.ObserveCheckoutItem("error")
		return pricing.Result{}, fmt.Errorf("configuration %s: %w", key, err)
	}
	if res.Empty() || !sameSKUs(res.SKUs, stored.SKUs) || !res.Price.Equal(stored.Price) {
		obs.ObserveCheckoutItem("stale")
		s.log.Warn().Str("key", key).Str("stored_price", stored.Price.StringFixed(2)).Str("price", res.Price.StringFixed(2)).Msg("stored configuration re-derives differently")
		return pricing.Result{}, fmt.Errorf("configuration %s: %w", key, ErrStaleConfiguration)
	}
	obs.ObserveCheckoutItem("ok")
	return res, nil
}

func (s *Service) compute(ctx context.Context, stored pricing.Result) (pricing.Result, error) {
	in := stored.Inputs
	if stored.PricingType == pricing.PricingAppliance {
		list, err := s.lists.ApplianceList(ctx, in.Family)
		if err != nil {
			return pricing.Result{}, err
		}
		return s.processor.ProcessAppliance(list, in.Form)
	}
	list, err := s.lists.PriceList(ctx, in.Family, in.Option)
	if err != nil {
		return pricing.Result{}, err
	}
	if err := pricing.ValidateRange(list, in.Form); err != nil {
		return pricing.Result{}, err
	}
	return s.processor.Process(list, in.Form)
}

func sameSKUs(a, b map[string]decimal.Decimal) bool {
	if len(a) != len(b) {
		return false
	}
	for sku, qty := range a {
		other, ok := b[sku]
		if !ok || !qty.Equal(other) {
			return false
		}
	}
	return true
}
