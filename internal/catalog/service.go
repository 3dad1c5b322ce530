// Package catalog loads price lists from storage and serves them through a
// two level cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-licence/internal/obs"
	"github.com/noah-isme/backend-licence/internal/pricelist"
)

// ErrFamilyRequired is returned when no product family is given.
var ErrFamilyRequired = errors.New("catalog: product family is required")

// Source provides raw price list records.
type Source interface {
	ListProductRecords(ctx context.Context, family, option string) ([]pricelist.Record, error)
	// ListSubscriptionRecords returns product rows across all options of a family.
	ListSubscriptionRecords(ctx context.Context, family string) ([]pricelist.Record, error)
	ListExtensionRecords(ctx context.Context, family, option string) ([]pricelist.Record, error)
	ListApplianceRecords(ctx context.Context, family string) ([]pricelist.ApplianceRecord, error)
}

// Locker serialises cache refreshes across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service orchestrates price list loading, building, and caching.
type Service struct {
	source  Source
	cache   *Cache
	memory  *memory
	locker  Locker
	lockTTL time.Duration
	opts    pricelist.Options
	log     zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source    Source
	Cache     *Cache
	MemoryTTL time.Duration
	Locker    Locker
	LockTTL   time.Duration
	Options   pricelist.Options
	Logger    zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog: price list source is required")
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &Service{
		source:  cfg.Source,
		cache:   cfg.Cache,
		memory:  newMemory(cfg.MemoryTTL),
		locker:  cfg.Locker,
		lockTTL: lockTTL,
		opts:    cfg.Options,
		log:     cfg.Logger,
	}, nil
}

// PriceList returns the built price list of a unit-priced family and option.
func (s *Service) PriceList(ctx context.Context, family, option string) (pricelist.PriceList, error) {
	family, option = normalise(family), normalise(option)
	if family == "" {
		return pricelist.PriceList{}, ErrFamilyRequired
	}
	var list pricelist.PriceList
	err := s.cached(ctx, priceListKey(family, option), &list, func(ctx context.Context) (any, error) {
		products, err := s.source.ListProductRecords(ctx, family, option)
		if err != nil {
			return nil, err
		}
		extensions, err := s.source.ListExtensionRecords(ctx, family, option)
		if err != nil {
			return nil, err
		}
		built := pricelist.Build(products, extensions, s.opts)
		if built.Family == "" {
			built.Family = family
		}
		built.Option = option
		return built, nil
	})
	if err != nil {
		return pricelist.PriceList{}, fmt.Errorf("price list %s/%s: %w", family, option, err)
	}
	return list, nil
}

// ApplianceList returns the built hardware catalogue of an appliance-priced family.
func (s *Service) ApplianceList(ctx context.Context, family string) (pricelist.ApplianceList, error) {
	family = normalise(family)
	if family == "" {
		return pricelist.ApplianceList{}, ErrFamilyRequired
	}
	var list pricelist.ApplianceList
	err := s.cached(ctx, applianceListKey(family), &list, func(ctx context.Context) (any, error) {
		subs, err := s.source.ListSubscriptionRecords(ctx, family)
		if err != nil {
			return nil, err
		}
		appliances, err := s.source.ListApplianceRecords(ctx, family)
		if err != nil {
			return nil, err
		}
		built := pricelist.BuildAppliances(subs, appliances)
		if built.Family == "" {
			built.Family = family
		}
		return built, nil
	})
	if err != nil {
		return pricelist.ApplianceList{}, fmt.Errorf("appliance list %s: %w", family, err)
	}
	return list, nil
}

// Invalidate drops a family's cached lists from both layers.
func (s *Service) Invalidate(ctx context.Context, family string, options ...string) error {
	family = normalise(family)
	keys := []string{applianceListKey(family), priceListKey(family, "")}
	for _, o := range options {
		keys = append(keys, priceListKey(family, normalise(o)))
	}
	for _, k := range keys {
		s.memory.delete(k)
	}
	return s.cache.Delete(ctx, keys...)
}

// cached resolves key from memory, then Redis, then load. Loads are
// serialised per key through the locker and re-check Redis once the lock is held.
func (s *Service) cached(ctx context.Context, key string, dst any, load func(context.Context) (any, error)) error {
	if v, ok := s.memory.get(key); ok {
		obs.ObservePriceListCache("memory", "hit")
		return assignCached(dst, v)
	}
	obs.ObservePriceListCache("memory", "miss")

	if ok := s.fromRedis(ctx, key, dst); ok {
		s.memory.set(key, deref(dst))
		return nil
	}

	refresh := func(ctx context.Context) error {
		if ok := s.fromRedis(ctx, key, dst); ok {
			return nil
		}
		start := time.Now()
		built, err := load(ctx)
		obs.ObservePriceListBuild(kindOf(key), float64(time.Since(start).Microseconds())/1000)
		if err != nil {
			return err
		}
		if err := s.cache.SetJSON(ctx, key, built); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("price list cache write failed")
		}
		return assignCached(dst, built)
	}

	var err error
	if s.locker != nil && s.cache != nil {
		err = s.locker.WithLock(ctx, "lock:"+key, s.lockTTL, refresh)
	} else {
		err = refresh(ctx)
	}
	if err != nil {
		return err
	}
	s.memory.set(key, deref(dst))
	return nil
}

func (s *Service) fromRedis(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.GetJSON(ctx, key, dst)
	switch {
	case err != nil:
		obs.ObservePriceListCache("redis", "error")
		s.log.Warn().Err(err).Str("key", key).Msg("price list cache read failed")
		return false
	case ok:
		obs.ObservePriceListCache("redis", "hit")
		return true
	default:
		obs.ObservePriceListCache("redis", "miss")
		return false
	}
}

func assignCached(dst, v any) error {
	switch d := dst.(type) {
	case *pricelist.PriceList:
		list, ok := v.(pricelist.PriceList)
		if !ok {
			return fmt.Errorf("catalog: cached %T is not a price list", v)
		}
		*d = list
	case *pricelist.ApplianceList:
		list, ok := v.(pricelist.ApplianceList)
		if !ok {
			return fmt.Errorf("catalog: cached %T is not an appliance list", v)
		}
		*d = list
	default:
		return fmt.Errorf("catalog: unsupported cache destination %T", dst)
	}
	return nil
}

func deref(dst any) any {
	switch d := dst.(type) {
	case *pricelist.PriceList:
		return *d
	case *pricelist.ApplianceList:
		return *d
	}
	return nil
}

func kindOf(key string) string {
	if strings.Contains(key, ":appliances:") {
		return "appliances"
	}
	return "units"
}

func normalise(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
