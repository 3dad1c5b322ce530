// Package configstore persists priced configurations and configuration
// groups in Redis under unguessable keys.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/noah-isme/backend-licence/internal/obs"
	"github.com/noah-isme/backend-licence/internal/pricing"
)

var (
	// ErrNotFound is returned when a configuration key or group id does not exist.
	ErrNotFound = errors.New("configuration not found")
	// ErrVersionMismatch is matched by VersioningError.
	ErrVersionMismatch = errors.New("configuration version mismatch")
	// ErrKeyGeneration is returned when no free key was found within the attempt cap.
	ErrKeyGeneration = errors.New("configuration key generation exhausted")
	// ErrEmptyGroup is returned when a group would contain no configurations.
	ErrEmptyGroup = errors.New("configuration group is empty")
)

// VersioningError reports a stored configuration or group whose version stamp
// differs from the version currently required.
type VersioningError struct {
	Key      string
	Stored   int
	Required int
}

// Error implements the error interface.
func (e *VersioningError) Error() string {
	return fmt.Sprintf("configuration %s has version %d, version %d required", e.Key, e.Stored, e.Required)
}

// Is lets errors.Is match VersioningError against ErrVersionMismatch.
func (e *VersioningError) Is(target error) bool {
	return target == ErrVersionMismatch
}

// Config controls key generation and versioning.
type Config struct {
	// Version is stamped on every write and required on every read.
	Version     int
	KeyLength   int
	MaxAttempts int
	// TTL of stored documents; zero keeps them forever.
	TTL       time.Duration
	Namespace string
}

// Group is an expanded configuration group.
type Group struct {
	ID             string                    `json:"id"`
	Keys           []string                  `json:"keys"`
	Configurations map[string]pricing.Result `json:"configurations"`
}

type record struct {
	Version       int            `json:"configuration_version"`
	Configuration pricing.Result `json:"configuration"`
}

type groupRecord struct {
	Version int      `json:"configuration_version"`
	Keys    []string `json:"keys"`
}

// Store is the Redis-backed configuration store.
type Store struct {
	rdb    *redis.Client
	cfg    Config
	newKey func(n int) (string, error)
}

// NewStore constructs a Store, filling zero config values with defaults.
func NewStore(rdb *redis.Client, cfg Config) *Store {
	if cfg.Version <= 0 {
		cfg.Version = 1
	}
	if cfg.KeyLength <= 0 {
		cfg.KeyLength = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "licence"
	}
	return &Store{rdb: rdb, cfg: cfg, newKey: randomKey}
}

// Version returns the version stamp required by this store.
func (s *Store) Version() int {
	return s.cfg.Version
}

func (s *Store) configKey(key string) string {
	return s.cfg.Namespace + ":configuration:" + key
}

func (s *Store) groupKey(id string) string {
	return s.cfg.Namespace + ":group:" + id
}

// Save persists res with the current version stamp and returns its new key.
func (s *Store) Save(ctx context.Context, res pricing.Result) (string, error) {
	payload, err := json.Marshal(record{Version: s.cfg.Version, Configuration: res})
	if err != nil {
		observe("save", err)
		return "", fmt.Errorf("encode configuration: %w", err)
	}
	key, err := s.reserve(ctx, "", s.configKey, payload)
	observe("save", err)
	return key, err
}

// Get loads a configuration, failing with ErrNotFound or a VersioningError.
func (s *Store) Get(ctx context.Context, key string) (pricing.Result, error) {
	res, err := s.get(ctx, key)
	observe("get", err)
	return res, err
}

func (s *Store) get(ctx context.Context, key string) (pricing.Result, error) {
	if key == "" || IsGroupID(key) {
		return pricing.Result{}, fmt.Errorf("configuration %q: %w", key, ErrNotFound)
	}
	data, err := s.rdb.Get(ctx, s.configKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pricing.Result{}, fmt.Errorf("configuration %q: %w", key, ErrNotFound)
		}
		return pricing.Result{}, fmt.Errorf("load configuration: %w", err)
	}
	return s.decode(key, data)
}

func (s *Store) decode(key string, data []byte) (pricing.Result, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return pricing.Result{}, fmt.Errorf("decode configuration %q: %w", key, err)
	}
	if rec.Version != s.cfg.Version {
		return pricing.Result{}, &VersioningError{Key: key, Stored: rec.Version, Required: s.cfg.Version}
	}
	return rec.Configuration, nil
}

// GroupKeys trims keys and drops blanks and repeats, keeping first-seen order.
// It is the key list SaveGroup stores.
func GroupKeys(keys []string) []string {
	return lo.Uniq(lo.FilterMap(keys, func(k string, _ int) (string, bool) {
		k = strings.TrimSpace(k)
		return k, k != ""
	}))
}

// SaveGroup checks every key resolves at the current version and stores the
// group, returning its prefixed identifier. Keys are normalised by GroupKeys.
func (s *Store) SaveGroup(ctx context.Context, keys []string) (string, error) {
	id, err := s.saveGroup(ctx, keys)
	observe("save_group", err)
	return id, err
}

func (s *Store) saveGroup(ctx context.Context, keys []string) (string, error) {
	keys = GroupKeys(keys)
	if len(keys) == 0 {
		return "", ErrEmptyGroup
	}
	if _, err := s.loadAll(ctx, keys); err != nil {
		return "", err
	}
	payload, err := json.Marshal(groupRecord{Version: s.cfg.Version, Keys: keys})
	if err != nil {
		return "", fmt.Errorf("encode group: %w", err)
	}
	return s.reserve(ctx, GroupPrefix, s.groupKey, payload)
}

// GetGroup expands a group into its configurations. Any missing or outdated
// member fails the whole call.
func (s *Store) GetGroup(ctx context.Context, id string) (Group, error) {
	g, err := s.getGroup(ctx, id)
	observe("get_group", err)
	return g, err
}

func (s *Store) getGroup(ctx context.Context, id string) (Group, error) {
	if !IsGroupID(id) {
		return Group{}, fmt.Errorf("group %q: %w", id, ErrNotFound)
	}
	data, err := s.rdb.Get(ctx, s.groupKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Group{}, fmt.Errorf("group %q: %w", id, ErrNotFound)
		}
		return Group{}, fmt.Errorf("load group: %w", err)
	}
	var rec groupRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Group{}, fmt.Errorf("decode group %q: %w", id, err)
	}
	if rec.Version != s.cfg.Version {
		return Group{}, &VersioningError{Key: id, Stored: rec.Version, Required: s.cfg.Version}
	}
	configs, err := s.loadAll(ctx, rec.Keys)
	if err != nil {
		return Group{}, err
	}
	return Group{ID: id, Keys: rec.Keys, Configurations: configs}, nil
}

// loadAll fetches keys in a single round trip and validates every member.
func (s *Store) loadAll(ctx context.Context, keys []string) (map[string]pricing.Result, error) {
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		if IsGroupID(k) {
			return nil, fmt.Errorf("configuration %q: %w", k, ErrNotFound)
		}
		redisKeys[i] = s.configKey(k)
	}
	values, err := s.rdb.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load configurations: %w", err)
	}
	out := make(map[string]pricing.Result, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("configuration %q: %w", keys[i], ErrNotFound)
		}
		res, err := s.decode(keys[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out[keys[i]] = res
	}
	return out, nil
}

// reserve writes payload under a fresh key with SETNX, retrying on collisions
// and blocked candidates up to the configured attempt cap.
func (s *Store) reserve(ctx context.Context, prefix string, redisKey func(string) string, payload []byte) (string, error) {
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		candidate, err := s.newKey(s.cfg.KeyLength)
		if err != nil {
			return "", fmt.Errorf("generate key: %w", err)
		}
		if blocked(candidate) {
			continue
		}
		id := prefix + candidate
		ok, err := s.rdb.SetNX(ctx, redisKey(id), payload, s.cfg.TTL).Result()
		if err != nil {
			return "", fmt.Errorf("reserve key: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("%d attempts: %w", s.cfg.MaxAttempts, ErrKeyGeneration)
}

func observe(op string, err error) {
	switch {
	case err == nil:
		obs.ObserveConfigurationStore(op, "ok")
	case errors.Is(err, ErrNotFound):
		obs.ObserveConfigurationStore(op, "not_found")
	case errors.Is(err, ErrVersionMismatch):
		obs.ObserveConfigurationStore(op, "version_mismatch")
	default:
		obs.ObserveConfigurationStore(op, "error")
	}
}
