package configstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-licence/internal/pricing"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleResult(sku string) pricing.Result {
	return pricing.Result{
		PricingType:  pricing.PricingUnit,
		PurchaseType: pricing.PurchaseNew,
		Price:        decimal.RequireFromString("120.50"),
		SKUs:         map[string]decimal.Decimal{sku: decimal.RequireFromString("12.5")},
		Duration:     pricing.Duration{WholeYears: 1, PartYears: decimal.RequireFromString("0.25")},
		Summary:      pricing.Summary{Product: "12 users for 1 year and 3 months", Price: "£120.50 + vat"},
		Inputs: pricing.Inputs{Family: "mail", Form: pricing.FormState{
			PurchaseType: pricing.PurchaseNew,
			UnitsChange:  12,
			Years:        decimal.RequireFromString("1.25"),
		}},
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, Config{Version: 3})
	ctx := context.Background()

	key, err := store.Save(ctx, sampleResult("MAIL-1"))
	require.NoError(t, err)
	require.Len(t, key, 10)
	require.Equal(t, strings.ToLower(key), key)
	require.False(t, IsGroupID(key))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "120.5", got.Price.String())
	require.Equal(t, "12.5", got.SKUs["MAIL-1"].String())
	require.Equal(t, "12 users for 1 year and 3 months", got.Summary.Product)
	require.Equal(t, "mail", got.Inputs.Family)
	require.True(t, got.Inputs.Form.Years.Equal(decimal.RequireFromString("1.25")))
}

func TestGetMissingKey(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, Config{})

	_, err := store.Get(context.Background(), "abcdefghij")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVersionBumpFailsWithBothVersions(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	key, err := NewStore(client, Config{Version: 1}).Save(ctx, sampleResult("A"))
	require.NoError(t, err)

	_, err = NewStore(client, Config{Version: 2}).Get(ctx, key)
	require.ErrorIs(t, err, ErrVersionMismatch)
	require.False(t, errors.Is(err, ErrNotFound))

	var verr *VersioningError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, 1, verr.Stored)
	require.Equal(t, 2, verr.Required)
	require.Equal(t, key, verr.Key)
}

func TestSaveRetriesCollisionsAndBlockedKeys(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, Config{KeyLength: 4})
	candidates := []string{"taken", "bass", "free"}
	store.newKey = func(int) (string, error) {
		next := candidates[0]
		candidates = candidates[1:]
		return next, nil
	}
	require.NoError(t, client.Set(context.Background(), store.configKey("taken"), "{}", 0).Err())

	key, err := store.Save(context.Background(), sampleResult("A"))
	require.NoError(t, err)
	require.Equal(t, "free", key)
	require.Empty(t, candidates)
}

func TestSaveGivesUpAfterAttemptCap(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, Config{MaxAttempts: 3})
	calls := 0
	store.newKey = func(int) (string, error) {
		calls++
		return "same", nil
	}
	_, err := store.Save(context.Background(), sampleResult("A"))
	require.NoError(t, err)

	_, err = store.Save(context.Background(), sampleResult("B"))
	require.ErrorIs(t, err, ErrKeyGeneration)
	require.Equal(t, 4, calls)
}

func TestSaveAppliesTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, Config{TTL: time.Hour})

	key, err := store.Save(context.Background(), sampleResult("A"))
	require.NoError(t, err)
	require.Equal(t, time.Hour, mr.TTL(store.configKey(key)))
}

func TestGroupRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, Config{})
	ctx := context.Background()

	first, err := store.Save(ctx, sampleResult("A"))
	require.NoError(t, err)
	second, err := store.Save(ctx, sampleResult("B"))
	require.NoError(t, err)

	id, err := store.SaveGroup(ctx, []string{second, first, second})
	require.NoError(t, err)
	require.True(t, IsGroupID(id))

	group, err := store.GetGroup(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, group.ID)
	require.Equal(t, []string{second, first}, group.Keys)
	require.Len(t, group.Configurations, 2)
	require.Contains(t, group.Configurations[first].SKUs, "A")

	// identifiers of one kind never dereference against the other store
	_, err = store.Get(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetGroup(ctx, first)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveGroupValidatesMembers(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	old := NewStore(client, Config{Version: 1})
	current := NewStore(client, Config{Version: 2})

	valid, err := current.Save(ctx, sampleResult("A"))
	require.NoError(t, err)
	stale, err := old.Save(ctx, sampleResult("B"))
	require.NoError(t, err)

	_, err = current.SaveGroup(ctx, []string{valid, "missingkey"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = current.SaveGroup(ctx, []string{valid, stale})
	require.ErrorIs(t, err, ErrVersionMismatch)

	_, err = current.SaveGroup(ctx, nil)
	require.ErrorIs(t, err, ErrEmptyGroup)
}

func TestGetGroupFailsAtomically(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	store := NewStore(client, Config{Version: 1})

	valid, err := store.Save(ctx, sampleResult("A"))
	require.NoError(t, err)
	other, err := store.Save(ctx, sampleResult("B"))
	require.NoError(t, err)
	id, err := store.SaveGroup(ctx, []string{valid, other})
	require.NoError(t, err)

	// Rewrite one member with an older version stamp.
	require.NoError(t, client.Set(ctx, store.configKey(other), `{"configuration_version":0,"configuration":{}}`, 0).Err())

	group, err := store.GetGroup(ctx, id)
	require.ErrorIs(t, err, ErrVersionMismatch)
	require.Nil(t, group.Configurations)

	// A removed member also fails the group.
	require.NoError(t, client.Del(ctx, store.configKey(other)).Err())
	_, err = store.GetGroup(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetGroupVersionBump(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	store := NewStore(client, Config{Version: 1})

	key, err := store.Save(ctx, sampleResult("A"))
	require.NoError(t, err)
	id, err := store.SaveGroup(ctx, []string{key})
	require.NoError(t, err)

	_, err = NewStore(client, Config{Version: 2}).GetGroup(ctx, id)
	var verr *VersioningError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, id, verr.Key)
}

func TestRandomKeyAndBlocklist(t *testing.T) {
	for i := 0; i < 50; i++ {
		key, err := randomKey(12)
		require.NoError(t, err)
		require.Len(t, key, 12)
		for _, r := range key {
			require.True(t, r >= 'a' && r <= 'z', key)
		}
	}
	require.True(t, blocked("xxshitxx"))
	require.True(t, blocked("CLASSIC"))
	require.False(t, blocked("qwertyzxcv"))
}

func TestGroupKeys(t *testing.T) {
	require.Equal(t, []string{"b", "a"}, GroupKeys([]string{" b", "", "a", "b ", "  "}))
	require.Empty(t, GroupKeys(nil))
}
