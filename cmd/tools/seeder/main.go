package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-licence/internal/catalog"
	"github.com/noah-isme/backend-licence/internal/config"
	"github.com/noah-isme/backend-licence/internal/obs"
	"github.com/noah-isme/backend-licence/internal/repo"
)

func main() {
	path := flag.String("file", "seed/price_list.json", "JSON file holding an array of product families")
	flag.Parse()

	logger := obs.NewLogger("console", "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	families, err := readFamilies(*path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *path).Msg("read seed file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	defer client.Close()

	prices, err := catalog.NewService(catalog.ServiceConfig{
		Source: repo.PriceRepo{Q: pool},
		Cache:  catalog.NewCache(client, cfg.PriceListCacheTTL),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	for _, fam := range families {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return repo.PriceRepo{Q: tx}.ReplaceFamily(ctx, fam)
		})
		if err != nil {
			logger.Fatal().Err(err).Str("family", fam.Family).Msg("seed family")
		}
		if err := prices.Invalidate(ctx, fam.Family, options(fam)...); err != nil {
			logger.Warn().Err(err).Str("family", fam.Family).Msg("invalidate cached price list")
		}
		logger.Info().
			Str("family", fam.Family).
			Int("products", len(fam.Products)).
			Int("extensions", len(fam.Extensions)).
			Int("appliances", len(fam.Appliances)).
			Msg("family seeded")
	}
	logger.Info().Int("families", len(families)).Msg("seeding completed")
}

func readFamilies(path string) ([]repo.FamilyRecords, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var families []repo.FamilyRecords
	if err := json.Unmarshal(raw, &families); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return families, nil
}

func options(fam repo.FamilyRecords) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range fam.Products {
		if p.FamilyOption != nil && !seen[*p.FamilyOption] {
			seen[*p.FamilyOption] = true
			out = append(out, *p.FamilyOption)
		}
	}
	return out
}
