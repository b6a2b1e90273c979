package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/api"
	"github.com/xenking/storefront/internal/domain/campaign"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/repository"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		userToken    string
		adminToken   string
		tokenPepper  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&userToken, "user-token", "", "bearer token to seed for the demo user (or STORE_SEED_USER_TOKEN env)")
	flag.StringVar(&adminToken, "admin-token", "", "bearer token to seed for the demo admin (or STORE_SEED_ADMIN_TOKEN env)")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or STORE_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if userToken == "" {
		userToken = os.Getenv("STORE_SEED_USER_TOKEN")
	}
	if adminToken == "" {
		adminToken = os.Getenv("STORE_SEED_ADMIN_TOKEN")
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("STORE_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, userToken, adminToken, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, userToken, adminToken, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	coupons := demoCoupons(time.Now())

	// Products and coupons are independent; seed them in parallel.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return seedProducts(gctx, repository.NewProductRepository(pool), productsFile)
	})
	g.Go(func() error {
		return seedCoupons(gctx, repository.NewCouponRepository(pool), coupons)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// The campaign references the coupons seeded above.
	if err := seedCampaign(ctx, repository.NewCampaignRepository(pool), coupons); err != nil {
		return errors.Wrap(err, "seed campaign")
	}

	if err := seedTokens(ctx, repository.NewTokenRepository(pool), userToken, adminToken, pepper); err != nil {
		return errors.Wrap(err, "seed tokens")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("inserting products", slog.Int("count", len(products)))

	for _, p := range products {
		err := repo.Create(ctx, &product.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Stock:    p.Stock,
			Category: p.Category,
		})
		if err != nil {
			return errors.Wrapf(err, "insert product %s", p.ID)
		}

		slog.Info("inserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

// demoCoupons returns the starter coupon set, windowed around now so the demo
// environment has active, future, and expired codes to exercise.
func demoCoupons(now time.Time) []coupon.Coupon {
	return []coupon.Coupon{
		{
			ID:              uuid.New().String(),
			Alias:           "WELCOME10",
			IssuedAt:        now.AddDate(0, -1, 0),
			ExpiresAt:       now.AddDate(0, 11, 0),
			MinPrice:        decimal.NewFromInt(20),
			PercentDiscount: decimal.NewFromInt(10),
			MaxUsesPerUser:  1,
			IsRunning:       true,
		},
		{
			ID:              uuid.New().String(),
			Alias:           "SPRINGSALE",
			IssuedAt:        now.AddDate(0, -1, 0),
			ExpiresAt:       now.AddDate(0, 2, 0),
			MinPrice:        decimal.NewFromInt(50),
			PercentDiscount: decimal.NewFromInt(15),
			MaxUsesPerUser:  3,
			MaxUsesTotal:    1000,
			IsRunning:       true,
		},
		{
			ID:              uuid.New().String(),
			Alias:           "BLACKFRIDAY",
			IssuedAt:        now.AddDate(0, 2, 0),
			ExpiresAt:       now.AddDate(0, 3, 0),
			MinPrice:        decimal.NewFromInt(100),
			PercentDiscount: decimal.NewFromInt(30),
			MaxUsesPerUser:  1,
			MaxUsesTotal:    500,
			IsRunning:       true,
		},
		{
			ID:              uuid.New().String(),
			Alias:           "LASTYEAR",
			IssuedAt:        now.AddDate(-1, 0, 0),
			ExpiresAt:       now.AddDate(0, -6, 0),
			PercentDiscount: decimal.NewFromInt(20),
			IsRunning:       true,
		},
	}
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository, coupons []coupon.Coupon) error {
	slog.Info("seeding demo coupons", slog.Int("count", len(coupons)))

	for i := range coupons {
		if err := repo.Create(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "insert coupon %s", coupons[i].Alias)
		}

		slog.Info("inserted coupon", slog.String("alias", coupons[i].Alias))
	}

	return nil
}

func seedCampaign(ctx context.Context, repo *repository.CampaignRepository, coupons []coupon.Coupon) error {
	slog.Info("seeding demo campaign")

	return repo.Create(ctx, &campaign.Campaign{
		ID:      uuid.New().String(),
		Name:    "Seasonal Promotions",
		Coupons: coupons,
	})
}

func seedTokens(ctx context.Context, repo *repository.TokenRepository, userToken, adminToken, pepper string) error {
	hasher := api.NewSecurityHandler(nil, []byte(pepper))

	if userToken != "" {
		if err := repo.Create(ctx, uuid.New().String(), hasher.HashToken(userToken), "demo-user", false); err != nil {
			return errors.Wrap(err, "insert user token")
		}
		slog.Info("inserted token", slog.String("user_id", "demo-user"))
	}
	if adminToken != "" {
		if err := repo.Create(ctx, uuid.New().String(), hasher.HashToken(adminToken), "demo-admin", true); err != nil {
			return errors.Wrap(err, "insert admin token")
		}
		slog.Info("inserted token", slog.String("user_id", "demo-admin"))
	}

	return nil
}
