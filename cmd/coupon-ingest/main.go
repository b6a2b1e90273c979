// Command coupon-ingest loads promotional coupon codes from large
// gzip-compressed code dumps. A code is accepted only when it appears in at
// least two of the dump files; bloom filters keep the cross-file membership
// checks in memory even for dumps with hundreds of millions of lines.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// codeRule describes the discount to attach to a known coupon code. Codes
// without a rule get the default 10% promotion.
type codeRule struct {
	percent        int64
	minPrice       int64
	maxUsesPerUser int
}

var codeRules = map[string]codeRule{
	"FIFTYOFF": {percent: 50, minPrice: 100, maxUsesPerUser: 1},
	"SIXTYOFF": {percent: 60, minPrice: 150, maxUsesPerUser: 1},
	"HAPPYHRS": {percent: 18},
	"GNULINUX": {percent: 15},
	"BIRTHDAY": {percent: 25, maxUsesPerUser: 1},
}

var defaultRule = codeRule{percent: 10}

func main() {
	var (
		dataDir     string
		databaseURL string
		validMonths int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbaseN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&validMonths, "valid-months", 12, "validity window in months for ingested coupons")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, validMonths); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, validMonths int) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("couponbase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: scanning for cross-file codes")

	codes, err := collectValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "collect valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, repository.NewCouponRepository(pool), codes, validMonths); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildFilters streams every dump once and fills one bloom filter per file.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var seen uint64

			err := scanGzLines(ctx, path, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				filter.AddString(code)
				if seen++; seen%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", seen))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "file %d", i+1)
			}

			slog.Info("pass 1 file done", slog.Int("file", i+1), slog.Uint64("codes", seen))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// collectValidCodes streams every dump a second time and keeps codes that the
// other files' filters also claim to contain. Each candidate carries a bitmask
// of the files it was seen in; two or more set bits makes it valid.
func collectValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	perFile := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			ownBit := uint(1) << uint(i)
			var seen uint64

			err := scanGzLines(ctx, path, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				if seen++; seen%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("file", i+1), slog.Uint64("codes", seen))
				}
				for j, f := range filters {
					if j == i {
						continue
					}
					if f.TestString(code) {
						candidates[code] |= ownBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "file %d", i+1)
			}

			slog.Info("pass 2 file done",
				slog.Int("file", i+1),
				slog.Uint64("codes", seen),
				slog.Int("candidates", len(candidates)),
			)
			perFile[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range perFile {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}
	return valid, nil
}

// scanGzLines calls fn for every line of a gzip-compressed file.
func scanGzLines(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

// writeCoupons inserts the valid codes, skipping aliases that already exist.
func writeCoupons(ctx context.Context, repo *repository.CouponRepository, codes []string, validMonths int) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))

	now := time.Now()
	for i, code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = defaultRule
		}

		err := repo.Create(ctx, &coupon.Coupon{
			ID:              uuid.New().String(),
			Alias:           code,
			IssuedAt:        now,
			ExpiresAt:       now.AddDate(0, validMonths, 0),
			MinPrice:        decimal.NewFromInt(rule.minPrice),
			PercentDiscount: decimal.NewFromInt(rule.percent),
			MaxUsesPerUser:  rule.maxUsesPerUser,
			IsRunning:       true,
		})
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
