package ingest

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// AccountFetcher reads a batch of accounts at one slot.
type AccountFetcher interface {
	GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey, opts rpc.AccountOptions) (*rpc.MultipleAccountsResult, error)
}

// SeederConfig holds configuration for startup seeding
type SeederConfig struct {
	Fetcher      AccountFetcher
	Coordinators []*Coordinator
	Commitment   string
	BatchSize    int
	Logger       *logrus.Logger
}

// SeedReport summarises one seeding pass.
type SeedReport struct {
	Requested uint64
	Missing   uint64
	Failed    uint64
	Applied   uint64
	Slot      uint64
}

// Seeder reads the full account of every indexed pool once and applies it
// to each coordinator at the slot the node served the read at, so the
// store is populated before the first notification arrives.
type Seeder struct {
	cfg SeederConfig
}

func NewSeeder(cfg SeederConfig) *Seeder {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > rpc.MaxAccountsPerRequest {
		cfg.BatchSize = rpc.MaxAccountsPerRequest
	}
	return &Seeder{cfg: cfg}
}

// Seed fetches pools in batches. A failing batch aborts the pass; accounts
// that are missing or do not decode are counted and skipped.
func (s *Seeder) Seed(ctx context.Context, pools []solana.PublicKey) (SeedReport, error) {
	var report SeedReport
	opts := rpc.AccountOptions{Encoding: decoder.EncodingBase64Zstd, Commitment: s.cfg.Commitment}

	for start := 0; start < len(pools); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(pools))
		batch := pools[start:end]
		report.Requested += uint64(len(batch))

		res, err := s.cfg.Fetcher.GetMultipleAccounts(ctx, batch, opts)
		if err != nil {
			return report, fmt.Errorf("seed batch %d-%d: %w", start, end, err)
		}
		if len(res.Value) != len(batch) {
			return report, fmt.Errorf("seed batch %d-%d: got %d accounts", start, end, len(res.Value))
		}
		report.Slot = max(report.Slot, res.Context.Slot)

		for i, acc := range res.Value {
			pool := batch[i]
			if acc == nil {
				report.Missing++
				s.cfg.Logger.WithField("pool", pool).Warn("seed: account not found")
				continue
			}
			payload, encoding, ok := acc.Payload()
			if !ok {
				report.Failed++
				continue
			}
			snap, err := decoder.DecodeAccount(payload, encoding)
			if err != nil {
				report.Failed++
				s.cfg.Logger.WithError(err).WithField("pool", pool).Warn("seed: decode failed")
				continue
			}
			for _, c := range s.cfg.Coordinators {
				if _, err := c.Apply(ctx, pool, snap, res.Context.Slot); err == nil {
					report.Applied++
				}
			}
		}
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"requested": report.Requested,
		"applied":   report.Applied,
		"missing":   report.Missing,
		"failed":    report.Failed,
		"slot":      report.Slot,
	}).Info("seeding complete")
	return report, nil
}
