package payload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/anchor-store/core"
	"github.com/zyedidia/generic/mapset"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

type Config struct {
	Strategy Strategy
	// Concurrency limits in-flight writes for StrategyConcurrent.
	Concurrency int `valid:"range(0|64)"`
}

type store struct {
	kv     core.KVStore
	logger *slog.Logger
	cfg    Config
}

// New returns a PayloadStore keeping one key-value entry per payload. The
// collection's own key set is the index of stored payloads.
func New(kv core.KVStore, logger *slog.Logger, cfg Config) core.PayloadStore {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	return &store{
		kv:     kv,
		logger: logger.With("store", "payload"),
		cfg:    cfg,
	}
}

// Persist writes every payload. A failed write is returned as is; entries
// written before it stay in the collection.
func (s *store) Persist(ctx context.Context, payloads []*core.Payload) error {
	for idx, p := range payloads {
		if p == nil || p.ID == "" {
			return fmt.Errorf("%w: payload %d has no id", core.ErrInvalidPayload, idx)
		}
	}

	switch s.cfg.Strategy {
	case StrategyConcurrent:
		return s.persistConcurrent(ctx, payloads)
	default:
		return s.persistSequential(ctx, payloads)
	}
}

func (s *store) persistSequential(ctx context.Context, payloads []*core.Payload) error {
	for _, p := range payloads {
		if err := s.save(ctx, p); err != nil {
			return err
		}
	}

	return nil
}

func (s *store) persistConcurrent(ctx context.Context, payloads []*core.Payload) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, p := range lastByID(payloads) {
		p := p
		g.Go(func() error {
			return s.save(ctx, p)
		})
	}

	return g.Wait()
}

func (s *store) save(ctx context.Context, p *core.Payload) error {
	s.logger.Debug("saving", "id", p.ID)

	if err := s.kv.SetValue(ctx, p.ID, EncodeBlob(p.Blob)); err != nil {
		s.logger.Error("kv.SetValue", "id", p.ID, "err", err)
		return fmt.Errorf("persist %s: %w", p.ID, err)
	}

	s.logger.Debug("saved", "id", p.ID)
	return nil
}

// Restore returns the blobs of every stored payload. Ids are not returned.
func (s *store) Restore(ctx context.Context) ([][]byte, error) {
	values, err := s.kv.GetValues(ctx)
	if err != nil {
		s.logger.Error("kv.GetValues", "err", err)
		return nil, err
	}

	blobs := make([][]byte, 0, len(values))
	for _, v := range values {
		blob, err := DecodeBlob(v.Value)
		if err != nil {
			s.logger.Error("DecodeBlob", "key", v.Key, "err", err)
			return nil, fmt.Errorf("restore %s: %w", v.Key, err)
		}

		blobs = append(blobs, blob)
	}

	s.logger.Debug("restored", "count", len(blobs))
	return blobs, nil
}

func (s *store) Clear(ctx context.Context) error {
	if err := s.kv.DeleteAllKeys(ctx); err != nil {
		s.logger.Error("kv.DeleteAllKeys", "err", err)
		return err
	}

	return nil
}

// Replace clears the collection and persists payloads, leaving exactly
// payloads stored when both steps succeed.
func Replace(ctx context.Context, payloads core.PayloadStore, items []*core.Payload) error {
	if err := payloads.Clear(ctx); err != nil {
		return err
	}

	return payloads.Persist(ctx, items)
}

// lastByID keeps the last occurrence of every id, preserving order, so
// concurrent writes end up with the same state a sequential pass would.
func lastByID(payloads []*core.Payload) []*core.Payload {
	seen := mapset.New[string]()
	out := make([]*core.Payload, 0, len(payloads))

	for i := len(payloads) - 1; i >= 0; i-- {
		p := payloads[i]
		if seen.Has(p.ID) {
			continue
		}

		seen.Put(p.ID)
		out = append(out, p)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out
}
