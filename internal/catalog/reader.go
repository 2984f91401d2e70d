package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/buildkeeb/engine/internal/observability"
)

// ErrUnknownPartition is returned for a partition name the catalog does not have.
var ErrUnknownPartition = errors.New("unknown catalog partition")

// ErrCatalogUnavailable is returned when no partition could be read at all.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Reader is the read-only catalog interface. Implementations must be safe for
// concurrent use; results may be stale within the store's consistency window.
type Reader interface {
	ListSwitches(ctx context.Context) ([]Switch, error)
	ListBoards(ctx context.Context) ([]Board, error)
	ListKeycapSets(ctx context.Context) ([]KeycapSet, error)
	ListAccessories(ctx context.Context) ([]Accessory, error)
	ActiveSponsorships(ctx context.Context) ([]Sponsorship, error)
}

// LoadSnapshot reads every partition and the sponsorship overlay concurrently
// and joins them. A partition that fails to load is left empty; only when every
// partition fails is an error returned.
func LoadSnapshot(ctx context.Context, r Reader, logger *observability.Logger) (Snapshot, error) {
	logger = observability.OrNop(logger)

	var (
		snap Snapshot
		mu   sync.Mutex
		errs = make(map[Partition]error)
	)

	record := func(p Partition, err error) {
		mu.Lock()
		errs[p] = err
		mu.Unlock()
		logger.Warn().Err(err).Str("partition", string(p)).Msg("Catalog partition unavailable, continuing with empty set")
	}

	// Partition failures are tolerated, so every goroutine returns nil and the
	// group is only used to join.
	var g errgroup.Group
	g.Go(func() error {
		items, err := r.ListSwitches(ctx)
		if err != nil {
			record(PartitionSwitches, err)
			return nil
		}
		snap.Switches = items
		return nil
	})
	g.Go(func() error {
		items, err := r.ListBoards(ctx)
		if err != nil {
			record(PartitionBoards, err)
			return nil
		}
		snap.Boards = items
		return nil
	})
	g.Go(func() error {
		items, err := r.ListKeycapSets(ctx)
		if err != nil {
			record(PartitionKeycapSets, err)
			return nil
		}
		snap.KeycapSets = items
		return nil
	})
	g.Go(func() error {
		items, err := r.ListAccessories(ctx)
		if err != nil {
			record(PartitionAccessories, err)
			return nil
		}
		snap.Accessories = items
		return nil
	})
	g.Go(func() error {
		items, err := r.ActiveSponsorships(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Sponsorship overlay unavailable")
			return nil
		}
		snap.Sponsorships = items
		return nil
	})
	_ = g.Wait()

	if len(errs) == len(Partitions) {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, errs[PartitionSwitches])
	}

	logger.Debug().
		Int("switches", len(snap.Switches)).
		Int("boards", len(snap.Boards)).
		Int("keycap_sets", len(snap.KeycapSets)).
		Int("accessories", len(snap.Accessories)).
		Int("sponsorships", len(snap.Sponsorships)).
		Msg("Catalog snapshot loaded")

	return snap, nil
}

// MemoryReader serves a fixed snapshot. Used by tests and offline CLI runs.
type MemoryReader struct {
	snap Snapshot
}

// NewMemoryReader creates a reader over the given snapshot.
func NewMemoryReader(snap Snapshot) *MemoryReader {
	return &MemoryReader{snap: snap}
}

func (m *MemoryReader) ListSwitches(ctx context.Context) ([]Switch, error) {
	return append([]Switch(nil), m.snap.Switches...), ctx.Err()
}

func (m *MemoryReader) ListBoards(ctx context.Context) ([]Board, error) {
	return append([]Board(nil), m.snap.Boards...), ctx.Err()
}

func (m *MemoryReader) ListKeycapSets(ctx context.Context) ([]KeycapSet, error) {
	return append([]KeycapSet(nil), m.snap.KeycapSets...), ctx.Err()
}

func (m *MemoryReader) ListAccessories(ctx context.Context) ([]Accessory, error) {
	return append([]Accessory(nil), m.snap.Accessories...), ctx.Err()
}

func (m *MemoryReader) ActiveSponsorships(ctx context.Context) ([]Sponsorship, error) {
	return append([]Sponsorship(nil), m.snap.Sponsorships...), ctx.Err()
}

// LoadSeedFile parses a YAML catalog document.
func LoadSeedFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read seed file: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse seed file: %w", err)
	}

	if err := snap.check(); err != nil {
		return Snapshot{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return snap, nil
}

// check rejects entries without identifiers or with duplicate identifiers.
func (s Snapshot) check() error {
	seen := make(map[string]bool)
	add := func(p Partition, id, name string) error {
		if id == "" {
			return fmt.Errorf("%s entry %q has no id", p, name)
		}
		key := string(p) + "/" + id
		if seen[key] {
			return fmt.Errorf("duplicate %s id %q", p, id)
		}
		seen[key] = true
		return nil
	}
	for _, e := range s.Switches {
		if err := add(PartitionSwitches, e.ID, e.Name); err != nil {
			return err
		}
	}
	for _, e := range s.Boards {
		if err := add(PartitionBoards, e.ID, e.Name); err != nil {
			return err
		}
	}
	for _, e := range s.KeycapSets {
		if err := add(PartitionKeycapSets, e.ID, e.Name); err != nil {
			return err
		}
	}
	for _, e := range s.Accessories {
		if err := add(PartitionAccessories, e.ID, e.Name); err != nil {
			return err
		}
	}
	return nil
}
