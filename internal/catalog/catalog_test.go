package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	*MemoryReader
	fail map[Partition]bool
}

var errDown = errors.New("store down")

func (f failingReader) ListSwitches(ctx context.Context) ([]Switch, error) {
	if f.fail[PartitionSwitches] {
		return nil, errDown
	}
	return f.MemoryReader.ListSwitches(ctx)
}

func (f failingReader) ListBoards(ctx context.Context) ([]Board, error) {
	if f.fail[PartitionBoards] {
		return nil, errDown
	}
	return f.MemoryReader.ListBoards(ctx)
}

func (f failingReader) ListKeycapSets(ctx context.Context) ([]KeycapSet, error) {
	if f.fail[PartitionKeycapSets] {
		return nil, errDown
	}
	return f.MemoryReader.ListKeycapSets(ctx)
}

func (f failingReader) ListAccessories(ctx context.Context) ([]Accessory, error) {
	if f.fail[PartitionAccessories] {
		return nil, errDown
	}
	return f.MemoryReader.ListAccessories(ctx)
}

func testSnapshot() Snapshot {
	return Snapshot{
		Switches:     []Switch{{ID: "s1", Name: "Oil King", Brand: "Gateron"}},
		Boards:       []Board{{ID: "b1", Name: "Mode Sonnet", Brand: "Mode"}},
		KeycapSets:   []KeycapSet{{ID: "k1", Name: "GMK Olivia", Brand: "GMK"}},
		Accessories:  []Accessory{{ID: "a1", Name: "Krytox 205g0"}},
		Sponsorships: []Sponsorship{{ProductName: "Mode Sonnet", VendorName: "Mode Designs"}},
	}
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("all partitions", func(t *testing.T) {
		snap, err := LoadSnapshot(ctx, NewMemoryReader(testSnapshot()), nil)
		require.NoError(t, err)
		assert.Equal(t, testSnapshot(), snap)
	})

	t.Run("single partition failure degrades to empty", func(t *testing.T) {
		r := failingReader{NewMemoryReader(testSnapshot()), map[Partition]bool{PartitionBoards: true}}
		snap, err := LoadSnapshot(ctx, r, nil)
		require.NoError(t, err)
		assert.Empty(t, snap.Boards)
		assert.Len(t, snap.Switches, 1)
		assert.Len(t, snap.KeycapSets, 1)
	})

	t.Run("total failure is an error", func(t *testing.T) {
		r := failingReader{NewMemoryReader(testSnapshot()), map[Partition]bool{
			PartitionSwitches: true, PartitionBoards: true, PartitionKeycapSets: true, PartitionAccessories: true,
		}}
		_, err := LoadSnapshot(ctx, r, nil)
		assert.ErrorIs(t, err, ErrCatalogUnavailable)
	})
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Gateron Oil King", Switch{Brand: "Gateron", Name: "Oil King"}.FullName())
	assert.Equal(t, "GMK Olivia", KeycapSet{Brand: "GMK", Name: "GMK Olivia"}.FullName())
	assert.Equal(t, "Oil King", Switch{Name: "Oil King"}.FullName())
}

func TestCandidateDetailPath(t *testing.T) {
	c := SwitchCandidates([]Switch{{ID: "gat-oil-king", Brand: "Gateron", Name: "Oil King", Price: 0.65}})
	require.Len(t, c, 1)
	assert.Equal(t, "/products/switches/gat-oil-king", c[0].DetailPath())
	assert.Equal(t, "Gateron Oil King", c[0].Name)
}

func TestParsePartition(t *testing.T) {
	p, err := ParsePartition(" Keycap_Sets ")
	require.NoError(t, err)
	assert.Equal(t, PartitionKeycapSets, p)

	_, err = ParsePartition("stabilizers")
	assert.ErrorIs(t, err, ErrUnknownPartition)
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
switches:
  - id: s1
    name: Oil King
    brand: Gateron
    price: 0.65
    type: linear
    in_stock: true
boards:
  - id: b1
    name: Q1 Pro
    brand: Keychron
    size: "75%"
    wireless: true
sponsorships:
  - product_name: Keychron Q1 Pro
    vendor_name: Keychron
`), 0o600))

	snap, err := LoadSeedFile(good)
	require.NoError(t, err)
	require.Len(t, snap.Switches, 1)
	assert.Equal(t, SwitchLinear, snap.Switches[0].Type)
	assert.True(t, snap.Boards[0].Wireless)
	assert.Len(t, snap.Sponsorships, 1)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte(`
switches:
  - id: s1
    name: A
  - id: s1
    name: B
`), 0o600))
	_, err = LoadSeedFile(dup)
	assert.ErrorContains(t, err, "duplicate")
}
