package store

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/model"
)

// Snapshot is the serializable image of the full store. LastSequence records
// the last emitted event sequence so a restarted engine continues the series
// instead of reusing numbers already written to the append-only sinks.
type Snapshot struct {
	Pools        []model.Pool     `json:"pools"`
	Positions    []model.Position `json:"positions"`
	LastSequence uint64           `json:"last_sequence"`
	SavedAt      string           `json:"saved_at"`
}

// Export captures the current store contents in deterministic order.
func (s *Store) Export() Snapshot {
	snap := Snapshot{}
	for key, pool := range s.pools {
		snap.Pools = append(snap.Pools, model.Pool{
			PairKey:  key.Hex(),
			Token0:   pool.Token0.Hex(),
			Token1:   pool.Token1.Hex(),
			Reserve0: pool.Reserve0.String(),
			Reserve1: pool.Reserve1.String(),
		})
	}
	for key, shares := range s.positions {
		snap.Positions = append(snap.Positions, model.Position{
			PairKey: key.Pair.Hex(),
			Holder:  key.Holder.Hex(),
			Shares:  shares.String(),
		})
	}
	sort.Slice(snap.Pools, func(i, j int) bool { return snap.Pools[i].PairKey < snap.Pools[j].PairKey })
	sort.Slice(snap.Positions, func(i, j int) bool {
		if snap.Positions[i].PairKey != snap.Positions[j].PairKey {
			return snap.Positions[i].PairKey < snap.Positions[j].PairKey
		}
		return snap.Positions[i].Holder < snap.Positions[j].Holder
	})
	return snap
}

// Restore replaces the store contents with the snapshot.
func (s *Store) Restore(snap Snapshot) error {
	pools := make(map[common.Hash]Pool, len(snap.Pools))
	positions := make(map[PositionKey]*big.Int, len(snap.Positions))

	for _, rec := range snap.Pools {
		reserve0, ok := new(big.Int).SetString(rec.Reserve0, 10)
		if !ok || reserve0.Sign() < 0 {
			return fmt.Errorf("pool %s: invalid reserve0 %q", rec.PairKey, rec.Reserve0)
		}
		reserve1, ok := new(big.Int).SetString(rec.Reserve1, 10)
		if !ok || reserve1.Sign() < 0 {
			return fmt.Errorf("pool %s: invalid reserve1 %q", rec.PairKey, rec.Reserve1)
		}
		pools[common.HexToHash(rec.PairKey)] = Pool{
			Token0:   common.HexToAddress(rec.Token0),
			Token1:   common.HexToAddress(rec.Token1),
			Reserve0: reserve0,
			Reserve1: reserve1,
		}
	}

	for _, rec := range snap.Positions {
		shares, ok := new(big.Int).SetString(rec.Shares, 10)
		if !ok || shares.Sign() < 0 {
			return fmt.Errorf("position %s/%s: invalid shares %q", rec.PairKey, rec.Holder, rec.Shares)
		}
		positions[PositionKey{
			Holder: common.HexToAddress(rec.Holder),
			Pair:   common.HexToHash(rec.PairKey),
		}] = shares
	}

	s.pools = pools
	s.positions = positions
	return nil
}

// SnapshotStore persists store snapshots to disk.
type SnapshotStore struct {
	path string
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Load reads a snapshot if one exists.
func (c *SnapshotStore) Load() (Snapshot, bool, error) {
	if c.path == "" {
		return Snapshot{}, false, nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// Save writes a snapshot atomically via a tmp file and rename.
func (c *SnapshotStore) Save(snap Snapshot) error {
	if c.path == "" {
		return nil
	}
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	snap.SavedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
