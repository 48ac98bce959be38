// Package shard implements deterministic partitioning of row groups across
// parallel workers.
//
// Every worker runs the same seeded assignment over the same global row-group
// ordering, so the workers agree on a disjoint, complete partition without
// any coordination: row-group ordinals are shuffled with the shared seed and
// dealt round-robin to shards. A worker then reads only the ordinals assigned
// to its shard index.
package shard

import (
	"fmt"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
)

// Assignment is the set of row-group ordinals owned by one shard.
type Assignment struct {
	shardCount int
	shardIndex int
	seed       int64
	total      int
	set        *roaring.Bitmap
	ordinals   []uint32 // assignment order (shuffled), not sorted
}

// Assign partitions the ordinals [0, total) across shardCount shards and
// returns the assignment for shardIndex. The same (total, shardCount, seed)
// triple always produces the same partition.
func Assign(total, shardCount, shardIndex int, seed int64) (*Assignment, error) {
	if total < 0 {
		return nil, fmt.Errorf("shard: total must be non-negative, got %d", total)
	}
	if shardCount < 1 {
		return nil, fmt.Errorf("shard: shard count must be at least 1, got %d", shardCount)
	}
	if shardIndex < 0 || shardIndex >= shardCount {
		return nil, fmt.Errorf("shard: shard index %d outside [0, %d)", shardIndex, shardCount)
	}

	perm := make([]uint32, total)
	for i := range perm {
		perm[i] = uint32(i)
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(total, func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})

	set := roaring.New()
	var ordinals []uint32
	for i := shardIndex; i < total; i += shardCount {
		set.Add(perm[i])
		ordinals = append(ordinals, perm[i])
	}

	return &Assignment{
		shardCount: shardCount,
		shardIndex: shardIndex,
		seed:       seed,
		total:      total,
		set:        set,
		ordinals:   ordinals,
	}, nil
}

// Contains reports whether the shard owns the given row-group ordinal.
func (a *Assignment) Contains(ordinal uint32) bool {
	return a.set.Contains(ordinal)
}

// Len returns the number of row groups assigned to this shard.
func (a *Assignment) Len() int {
	return int(a.set.GetCardinality())
}

// Ordinals returns the assigned ordinals in assignment order. The returned
// slice must not be mutated.
func (a *Assignment) Ordinals() []uint32 {
	return a.ordinals
}

// ShardCount returns the total number of shards in the partition.
func (a *Assignment) ShardCount() int { return a.shardCount }

// ShardIndex returns this shard's index.
func (a *Assignment) ShardIndex() int { return a.shardIndex }

// Seed returns the partition seed.
func (a *Assignment) Seed() int64 { return a.seed }
