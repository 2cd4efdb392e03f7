// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package sync

import (
	"hash/fnv"
	stdsync "sync"

	json "github.com/goccy/go-json"
)

// snapshot remembers a row-set hash per resource so an unchanged fetch can
// skip its upsert and the score recompute it would trigger.
type snapshot struct {
	mu   stdsync.Mutex
	sums map[Resource]uint64
}

func newSnapshot() *snapshot {
	return &snapshot{sums: make(map[Resource]uint64)}
}

// changed compares sum against the stored value for r, records it, and
// reports whether the resource differs from the last pass. A resource never
// seen before always counts as changed.
func (s *snapshot) changed(r Resource, sum uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.sums[r]
	s.sums[r] = sum
	return !ok || prev != sum
}

func (s *snapshot) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sums = make(map[Resource]uint64)
}

// rowSum is an order-insensitive digest of a row set: each row is hashed
// independently and the per-row hashes fold through commutative accumulators,
// so pagination order does not produce phantom diffs.
func rowSum[T any](rows []T) uint64 {
	var hashes, length uint64
	for _, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			continue
		}
		h := fnv.New64a()
		h.Write(b)
		hashes ^= h.Sum64()
		length += uint64(len(b))
	}
	// The fnv offset distinguishes an empty set from an absent resource.
	return (1469598103934665603 ^ hashes) + length
}
