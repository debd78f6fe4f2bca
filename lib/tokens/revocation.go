// GraphScope
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gravitational/graphscope/lib/defaults"
)

// RevocationSet tracks token IDs invalidated before their natural expiry.
// It is read on every protected request and written on logout, so lookups
// take a read lock only. Entries self-expire at the token's own expiry.
type RevocationSet struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	clock   clockwork.Clock
}

// NewRevocationSet returns an empty revocation set.
func NewRevocationSet(clock clockwork.Clock) *RevocationSet {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RevocationSet{
		entries: make(map[string]time.Time),
		clock:   clock,
	}
}

// Add marks tokenID revoked until expiry. Adding an existing entry keeps
// the later expiry.
func (r *RevocationSet) Add(tokenID string, expiry time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[tokenID]; ok && cur.After(expiry) {
		return
	}
	r.entries[tokenID] = expiry
}

// Contains reports whether tokenID is currently revoked. Entries past their
// expiry no longer count; they are collected by Sweep.
func (r *RevocationSet) Contains(tokenID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	expiry, ok := r.entries[tokenID]
	return ok && r.clock.Now().Before(expiry)
}

// Len returns the number of tracked entries, including not-yet-swept ones.
func (r *RevocationSet) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep drops entries whose tokens have expired on their own and returns
// the number removed.
func (r *RevocationSet) Sweep() int {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for tokenID, expiry := range r.entries {
		if !now.Before(expiry) {
			delete(r.entries, tokenID)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps periodically until ctx is done.
func (r *RevocationSet) RunSweeper(ctx context.Context) {
	ticker := r.clock.NewTicker(defaults.RevocationSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}
