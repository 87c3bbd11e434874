// Package repository persists unit ledgers. A primary store (Postgres or
// MongoDB) is the source of truth; a local SQLite cache keeps a copy of every
// write and holds the writes the primary rejected until they are resynced.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
)

// Store loads and partially updates unit ledgers.
type Store interface {
	// Load returns common.ErrNotFound when the unit has never been written.
	Load(ctx context.Context, unitName string) (*unit.State, error)
	// Save merges the non-nil fields of patch into the stored ledger,
	// creating it when absent.
	Save(ctx context.Context, unitName string, patch unit.Patch) error
}

// stateFromColumns fills a ledger from nullable text columns. Missing fields
// take their default values.
func stateFromColumns(target, current string, history []byte) (*unit.State, error) {
	s := unit.Defaults()

	if target != "" {
		d, err := decimal.NewFromString(target)
		if err != nil {
			return nil, fmt.Errorf("invalid stored target %q: %w", target, err)
		}
		s.Target = d
	}
	if current != "" {
		d, err := decimal.NewFromString(current)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", current, err)
		}
		s.CurrentAmount = d
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.History); err != nil {
			return nil, fmt.Errorf("invalid stored history: %w", err)
		}
		if s.History == nil {
			s.History = []unit.HistoryPoint{}
		}
	}
	return &s, nil
}

// patchColumns renders the patch as nullable SQL arguments: nil means keep.
func patchColumns(p unit.Patch) (target, current, history any, err error) {
	if p.Target != nil {
		target = p.Target.String()
	}
	if p.CurrentAmount != nil {
		current = p.CurrentAmount.String()
	}
	if p.History != nil {
		h := *p.History
		if h == nil {
			h = []unit.HistoryPoint{}
		}
		b, mErr := json.Marshal(h)
		if mErr != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode history: %w", mErr)
		}
		history = string(b)
	}
	return target, current, history, nil
}
