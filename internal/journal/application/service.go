// Package application exposes journal appends and chain verification.
package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/wqellis/brickvest/internal/journal/domain"
	"github.com/wqellis/brickvest/pkg/idgen"
	"github.com/wqellis/brickvest/pkg/logger"
	"github.com/wqellis/brickvest/pkg/metrics"
)

// NewEntry carries the fields of an entry to append; sequence, linkage and
// hash are assigned by the service.
type NewEntry struct {
	OrderID   string
	Account   string
	Direction domain.Direction
	Kind      domain.Kind
	Amount    decimal.Decimal
}

// JournalService appends to and verifies the hash chain.
//
// Appends serialize on a single-writer mutex, and the tail read inside the
// caller's transaction takes a row lock, so two entries can never claim the
// same previous hash even across processes.
type JournalService struct {
	entries domain.EntryRepository
	metrics *metrics.Metrics

	mu sync.Mutex
	// halted is set when verification detects tampering. All further
	// appends are refused until an operator intervenes; the engine never
	// clears it itself. The flag lives only in this process: a restart
	// clears it, so the journal_tamper_detected alert must be resolved by
	// re-running verification against the repaired chain, not by
	// restarting the engine.
	halted atomic.Bool
}

// NewJournalService creates the service.
func NewJournalService(entries domain.EntryRepository) *JournalService {
	return &JournalService{entries: entries}
}

// SetMetrics attaches the Prometheus collectors. Optional; nil-safe.
func (s *JournalService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Append seals and persists the given entries as consecutive links of the
// chain. Callers run it inside the transaction of the order transition the
// entries record, so either all of them land with the rest of the
// transition's effects or none do.
func (s *JournalService) Append(ctx context.Context, newEntries []NewEntry) ([]*domain.Entry, error) {
	if len(newEntries) == 0 {
		return nil, domain.ErrEmptyAppend
	}
	if s.halted.Load() {
		return nil, domain.ErrJournalHalted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tail, err := s.entries.GetTail(ctx)
	if err != nil {
		return nil, err
	}

	nextSeq := uint64(1)
	prevHash := domain.GenesisHash
	if tail != nil {
		nextSeq = tail.Sequence + 1
		prevHash = tail.Hash
	}

	sealed := make([]*domain.Entry, 0, len(newEntries))
	for _, ne := range newEntries {
		entry := &domain.Entry{
			EntryID:   idgen.GenPrefixedID("JRN"),
			OrderID:   ne.OrderID,
			Account:   ne.Account,
			Direction: ne.Direction,
			Kind:      ne.Kind,
			Amount:    ne.Amount,
		}
		entry.Seal(nextSeq, prevHash)
		prevHash = entry.Hash
		nextSeq++
		sealed = append(sealed, entry)
	}

	if err := s.entries.Create(ctx, sealed); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.JournalEntriesTotal.Add(float64(len(sealed)))
	}
	return sealed, nil
}

// Verify recomputes hashes across [fromSeq, toSeq] and reports the first
// sequence whose stored hash disagrees. A mismatch halts further appends
// and is surfaced as an operator alert, never repaired here.
func (s *JournalService) Verify(ctx context.Context, fromSeq, toSeq uint64) (*domain.VerificationResult, error) {
	if fromSeq == 0 {
		fromSeq = 1
	}
	if toSeq != 0 && toSeq < fromSeq {
		return nil, domain.ErrInvalidRange
	}
	if toSeq == 0 {
		tail, err := s.entries.GetTail(ctx)
		if err != nil {
			return nil, err
		}
		if tail == nil {
			return &domain.VerificationResult{OK: true}, nil
		}
		toSeq = tail.Sequence
	}

	entries, err := s.entries.GetRange(ctx, fromSeq, toSeq)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &domain.VerificationResult{OK: true}, nil
	}

	prevHash := domain.GenesisHash
	if entries[0].Sequence > 1 {
		prev, err := s.entries.GetBefore(ctx, entries[0].Sequence)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			prevHash = prev.Hash
		}
	}

	expectedSeq := entries[0].Sequence
	for _, entry := range entries {
		// A gap or reordering breaks the chain just like an edited field.
		if entry.Sequence != expectedSeq || entry.PreviousHash != prevHash || entry.ComputeHash() != entry.Hash {
			s.halted.Store(true)
			if s.metrics != nil {
				s.metrics.JournalTamperDetected.Set(1)
			}
			logger.Error(ctx, "journal tamper detected",
				"sequence", entry.Sequence,
				"entry_id", entry.EntryID,
			)
			return &domain.VerificationResult{
				OK:               false,
				FirstMismatchSeq: entry.Sequence,
				EntriesChecked:   len(entries),
			}, nil
		}
		prevHash = entry.Hash
		expectedSeq++
	}

	return &domain.VerificationResult{OK: true, EntriesChecked: len(entries)}, nil
}

// Halted reports whether appends are refused after a detected tamper.
func (s *JournalService) Halted() bool { return s.halted.Load() }

// ListByOrder returns the entries recorded for an order.
func (s *JournalService) ListByOrder(ctx context.Context, orderID string) ([]*domain.Entry, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	return s.entries.ListByOrder(ctx, orderID)
}

// List pages through the chain, newest first.
func (s *JournalService) List(ctx context.Context, limit, offset int) ([]*domain.Entry, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.entries.List(ctx, limit, offset)
}
