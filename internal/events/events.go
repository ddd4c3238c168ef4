// Package events carries typed notifications about ledger mutations to the parts of the
// system that derive state from the ledger: report caches, live sockets and the event stream.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Reason string

const (
	ReasonEntryAdded     Reason = "entry_added"
	ReasonEntryUpdated   Reason = "entry_updated"
	ReasonEntryDeleted   Reason = "entry_deleted"
	ReasonSettled        Reason = "settled"
	ReasonUnsettled      Reason = "unsettled"
	ReasonRecalculated   Reason = "recalculated"
	ReasonPartyCreated   Reason = "party_created"
	ReasonPartyUpdated   Reason = "party_updated"
	ReasonPartyDeleted   Reason = "party_deleted"
	ReasonPartyRenamed   Reason = "party_renamed"
	ReasonCompanyRenamed Reason = "company_renamed"
)

// PartyMutated says that the ledger of Party under UserID changed. Party is empty when the
// change is tenant-wide, such as a company rename.
type PartyMutated struct {
	UserID         string          `json:"user_id"`
	Party          string          `json:"party"`
	Reason         Reason          `json:"reason"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	At             time.Time       `json:"at"`
}

type Handler func(ctx context.Context, event PartyMutated)

// Bus delivers events synchronously to every subscriber in subscription order. Subscribers
// that do I/O must not block the caller for long.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, event PartyMutated) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()
	for _, handler := range handlers {
		handler(ctx, event)
	}
}
