package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"bookkeeping/internal/events"
)

// PartyUpdate is pushed to every open socket of the owning user after a party's ledger
// changes.
type PartyUpdate struct {
	Party          string `json:"party"`
	ClosingBalance string `json:"closing_balance"`
	Reason         string `json:"reason"`
	At             string `json:"at"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// BroadcastParty never blocks: a client whose buffer is full misses the update.
func (h *Hub) BroadcastParty(userID string, update PartyUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

// Handle is subscribed to the event bus.
func (h *Hub) Handle(_ context.Context, event events.PartyMutated) {
	h.BroadcastParty(event.UserID, PartyUpdate{
		Party:          event.Party,
		ClosingBalance: event.ClosingBalance.StringFixed(2),
		Reason:         string(event.Reason),
		At:             event.At.UTC().Format(time.RFC3339),
	})
}

func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
