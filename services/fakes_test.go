package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ticketpass/models"
)

// fakeStore is an in-memory Event/Ticket store. Its mutations hold one lock
// for the whole read-check-mutate step, matching the atomicity contract the
// real store provides through its write transactions.
type fakeStore struct {
	mu      sync.Mutex
	events  map[string]*models.Event
	tickets map[string]*models.Ticket
	nextID  int

	reserveErr error
	redeemErr  error
}

func newFakeStore(events ...*models.Event) *fakeStore {
	s := &fakeStore{
		events:  make(map[string]*models.Event),
		tickets: make(map[string]*models.Ticket),
	}
	for _, e := range events {
		copied := *e
		s.events[e.ID] = &copied
	}
	return s
}

func (s *fakeStore) seedTicket(t *models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *t
	s.tickets[t.ID] = &copied
}

func (s *fakeStore) ticket(id string) *models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[id]; ok {
		copied := *t
		return &copied
	}
	return nil
}

func (s *fakeStore) available(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID].AvailableTickets
}

func (s *fakeStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	copied := *event
	return &copied, nil
}

func (s *fakeStore) ReserveTickets(ctx context.Context, eventID string, quantity int, ownerAddress, txHash string) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reserveErr != nil {
		return nil, 0, s.reserveErr
	}

	event, ok := s.events[eventID]
	if !ok {
		return nil, 0, models.ErrEventNotFound
	}
	if quantity > event.AvailableTickets {
		return nil, 0, models.ErrInsufficientInventory
	}

	event.AvailableTickets -= quantity
	ids := make([]string, 0, quantity)
	for i := 0; i < quantity; i++ {
		s.nextID++
		id := fmt.Sprintf("tkt-%d", s.nextID)
		s.tickets[id] = &models.Ticket{
			ID:             id,
			EventID:        eventID,
			EventName:      event.Name,
			OwnerAddress:   ownerAddress,
			PurchaseTxHash: txHash,
			State:          models.TicketUnused,
		}
		ids = append(ids, id)
	}
	return ids, event.AvailableTickets, nil
}

func (s *fakeStore) ReleaseTickets(ctx context.Context, eventID string, ticketIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return 0, models.ErrEventNotFound
	}

	released := 0
	for _, id := range ticketIDs {
		ticket, ok := s.tickets[id]
		if !ok || ticket.State != models.TicketUnused {
			continue
		}
		delete(s.tickets, id)
		released++
	}

	event.AvailableTickets += released
	if event.AvailableTickets > event.TicketQuantity {
		event.AvailableTickets = event.TicketQuantity
	}
	return event.AvailableTickets, nil
}

func (s *fakeStore) RedeemTicket(ctx context.Context, lookupKey string, now time.Time) (*models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.redeemErr != nil {
		return nil, false, s.redeemErr
	}

	ticket, ok := s.tickets[lookupKey]
	if !ok {
		return nil, false, models.ErrTicketNotFound
	}

	if ticket.IsUsed() {
		copied := *ticket
		return &copied, false, nil
	}

	usedAt := now.UTC()
	ticket.State = models.TicketUsed
	ticket.UsedAt = &usedAt
	copied := *ticket
	return &copied, true, nil
}

// fakeWallet records payment confirmations and fails when told to.
type fakeWallet struct {
	mu        sync.Mutex
	verifyErr error
	calls     []verifyCall
}

type verifyCall struct {
	txHash string
	to     string
	amount decimal.Decimal
}

func (w *fakeWallet) VerifyPayment(ctx context.Context, txHash, to string, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, verifyCall{txHash: txHash, to: to, amount: amount})
	return w.verifyErr
}
