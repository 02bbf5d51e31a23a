package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/tests"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "ticketpass/migrations"
	"ticketpass/models"
)

func setupStore(t testing.TB) *Store {
	t.Helper()

	// tests.NewTestApp runs all registered migrations, including the
	// ones from the blank ticketpass/migrations import below.
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	return New(app)
}

func createTestEvent(t testing.TB, s *Store, quantity int) *models.Event {
	t.Helper()

	event, err := s.CreateEvent(context.Background(), &models.Event{
		Name:           "Go Conf",
		TicketPrice:    decimal.RequireFromString("0.05"),
		TicketQuantity: quantity,
		CreatorAddress: "0xcreator",
	})
	require.NoError(t, err)
	return event
}

func TestStore_CreateAndGetEvent(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	event := createTestEvent(t, s, 100)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, 100, event.AvailableTickets, "a new event starts with full capacity")

	got, err := s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "Go Conf", got.Name)
	assert.True(t, got.TicketPrice.Equal(decimal.RequireFromString("0.05")),
		"got price %s", got.TicketPrice)
	assert.Equal(t, 100, got.AvailableTickets)

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrEventNotFound)

	_, err = s.CreateEvent(ctx, &models.Event{TicketQuantity: 10, CreatorAddress: "0xcreator"})
	assert.ErrorIs(t, err, models.ErrInvalidRecord, "nameless event must be rejected")
}

func TestStore_ReserveTickets(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	event := createTestEvent(t, s, 100)

	ids, remaining, err := s.ReserveTickets(ctx, event.ID, 3, "0xbuyer", "0xpay")
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, 97, remaining)

	got, err := s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 97, got.AvailableTickets)

	tickets, err := s.TicketsByOwner(ctx, "0xbuyer")
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	for _, ticket := range tickets {
		assert.Equal(t, event.ID, ticket.EventID)
		assert.Equal(t, "Go Conf", ticket.EventName)
		assert.Equal(t, "0xpay", ticket.PurchaseTxHash)
		assert.Equal(t, models.TicketUnused, ticket.State)
	}
}

func TestStore_ReserveTickets_InsufficientLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	event := createTestEvent(t, s, 2)

	_, _, err := s.ReserveTickets(ctx, event.ID, 3, "0xbuyer", "0xpay")
	require.ErrorIs(t, err, models.ErrInsufficientInventory)

	got, err := s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableTickets, "a failed reservation must not move availability")

	tickets, err := s.TicketsByOwner(ctx, "0xbuyer")
	require.NoError(t, err)
	assert.Empty(t, tickets, "a failed reservation must not mint tickets")
}

func TestStore_ReserveTickets_UnknownEvent(t *testing.T) {
	s := setupStore(t)

	_, _, err := s.ReserveTickets(context.Background(), "missing", 1, "0xbuyer", "0xpay")
	assert.ErrorIs(t, err, models.ErrEventNotFound,
		"an unconditional zero-row update must be told apart from a sold-out event")
}

func TestStore_ReserveTickets_InvalidQuantity(t *testing.T) {
	s := setupStore(t)
	event := createTestEvent(t, s, 10)

	_, _, err := s.ReserveTickets(context.Background(), event.ID, 0, "0xbuyer", "0xpay")
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
}

func TestStore_ReserveTickets_ConcurrentLastTicket(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	event := createTestEvent(t, s, 1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, buyer := range []string{"0xalice", "0xbob"} {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()
			_, _, err := s.ReserveTickets(ctx, event.ID, 1, buyer, "0xpay-"+buyer)
			errs <- err
		}(buyer)
	}
	wg.Wait()
	close(errs)

	succeeded, insufficient := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, models.ErrInsufficientInventory):
			insufficient++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one buyer may take the last ticket")
	assert.Equal(t, 1, insufficient)

	got, err := s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableTickets)
}

func TestStore_ReleaseTickets(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	s := setupStore(t)
	event := createTestEvent(t, s, 3)

	ids, remaining, err := s.ReserveTickets(ctx, event.ID, 3, "0xbuyer", "0xpay")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	// One ticket goes through the gate before the purchase is rolled back.
	_, transitioned, err := s.RedeemTicket(ctx, ids[0], now)
	require.NoError(t, err)
	require.True(t, transitioned)

	remaining, err = s.ReleaseTickets(ctx, event.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining, "only unused tickets come back to the pool")

	ticket, transitioned, err := s.RedeemTicket(ctx, ids[0], now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, transitioned, "the redeemed ticket must survive the rollback")
	assert.Equal(t, models.TicketUsed, ticket.State)

	_, _, err = s.RedeemTicket(ctx, ids[1], now)
	assert.ErrorIs(t, err, models.ErrTicketNotFound, "voided tickets are gone")

	remaining, err = s.ReleaseTickets(ctx, event.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining, "a replayed release restores nothing")
}

func TestStore_ReleaseTickets_ClampsToCapacity(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	event := createTestEvent(t, s, 3)

	ids, _, err := s.ReserveTickets(ctx, event.ID, 1, "0xbuyer", "0xpay")
	require.NoError(t, err)

	// A competing restore already brought availability back to capacity.
	record, err := s.app.FindRecordById("events", event.ID)
	require.NoError(t, err)
	record.Set("available_tickets", 3)
	require.NoError(t, s.app.Save(record))

	remaining, err := s.ReleaseTickets(ctx, event.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining, "availability must never exceed the minted capacity")
}

func TestStore_RedeemTicket(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	s := setupStore(t)
	event := createTestEvent(t, s, 5)

	ids, _, err := s.ReserveTickets(ctx, event.ID, 1, "0xbuyer", "0xpay")
	require.NoError(t, err)

	ticket, transitioned, err := s.RedeemTicket(ctx, ids[0], now)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, models.TicketUsed, ticket.State)
	assert.Equal(t, "Go Conf", ticket.EventName)
	assert.Equal(t, "0xbuyer", ticket.OwnerAddress)
	require.NotNil(t, ticket.UsedAt)
	assert.True(t, ticket.UsedAt.Equal(now))

	replay, transitioned, err := s.RedeemTicket(ctx, ids[0], now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, transitioned)
	require.NotNil(t, replay.UsedAt)
	assert.True(t, replay.UsedAt.Equal(now), "a replay must report the original redemption time")

	_, _, err = s.RedeemTicket(ctx, "missing", now)
	assert.ErrorIs(t, err, models.ErrTicketNotFound)
}

func TestStore_RedeemTicket_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	event := createTestEvent(t, s, 5)

	ids, _, err := s.ReserveTickets(ctx, event.ID, 1, "0xbuyer", "0xpay")
	require.NoError(t, err)

	const attempts = 8
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second)
			_, transitioned, err := s.RedeemTicket(ctx, ids[0], now)
			assert.NoError(t, err)
			results <- transitioned
		}(i)
	}
	wg.Wait()
	close(results)

	winners := 0
	for transitioned := range results {
		if transitioned {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one attempt may perform the transition")
}

func TestStore_TicketsByOwner(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	event := createTestEvent(t, s, 10)

	_, _, err := s.ReserveTickets(ctx, event.ID, 2, "0xalice", "0xpay-a")
	require.NoError(t, err)
	_, _, err = s.ReserveTickets(ctx, event.ID, 1, "0xbob", "0xpay-b")
	require.NoError(t, err)

	alice, err := s.TicketsByOwner(ctx, "0xalice")
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	bob, err := s.TicketsByOwner(ctx, "0xbob")
	require.NoError(t, err)
	assert.Len(t, bob, 1)

	nobody, err := s.TicketsByOwner(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Empty(t, nobody)
}
