package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticketpass/models"
)

// Store owns all authoritative event and ticket state. Every mutation of
// available_tickets or a ticket's status runs inside a single write
// transaction, so concurrent purchases and redemptions serialize here rather
// than in the clients.
type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	record, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return eventFromRecord(record)
}

func (s *Store) ListEvents(ctx context.Context) ([]*models.Event, error) {
	records, err := s.app.FindAllRecords("events")
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]*models.Event, 0, len(records))
	for _, record := range records {
		event, err := eventFromRecord(record)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// CreateEvent stores a new event with its full capacity available.
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	collection, err := s.app.FindCollectionByNameOrId("events")
	if err != nil {
		return nil, fmt.Errorf("find events collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("name", event.Name)
	record.Set("date", event.Date)
	record.Set("time", event.Time)
	record.Set("location", event.Location)
	record.Set("description", event.Description)
	record.Set("ticket_price", event.TicketPrice.String())
	record.Set("ticket_quantity", event.TicketQuantity)
	record.Set("available_tickets", event.TicketQuantity)
	record.Set("creator_address", event.CreatorAddress)
	record.Set("collection_address", event.CollectionAddress)
	record.Set("transaction_hash", event.TransactionHash)

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}
	return eventFromRecord(record)
}

// ReserveTickets atomically claims quantity units of the event's inventory
// and mints that many unused tickets. The conditional UPDATE and the ticket
// inserts share one transaction: either the availability drops by quantity
// and the tickets exist, or nothing changed. Returns the new ticket ids and
// the remaining availability.
func (s *Store) ReserveTickets(ctx context.Context, eventID string, quantity int, ownerAddress, txHash string) ([]string, int, error) {
	if quantity < 1 {
		return nil, 0, models.ErrInvalidQuantity
	}

	var ids []string
	var remaining int

	err := s.app.RunInTransaction(func(txApp core.App) error {
		result, err := txApp.DB().NewQuery(
			"UPDATE events SET available_tickets = available_tickets - {:qty}" +
				" WHERE id = {:id} AND available_tickets >= {:qty}").
			Bind(dbx.Params{"qty": quantity, "id": eventID}).
			WithContext(ctx).
			Execute()
		if err != nil {
			return fmt.Errorf("decrement availability: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("decrement availability: %w", err)
		}
		if affected == 0 {
			if _, err := txApp.FindRecordById("events", eventID); err != nil {
				return models.ErrEventNotFound
			}
			return models.ErrInsufficientInventory
		}

		collection, err := txApp.FindCollectionByNameOrId("tickets")
		if err != nil {
			return fmt.Errorf("find tickets collection: %w", err)
		}

		ids = make([]string, 0, quantity)
		for i := 0; i < quantity; i++ {
			record := core.NewRecord(collection)
			record.Set("event", eventID)
			record.Set("owner_address", ownerAddress)
			record.Set("purchase_tx_hash", txHash)
			record.Set("status", string(models.TicketUnused))
			if err := txApp.Save(record); err != nil {
				return fmt.Errorf("mint ticket: %w", err)
			}
			ids = append(ids, record.Id)
		}

		event, err := txApp.FindRecordById("events", eventID)
		if err != nil {
			return fmt.Errorf("re-read event: %w", err)
		}
		remaining = event.GetInt("available_tickets")
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return ids, remaining, nil
}

// ReleaseTickets voids never-redeemed tickets of a failed purchase and
// restores their quantity to the event, clamped to the minted capacity.
// Returns the availability after restoration.
func (s *Store) ReleaseTickets(ctx context.Context, eventID string, ticketIDs []string) (int, error) {
	var remaining int

	err := s.app.RunInTransaction(func(txApp core.App) error {
		released := 0
		for _, id := range ticketIDs {
			record, err := txApp.FindRecordById("tickets", id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return fmt.Errorf("find ticket: %w", err)
			}
			if record.GetString("status") != string(models.TicketUnused) {
				// Redeemed tickets stay; only unissued inventory comes back.
				continue
			}
			if err := txApp.Delete(record); err != nil {
				return fmt.Errorf("void ticket: %w", err)
			}
			released++
		}

		if released > 0 {
			_, err := txApp.DB().NewQuery(
				"UPDATE events SET available_tickets = MIN(ticket_quantity, available_tickets + {:n})" +
					" WHERE id = {:id}").
				Bind(dbx.Params{"n": released, "id": eventID}).
				WithContext(ctx).
				Execute()
			if err != nil {
				return fmt.Errorf("restore availability: %w", err)
			}
		}

		event, err := txApp.FindRecordById("events", eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrEventNotFound
			}
			return fmt.Errorf("re-read event: %w", err)
		}
		remaining = event.GetInt("available_tickets")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// RedeemTicket resolves a lookup key and, when the ticket is unused, marks it
// used at now. The read and the transition share one write transaction, so of
// two concurrent attempts exactly one observes unused. The returned bool
// reports whether this call performed the transition; when false the ticket
// was already used and carries its original used_at.
func (s *Store) RedeemTicket(ctx context.Context, lookupKey string, now time.Time) (*models.Ticket, bool, error) {
	var ticket *models.Ticket
	var transitioned bool

	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById("tickets", lookupKey)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrTicketNotFound
			}
			return fmt.Errorf("find ticket: %w", err)
		}

		t, err := ticketFromRecord(record)
		if err != nil {
			return err
		}
		if event, err := txApp.FindRecordById("events", t.EventID); err == nil {
			t.EventName = event.GetString("name")
		}
		ticket = t

		if t.IsUsed() {
			transitioned = false
			return nil
		}

		usedAt := now.UTC()
		record.Set("status", string(models.TicketUsed))
		record.Set("used_at", usedAt)
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("mark ticket used: %w", err)
		}

		t.State = models.TicketUsed
		t.UsedAt = &usedAt
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return ticket, transitioned, nil
}

// TicketsByOwner lists tickets held by a wallet address, newest first.
func (s *Store) TicketsByOwner(ctx context.Context, ownerAddress string) ([]*models.Ticket, error) {
	records, err := s.app.FindRecordsByFilter(
		"tickets",
		"owner_address = {:addr}",
		"-created",
		200,
		0,
		dbx.Params{"addr": ownerAddress},
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, record := range records {
		ticket, err := ticketFromRecord(record)
		if err != nil {
			return nil, err
		}
		if event, err := s.app.FindRecordById("events", ticket.EventID); err == nil {
			ticket.EventName = event.GetString("name")
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}
