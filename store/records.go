package store

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"

	"ticketpass/models"
)

// eventFromRecord validates a stored event record at the store boundary.
// Loosely shaped rows never escape this package.
func eventFromRecord(record *core.Record) (*models.Event, error) {
	price, err := models.ParsePrice(record.GetString("ticket_price"))
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", record.Id, err)
	}

	event := &models.Event{
		ID:                record.Id,
		Name:              record.GetString("name"),
		Date:              record.GetString("date"),
		Time:              record.GetString("time"),
		Location:          record.GetString("location"),
		Description:       record.GetString("description"),
		TicketPrice:       price,
		TicketQuantity:    record.GetInt("ticket_quantity"),
		AvailableTickets:  record.GetInt("available_tickets"),
		CreatorAddress:    record.GetString("creator_address"),
		CollectionAddress: record.GetString("collection_address"),
		TransactionHash:   record.GetString("transaction_hash"),
	}

	if event.TicketQuantity < 1 {
		return nil, fmt.Errorf("event %s: %w: ticket_quantity %d",
			record.Id, models.ErrInvalidRecord, event.TicketQuantity)
	}
	if err := event.CheckInventory(); err != nil {
		return nil, fmt.Errorf("event %s: %w", record.Id, err)
	}

	return event, nil
}

func ticketFromRecord(record *core.Record) (*models.Ticket, error) {
	state := models.TicketState(record.GetString("status"))
	switch state {
	case models.TicketUnused, models.TicketUsed:
	default:
		return nil, fmt.Errorf("ticket %s: %w: status %q",
			record.Id, models.ErrInvalidRecord, state)
	}

	ticket := &models.Ticket{
		ID:             record.Id,
		EventID:        record.GetString("event"),
		OwnerAddress:   record.GetString("owner_address"),
		PurchaseTxHash: record.GetString("purchase_tx_hash"),
		State:          state,
	}

	if usedAt := record.GetDateTime("used_at"); !usedAt.IsZero() {
		t := usedAt.Time().UTC()
		ticket.UsedAt = &t
	}
	if ticket.State == models.TicketUsed && ticket.UsedAt == nil {
		return nil, fmt.Errorf("ticket %s: %w: used without used_at",
			record.Id, models.ErrInvalidRecord)
	}

	return ticket, nil
}
