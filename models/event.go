package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Event holds ticket inventory for a single sale. available_tickets only
// moves down, and only through the store's atomic reservation; the copies
// clients see are advisory.
type Event struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Date              string          `json:"date"`
	Time              string          `json:"time"`
	Location          string          `json:"location"`
	Description       string          `json:"description"`
	TicketPrice       decimal.Decimal `json:"ticket_price"`
	TicketQuantity    int             `json:"ticket_quantity"`
	AvailableTickets  int             `json:"available_tickets"`
	CreatorAddress    string          `json:"creator_address"`
	CollectionAddress string          `json:"collection_address,omitempty"`
	TransactionHash   string          `json:"transaction_hash,omitempty"`
}

func (e *Event) TicketsSold() int {
	return e.TicketQuantity - e.AvailableTickets
}

// TotalPrice returns the authoritative charge for quantity tickets.
func (e *Event) TotalPrice(quantity int) decimal.Decimal {
	return e.TicketPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Validate checks the fields an organizer submits at creation time.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if e.TicketQuantity < 1 {
		return fmt.Errorf("%w: ticket_quantity must be positive", ErrInvalidRecord)
	}
	if e.TicketPrice.IsNegative() {
		return fmt.Errorf("%w: ticket_price must not be negative", ErrInvalidRecord)
	}
	if strings.TrimSpace(e.CreatorAddress) == "" {
		return fmt.Errorf("%w: creator_address is required", ErrInvalidRecord)
	}
	return nil
}

// CheckInventory verifies the stored counters are inside their bounds.
func (e *Event) CheckInventory() error {
	if e.AvailableTickets < 0 || e.AvailableTickets > e.TicketQuantity {
		return fmt.Errorf("%w: available_tickets %d outside [0, %d]",
			ErrInvalidRecord, e.AvailableTickets, e.TicketQuantity)
	}
	return nil
}

// ParsePrice parses a base-unit decimal price string submitted by a client.
func ParsePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad ticket_price %q", ErrInvalidRecord, s)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: ticket_price must not be negative", ErrInvalidRecord)
	}
	return price, nil
}
