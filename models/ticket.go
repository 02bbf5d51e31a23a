package models

import "time"

type TicketState string

const (
	TicketUnused TicketState = "unused"
	TicketUsed   TicketState = "used"
)

// Ticket is minted by a successful reservation and mutated exactly once,
// unused -> used, at the gate. used is terminal.
type Ticket struct {
	ID             string      `json:"id"`
	EventID        string      `json:"event_id"`
	EventName      string      `json:"event_name,omitempty"`
	OwnerAddress   string      `json:"owner_address"`
	PurchaseTxHash string      `json:"purchase_transaction_hash"`
	State          TicketState `json:"state"`
	UsedAt         *time.Time  `json:"used_at,omitempty"`
}

func (t *Ticket) IsUsed() bool {
	return t.State == TicketUsed
}
