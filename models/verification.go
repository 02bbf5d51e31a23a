package models

import "time"

// RedemptionStatus is the closed outcome set of a redemption attempt.
type RedemptionStatus string

const (
	RedemptionRedeemed    RedemptionStatus = "redeemed"
	RedemptionAlreadyUsed RedemptionStatus = "already_used"
	RedemptionNotFound    RedemptionStatus = "not_found"
	RedemptionError       RedemptionStatus = "error"
)

// RedemptionOutcome carries what the gate needs to render a decision. For
// already_used the UsedAt is the original timestamp, untouched.
type RedemptionOutcome struct {
	Status RedemptionStatus
	Ticket *Ticket
	UsedAt *time.Time
	Err    error
}

// Wire error types rendered by the verification endpoint.
const (
	ErrorTypeAlreadyUsed = "TICKET_ALREADY_USED"
	ErrorTypeNotFound    = "TICKET_NOT_FOUND"
	ErrorTypeServer      = "SERVER_ERROR"
	ErrorTypeMalformed   = "MALFORMED_CODE"
)

// VerificationResult is the contract the gate UI renders against. Exactly one
// result is produced per verification attempt, camera or manual entry alike.
type VerificationResult struct {
	Valid     bool       `json:"valid"`
	Ticket    *Ticket    `json:"ticket,omitempty"`
	ErrorType string     `json:"errorType,omitempty"`
	Message   string     `json:"message"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}
