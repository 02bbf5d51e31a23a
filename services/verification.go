package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketpass/models"
	"ticketpass/monitoring"
)

// Redeemer runs the redemption state machine for a resolved lookup key.
type Redeemer interface {
	Redeem(ctx context.Context, lookupKey string) models.RedemptionOutcome
}

// VerificationService is the single pipeline behind both the verify-code
// endpoint and the gate scan feed: resolve the code, redeem, classify.
// Every attempt yields exactly one result.
type VerificationService struct {
	redeemer Redeemer
	monitor  *monitoring.Monitor
	timeout  time.Duration
}

func NewVerificationService(redeemer Redeemer, monitor *monitoring.Monitor, timeout time.Duration) *VerificationService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &VerificationService{
		redeemer: redeemer,
		monitor:  monitor,
		timeout:  timeout,
	}
}

// VerifyCode takes the raw scanned or typed code. Malformed codes
// short-circuit before any redemption attempt.
func (s *VerificationService) VerifyCode(ctx context.Context, raw string) models.VerificationResult {
	start := time.Now()
	defer func() {
		if s.monitor != nil {
			s.monitor.TrackVerificationDuration(time.Since(start))
		}
	}()

	lookupKey, err := ResolveTicketCode(raw)
	if err != nil {
		return models.VerificationResult{
			Valid:     false,
			ErrorType: models.ErrorTypeMalformed,
			Message:   "No ticket ID found in code",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome := s.redeemer.Redeem(ctx, lookupKey)
	if errors.Is(outcome.Err, context.DeadlineExceeded) {
		outcome = models.RedemptionOutcome{Status: models.RedemptionError, Err: outcome.Err}
	}
	return Classify(outcome)
}

// Classify maps a redemption outcome to the closed set of display results
// the gate UI renders against.
func Classify(outcome models.RedemptionOutcome) models.VerificationResult {
	switch outcome.Status {
	case models.RedemptionRedeemed:
		return models.VerificationResult{
			Valid:   true,
			Ticket:  outcome.Ticket,
			Message: "Valid – First Entry",
		}
	case models.RedemptionAlreadyUsed:
		result := models.VerificationResult{
			Valid:     false,
			Ticket:    outcome.Ticket,
			ErrorType: models.ErrorTypeAlreadyUsed,
			UsedAt:    outcome.UsedAt,
		}
		if outcome.UsedAt != nil {
			result.Message = fmt.Sprintf("Ticket already used at %s",
				outcome.UsedAt.Format(time.RFC3339))
		} else {
			result.Message = "Ticket already used"
		}
		return result
	case models.RedemptionNotFound:
		return models.VerificationResult{
			Valid:     false,
			ErrorType: models.ErrorTypeNotFound,
			Message:   "Ticket does not exist",
		}
	default:
		return models.VerificationResult{
			Valid:     false,
			ErrorType: models.ErrorTypeServer,
			Message:   "Verification failed, please try again",
		}
	}
}
