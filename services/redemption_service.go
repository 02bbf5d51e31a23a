package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ticketpass/clock"
	"ticketpass/models"
	"ticketpass/monitoring"
)

// RedemptionStore is the slice of the ticket store the state machine needs.
// RedeemTicket must perform its read-check-transition atomically per ticket.
type RedemptionStore interface {
	RedeemTicket(ctx context.Context, lookupKey string, now time.Time) (*models.Ticket, bool, error)
}

// RedemptionService drives the unused -> used transition. used is terminal:
// a second attempt reports the original redemption instead of mutating.
type RedemptionService struct {
	store   RedemptionStore
	clock   clock.Clock
	monitor *monitoring.Monitor
}

func NewRedemptionService(store RedemptionStore, clk clock.Clock, monitor *monitoring.Monitor) *RedemptionService {
	return &RedemptionService{
		store:   store,
		clock:   clk,
		monitor: monitor,
	}
}

// Redeem resolves a lookup key and settles it into exactly one outcome.
// Storage faults map to the error outcome and say nothing about the ticket's
// true state.
func (s *RedemptionService) Redeem(ctx context.Context, lookupKey string) models.RedemptionOutcome {
	ticket, transitioned, err := s.store.RedeemTicket(ctx, lookupKey, s.clock.Now())

	var outcome models.RedemptionOutcome
	switch {
	case errors.Is(err, models.ErrTicketNotFound):
		outcome = models.RedemptionOutcome{Status: models.RedemptionNotFound, Err: err}
	case err != nil:
		slog.Error("ticket redemption failed", "lookup_key", lookupKey, "error", err)
		outcome = models.RedemptionOutcome{Status: models.RedemptionError, Err: err}
	case transitioned:
		outcome = models.RedemptionOutcome{
			Status: models.RedemptionRedeemed,
			Ticket: ticket,
			UsedAt: ticket.UsedAt,
		}
	default:
		outcome = models.RedemptionOutcome{
			Status: models.RedemptionAlreadyUsed,
			Ticket: ticket,
			UsedAt: ticket.UsedAt,
		}
	}

	if s.monitor != nil {
		s.monitor.TrackRedemption(string(outcome.Status))
	}
	return outcome
}
