package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ticketpass/clock"
	"ticketpass/config"
	"ticketpass/models"
	"ticketpass/monitoring"
)

// ReservationStore is the slice of the ticket store the purchase engine
// needs. ReserveTickets must check and decrement availability and mint the
// tickets in one atomic step; ReleaseTickets must undo it the same way.
type ReservationStore interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ReserveTickets(ctx context.Context, eventID string, quantity int, ownerAddress, txHash string) ([]string, int, error)
	ReleaseTickets(ctx context.Context, eventID string, ticketIDs []string) (int, error)
}

// PaymentVerifier confirms a payment proof against the wallet collaborator.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txHash, to string, amount decimal.Decimal) error
}

// ReservationService runs the purchase flow: suppress duplicate submissions,
// reserve inventory atomically, confirm the payment proof, and roll the
// reservation back when confirmation fails. Redis holds only bookkeeping
// (in-flight locks, pending markers, advisory availability); the store stays
// authoritative.
type ReservationService struct {
	store   ReservationStore
	wallet  PaymentVerifier
	redis   *redis.Client
	pubnub  *pubnub.PubNub
	monitor *monitoring.Monitor
	config  *config.Config
	clock   clock.Clock
}

func NewReservationService(
	store ReservationStore,
	wallet PaymentVerifier,
	redisClient *redis.Client,
	pn *pubnub.PubNub,
	monitor *monitoring.Monitor,
	cfg *config.Config,
	clk clock.Clock,
) *ReservationService {
	return &ReservationService{
		store:   store,
		wallet:  wallet,
		redis:   redisClient,
		pubnub:  pn,
		monitor: monitor,
		config:  cfg,
		clock:   clk,
	}
}

type PurchaseInput struct {
	EventID       string
	Quantity      int
	BuyerAddress  string
	PaymentTxHash string
}

type PurchaseResult struct {
	TicketIDs        []string        `json:"ticketIds"`
	TotalCharged     decimal.Decimal `json:"totalCharged"`
	AvailableTickets int             `json:"availableTickets"`
	TicketsSold      int             `json:"ticketsSold"`
}

// pendingPurchase is the Redis marker written before payment confirmation.
// The reconciler uses it to roll back reservations orphaned mid-confirmation.
type pendingPurchase struct {
	EventID      string    `json:"event_id"`
	TicketIDs    []string  `json:"ticket_ids"`
	BuyerAddress string    `json:"buyer_address"`
	CreatorAddr  string    `json:"creator_address"`
	Amount       string    `json:"amount"`
	TxHash       string    `json:"tx_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func purchaseLockKey(eventID, buyer string) string {
	return fmt.Sprintf("purchase:inflight:%s:%s", eventID, buyer)
}

func pendingKey(txHash string) string {
	return "pending:purchase:" + txHash
}

func availabilityKey(eventID string) string {
	return "availability:" + eventID
}

// Purchase reserves quantity tickets for the buyer and confirms the payment
// proof. All-or-nothing: on confirmation failure the minted tickets are
// voided and availability restored before the error is returned.
func (s *ReservationService) Purchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	start := time.Now()

	if in.Quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}
	if in.Quantity > s.config.PerTransactionCap {
		return nil, fmt.Errorf("%w: max %d per transaction",
			models.ErrQuantityCapExceeded, s.config.PerTransactionCap)
	}
	if strings.TrimSpace(in.BuyerAddress) == "" {
		return nil, models.ErrWalletNotConnected
	}
	if strings.TrimSpace(in.PaymentTxHash) == "" {
		return nil, fmt.Errorf("%w: missing payment proof", models.ErrPaymentFailed)
	}

	// One in-flight purchase per buyer per event; a second click while the
	// first is pending is suppressed, not queued.
	lockKey := purchaseLockKey(in.EventID, in.BuyerAddress)
	locked, err := s.redis.SetNX(ctx, lockKey, 1, s.config.PurchaseLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire purchase lock: %w", err)
	}
	if !locked {
		return nil, models.ErrDuplicateSubmission
	}
	defer s.redis.Del(context.WithoutCancel(ctx), lockKey)

	event, err := s.store.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if in.Quantity > event.AvailableTickets {
		s.trackReservation(in.EventID, "insufficient")
		return nil, models.ErrInsufficientInventory
	}

	// Authoritative price, never the client's.
	total := event.TotalPrice(in.Quantity)

	ticketIDs, remaining, err := s.store.ReserveTickets(ctx, in.EventID, in.Quantity, in.BuyerAddress, in.PaymentTxHash)
	if err != nil {
		s.trackReservation(in.EventID, "failed")
		return nil, err
	}

	// Marker first, so a crash between reservation and confirmation leaves
	// a trail the reconciler can settle.
	s.writePendingMarker(ctx, in, event, ticketIDs, total)

	confirmCtx, cancel := context.WithTimeout(ctx, s.config.PaymentConfirmWait)
	err = s.wallet.VerifyPayment(confirmCtx, in.PaymentTxHash, event.CreatorAddress, total)
	cancel()
	if err != nil {
		restored, rbErr := s.store.ReleaseTickets(context.WithoutCancel(ctx), in.EventID, ticketIDs)
		if rbErr != nil {
			slog.Error("reservation rollback failed",
				"event_id", in.EventID, "ticket_ids", ticketIDs, "error", rbErr)
		} else {
			s.publishAvailability(ctx, in.EventID, restored)
		}
		s.redis.Del(context.WithoutCancel(ctx), pendingKey(in.PaymentTxHash))
		s.trackReservation(in.EventID, "payment_failed")
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentFailed, err)
	}

	s.redis.Del(ctx, pendingKey(in.PaymentTxHash))
	s.publishAvailability(ctx, in.EventID, remaining)
	s.trackReservation(in.EventID, "success")
	if s.monitor != nil {
		s.monitor.TrackReservationDuration(time.Since(start))
	}

	event.AvailableTickets = remaining
	return &PurchaseResult{
		TicketIDs:        ticketIDs,
		TotalCharged:     total,
		AvailableTickets: remaining,
		TicketsSold:      event.TicketsSold(),
	}, nil
}

func (s *ReservationService) writePendingMarker(ctx context.Context, in PurchaseInput, event *models.Event, ticketIDs []string, total decimal.Decimal) {
	marker := pendingPurchase{
		EventID:      in.EventID,
		TicketIDs:    ticketIDs,
		BuyerAddress: in.BuyerAddress,
		CreatorAddr:  event.CreatorAddress,
		Amount:       total.String(),
		TxHash:       in.PaymentTxHash,
		CreatedAt:    s.clock.Now(),
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return
	}
	// No TTL: the marker must outlive a crash for the reconciler to see it.
	if err := s.redis.Set(ctx, pendingKey(in.PaymentTxHash), string(data), 0).Err(); err != nil {
		slog.Error("write pending purchase marker", "tx_hash", shortHash(in.PaymentTxHash), "error", err)
	}
}

func shortHash(s string) string {
	if len(s) > 10 {
		return s[:10] + "..."
	}
	return s
}

// publishAvailability refreshes the advisory cache and notifies subscribed
// clients. Display-only; reconciled from authoritative responses.
func (s *ReservationService) publishAvailability(ctx context.Context, eventID string, remaining int) {
	if err := s.redis.Set(ctx, availabilityKey(eventID), remaining, 0).Err(); err != nil {
		slog.Error("update availability cache", "event_id", eventID, "error", err)
	}
	if s.monitor != nil {
		s.monitor.SetAvailable(eventID, remaining)
	}
	if s.pubnub != nil {
		s.pubnub.Publish().
			Channel("event-" + eventID).
			Message(map[string]any{
				"type":              "availability",
				"event_id":          eventID,
				"available_tickets": remaining,
			}).
			Execute()
	}
}

func (s *ReservationService) trackReservation(eventID, status string) {
	if s.monitor != nil {
		s.monitor.TrackReservation(eventID, status)
	}
}

// ReconcilePendingPurchases settles markers left behind by purchases that
// never concluded (crash or lost response between reservation and payment
// confirmation). Runs until ctx is cancelled.
func (s *ReservationService) ReconcilePendingPurchases(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reconcileOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ReservationService) reconcileOnce(ctx context.Context) {
	keys, err := s.redis.Keys(ctx, "pending:purchase:*").Result()
	if err != nil {
		slog.Error("scan pending purchases", "error", err)
		return
	}

	for _, key := range keys {
		data, err := s.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var marker pendingPurchase
		if err := json.Unmarshal([]byte(data), &marker); err != nil {
			slog.Error("corrupt pending purchase marker", "key", key, "error", err)
			s.redis.Del(ctx, key)
			continue
		}

		if s.clock.Now().Sub(marker.CreatedAt) < s.config.PendingPaymentTTL {
			// Still inside the confirmation window of a live request.
			continue
		}

		amount, err := decimal.NewFromString(marker.Amount)
		if err != nil {
			slog.Error("corrupt pending purchase amount", "key", key, "error", err)
			s.redis.Del(ctx, key)
			continue
		}

		confirmCtx, cancel := context.WithTimeout(ctx, s.config.PaymentConfirmWait)
		err = s.wallet.VerifyPayment(confirmCtx, marker.TxHash, marker.CreatorAddr, amount)
		cancel()

		if err != nil {
			restored, rbErr := s.store.ReleaseTickets(ctx, marker.EventID, marker.TicketIDs)
			if rbErr != nil {
				slog.Error("reconcile rollback failed",
					"event_id", marker.EventID, "error", rbErr)
				continue
			}
			s.publishAvailability(ctx, marker.EventID, restored)
			slog.Info("rolled back unconfirmed purchase",
				"event_id", marker.EventID, "tickets", len(marker.TicketIDs))
		}
		s.redis.Del(ctx, key)
	}
}
