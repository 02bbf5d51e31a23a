package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketpass/internal/wallet"
	"ticketpass/models"
	"ticketpass/services"
	"ticketpass/store"
)

type TicketHandler struct {
	reservations  *services.ReservationService
	verifications *services.VerificationService
	store         *store.Store
	wallet        wallet.Connector
	environment   string
}

func NewTicketHandler(
	reservations *services.ReservationService,
	verifications *services.VerificationService,
	s *store.Store,
	w wallet.Connector,
	environment string,
) *TicketHandler {
	return &TicketHandler{
		reservations:  reservations,
		verifications: verifications,
		store:         s,
		wallet:        w,
		environment:   environment,
	}
}

type purchaseRequest struct {
	EventID                 string `json:"eventId"`
	Quantity                int    `json:"quantity"`
	BuyerAddress            string `json:"buyerAddress"`
	PurchaseTransactionHash string `json:"purchaseTransactionHash"`
}

// Purchase - reserve tickets against an event and confirm the payment proof
func (h *TicketHandler) Purchase(e *core.RequestEvent) error {
	var req purchaseRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	result, err := h.reservations.Purchase(e.Request.Context(), services.PurchaseInput{
		EventID:       req.EventID,
		Quantity:      req.Quantity,
		BuyerAddress:  req.BuyerAddress,
		PaymentTxHash: req.PurchaseTransactionHash,
	})
	if err != nil {
		return purchaseError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success":          true,
		"ticketIds":        result.TicketIDs,
		"totalCharged":     result.TotalCharged,
		"availableTickets": result.AvailableTickets,
		"ticketsSold":      result.TicketsSold,
	})
}

// purchaseError maps purchase failures to HTTP statuses. Retryable failures
// carry a hint so clients know a fresh attempt may succeed.
func purchaseError(err error) error {
	switch {
	case errors.Is(err, models.ErrEventNotFound):
		return apis.NewNotFoundError("Event not found", nil)
	case errors.Is(err, models.ErrInsufficientInventory):
		return apis.NewApiError(http.StatusConflict, "Not enough tickets available", nil)
	case errors.Is(err, models.ErrDuplicateSubmission):
		return apis.NewApiError(http.StatusConflict, "A purchase for this event is already in progress", nil)
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrQuantityCapExceeded),
		errors.Is(err, models.ErrWalletNotConnected):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, models.ErrPaymentFailed):
		return apis.NewApiError(http.StatusPaymentRequired, "Payment confirmation failed", map[string]any{
			"retryable": models.Retryable(err),
		})
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Purchase failed", err)
	}
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

// VerifyCode - run a scanned or typed code through the verification
// pipeline. Always 200: the result body carries the outcome, including
// failures, so gate UIs render off one shape.
func (h *TicketHandler) VerifyCode(e *core.RequestEvent) error {
	var req verifyCodeRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	result := h.verifications.VerifyCode(e.Request.Context(), req.Code)
	return e.JSON(http.StatusOK, result)
}

// UserTickets - tickets owned by a wallet address, newest first
func (h *TicketHandler) UserTickets(e *core.RequestEvent) error {
	address := e.Request.PathValue("address")
	if address == "" {
		return apis.NewBadRequestError("Missing wallet address", nil)
	}

	tickets, err := h.store.TicketsByOwner(e.Request.Context(), address)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load tickets", err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"tickets": tickets,
	})
}

type simulatePaymentRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// SimulatePayment - development helper that settles a payment through the
// simulated wallet and returns the receipt to feed into a purchase.
func (h *TicketHandler) SimulatePayment(e *core.RequestEvent) error {
	if h.environment == "production" {
		return apis.NewForbiddenError("Not available in production", nil)
	}
	if h.wallet.Provider() != wallet.ProviderSimulated {
		return apis.NewBadRequestError("Simulated wallet only", nil)
	}

	var req simulatePaymentRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	amount, err := models.ParsePrice(req.Amount)
	if err != nil {
		return apis.NewBadRequestError("Invalid amount", err)
	}

	ctx := e.Request.Context()
	if h.wallet.CurrentAccount() == "" {
		if _, err := h.wallet.Connect(ctx); err != nil {
			return apis.NewApiError(http.StatusInternalServerError, "Wallet connection failed", err)
		}
	}

	receipt, err := h.wallet.SendPayment(ctx, req.To, amount)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Simulated payment failed", err)
	}
	return e.JSON(http.StatusOK, receipt)
}
