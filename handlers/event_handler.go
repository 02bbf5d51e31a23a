package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketpass/models"
	"ticketpass/store"
)

type EventHandler struct {
	store *store.Store
}

func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

// List - all events with live availability
func (h *EventHandler) List(e *core.RequestEvent) error {
	events, err := h.store.ListEvents(e.Request.Context())
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load events", err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"events": events,
	})
}

// Get - one event by id
func (h *EventHandler) Get(e *core.RequestEvent) error {
	event, err := h.store.GetEvent(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return apis.NewNotFoundError("Event not found", nil)
		}
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load event", err)
	}
	return e.JSON(http.StatusOK, event)
}

type createEventRequest struct {
	Name              string `json:"name"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Location          string `json:"location"`
	Description       string `json:"description"`
	TicketPrice       string `json:"ticket_price"`
	TicketQuantity    int    `json:"ticket_quantity"`
	CreatorAddress    string `json:"creator_address"`
	CollectionAddress string `json:"collection_address"`
	TransactionHash   string `json:"transaction_hash"`
}

// Create - register a new event with its full inventory available
func (h *EventHandler) Create(e *core.RequestEvent) error {
	var req createEventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	price, err := models.ParsePrice(req.TicketPrice)
	if err != nil {
		return apis.NewBadRequestError("Invalid ticket price", err)
	}

	event := &models.Event{
		Name:              req.Name,
		Date:              req.Date,
		Time:              req.Time,
		Location:          req.Location,
		Description:       req.Description,
		TicketPrice:       price,
		TicketQuantity:    req.TicketQuantity,
		CreatorAddress:    req.CreatorAddress,
		CollectionAddress: req.CollectionAddress,
		TransactionHash:   req.TransactionHash,
	}

	created, err := h.store.CreateEvent(e.Request.Context(), event)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRecord) {
			return apis.NewBadRequestError("Invalid event", err)
		}
		return apis.NewApiError(http.StatusInternalServerError, "Failed to create event", err)
	}
	return e.JSON(http.StatusOK, created)
}
