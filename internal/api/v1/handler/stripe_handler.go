package handler

import (
	"io"
	"net/http"

	"streampass/internal/api/v1/dto"
	"streampass/internal/api/v1/response"
	"streampass/internal/middleware"
	"streampass/internal/service"

	"github.com/rs/zerolog"
)

const maxWebhookBodyBytes = 1 << 20

// StripeHandler handles billing endpoints and the Stripe webhook.
type StripeHandler struct {
	stripeSvc *service.StripeService
	logger    zerolog.Logger
}

func NewStripeHandler(stripeSvc *service.StripeService, logger zerolog.Logger) *StripeHandler {
	return &StripeHandler{stripeSvc: stripeSvc, logger: logger}
}

// RegisterRoutes registers the stripe endpoints.
func (h *StripeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /stripe/products", h.Products)
	mux.Handle("POST /stripe/portal", authMiddleware(http.HandlerFunc(h.Portal)))
	mux.Handle("GET /stripe/payment-link", authMiddleware(http.HandlerFunc(h.PaymentLink)))
	mux.HandleFunc("POST /stripe/webhook", h.Webhook)
	mux.HandleFunc("GET /stripe/success", h.Success)
	mux.HandleFunc("GET /stripe/cancel", h.Cancel)
}

// Products godoc
// @Summary List subscription products
// @Description Returns the active recurring prices with their products.
// @Tags stripe
// @Produce json
// @Success 200 {array} dto.ProductResponseDTO
// @Failure 500 {object} dto.ErrorResponseDTO
// @Router /stripe/products [get]
func (h *StripeHandler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.stripeSvc.GetProducts(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list products")
		response.Error(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}
	out := make([]dto.ProductResponseDTO, 0, len(products))
	for _, p := range products {
		out = append(out, dto.ProductResponseDTO(p))
	}
	response.JSON(w, http.StatusOK, out)
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Description Generates a Stripe Customer Portal session URL for the authenticated user.
// @Tags stripe
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.URLResponseDTO
// @Failure 401 {object} dto.ErrorResponseDTO
// @Failure 500 {object} dto.ErrorResponseDTO
// @Router /stripe/portal [post]
func (h *StripeHandler) Portal(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	url, err := h.stripeSvc.CreateCustomerPortalSession(r.Context(), user)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to create portal session")
		response.Error(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}
	response.JSON(w, http.StatusOK, dto.URLResponseDTO{URL: url})
}

// PaymentLink godoc
// @Summary Create a checkout link
// @Description Creates a subscription Checkout Session for the given price and returns its URL.
// @Tags stripe
// @Produce json
// @Security BearerAuth
// @Param priceId query string true "Stripe price id"
// @Success 200 {object} dto.PaymentLinkResponseDTO
// @Failure 400 {object} dto.ErrorResponseDTO "priceId is required"
// @Failure 401 {object} dto.ErrorResponseDTO
// @Failure 500 {object} dto.ErrorResponseDTO
// @Router /stripe/payment-link [get]
func (h *StripeHandler) PaymentLink(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	priceID := r.URL.Query().Get("priceId")
	if priceID == "" {
		response.Error(w, http.StatusBadRequest, "priceId is required")
		return
	}
	url, err := h.stripeSvc.CreatePaymentLink(r.Context(), user, priceID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Str("price_id", priceID).Msg("failed to create payment link")
		response.Error(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}
	response.JSON(w, http.StatusOK, dto.PaymentLinkResponseDTO{
		PaymentURL: url,
		Message:    "Payment link created successfully",
	})
}

// Webhook godoc
// @Summary Stripe webhook
// @Description Verifies the Stripe-Signature header and reconciles the event.
// @Tags stripe
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} dto.WebhookAckDTO
// @Failure 400 {object} dto.WebhookErrorDTO
// @Router /stripe/webhook [post]
func (h *StripeHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read Stripe webhook payload")
		response.JSON(w, http.StatusBadRequest, dto.WebhookErrorDTO{Error: "Webhook Error: " + err.Error()})
		return
	}

	event, err := h.stripeSvc.ConstructWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Signature verification failed for Stripe webhook")
		response.JSON(w, http.StatusBadRequest, dto.WebhookErrorDTO{Error: "Webhook Error: " + err.Error()})
		return
	}

	if err := h.stripeSvc.HandleWebhookEvent(r.Context(), event, payload); err != nil {
		response.JSON(w, http.StatusBadRequest, dto.WebhookErrorDTO{Error: "Webhook Error: " + err.Error()})
		return
	}
	response.JSON(w, http.StatusOK, dto.WebhookAckDTO{Received: true})
}

// Success godoc
// @Summary Checkout success landing
// @Tags stripe
// @Produce json
// @Success 200 {object} dto.CheckoutResultDTO
// @Router /stripe/success [get]
func (h *StripeHandler) Success(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, dto.CheckoutResultDTO{
		Success: true,
		Message: "Payment completed successfully",
	})
}

// Cancel godoc
// @Summary Checkout cancel landing
// @Tags stripe
// @Produce json
// @Success 200 {object} dto.CheckoutResultDTO
// @Router /stripe/cancel [get]
func (h *StripeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, dto.CheckoutResultDTO{
		Success: false,
		Message: "Payment was canceled",
	})
}
