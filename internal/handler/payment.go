package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/repository"
	"github.com/esplendidez/fest-registration/internal/service"
	"github.com/esplendidez/fest-registration/internal/utils"
)

// PaymentHandler serves /api/payment.
type PaymentHandler struct {
	responder
	Store  RegistrationStore
	Events service.EventPublisher
}

func NewPaymentHandler(store RegistrationStore, events service.EventPublisher, dev bool) *PaymentHandler {
	if store == nil || events == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{responder: responder{dev: dev}, Store: store, Events: events}
}

type verifyReq struct {
	RegistrationID string `json:"registrationId" form:"registrationId"`
	UTRNumber      string `json:"utrNumber" form:"utrNumber"`
}

// Verify records the participant's UTR and confirms the payment. Applying
// the same UTR to the same registration again succeeds; reusing it on a
// different registration is a conflict.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return h.fail(c, http.StatusBadRequest, "Invalid request body", err)
	}
	req.RegistrationID = strings.TrimSpace(req.RegistrationID)
	if req.RegistrationID == "" || strings.TrimSpace(req.UTRNumber) == "" {
		metrics.PaymentVerifications.WithLabelValues("invalid").Inc()
		return h.fail(c, http.StatusBadRequest, "registrationId and UTR are required", nil)
	}
	utr, err := utils.ParseUTR(req.UTRNumber)
	if err != nil {
		metrics.PaymentVerifications.WithLabelValues("invalid").Inc()
		return h.failFrom(c, err, "Payment verification failed")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	reg, err := h.Store.VerifyPayment(ctx, req.RegistrationID, utr)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			metrics.PaymentVerifications.WithLabelValues("not_found").Inc()
		case errors.Is(err, repository.ErrConflict):
			metrics.PaymentVerifications.WithLabelValues("conflict").Inc()
		default:
			metrics.PaymentVerifications.WithLabelValues("failed").Inc()
		}
		return h.failFrom(c, err, "Payment verification failed")
	}
	metrics.PaymentVerifications.WithLabelValues("verified").Inc()
	h.Events.PaymentConfirmed(reg)

	return succeed(c, http.StatusOK, "Payment verified", echo.Map{
		"registrationId": reg.RegistrationID,
		"paymentStatus":  reg.PaymentStatus,
		"utr":            utr,
	})
}
