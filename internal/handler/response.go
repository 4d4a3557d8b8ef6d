// Package handler implements the HTTP endpoints. Every response uses the
// {success, message, data} envelope; error details are only added in
// development.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/model"
	"github.com/esplendidez/fest-registration/internal/repository"
	"github.com/esplendidez/fest-registration/internal/storage"
	"github.com/esplendidez/fest-registration/internal/utils"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// RegistrationStore is the persistence surface the handlers need.
// *repository.RegistrationRepo satisfies it.
type RegistrationStore interface {
	Create(ctx context.Context, reg *model.Registration) error
	FindByID(ctx context.Context, registrationID string) (*model.Registration, error)
	FindAll(ctx context.Context, f model.Filter) ([]model.Registration, error)
	Update(ctx context.Context, registrationID string, fields map[string]any) (*model.Registration, error)
	Delete(ctx context.Context, registrationID string) (*model.Registration, error)
	SetPaymentStatus(ctx context.Context, registrationID string, status model.PaymentStatus, verifiedBy string) (*model.Registration, error)
	BulkSetPaymentStatus(ctx context.Context, category string, status model.PaymentStatus) (int64, error)
	VerifyPayment(ctx context.Context, registrationID, utr string) (*model.Registration, error)
	UTRAvailable(ctx context.Context, utr string) (bool, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// responder carries the development flag shared by every handler.
type responder struct {
	dev bool
}

func succeed(c echo.Context, status int, message string, data any) error {
	body := echo.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

func (r responder) fail(c echo.Context, status int, message string, err error) error {
	body := echo.Map{"success": false, "message": message}
	if r.dev && err != nil {
		body["error"] = err.Error()
	}
	return c.JSON(status, body)
}

// failFrom maps store, storage and validation errors onto the status
// taxonomy. fallback is the message used for unclassified failures.
func (r responder) failFrom(c echo.Context, err error, fallback string) error {
	var verr validationError
	switch {
	case errors.As(err, &verr):
		return r.fail(c, http.StatusBadRequest, verr.Error(), nil)
	case errors.Is(err, utils.ErrInvalidUTR):
		return r.fail(c, http.StatusBadRequest, "Invalid UTR format", nil)
	case errors.Is(err, repository.ErrNotFound):
		return r.fail(c, http.StatusNotFound, "Registration not found", nil)
	case errors.Is(err, repository.ErrDuplicateUTR):
		return r.fail(c, http.StatusConflict, "UTR already used", nil)
	case errors.Is(err, repository.ErrDuplicateEmailEvent):
		return r.fail(c, http.StatusConflict, "Duplicate registration detected for this email and event", nil)
	case errors.Is(err, repository.ErrDuplicateRegistrationID):
		return r.fail(c, http.StatusConflict, "Could not allocate a registration id, please submit again", nil)
	case errors.Is(err, repository.ErrConflict):
		return r.fail(c, http.StatusConflict, "Duplicate value violates a unique constraint", err)
	case errors.Is(err, repository.ErrNoFieldsToUpdate):
		return r.fail(c, http.StatusBadRequest, "No valid fields to update", nil)
	case errors.Is(err, repository.ErrInvalidValue):
		return r.fail(c, http.StatusBadRequest, "Invalid field value", err)
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrFileTooLarge):
		return r.fail(c, http.StatusBadRequest, capitalize(err.Error()), nil)
	case errors.Is(err, storage.ErrUpstream):
		log.Error().Err(err).Str("path", c.Path()).Msg("upload failed")
		return r.fail(c, http.StatusInternalServerError, "File upload failed", err)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return r.fail(c, http.StatusInternalServerError, fallback, err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// HTTPErrorHandler renders echo's own errors (unknown routes, bad methods,
// body limit, panics recovered upstream) in the response envelope.
func HTTPErrorHandler(dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		}
		body := echo.Map{"success": false, "message": message}
		if status == http.StatusNotFound && strings.HasPrefix(c.Request().URL.Path, "/api/") {
			body["message"] = "API endpoint not found"
			body["path"] = c.Request().URL.RequestURI()
		}
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
			if dev {
				body["error"] = err.Error()
			}
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warn().Err(werr).Msg("write error response")
		}
	}
}
