package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/export"
	"github.com/esplendidez/fest-registration/internal/middleware"
	"github.com/esplendidez/fest-registration/internal/model"
	"github.com/esplendidez/fest-registration/internal/service"
	"github.com/esplendidez/fest-registration/internal/utils"
)

var remoteURL = regexp.MustCompile(`(?i)^https?://`)

// Credential checks the shared admin password.
type Credential interface {
	Check(plain string) bool
}

// AdminHandler serves /api/admin.
type AdminHandler struct {
	responder
	Store      RegistrationStore
	Credential Credential
	Events     service.EventPublisher
	Secret     string
	TokenTTL   time.Duration
}

func NewAdminHandler(store RegistrationStore, cred Credential, events service.EventPublisher, secret string, ttl time.Duration, dev bool) *AdminHandler {
	if store == nil || cred == nil || events == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{responder: responder{dev: dev}, Store: store, Credential: cred, Events: events, Secret: secret, TokenTTL: ttl}
}

type loginReq struct {
	Password string `json:"password" validate:"required"`
}

// Login exchanges the shared password for a signed admin token.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return h.fail(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if err := c.Validate(&req); err != nil {
		return h.failFrom(c, err, "Login failed")
	}
	if !h.Credential.Check(req.Password) {
		log.Warn().Str("ip", c.RealIP()).Msg("admin login rejected")
		return h.fail(c, http.StatusUnauthorized, "Invalid credentials", nil)
	}
	tok, err := utils.NewAdminToken(h.Secret, "admin", h.TokenTTL)
	if err != nil {
		return h.failFrom(c, err, "Failed to issue token")
	}
	return succeed(c, http.StatusOK, "Logged in", echo.Map{"token": tok.Token, "expiresAt": tok.Exp})
}

type paymentStatusReq struct {
	RegistrationID string `json:"registrationId" validate:"required"`
	Status         string `json:"status" validate:"required,paymentstatus"`
}

// PaymentStatus sets one registration's payment status. Confirming stamps
// the payment date and the verifying admin; pending clears the date.
func (h *AdminHandler) PaymentStatus(c echo.Context) error {
	var req paymentStatusReq
	if err := c.Bind(&req); err != nil {
		return h.fail(c, http.StatusBadRequest, "Invalid request body", err)
	}
	req.RegistrationID = strings.TrimSpace(req.RegistrationID)
	if err := c.Validate(&req); err != nil {
		return h.failFrom(c, err, "Failed to update status")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	status := model.PaymentStatus(req.Status)
	reg, err := h.Store.SetPaymentStatus(ctx, req.RegistrationID, status, middleware.AdminSubject(c))
	if err != nil {
		return h.failFrom(c, err, "Failed to update status")
	}
	if status == model.PaymentConfirmed {
		h.Events.PaymentConfirmed(reg)
	}
	return succeed(c, http.StatusOK, "Payment status updated", echo.Map{
		"registrationId": reg.RegistrationID,
		"paymentStatus":  reg.PaymentStatus,
		"paymentDate":    reg.PaymentDate,
	})
}

type bulkStatusReq struct {
	Category string `json:"category" validate:"required,category"`
	Status   string `json:"status" validate:"required,paymentstatus"`
}

// BulkPaymentStatus sets the status of every registration in a category.
func (h *AdminHandler) BulkPaymentStatus(c echo.Context) error {
	var req bulkStatusReq
	if err := c.Bind(&req); err != nil {
		return h.fail(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if err := c.Validate(&req); err != nil {
		return h.failFrom(c, err, "Bulk update failed")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	n, err := h.Store.BulkSetPaymentStatus(ctx, req.Category, model.PaymentStatus(req.Status))
	if err != nil {
		return h.failFrom(c, err, "Bulk update failed")
	}
	return succeed(c, http.StatusOK, "Bulk update complete", echo.Map{"modified": n})
}

// Stats returns the dashboard aggregates.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.Store.Stats(ctx)
	if err != nil {
		return h.failFrom(c, err, "Failed to get stats")
	}
	return succeed(c, http.StatusOK, "", st)
}

// Image describes a stored attachment and where the dashboard can fetch it.
func (h *AdminHandler) Image(c echo.Context) error {
	kind := c.Param("type")
	if kind != "id-proof" && kind != "payment-proof" {
		return h.fail(c, http.StatusBadRequest, "Invalid image type. Must be id-proof or payment-proof", nil)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	reg, err := h.Store.FindByID(ctx, c.Param("registrationId"))
	if err != nil {
		return h.failFrom(c, err, "Failed to get image information")
	}

	var att *model.Attachment
	if kind == "id-proof" {
		if reg.CollegeIDProof.Filename != "" {
			att = &reg.CollegeIDProof
		}
	} else {
		att = reg.PaymentProof
	}
	if att == nil {
		if kind == "id-proof" {
			return h.fail(c, http.StatusNotFound, "ID proof not found for this registration", nil)
		}
		return h.fail(c, http.StatusNotFound, "Payment proof not found for this registration", nil)
	}

	return succeed(c, http.StatusOK, "", echo.Map{
		"type":         kind,
		"filename":     att.Filename,
		"originalName": att.OriginalName,
		"url":          attachmentURL(*att),
		"size":         att.Size,
		"mimetype":     att.MimeType,
		"participant": echo.Map{
			"name":  reg.ParticipantName,
			"email": reg.ParticipantEmail,
		},
	})
}

// attachmentURL returns remote URLs as-is and local files under /uploads.
func attachmentURL(att model.Attachment) string {
	if remoteURL.MatchString(att.Path) {
		return att.Path
	}
	return "/uploads/" + att.Filename
}

// UpdateRegistration applies a partial update. Keys may be camelCase as
// the dashboard sends them or column names.
func (h *AdminHandler) UpdateRegistration(c echo.Context) error {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return h.fail(c, http.StatusBadRequest, "Invalid request body", err)
	}
	fields := make(map[string]any, len(body))
	for k, v := range body {
		fields[columnName(k)] = v
	}
	if s, ok := fields["payment_status"].(string); ok && !model.PaymentStatus(s).Valid() {
		return h.fail(c, http.StatusBadRequest, "Invalid status", nil)
	}
	if s, ok := fields["event_category"].(string); ok && !model.ValidCategory(s) {
		return h.fail(c, http.StatusBadRequest, "Event category must be one of: "+strings.Join(model.Categories, ", "), nil)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	reg, err := h.Store.Update(ctx, c.Param("id"), fields)
	if err != nil {
		return h.failFrom(c, err, "Failed to update registration")
	}
	return succeed(c, http.StatusOK, "Registration updated", reg)
}

// DeleteRegistration removes a row and returns it.
func (h *AdminHandler) DeleteRegistration(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	reg, err := h.Store.Delete(ctx, c.Param("id"))
	if err != nil {
		return h.failFrom(c, err, "Failed to delete registration")
	}
	return succeed(c, http.StatusOK, "Registration deleted", reg)
}

// Export downloads the filtered registrations as xlsx (default) or csv.
func (h *AdminHandler) Export(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return h.fail(c, http.StatusBadRequest, "Format must be xlsx or csv", nil)
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return h.failFrom(c, err, "Export failed")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	regs, err := h.Store.FindAll(ctx, f)
	if err != nil {
		return h.failFrom(c, err, "Export failed")
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, regs); err != nil {
		return h.failFrom(c, err, "Export failed")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+format.Filename(time.Now())+`"`)
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// columnName converts "participantEmail" to "participant_email". Names that
// are already snake case pass through.
func columnName(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
