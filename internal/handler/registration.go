package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/draft"
	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/model"
	"github.com/esplendidez/fest-registration/internal/repository"
	"github.com/esplendidez/fest-registration/internal/service"
	"github.com/esplendidez/fest-registration/internal/storage"
	"github.com/esplendidez/fest-registration/internal/utils"
)

// Multipart part names.
const (
	partIDProof      = "collegeIdProof"
	partPaymentProof = "paymentScreenshot"
)

var memberEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[A-Za-z]{2,}$`)

// AttachmentIntake validates and stores uploads. *storage.Intake satisfies it.
type AttachmentIntake interface {
	MaxBytes() int64
	Inspect(kind storage.Kind, name string, data []byte) (*storage.File, error)
	Store(ctx context.Context, f *storage.File) (*model.Attachment, error)
	Discard(ctx context.Context, att *model.Attachment)
}

// DraftCache holds registrations between the form and the payment page.
// *draft.Cache satisfies it.
type DraftCache interface {
	Create(ctx context.Context, fields map[string]string, att *draft.Attachment) (*draft.Draft, string, error)
	Recover(ctx context.Context, id, token string) draft.Result
	Discard(ctx context.Context, id string) error
}

// RegistrationHandler serves /api/registration.
type RegistrationHandler struct {
	responder
	Store  RegistrationStore
	Intake AttachmentIntake
	Drafts DraftCache
	Events service.EventPublisher
}

func NewRegistrationHandler(store RegistrationStore, intake AttachmentIntake, drafts DraftCache, events service.EventPublisher, dev bool) *RegistrationHandler {
	if store == nil || intake == nil || drafts == nil || events == nil {
		panic("nil dependency passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{responder: responder{dev: dev}, Store: store, Intake: intake, Drafts: drafts, Events: events}
}

// registerReq is the multipart form of POST /register. The same field names
// are used as draft field keys.
type registerReq struct {
	DraftID    string `form:"draftId"`
	DraftToken string `form:"draftToken"`

	EventName     string  `form:"eventName" validate:"required,max=200"`
	EventCategory string  `form:"eventCategory" validate:"required,category"`
	EventFee      float64 `form:"eventFee" validate:"gte=0"`

	ParticipantName    string `form:"participantName" validate:"required,max=200"`
	ParticipantEmail   string `form:"participantEmail" validate:"required,email"`
	ParticipantPhone   string `form:"participantPhone" validate:"required,indianphone"`
	ParticipantCollege string `form:"participantCollege" validate:"required"`
	ParticipantRoll    string `form:"participantRoll" validate:"required"`

	TeamSize    int    `form:"teamSize" validate:"omitempty,min=1,max=20"`
	TeamName    string `form:"teamName"`
	TeamCaptain string `form:"teamCaptain"`
	TeamMembers string `form:"teamMembers"`

	UTRNumber string `form:"utrNumber" validate:"omitempty,utr"`
}

// draftFields lists the form values a draft may carry.
var draftFields = []string{
	"eventName", "eventCategory", "eventFee",
	"participantName", "participantEmail", "participantPhone", "participantCollege", "participantRoll",
	"teamSize", "teamName", "teamCaptain", "teamMembers", "utrNumber",
}

// fillFrom copies draft values into fields the form left empty.
func (r *registerReq) fillFrom(fields map[string]string) {
	str := map[string]*string{
		"eventName": &r.EventName, "eventCategory": &r.EventCategory,
		"participantName": &r.ParticipantName, "participantEmail": &r.ParticipantEmail,
		"participantPhone": &r.ParticipantPhone, "participantCollege": &r.ParticipantCollege,
		"participantRoll": &r.ParticipantRoll, "teamName": &r.TeamName, "teamCaptain": &r.TeamCaptain,
		"teamMembers": &r.TeamMembers, "utrNumber": &r.UTRNumber,
	}
	for k, p := range str {
		if *p == "" {
			*p = fields[k]
		}
	}
	if r.EventFee == 0 {
		r.EventFee = parseFloat(fields["eventFee"])
	}
	if r.TeamSize == 0 {
		r.TeamSize = parseInt(fields["teamSize"])
	}
}

func (r *registerReq) normalize() {
	for _, p := range []*string{
		&r.EventName, &r.EventCategory, &r.ParticipantName, &r.ParticipantPhone,
		&r.ParticipantCollege, &r.ParticipantRoll, &r.TeamName, &r.TeamCaptain, &r.UTRNumber,
	} {
		*p = strings.TrimSpace(*p)
	}
	r.ParticipantEmail = strings.ToLower(strings.TrimSpace(r.ParticipantEmail))
}

// parseTeamMembers accepts a JSON array and keeps members with a name and a
// plausible email.
func parseTeamMembers(raw string) ([]model.TeamMember, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []model.TeamMember{}, nil
	}
	var in []struct {
		Name  any `json:"name"`
		Email any `json:"email"`
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, invalid("Invalid teamMembers format")
	}
	out := make([]model.TeamMember, 0, len(in))
	for _, m := range in {
		name := strings.TrimSpace(asString(m.Name))
		email := strings.TrimSpace(asString(m.Email))
		if name == "" || !memberEmail.MatchString(email) {
			continue
		}
		out = append(out, model.TeamMember{Name: name, Email: email})
	}
	return out, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Register accepts a multipart registration. The ID proof comes from the
// collegeIdProof part or, when absent, from the draft named by draftId.
func (h *RegistrationHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return h.fail(c, http.StatusBadRequest, "Invalid form data", err)
	}
	ctx := c.Request().Context()

	var recovered *draft.Draft
	if req.DraftID != "" {
		if !draft.ValidID(req.DraftID) {
			metrics.Registrations.WithLabelValues("invalid").Inc()
			return h.fail(c, http.StatusBadRequest, "Invalid draft id", nil)
		}
		res := h.Drafts.Recover(ctx, req.DraftID, req.DraftToken)
		if res.Draft != nil {
			recovered = res.Draft
			req.fillFrom(recovered.Fields)
		}
	}

	req.normalize()
	if err := c.Validate(&req); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return h.failFrom(c, err, "Registration failed")
	}
	members, err := parseTeamMembers(req.TeamMembers)
	if err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return h.failFrom(c, err, "Registration failed")
	}
	var utr *string
	if req.UTRNumber != "" {
		n, err := utils.ParseUTR(req.UTRNumber)
		if err != nil {
			metrics.Registrations.WithLabelValues("invalid").Inc()
			return h.failFrom(c, err, "Registration failed")
		}
		utr = &n
	}

	// Both files are checked before either reaches the backend.
	idFile, err := h.inspectIDProof(c, recovered)
	if err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return h.failFrom(c, err, "Registration failed")
	}
	payFile, err := h.inspectPart(c, partPaymentProof, storage.KindPaymentProof)
	if err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return h.failFrom(c, err, "Registration failed")
	}

	idProof, err := h.Intake.Store(ctx, idFile)
	if err != nil {
		metrics.Registrations.WithLabelValues("failed").Inc()
		return h.failFrom(c, err, "Registration failed")
	}
	var paymentProof *model.Attachment
	if payFile != nil {
		if paymentProof, err = h.Intake.Store(ctx, payFile); err != nil {
			h.Intake.Discard(context.WithoutCancel(ctx), idProof)
			metrics.Registrations.WithLabelValues("failed").Inc()
			return h.failFrom(c, err, "Registration failed")
		}
	}

	reg := &model.Registration{
		EventName:          req.EventName,
		EventCategory:      req.EventCategory,
		EventFee:           req.EventFee,
		ParticipantName:    req.ParticipantName,
		ParticipantEmail:   req.ParticipantEmail,
		ParticipantPhone:   req.ParticipantPhone,
		ParticipantCollege: req.ParticipantCollege,
		ParticipantRoll:    req.ParticipantRoll,
		CollegeIDProof:     *idProof,
		TeamSize:           req.TeamSize,
		TeamName:           optional(req.TeamName),
		TeamCaptain:        optional(req.TeamCaptain),
		TeamMembers:        members,
		PaymentStatus:      model.PaymentPending,
		UTRNumber:          utr,
		PaymentProof:       paymentProof,
		IPAddress:          optional(c.RealIP()),
		UserAgent:          optional(c.Request().UserAgent()),
	}

	dbCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if err := h.Store.Create(dbCtx, reg); err != nil {
		cleanup := context.WithoutCancel(ctx)
		h.Intake.Discard(cleanup, idProof)
		h.Intake.Discard(cleanup, paymentProof)
		if errors.Is(err, repository.ErrConflict) {
			metrics.Registrations.WithLabelValues("conflict").Inc()
		} else {
			metrics.Registrations.WithLabelValues("failed").Inc()
		}
		return h.failFrom(c, err, "Registration failed")
	}
	metrics.Registrations.WithLabelValues("created").Inc()
	h.Events.RegistrationSubmitted(reg)

	if req.DraftID != "" {
		if err := h.Drafts.Discard(context.WithoutCancel(ctx), req.DraftID); err != nil {
			log.Warn().Err(err).Str("draft_id", req.DraftID).Msg("discard submitted draft")
		}
	}

	return succeed(c, http.StatusCreated, "Registration submitted successfully", echo.Map{
		"registrationId":   reg.RegistrationID,
		"eventName":        reg.EventName,
		"participantName":  reg.ParticipantName,
		"participantEmail": reg.ParticipantEmail,
		"paymentStatus":    reg.PaymentStatus,
		"submittedAt":      reg.SubmittedAt,
	})
}

func (h *RegistrationHandler) inspectIDProof(c echo.Context, recovered *draft.Draft) (*storage.File, error) {
	f, err := h.inspectPart(c, partIDProof, storage.KindIDProof)
	if err != nil || f != nil {
		return f, err
	}
	if recovered.Complete() {
		return h.Intake.Inspect(storage.KindIDProof, recovered.Attachment.Name, recovered.Attachment.Data)
	}
	return nil, invalid("College ID proof file is required. Please re-attach it")
}

// inspectPart returns nil, nil when the part is absent.
func (h *RegistrationHandler) inspectPart(c echo.Context, part string, kind storage.Kind) (*storage.File, error) {
	fh, err := c.FormFile(part)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, invalid("Invalid %s upload", part)
	}
	data, err := readPart(fh, h.Intake.MaxBytes())
	if err != nil {
		return nil, err
	}
	return h.Intake.Inspect(kind, fh.Filename, data)
}

func readPart(fh *multipart.FileHeader, max int64) ([]byte, error) {
	data, err := storage.ReadFormFile(fh, max)
	if err != nil && !errors.Is(err, storage.ErrFileTooLarge) {
		return nil, invalid("Could not read uploaded file")
	}
	return data, err
}

// GetByID returns the full row.
func (h *RegistrationHandler) GetByID(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	reg, err := h.Store.FindByID(ctx, c.Param("id"))
	if err != nil {
		return h.failFrom(c, err, "Failed to fetch registration")
	}
	return succeed(c, http.StatusOK, "", reg)
}

// All lists registrations, optionally filtered by ?category=&event=&status=.
func (h *RegistrationHandler) All(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return h.failFrom(c, err, "Failed to fetch registrations")
	}
	return h.list(c, f)
}

func (h *RegistrationHandler) ByCategory(c echo.Context) error {
	return h.list(c, model.Filter{Category: c.Param("category")})
}

func (h *RegistrationHandler) ByEvent(c echo.Context) error {
	return h.list(c, model.Filter{EventName: c.Param("event")})
}

func (h *RegistrationHandler) list(c echo.Context, f model.Filter) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	regs, err := h.Store.FindAll(ctx, f)
	if err != nil {
		return h.failFrom(c, err, "Failed to fetch registrations")
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	return succeed(c, http.StatusOK, "", regs)
}

// UTRAvailability reports whether a UTR is still unused.
func (h *RegistrationHandler) UTRAvailability(c echo.Context) error {
	utr, err := utils.ParseUTR(c.Param("utr"))
	if err != nil {
		return h.failFrom(c, err, "Failed to check UTR")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	free, err := h.Store.UTRAvailable(ctx, utr)
	if err != nil {
		return h.failFrom(c, err, "Failed to check UTR")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "utr": utr, "available": free})
}

// filterFromQuery reads the optional list filters shared by the list and
// export endpoints.
func filterFromQuery(c echo.Context) (model.Filter, error) {
	f := model.Filter{
		Category:      strings.TrimSpace(c.QueryParam("category")),
		EventName:     strings.TrimSpace(c.QueryParam("event")),
		PaymentStatus: model.PaymentStatus(strings.TrimSpace(c.QueryParam("status"))),
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return f, invalid("Invalid status")
	}
	return f, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
