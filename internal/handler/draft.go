package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/esplendidez/fest-registration/internal/draft"
	"github.com/esplendidez/fest-registration/internal/storage"
)

// DraftHandler serves /api/drafts.
type DraftHandler struct {
	responder
	Drafts DraftCache
	Intake AttachmentIntake
}

func NewDraftHandler(drafts DraftCache, intake AttachmentIntake, dev bool) *DraftHandler {
	if drafts == nil || intake == nil {
		panic("nil dependency passed to NewDraftHandler")
	}
	return &DraftHandler{responder: responder{dev: dev}, Drafts: drafts, Intake: intake}
}

// Create stores the registration form before the payment page. The
// attachment is validated now but only stored on final submission.
func (h *DraftHandler) Create(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return h.fail(c, http.StatusBadRequest, "Invalid form data", err)
	}
	fields := make(map[string]string)
	for _, k := range draftFields {
		if v := strings.TrimSpace(params.Get(k)); v != "" {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return h.fail(c, http.StatusBadRequest, "Draft has no form fields", nil)
	}

	var att *draft.Attachment
	fh, err := c.FormFile(partIDProof)
	switch {
	case err == nil:
		data, err := readPart(fh, h.Intake.MaxBytes())
		if err != nil {
			return h.failFrom(c, err, "Failed to save draft")
		}
		f, err := h.Intake.Inspect(storage.KindIDProof, fh.Filename, data)
		if err != nil {
			return h.failFrom(c, err, "Failed to save draft")
		}
		att = &draft.Attachment{Name: f.OriginalName, MimeType: f.MimeType, Data: f.Data}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return h.fail(c, http.StatusBadRequest, "Invalid collegeIdProof upload", err)
	}

	d, token, err := h.Drafts.Create(c.Request().Context(), fields, att)
	if err != nil {
		return h.failFrom(c, err, "Failed to save draft")
	}
	return succeed(c, http.StatusCreated, "Draft saved", echo.Map{
		"draftId":       d.ID,
		"token":         token,
		"hasAttachment": d.Complete(),
	})
}

// Get recovers a draft. The optional ?data= token is tried first.
func (h *DraftHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if !draft.ValidID(id) {
		return h.fail(c, http.StatusBadRequest, "Invalid draft id", nil)
	}
	res := h.Drafts.Recover(c.Request().Context(), id, c.QueryParam("data"))
	if res.State == draft.StateLost {
		return c.JSON(http.StatusNotFound, echo.Map{
			"success": false,
			"message": "Registration data not found. Please fill the registration form again",
			"state":   res.State,
		})
	}
	data := echo.Map{
		"draftId": res.Draft.ID,
		"state":   res.State,
		"source":  res.Source,
		"fields":  res.Draft.Fields,
	}
	if res.Draft.Complete() {
		data["attachment"] = echo.Map{
			"name":     res.Draft.Attachment.Name,
			"mimeType": res.Draft.Attachment.MimeType,
			"size":     len(res.Draft.Attachment.Data),
		}
	}
	msg := ""
	if res.State == draft.StateRecoveredNeedsReupload {
		msg = "Please re-attach your college ID proof"
	}
	return succeed(c, http.StatusOK, msg, data)
}

// Delete discards a draft from the server-side tiers.
func (h *DraftHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if !draft.ValidID(id) {
		return h.fail(c, http.StatusBadRequest, "Invalid draft id", nil)
	}
	if err := h.Drafts.Discard(c.Request().Context(), id); err != nil {
		return h.failFrom(c, err, "Failed to discard draft")
	}
	return succeed(c, http.StatusOK, "Draft discarded", nil)
}
