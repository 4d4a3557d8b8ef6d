package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/esplendidez/fest-registration/internal/draft"
	"github.com/esplendidez/fest-registration/internal/model"
	"github.com/esplendidez/fest-registration/internal/repository"
	"github.com/esplendidez/fest-registration/internal/storage"
)

// fakeStore mimics the unique indexes and the payment date rule of the
// Postgres store.
type fakeStore struct {
	mu         sync.Mutex
	seq        int64
	regs       map[string]*model.Registration
	lastUpdate map[string]any
	verifiedBy string
	failWith   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{regs: map[string]*model.Registration{}}
}

func (s *fakeStore) Create(_ context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, r := range s.regs {
		if r.ParticipantEmail == reg.ParticipantEmail && r.EventName == reg.EventName {
			return repository.ErrDuplicateEmailEvent
		}
		if reg.UTRNumber != nil && r.UTRNumber != nil && *r.UTRNumber == *reg.UTRNumber {
			return repository.ErrDuplicateUTR
		}
	}
	s.seq++
	reg.RegistrationID = repository.FormatRegistrationID("ESP2026", s.seq)
	reg.SubmittedAt = time.Now().UTC()
	if reg.TeamSize == 0 {
		reg.TeamSize = 1
	}
	cp := *reg
	s.regs[reg.RegistrationID] = &cp
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) FindAll(_ context.Context, f model.Filter) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Registration
	for _, r := range s.regs {
		if f.Category != "" && r.EventCategory != f.Category {
			continue
		}
		if f.EventName != "" && r.EventName != f.EventName {
			continue
		}
		if f.PaymentStatus != "" && r.PaymentStatus != f.PaymentStatus {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, id string, fields map[string]any) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdate = fields
	r, ok := s.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	applied := 0
	if v, ok := fields["admin_notes"].(string); ok {
		r.AdminNotes = &v
		applied++
	}
	if v, ok := fields["participant_name"].(string); ok {
		r.ParticipantName = v
		applied++
	}
	if v, ok := fields["payment_status"].(string); ok {
		r.PaymentStatus = model.PaymentStatus(v)
		switch r.PaymentStatus {
		case model.PaymentConfirmed:
			now := time.Now().UTC()
			r.PaymentDate = &now
		case model.PaymentPending:
			r.PaymentDate = nil
		}
		applied++
	}
	if applied == 0 {
		return nil, repository.ErrNoFieldsToUpdate
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.regs, id)
	return r, nil
}

func (s *fakeStore) SetPaymentStatus(_ context.Context, id string, status model.PaymentStatus, verifiedBy string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.PaymentStatus = status
	switch status {
	case model.PaymentConfirmed:
		now := time.Now().UTC()
		r.PaymentDate = &now
		s.verifiedBy = verifiedBy
	case model.PaymentPending:
		r.PaymentDate = nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) BulkSetPaymentStatus(_ context.Context, category string, status model.PaymentStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.regs {
		if r.EventCategory == category {
			r.PaymentStatus = status
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) VerifyPayment(_ context.Context, id, utr string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for other, o := range s.regs {
		if other != id && o.UTRNumber != nil && strings.EqualFold(*o.UTRNumber, utr) {
			return nil, repository.ErrDuplicateUTR
		}
	}
	now := time.Now().UTC()
	r.UTRNumber = &utr
	r.PaymentStatus = model.PaymentConfirmed
	r.PaymentDate = &now
	cp := *r
	return &cp, nil
}

func (s *fakeStore) UTRAvailable(_ context.Context, utr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regs {
		if r.UTRNumber != nil && strings.EqualFold(*r.UTRNumber, utr) {
			return false, nil
		}
	}
	return true, nil
}

func (s *fakeStore) Stats(context.Context) (*model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &model.Stats{TotalRegistrations: len(s.regs), CategoryWise: []model.CategoryStat{}, StatusWise: []model.StatusStat{}}
	byCategory := map[string]int{}
	for _, r := range s.regs {
		byCategory[r.EventCategory]++
		if r.PaymentStatus == model.PaymentPending {
			st.PendingPayments++
		}
		if r.PaymentStatus == model.PaymentConfirmed {
			st.TotalRevenue += r.EventFee
		}
	}
	for _, c := range model.Categories {
		if n := byCategory[c]; n > 0 {
			st.CategoryWise = append(st.CategoryWise, model.CategoryStat{Category: c, Count: n})
		}
	}
	return st, nil
}

// memBackend records stored and removed files.
type memBackend struct {
	mu      sync.Mutex
	stored  map[string]bool
	removed []string
	kinds   []storage.Kind
	n       int
}

func (b *memBackend) Name() string { return "mem" }

func (b *memBackend) Store(_ context.Context, f *storage.File) (*model.Attachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	b.kinds = append(b.kinds, f.Kind)
	name := fmt.Sprintf("file-%d", b.n)
	b.stored[name] = true
	return &model.Attachment{Filename: name, OriginalName: f.OriginalName, Path: "/uploads/" + name, Size: int64(len(f.Data)), MimeType: f.MimeType}, nil
}

func (b *memBackend) Remove(_ context.Context, att model.Attachment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stored, att.Filename)
	b.removed = append(b.removed, att.Filename)
	return nil
}

func (b *memBackend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stored)
}

type recordingPublisher struct {
	mu        sync.Mutex
	submitted []string
	confirmed []string
}

func (p *recordingPublisher) RegistrationSubmitted(reg *model.Registration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, reg.RegistrationID)
}

func (p *recordingPublisher) PaymentConfirmed(reg *model.Registration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, reg.RegistrationID)
}

type testEnv struct {
	e       *echo.Echo
	store   *fakeStore
	backend *memBackend
	drafts  *draft.Cache
	events  *recordingPublisher
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		e:       echo.New(),
		store:   newFakeStore(),
		backend: &memBackend{stored: map[string]bool{}},
		drafts:  draft.NewCache(draft.NewRedisStore(rdb, "draft", time.Hour), draft.NewSessionStore(time.Minute), time.Second),
		events:  &recordingPublisher{},
	}
	env.e.Validator = NewValidator()
	env.e.HTTPErrorHandler = HTTPErrorHandler(false)
	intake := storage.NewIntake(env.backend, 1<<20)

	reg := NewRegistrationHandler(env.store, intake, env.drafts, env.events, false)
	pay := NewPaymentHandler(env.store, env.events, false)
	dh := NewDraftHandler(env.drafts, intake, false)

	env.e.POST("/api/registration/register", reg.Register)
	env.e.GET("/api/registration/all", reg.All)
	env.e.GET("/api/registration/category/:category", reg.ByCategory)
	env.e.GET("/api/registration/utr/:utr", reg.UTRAvailability)
	env.e.GET("/api/registration/:id", reg.GetByID)
	env.e.POST("/api/payment/verify", pay.Verify)
	env.e.POST("/api/drafts", dh.Create)
	env.e.GET("/api/drafts/:id", dh.Get)
	env.e.DELETE("/api/drafts/:id", dh.Delete)
	return env
}

func pngBytes(t *testing.T, size ...int) []byte {
	t.Helper()
	w, h := 8, 8
	if len(size) == 2 {
		w, h = size[0], size[1]
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w && x < h; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func validFields() map[string]string {
	return map[string]string{
		"eventName":          "Coding Competition",
		"eventCategory":      "Technical",
		"eventFee":           "200",
		"participantName":    "A",
		"participantEmail":   "A@X.com",
		"participantPhone":   "9876543210",
		"participantCollege": "X",
		"participantRoll":    "R1",
	}
}

func multipartReq(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for part, data := range files {
		fw, err := w.CreateFormFile(part, part+".png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func jsonReq(method, path string, body any) *http.Request {
	bs, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(bs))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func serve(e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("no data object in %v", body)
	}
	return d
}

func TestRegisterCreatesPendingRegistration(t *testing.T) {
	env := newEnv(t)
	fields := validFields()
	fields["utrNumber"] = " abc 123 def "
	fields["teamMembers"] = `[{"name":"B","email":"b@x.com"},{"name":"","email":"c@x.com"},{"name":"D","email":"nope"}]`

	rec, body := serve(env.e, multipartReq(t, "/api/registration/register", fields, map[string][]byte{"collegeIdProof": pngBytes(t)}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	d := dataOf(t, body)
	if d["registrationId"] != "ESP20260001" || d["paymentStatus"] != "pending" {
		t.Fatalf("data = %v", d)
	}
	if d["participantEmail"] != "a@x.com" {
		t.Fatalf("email not normalized: %v", d["participantEmail"])
	}

	stored, err := env.store.FindByID(context.Background(), "ESP20260001")
	if err != nil {
		t.Fatal(err)
	}
	if stored.UTRNumber == nil || *stored.UTRNumber != "ABC123DEF" {
		t.Fatalf("utr = %v", stored.UTRNumber)
	}
	if len(stored.TeamMembers) != 1 || stored.TeamMembers[0].Name != "B" {
		t.Fatalf("team members = %+v", stored.TeamMembers)
	}
	if stored.CollegeIDProof.MimeType != "image/png" || stored.PaymentProof != nil {
		t.Fatalf("attachments = %+v / %+v", stored.CollegeIDProof, stored.PaymentProof)
	}
	if len(env.events.submitted) != 1 {
		t.Fatalf("submitted events = %v", env.events.submitted)
	}
}

func TestRegisterDuplicateEmailEventDiscardsUpload(t *testing.T) {
	env := newEnv(t)
	file := map[string][]byte{"collegeIdProof": pngBytes(t)}
	if rec, _ := serve(env.e, multipartReq(t, "/api/registration/register", validFields(), file)); rec.Code != http.StatusCreated {
		t.Fatalf("first submit: %d", rec.Code)
	}
	rec, body := serve(env.e, multipartReq(t, "/api/registration/register", validFields(), file))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if !strings.Contains(body["message"].(string), "email and event") {
		t.Fatalf("message = %v", body["message"])
	}
	if env.backend.live() != 1 {
		t.Fatalf("live files = %d, want only the first submission's", env.backend.live())
	}
}

func TestRegisterRejectsBadInputBeforeStoring(t *testing.T) {
	cases := map[string]func(map[string]string){
		"phone":    func(f map[string]string) { f["participantPhone"] = "12345" },
		"category": func(f map[string]string) { f["eventCategory"] = "Music" },
		"email":    func(f map[string]string) { f["participantEmail"] = "not-an-email" },
		"utr":      func(f map[string]string) { f["utrNumber"] = "ab!" },
		"team":     func(f map[string]string) { f["teamMembers"] = "{broken" },
		"teamSize": func(f map[string]string) { f["teamSize"] = "21" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t)
			fields := validFields()
			mutate(fields)
			rec, body := serve(env.e, multipartReq(t, "/api/registration/register", fields, map[string][]byte{"collegeIdProof": pngBytes(t)}))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			if body["success"] != false || body["message"] == "" {
				t.Fatalf("body = %v", body)
			}
			if env.backend.n != 0 {
				t.Fatal("file stored for a rejected submission")
			}
		})
	}
}

func TestRegisterRequiresIDProof(t *testing.T) {
	env := newEnv(t)
	rec, body := serve(env.e, multipartReq(t, "/api/registration/register", validFields(), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(body["message"].(string), "re-attach") {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestRegisterRejectsUnsupportedFile(t *testing.T) {
	env := newEnv(t)
	rec, body := serve(env.e, multipartReq(t, "/api/registration/register", validFields(),
		map[string][]byte{"collegeIdProof": []byte("plain text, not an image")}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(body["message"].(string), "PDF") {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestRegisterRejectsBadPaymentProofBeforeStoringAnything(t *testing.T) {
	env := newEnv(t)
	rec, _ := serve(env.e, multipartReq(t, "/api/registration/register", validFields(), map[string][]byte{
		"collegeIdProof":    pngBytes(t, 8, 8),
		"paymentScreenshot": []byte("plain text, not an image"),
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if env.backend.n != 0 || len(env.backend.removed) != 0 {
		t.Fatalf("backend writes=%d removed=%v, want none", env.backend.n, env.backend.removed)
	}
}

func TestRegisterStoresBothProofsByKind(t *testing.T) {
	env := newEnv(t)
	rec, _ := serve(env.e, multipartReq(t, "/api/registration/register", validFields(), map[string][]byte{
		"collegeIdProof":    pngBytes(t, 8, 8),
		"paymentScreenshot": pngBytes(t, 6, 6),
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.backend.kinds) != 2 || env.backend.kinds[0] != storage.KindIDProof || env.backend.kinds[1] != storage.KindPaymentProof {
		t.Fatalf("stored kinds = %v", env.backend.kinds)
	}
}

func TestRegisterUsesDraftAttachmentAndDeletesDraft(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	d, _, err := env.drafts.Create(ctx, validFields(), &draft.Attachment{Name: "id.png", MimeType: "image/png", Data: pngBytes(t)})
	if err != nil {
		t.Fatal(err)
	}

	// Only the draft id and the payment page's UTR are posted.
	rec, _ := serve(env.e, multipartReq(t, "/api/registration/register", map[string]string{
		"draftId":   d.ID,
		"utrNumber": "UTR998877",
	}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	stored, err := env.store.FindByID(ctx, "ESP20260001")
	if err != nil {
		t.Fatal(err)
	}
	if stored.CollegeIDProof.OriginalName != "id.png" || stored.EventName != "Coding Competition" {
		t.Fatalf("stored = %+v", stored)
	}
	if res := env.drafts.Recover(ctx, d.ID, ""); res.State != draft.StateLost {
		t.Fatalf("draft still recoverable: %v", res.State)
	}
}

func TestRegisterWithFieldsOnlyDraftAsksForReupload(t *testing.T) {
	env := newEnv(t)
	d, _, err := env.drafts.Create(context.Background(), validFields(), nil)
	if err != nil {
		t.Fatal(err)
	}
	rec, body := serve(env.e, multipartReq(t, "/api/registration/register", map[string]string{"draftId": d.ID}, nil))
	if rec.Code != http.StatusBadRequest || !strings.Contains(body["message"].(string), "re-attach") {
		t.Fatalf("status %d body %v", rec.Code, body)
	}
}

func TestGetByIDAndList(t *testing.T) {
	env := newEnv(t)
	serve(env.e, multipartReq(t, "/api/registration/register", validFields(), map[string][]byte{"collegeIdProof": pngBytes(t)}))

	if rec, _ := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/ESP20260001", nil)); rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if rec, body := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/ESP20269999", nil)); rec.Code != http.StatusNotFound || body["message"] != "Registration not found" {
		t.Fatalf("missing: %d %v", rec.Code, body)
	}

	_, body := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/category/Cultural", nil))
	if list, ok := body["data"].([]any); !ok || len(list) != 0 {
		t.Fatalf("cultural = %v", body["data"])
	}
	_, body = serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/all?category=Technical", nil))
	if list, ok := body["data"].([]any); !ok || len(list) != 1 {
		t.Fatalf("technical = %v", body["data"])
	}
	if rec, _ := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/all?status=paid", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: %d", rec.Code)
	}
}

func TestUTRAvailability(t *testing.T) {
	env := newEnv(t)
	fields := validFields()
	fields["utrNumber"] = "XYZ789"
	serve(env.e, multipartReq(t, "/api/registration/register", fields, map[string][]byte{"collegeIdProof": pngBytes(t)}))

	_, body := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/utr/xyz789", nil))
	if body["available"] != false || body["utr"] != "XYZ789" {
		t.Fatalf("taken utr: %v", body)
	}
	_, body = serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/utr/NEW12345", nil))
	if body["available"] != true {
		t.Fatalf("free utr: %v", body)
	}
	if rec, _ := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/registration/utr/ab", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("short utr: %d", rec.Code)
	}
}

func TestPaymentVerify(t *testing.T) {
	env := newEnv(t)
	file := map[string][]byte{"collegeIdProof": pngBytes(t)}
	serve(env.e, multipartReq(t, "/api/registration/register", validFields(), file))
	other := validFields()
	other["participantEmail"] = "b@x.com"
	serve(env.e, multipartReq(t, "/api/registration/register", other, file))

	rec, body := serve(env.e, jsonReq(http.MethodPost, "/api/payment/verify", echo.Map{"registrationId": "ESP20260001", "utrNumber": "xyz 789"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	d := dataOf(t, body)
	if d["utr"] != "XYZ789" || d["paymentStatus"] != "confirmed" {
		t.Fatalf("data = %v", d)
	}
	stored, _ := env.store.FindByID(context.Background(), "ESP20260001")
	if stored.PaymentDate == nil {
		t.Fatal("payment date not set")
	}

	// Idempotent on the same registration.
	if rec, _ := serve(env.e, jsonReq(http.MethodPost, "/api/payment/verify", echo.Map{"registrationId": "ESP20260001", "utrNumber": "XYZ789"})); rec.Code != http.StatusOK {
		t.Fatalf("reapply: %d", rec.Code)
	}
	rec, body = serve(env.e, jsonReq(http.MethodPost, "/api/payment/verify", echo.Map{"registrationId": "ESP20260002", "utrNumber": "xyz789"}))
	if rec.Code != http.StatusConflict || body["message"] != "UTR already used" {
		t.Fatalf("reuse: %d %v", rec.Code, body)
	}
	if rec, _ := serve(env.e, jsonReq(http.MethodPost, "/api/payment/verify", echo.Map{"registrationId": "ESP20269999", "utrNumber": "ABC123"})); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", rec.Code)
	}
	if rec, _ := serve(env.e, jsonReq(http.MethodPost, "/api/payment/verify", echo.Map{"registrationId": "ESP20260001", "utrNumber": "a-b"})); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed: %d", rec.Code)
	}
	if rec, _ := serve(env.e, jsonReq(http.MethodPost, "/api/payment/verify", echo.Map{"registrationId": "ESP20260001"})); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing utr: %d", rec.Code)
	}
	if len(env.events.confirmed) != 2 {
		t.Fatalf("confirmed events = %v", env.events.confirmed)
	}
}

func TestDraftEndpoints(t *testing.T) {
	env := newEnv(t)
	rec, body := serve(env.e, multipartReq(t, "/api/drafts", validFields(), map[string][]byte{"collegeIdProof": pngBytes(t)}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	d := dataOf(t, body)
	id, _ := d["draftId"].(string)
	if !draft.ValidID(id) || d["hasAttachment"] != true || d["token"] == "" {
		t.Fatalf("create data = %v", d)
	}
	if env.backend.n != 0 {
		t.Fatal("draft attachment stored in the upload backend")
	}

	rec, body = serve(env.e, httptest.NewRequest(http.MethodGet, "/api/drafts/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	d = dataOf(t, body)
	if d["state"] != string(draft.StateRecoveredWithAttachment) || d["source"] != "durable" {
		t.Fatalf("get data = %v", d)
	}

	if rec, _ := serve(env.e, httptest.NewRequest(http.MethodDelete, "/api/drafts/"+id, nil)); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec, body = serve(env.e, httptest.NewRequest(http.MethodGet, "/api/drafts/"+id, nil))
	if rec.Code != http.StatusNotFound || body["state"] != string(draft.StateLost) {
		t.Fatalf("after delete: %d %v", rec.Code, body)
	}
	if rec, _ := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/drafts/not-a-draft", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
}

func TestDraftRecoveredFromURLTokenNeedsReupload(t *testing.T) {
	env := newEnv(t)
	_, body := serve(env.e, multipartReq(t, "/api/drafts", validFields(), nil))
	d := dataOf(t, body)
	id := d["draftId"].(string)
	token := d["token"].(string)
	if err := env.drafts.Discard(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	rec, body := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/drafts/"+id+"?data="+token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	d = dataOf(t, body)
	if d["state"] != string(draft.StateRecoveredNeedsReupload) || d["source"] != "url" {
		t.Fatalf("data = %v", d)
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newEnv(t)
	rec, body := serve(env.e, httptest.NewRequest(http.MethodGet, "/api/nope?x=1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	if body["message"] != "API endpoint not found" || body["path"] != "/api/nope?x=1" || body["success"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestInternalErrorsHideDetailOutsideDevelopment(t *testing.T) {
	env := newEnv(t)
	env.store.failWith = fmt.Errorf("connection reset by peer")
	rec, body := serve(env.e, multipartReq(t, "/api/registration/register", validFields(), map[string][]byte{"collegeIdProof": pngBytes(t)}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if _, leaked := body["error"]; leaked {
		t.Fatalf("error detail leaked: %v", body)
	}
	if env.backend.live() != 0 {
		t.Fatal("upload kept after failed insert")
	}
}
