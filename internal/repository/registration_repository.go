package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/model"
	"github.com/esplendidez/fest-registration/internal/utils"
)

// maxIDAttempts bounds how often Create draws a fresh sequence value after
// a registration_id collision.
const maxIDAttempts = 3

// RegistrationRepo provides persistence for registrations. Identifiers are
// drawn from the registration_seq sequence and formatted with a fixed
// prefix, so concurrent inserts never derive the same value.
type RegistrationRepo struct {
	db     *sql.DB
	prefix string
}

// NewRegistrationRepo returns a RegistrationRepo bound to db. prefix is the
// fixed part of every issued identifier (e.g. "ESP2026").
func NewRegistrationRepo(db *sql.DB, prefix string) *RegistrationRepo {
	return &RegistrationRepo{db: db, prefix: prefix}
}

// FormatRegistrationID renders prefix followed by n zero-padded to four
// digits. Values past 9999 simply grow wider.
func FormatRegistrationID(prefix string, n int64) string {
	return fmt.Sprintf("%s%04d", prefix, n)
}

const registrationColumns = `id, registration_id, event_name, event_category, event_fee::float8,
	participant_name, participant_email, participant_phone, participant_college, participant_roll,
	college_id_filename, college_id_original_name, college_id_path, college_id_size, college_id_mimetype,
	team_size, team_name, team_captain, team_members,
	payment_status, utr_number, payment_date, payment_proof, payment_verified_by, payment_verified_at,
	registration_status, ip_address, user_agent, admin_notes, submitted_at, updated_at`

// mutableColumns is the allow-list consulted by Update. payment_date is
// not in it: the date always follows payment_status.
var mutableColumns = map[string]bool{
	"event_name": true, "event_category": true, "event_fee": true,
	"participant_name": true, "participant_email": true, "participant_phone": true,
	"participant_college": true, "participant_roll": true,
	"team_size": true, "team_name": true, "team_captain": true, "team_members": true,
	"payment_status": true, "utr_number": true, "payment_proof": true,
	"registration_status": true, "admin_notes": true,
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*model.Registration, error) {
	var (
		reg                        model.Registration
		status                     string
		teamName, teamCaptain, utr sql.NullString
		verifiedBy, ip, ua, notes  sql.NullString
		paymentDate, verifiedAt    sql.NullTime
		membersRaw, proofRaw       []byte
	)
	err := row.Scan(
		&reg.ID, &reg.RegistrationID, &reg.EventName, &reg.EventCategory, &reg.EventFee,
		&reg.ParticipantName, &reg.ParticipantEmail, &reg.ParticipantPhone, &reg.ParticipantCollege, &reg.ParticipantRoll,
		&reg.CollegeIDProof.Filename, &reg.CollegeIDProof.OriginalName, &reg.CollegeIDProof.Path,
		&reg.CollegeIDProof.Size, &reg.CollegeIDProof.MimeType,
		&reg.TeamSize, &teamName, &teamCaptain, &membersRaw,
		&status, &utr, &paymentDate, &proofRaw, &verifiedBy, &verifiedAt,
		&reg.RegistrationStatus, &ip, &ua, &notes, &reg.SubmittedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	reg.PaymentStatus = model.PaymentStatus(status)
	reg.TeamName = strPtr(teamName)
	reg.TeamCaptain = strPtr(teamCaptain)
	reg.UTRNumber = strPtr(utr)
	reg.PaymentVerifiedBy = strPtr(verifiedBy)
	reg.IPAddress = strPtr(ip)
	reg.UserAgent = strPtr(ua)
	reg.AdminNotes = strPtr(notes)
	reg.PaymentDate = timePtr(paymentDate)
	reg.PaymentVerifiedAt = timePtr(verifiedAt)

	reg.TeamMembers = []model.TeamMember{}
	if len(membersRaw) > 0 {
		if err := json.Unmarshal(membersRaw, &reg.TeamMembers); err != nil {
			return nil, fmt.Errorf("decode team_members: %w", err)
		}
	}
	if len(proofRaw) > 0 && string(proofRaw) != "null" {
		var proof model.Attachment
		if err := json.Unmarshal(proofRaw, &proof); err != nil {
			return nil, fmt.Errorf("decode payment_proof: %w", err)
		}
		reg.PaymentProof = &proof
	}
	return &reg, nil
}

// Create inserts reg with a freshly allocated identifier and populates it
// from the stored row. A registration_id collision draws a new sequence
// value; other unique violations surface as ErrDuplicateUTR or
// ErrDuplicateEmailEvent.
func (r *RegistrationRepo) Create(ctx context.Context, reg *model.Registration) error {
	for attempt := 1; ; attempt++ {
		err := r.insert(ctx, reg)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateRegistrationID) || attempt >= maxIDAttempts {
			return err
		}
		log.Warn().Int("attempt", attempt).Str("registration_id", reg.RegistrationID).
			Msg("registration id collision, drawing next value")
	}
}

func (r *RegistrationRepo) insert(ctx context.Context, reg *model.Registration) error {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('registration_seq')`).Scan(&n); err != nil {
		return fmt.Errorf("allocate registration id: %w", err)
	}
	reg.RegistrationID = FormatRegistrationID(r.prefix, n)

	members, err := reg.TeamMembersJSON()
	if err != nil {
		return fmt.Errorf("encode team_members: %w", err)
	}
	var proof any
	if reg.PaymentProof != nil {
		b, err := json.Marshal(reg.PaymentProof)
		if err != nil {
			return fmt.Errorf("encode payment_proof: %w", err)
		}
		proof = string(b)
	}
	if reg.PaymentStatus == "" {
		reg.PaymentStatus = model.PaymentPending
	}
	if reg.RegistrationStatus == "" {
		reg.RegistrationStatus = "active"
	}
	if reg.TeamSize == 0 {
		reg.TeamSize = 1
	}
	var utr any
	if reg.UTRNumber != nil && *reg.UTRNumber != "" {
		utr = utils.NormalizeUTR(*reg.UTRNumber)
	}

	q := `INSERT INTO registrations (
		registration_id, event_name, event_category, event_fee,
		participant_name, participant_email, participant_phone, participant_college, participant_roll,
		college_id_filename, college_id_original_name, college_id_path, college_id_size, college_id_mimetype,
		team_size, team_name, team_captain, team_members,
		payment_status, utr_number, payment_date, payment_proof,
		registration_status, ip_address, user_agent, admin_notes
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18::jsonb,$19,$20,$21,$22::jsonb,$23,$24,$25,$26)
	RETURNING ` + registrationColumns

	row := r.db.QueryRowContext(ctx, q,
		reg.RegistrationID, reg.EventName, reg.EventCategory, reg.EventFee,
		reg.ParticipantName, reg.ParticipantEmail, reg.ParticipantPhone, reg.ParticipantCollege, reg.ParticipantRoll,
		reg.CollegeIDProof.Filename, reg.CollegeIDProof.OriginalName, reg.CollegeIDProof.Path,
		reg.CollegeIDProof.Size, reg.CollegeIDProof.MimeType,
		reg.TeamSize, nullable(reg.TeamName), nullable(reg.TeamCaptain), string(members),
		string(reg.PaymentStatus), utr, nullableTime(reg.PaymentDate), proof,
		reg.RegistrationStatus, nullable(reg.IPAddress), nullable(reg.UserAgent), nullable(reg.AdminNotes),
	)
	stored, err := scanRegistration(row)
	if err != nil {
		return classify(err)
	}
	*reg = *stored
	return nil
}

// FindByID returns the registration with the given registration_id.
func (r *RegistrationRepo) FindByID(ctx context.Context, registrationID string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE registration_id = $1`, registrationID)
	return oneOrNotFound(scanRegistration(row))
}

// FindByEmailAndEvent looks up the registration for a participant email and
// event pair, which is unique.
func (r *RegistrationRepo) FindByEmailAndEvent(ctx context.Context, email, eventName string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE participant_email = $1 AND event_name = $2`,
		email, eventName)
	return oneOrNotFound(scanRegistration(row))
}

// FindAll lists registrations newest first. Empty filter fields are ignored.
func (r *RegistrationRepo) FindAll(ctx context.Context, f model.Filter) ([]model.Registration, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("event_category = $%d", f.Category)
	}
	if f.EventName != "" {
		add("event_name = $%d", f.EventName)
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", string(f.PaymentStatus))
	}
	q := `SELECT ` + registrationColumns + ` FROM registrations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY submitted_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, rows.Err()
}

// Update applies the allow-listed subset of fields (keyed by column name)
// and always stamps updated_at. Setting payment_status applies the same
// date rule as SetPaymentStatus.
func (r *RegistrationRepo) Update(ctx context.Context, registrationID string, fields map[string]any) (*model.Registration, error) {
	q, args, err := updateStatement(registrationID, fields)
	if err != nil {
		return nil, err
	}
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, q, args...))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err)
	}
	return oneOrNotFound(reg, err)
}

func updateStatement(registrationID string, fields map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if mutableColumns[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", nil, ErrNoFieldsToUpdate
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+2)
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		v, err := columnValue(k, fields[k])
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
		switch k {
		case "team_members", "payment_proof":
			sets = append(sets, fmt.Sprintf("%s = $%d::jsonb", k, len(args)))
		default:
			sets = append(sets, fmt.Sprintf("%s = $%d", k, len(args)))
		}
	}
	if s, ok := fields["payment_status"].(string); ok {
		if c := paymentDateClause(model.PaymentStatus(s)); c != "" {
			sets = append(sets, c)
		}
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, registrationID)

	q := fmt.Sprintf(`UPDATE registrations SET %s WHERE registration_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), registrationColumns)
	return q, args, nil
}

// columnValue converts an incoming JSON value into what the column expects.
func columnValue(col string, v any) (any, error) {
	switch col {
	case "team_members", "payment_proof":
		if v == nil {
			if col == "team_members" {
				return "[]", nil
			}
			return nil, nil
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, col)
		}
		return string(b), nil
	case "utr_number":
		if v == nil {
			return nil, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: utr_number", ErrInvalidValue)
		}
		n, err := utils.ParseUTR(s)
		if err != nil {
			return nil, fmt.Errorf("%w: utr_number", ErrInvalidValue)
		}
		return n, nil
	case "participant_email":
		if s, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(s)), nil
		}
	case "team_size":
		if f, ok := v.(float64); ok {
			return int(f), nil
		}
	}
	return v, nil
}

// paymentDateClause returns the payment_date assignment implied by status:
// confirmed stamps now, pending clears, failed leaves it untouched.
func paymentDateClause(status model.PaymentStatus) string {
	switch status {
	case model.PaymentConfirmed:
		return "payment_date = now()"
	case model.PaymentPending:
		return "payment_date = NULL"
	}
	return ""
}

// Delete removes a registration and returns the deleted row.
func (r *RegistrationRepo) Delete(ctx context.Context, registrationID string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM registrations WHERE registration_id = $1 RETURNING `+registrationColumns, registrationID)
	return oneOrNotFound(scanRegistration(row))
}

// SetPaymentStatus moves one registration to status. Confirming stamps the
// payment date and, when verifiedBy is set, the verifier; pending clears
// the payment date. Reapplying the same status is harmless.
func (r *RegistrationRepo) SetPaymentStatus(ctx context.Context, registrationID string, status model.PaymentStatus, verifiedBy string) (*model.Registration, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: payment_status", ErrInvalidValue)
	}
	sets := []string{"payment_status = $1", "updated_at = now()"}
	args := []any{string(status), registrationID}
	if c := paymentDateClause(status); c != "" {
		sets = append(sets, c)
	}
	if status == model.PaymentConfirmed && verifiedBy != "" {
		args = append(args, verifiedBy)
		sets = append(sets, fmt.Sprintf("payment_verified_by = $%d", len(args)), "payment_verified_at = now()")
	}
	q := fmt.Sprintf(`UPDATE registrations SET %s WHERE registration_id = $2 RETURNING %s`,
		strings.Join(sets, ", "), registrationColumns)
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, q, args...))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err)
	}
	return oneOrNotFound(reg, err)
}

// BulkSetPaymentStatus applies status to every registration in category and
// returns the number of rows modified.
func (r *RegistrationRepo) BulkSetPaymentStatus(ctx context.Context, category string, status model.PaymentStatus) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: payment_status", ErrInvalidValue)
	}
	sets := []string{"payment_status = $1", "updated_at = now()"}
	if c := paymentDateClause(status); c != "" {
		sets = append(sets, c)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE registrations SET `+strings.Join(sets, ", ")+` WHERE event_category = $2`,
		string(status), category)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

// VerifyPayment records a normalized UTR against a registration and marks it
// confirmed in a single statement. A UTR already held by another
// registration yields ErrDuplicateUTR.
func (r *RegistrationRepo) VerifyPayment(ctx context.Context, registrationID, utr string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE registrations
		    SET utr_number = $1, payment_status = 'confirmed', payment_date = now(), updated_at = now()
		  WHERE registration_id = $2
		RETURNING `+registrationColumns, utr, registrationID)
	reg, err := scanRegistration(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err)
	}
	return oneOrNotFound(reg, err)
}

// UTRAvailable reports whether no registration holds utr, compared
// case-insensitively.
func (r *RegistrationRepo) UTRAvailable(ctx context.Context, utr string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE utr_number IS NOT NULL AND UPPER(utr_number) = UPPER($1))`,
		utr).Scan(&taken)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// Stats aggregates the dashboard figures. Revenue counts confirmed
// payments only.
func (r *RegistrationRepo) Stats(ctx context.Context) (*model.Stats, error) {
	st := &model.Stats{CategoryWise: []model.CategoryStat{}, StatusWise: []model.StatusStat{}}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int,
		       COUNT(*) FILTER (WHERE payment_status = 'pending')::int,
		       COALESCE(SUM(event_fee) FILTER (WHERE payment_status = 'confirmed'), 0)::float8
		  FROM registrations`).Scan(&st.TotalRegistrations, &st.PendingPayments, &st.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_category,
		       COUNT(*)::int,
		       COALESCE(SUM(CASE WHEN payment_status = 'confirmed' THEN event_fee ELSE 0 END), 0)::float8
		  FROM registrations
		 GROUP BY event_category
		 ORDER BY event_category`)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	for rows.Next() {
		var c model.CategoryStat
		if err := rows.Scan(&c.Category, &c.Count, &c.Revenue); err != nil {
			rows.Close()
			return nil, err
		}
		st.CategoryWise = append(st.CategoryWise, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT payment_status, COUNT(*)::int
		  FROM registrations
		 GROUP BY payment_status
		 ORDER BY payment_status`)
	if err != nil {
		return nil, fmt.Errorf("status stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s     model.StatusStat
			label string
		)
		if err := rows.Scan(&label, &s.Count); err != nil {
			return nil, err
		}
		s.Status = model.PaymentStatus(label)
		st.StatusWise = append(st.StatusWise, s)
	}
	return st, rows.Err()
}

func oneOrNotFound(reg *model.Registration, err error) (*model.Registration, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
