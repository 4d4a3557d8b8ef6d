package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/esplendidez/fest-registration/internal/model"
)

func sample() []model.Registration {
	utr := "XYZ789"
	team := "Bit Busters"
	return []model.Registration{{
		RegistrationID:     "ESP20260001",
		EventName:          "Coding Competition",
		EventCategory:      "Technical",
		EventFee:           200,
		ParticipantName:    "A",
		ParticipantEmail:   "a@x.com",
		ParticipantPhone:   "9876543210",
		ParticipantCollege: "X",
		ParticipantRoll:    "R1",
		CollegeIDProof:     model.Attachment{OriginalName: "id.png"},
		TeamName:           &team,
		TeamMembers:        []model.TeamMember{{Name: "B", Email: "b@x.com"}, {Name: "C"}},
		PaymentStatus:      model.PaymentConfirmed,
		UTRNumber:          &utr,
		SubmittedAt:        time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 2 || len(recs[0]) != len(Header) || len(recs[1]) != len(Header) {
		t.Fatalf("shape = %d rows", len(recs))
	}
	row := recs[1]
	checks := map[int]string{0: "ESP20260001", 9: "3", 10: "Bit Busters", 12: "B <b@x.com>; C", 13: "200.00", 14: "XYZ789", 15: "confirmed"}
	for i, want := range checks {
		if row[i] != want {
			t.Errorf("%s = %q, want %q", Header[i], row[i], want)
		}
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sample()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Registration ID" || rows[1][0] != "ESP20260001" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": XLSX, "XLSX": XLSX, "csv": CSV} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("pdf accepted")
	}
	if got := CSV.Filename(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)); got != "registrations_2026-03-04.csv" {
		t.Errorf("Filename = %q", got)
	}
}
