// Package export renders registrations as CSV or XLSX for the admin
// dashboard download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/esplendidez/fest-registration/internal/model"
)

// Header is the dashboard's column set.
var Header = []string{
	"Registration ID", "Event", "Category", "Name", "Email", "Phone", "College",
	"Roll Number", "ID Proof File", "Team Size", "Team Name", "Team Captain",
	"Team Members", "Fee", "UTR ID", "Status", "Registration Date", "Last Updated",
}

const sheetName = "Registrations"

const dateLayout = "2006-01-02 15:04:05"

// Format names a supported download format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat defaults to xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "excel":
		return XLSX, nil
	case "csv":
		return CSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns a dated download name.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("registrations_%s.%s", now.Format("2006-01-02"), f)
}

// Write renders regs in format f.
func Write(w io.Writer, f Format, regs []model.Registration) error {
	if f == CSV {
		return WriteCSV(w, regs)
	}
	return WriteXLSX(w, regs)
}

func values(r model.Registration) []any {
	return []any{
		r.RegistrationID,
		r.EventName,
		r.EventCategory,
		r.ParticipantName,
		r.ParticipantEmail,
		r.ParticipantPhone,
		r.ParticipantCollege,
		r.ParticipantRoll,
		r.CollegeIDProof.OriginalName,
		len(r.TeamMembers) + 1,
		deref(r.TeamName),
		deref(r.TeamCaptain),
		members(r.TeamMembers),
		r.EventFee,
		deref(r.UTRNumber),
		string(r.PaymentStatus),
		r.SubmittedAt.Local().Format(dateLayout),
		r.UpdatedAt.Local().Format(dateLayout),
	}
}

func members(ms []model.TeamMember) string {
	parts := make([]string, 0, len(ms))
	for _, m := range ms {
		if m.Email != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", m.Name, m.Email))
		} else {
			parts = append(parts, m.Name)
		}
	}
	return strings.Join(parts, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WriteCSV writes a header row followed by one row per registration.
func WriteCSV(w io.Writer, regs []model.Registration) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range regs {
		vals := values(r)
		rec := make([]string, len(vals))
		for i, v := range vals {
			switch t := v.(type) {
			case string:
				rec[i] = t
			case int:
				rec[i] = strconv.Itoa(t)
			case float64:
				rec[i] = strconv.FormatFloat(t, 'f', 2, 64)
			default:
				rec[i] = fmt.Sprint(t)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook with a bold, frozen header row.
func WriteXLSX(w io.Writer, regs []model.Registration) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	for i, r := range regs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := values(r)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Header))
	_ = f.SetColWidth(sheetName, "A", lastCol, 18)

	return f.Write(w)
}
