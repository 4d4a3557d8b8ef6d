package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/queue"
)

// LogMailer appends one line per notification to a file. It stands in for
// real delivery in development.
type LogMailer struct {
	path string
	mu   sync.Mutex
}

func NewLogMailer(path string) *LogMailer {
	return &LogMailer{path: path}
}

func (m *LogMailer) Notify(_ context.Context, ev queue.RegistrationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	s := ev.Summary
	team := ""
	if s.TeamName != "" {
		team = fmt.Sprintf(" | team=%q", s.TeamName)
	}
	line := fmt.Sprintf("[%s] %s | to=%s | registration_id=%s | event=%q | category=%s | name=%q | phone=%s | college=%q%s | team_size=%d | fee=%.2f | status=%s | submitted_at=%s\n",
		ev.OccurredAt, Subject(ev), s.ParticipantEmail, s.RegistrationID, s.EventName, s.EventCategory,
		s.ParticipantName, s.ParticipantPhone, s.ParticipantCollege, team, s.TeamSize, s.EventFee,
		s.PaymentStatus, s.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z"))

	if _, err := f.WriteString(line); err != nil {
		metrics.NotificationsSent.WithLabelValues("logfile", "failed").Inc()
		return fmt.Errorf("write log: %w", err)
	}
	metrics.NotificationsSent.WithLabelValues("logfile", "ok").Inc()
	return nil
}
