package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/config"
	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/queue"
)

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// ZeptoMailer sends HTML mail through the ZeptoMail HTTP API.
type ZeptoMailer struct {
	cfg    config.MailConfig
	client *http.Client
}

func NewZeptoMailer(cfg config.MailConfig) *ZeptoMailer {
	return &ZeptoMailer{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (m *ZeptoMailer) Notify(ctx context.Context, ev queue.RegistrationEvent) error {
	body, err := HTMLBody(ev)
	if err != nil {
		return fmt.Errorf("render mail: %w", err)
	}
	payload := emailRequest{
		From: emailAddress{Address: m.cfg.From},
		To: []toRecipient{{
			Email: emailWithName{Address: ev.Summary.ParticipantEmail, Name: ev.Summary.ParticipantName},
		}},
		Subject:  Subject(ev),
		HtmlBody: body,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("zeptomail", "failed").Inc()
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		metrics.NotificationsSent.WithLabelValues("zeptomail", "failed").Inc()
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}
	metrics.NotificationsSent.WithLabelValues("zeptomail", "ok").Inc()
	log.Info().Str("registration_id", ev.Summary.RegistrationID).Str("event", ev.Type).Msg("email sent")
	return nil
}
