// Package notify delivers participant notifications for registration
// events, either through the ZeptoMail HTTP API or to a local log file.
package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/esplendidez/fest-registration/internal/config"
	"github.com/esplendidez/fest-registration/internal/queue"
)

// New picks the ZeptoMail sender when it is fully configured and the log
// file otherwise.
func New(cfg config.MailConfig) queue.Notifier {
	if cfg.Remote() {
		return NewZeptoMailer(cfg)
	}
	return NewLogMailer(cfg.LogPath)
}

// Subject returns the mail subject for ev.
func Subject(ev queue.RegistrationEvent) string {
	switch ev.Type {
	case queue.QueuePaymentConfirmed:
		return fmt.Sprintf("Payment confirmed: %s (%s)", ev.Summary.EventName, ev.Summary.RegistrationID)
	default:
		return fmt.Sprintf("Registration received: %s (%s)", ev.Summary.EventName, ev.Summary.RegistrationID)
	}
}

var bodyTmpl = template.Must(template.New("mail").Parse(`<p>Hi {{.Summary.ParticipantName}},</p>
{{if eq .Type "payment.confirmed"}}<p>Your payment for <strong>{{.Summary.EventName}}</strong> has been confirmed{{if .UTR}} (UTR {{.UTR}}){{end}}.</p>
{{else}}<p>We have received your registration for <strong>{{.Summary.EventName}}</strong>. Your payment will be verified shortly.</p>
{{end}}<table>
<tr><td>Registration ID</td><td>{{.Summary.RegistrationID}}</td></tr>
<tr><td>Event</td><td>{{.Summary.EventName}} ({{.Summary.EventCategory}})</td></tr>
<tr><td>Name</td><td>{{.Summary.ParticipantName}}</td></tr>
<tr><td>Email</td><td>{{.Summary.ParticipantEmail}}</td></tr>
<tr><td>Phone</td><td>{{.Summary.ParticipantPhone}}</td></tr>
<tr><td>College</td><td>{{.Summary.ParticipantCollege}}</td></tr>
{{if .Summary.TeamName}}<tr><td>Team</td><td>{{.Summary.TeamName}}</td></tr>
{{end}}<tr><td>Team size</td><td>{{.Summary.TeamSize}}</td></tr>
<tr><td>Fee</td><td>&#8377;{{printf "%.2f" .Summary.EventFee}}</td></tr>
<tr><td>Payment status</td><td>{{.Summary.PaymentStatus}}</td></tr>
<tr><td>Submitted</td><td>{{.Summary.SubmittedAt.Format "02 Jan 2006 15:04 MST"}}</td></tr>
</table>`))

// HTMLBody renders the participant-facing summary.
func HTMLBody(ev queue.RegistrationEvent) (string, error) {
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, ev); err != nil {
		return "", err
	}
	return buf.String(), nil
}
