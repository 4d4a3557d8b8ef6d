package model

import "time"

// EmailSummary is the participant-facing digest used by notifications.
type EmailSummary struct {
	RegistrationID     string        `json:"registrationId"`
	EventName          string        `json:"eventName"`
	EventCategory      string        `json:"eventCategory"`
	ParticipantName    string        `json:"participantName"`
	ParticipantEmail   string        `json:"participantEmail"`
	ParticipantPhone   string        `json:"participantPhone"`
	ParticipantCollege string        `json:"participantCollege"`
	TeamName           string        `json:"teamName,omitempty"`
	TeamSize           int           `json:"teamSize"`
	EventFee           float64       `json:"eventFee"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	SubmittedAt        time.Time     `json:"submittedAt"`
}

// Summary builds the email digest. Team size counts the captain plus the
// listed members.
func (r *Registration) Summary() EmailSummary {
	s := EmailSummary{
		RegistrationID:     r.RegistrationID,
		EventName:          r.EventName,
		EventCategory:      r.EventCategory,
		ParticipantName:    r.ParticipantName,
		ParticipantEmail:   r.ParticipantEmail,
		ParticipantPhone:   r.ParticipantPhone,
		ParticipantCollege: r.ParticipantCollege,
		TeamSize:           len(r.TeamMembers) + 1,
		EventFee:           r.EventFee,
		PaymentStatus:      r.PaymentStatus,
		SubmittedAt:        r.SubmittedAt,
	}
	if r.TeamName != nil {
		s.TeamName = *r.TeamName
	}
	return s
}

