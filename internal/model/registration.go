package model

import (
	"encoding/json"
	"time"
)

// PaymentStatus is the admin-visible state of a registration's payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s is one of the three known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentFailed:
		return true
	}
	return false
}

// Categories lists the event categories a registration may belong to.
var Categories = []string{"Technical", "Cultural", "Sports", "E-Sports", "Competitions"}

// ValidCategory reports whether c is one of Categories (exact match).
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Attachment describes a stored upload. Path is either a public URL
// (object store) or a /uploads/<filename> path served locally.
type Attachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}

// TeamMember is one non-captain member of a team entry.
type TeamMember struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Registration mirrors the 'registrations' table.
type Registration struct {
	ID             int64   `json:"id"`
	RegistrationID string  `json:"registrationId"`
	EventName      string  `json:"eventName"`
	EventCategory  string  `json:"eventCategory"`
	EventFee       float64 `json:"eventFee"`

	ParticipantName    string `json:"participantName"`
	ParticipantEmail   string `json:"participantEmail"`
	ParticipantPhone   string `json:"participantPhone"`
	ParticipantCollege string `json:"participantCollege"`
	ParticipantRoll    string `json:"participantRoll"`

	CollegeIDProof Attachment `json:"collegeIdProof"`

	TeamSize    int          `json:"teamSize"`
	TeamName    *string      `json:"teamName,omitempty"`
	TeamCaptain *string      `json:"teamCaptain,omitempty"`
	TeamMembers []TeamMember `json:"teamMembers"`

	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	UTRNumber         *string       `json:"utrNumber,omitempty"`
	PaymentDate       *time.Time    `json:"paymentDate,omitempty"`
	PaymentProof      *Attachment   `json:"paymentProof,omitempty"`
	PaymentVerifiedBy *string       `json:"paymentVerifiedBy,omitempty"`
	PaymentVerifiedAt *time.Time    `json:"paymentVerifiedAt,omitempty"`

	RegistrationStatus string  `json:"registrationStatus"`
	IPAddress          *string `json:"ipAddress,omitempty"`
	UserAgent          *string `json:"userAgent,omitempty"`
	AdminNotes         *string `json:"adminNotes,omitempty"`

	SubmittedAt time.Time `json:"submittedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TeamMembersJSON encodes the member list for the JSONB column. A nil
// slice is stored as an empty array.
func (r *Registration) TeamMembersJSON() ([]byte, error) {
	if r.TeamMembers == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.TeamMembers)
}

// CategoryStat is one row of the per-category dashboard aggregate. The
// dashboard reads the category from "_id".
type CategoryStat struct {
	Category string  `json:"_id"`
	Count    int     `json:"count"`
	Revenue  float64 `json:"revenue"`
}

// StatusStat is one row of the per-status dashboard aggregate.
type StatusStat struct {
	Status PaymentStatus `json:"_id"`
	Count  int           `json:"count"`
}

// Stats is returned by the admin dashboard stats endpoint.
type Stats struct {
	TotalRegistrations int            `json:"totalRegistrations"`
	PendingPayments    int            `json:"pendingPayments"`
	TotalRevenue       float64        `json:"totalRevenue"`
	CategoryWise       []CategoryStat `json:"categoryWise"`
	StatusWise         []StatusStat   `json:"statusWise"`
}

// Filter narrows list queries. Empty fields are ignored.
type Filter struct {
	Category      string
	EventName     string
	PaymentStatus PaymentStatus
}
