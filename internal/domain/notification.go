package domain

import "slices"

type NotificationType string

const (
	NotificationTypeRequestPost NotificationType = "BLOOD_REQ_POST"
	NotificationTypeAccepted    NotificationType = "REQ_ACCEPTED"
	NotificationTypeCommon      NotificationType = "COMMON"
)

// IsDonation reports whether notifications of this type are keyed by a
// donation request and therefore subject to deduplication.
func (t NotificationType) IsDonation() bool {
	return t == NotificationTypeRequestPost || t == NotificationTypeAccepted
}

func (t NotificationType) Valid() bool {
	return t.IsDonation() || t == NotificationTypeCommon
}

type NotificationStatus string

const (
	StatusPending   NotificationStatus = "PENDING"
	StatusAccepted  NotificationStatus = "ACCEPTED"
	StatusCompleted NotificationStatus = "COMPLETED"
	StatusIgnored   NotificationStatus = "IGNORED"
)

var statusTransitions = map[NotificationStatus][]NotificationStatus{
	StatusPending:  {StatusAccepted, StatusIgnored},
	StatusAccepted: {StatusCompleted},
}

// CanTransition reports whether a donation notification may move from one
// status to another. Re-applying the current status is allowed so that
// redelivered jobs stay idempotent.
func (s NotificationStatus) CanTransition(to NotificationStatus) bool {
	if s == to {
		return true
	}
	return slices.Contains(statusTransitions[s], to)
}

func (s NotificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCompleted, StatusIgnored:
		return true
	}
	return false
}

type Notification struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Type      NotificationType   `json:"type"`
	Status    NotificationStatus `json:"status,omitempty"`
	Payload   map[string]any     `json:"payload,omitempty"`
	CreatedAt string             `json:"createdAt"`
}

// NotificationAttributes is the notification job carried on the outbound queue.
type NotificationAttributes struct {
	RecipientID string             `json:"recipientId" validate:"required"`
	Title       string             `json:"title" validate:"required"`
	Body        string             `json:"body" validate:"required"`
	Type        NotificationType   `json:"type" validate:"required,oneof=BLOOD_REQ_POST REQ_ACCEPTED COMMON"`
	Status      NotificationStatus `json:"status,omitempty"`
	Payload     map[string]any     `json:"payload,omitempty"`
}

// RequestID returns the donation request a donation notification refers to.
func (a NotificationAttributes) RequestID() string {
	if v, ok := a.Payload[PayloadRequestPostID].(string); ok {
		return v
	}
	return ""
}

// Payload keys shared by the producers and consumers of notification jobs.
const (
	PayloadSeekerID            = "seekerId"
	PayloadRequestPostID       = "requestPostId"
	PayloadCreatedAt           = "createdAt"
	PayloadBloodQuantity       = "bloodQuantity"
	PayloadRequestedBloodGroup = "requestedBloodGroup"
	PayloadUrgencyLevel        = "urgencyLevel"
	PayloadContactNumber       = "contactNumber"
	PayloadDonationDateTime    = "donationDateTime"
	PayloadPatientName         = "patientName"
	PayloadLocation            = "location"
	PayloadLocationID          = "locationId"
	PayloadShortDescription    = "shortDescription"
	PayloadTransportationInfo  = "transportationInfo"
	PayloadDistance            = "distance"
	PayloadDonorID             = "donorId"
	PayloadDonorName           = "donorName"
	PayloadPhoneNumbers        = "phoneNumbers"
)
