package domain

import "fmt"

type UrgencyLevel string

const (
	UrgencyRegular UrgencyLevel = "regular"
	UrgencyUrgent  UrgencyLevel = "urgent"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "PENDING"
	DonationManaged   DonationStatus = "MANAGED"
	DonationCompleted DonationStatus = "COMPLETED"
	DonationCancelled DonationStatus = "CANCELLED"
	DonationExpired   DonationStatus = "EXPIRED"
)

func (s DonationStatus) Valid() bool {
	switch s {
	case DonationPending, DonationManaged, DonationCompleted, DonationCancelled, DonationExpired:
		return true
	}
	return false
}

type DonationRequest struct {
	SeekerID            string         `json:"seekerId"`
	RequestPostID       string         `json:"requestPostId"`
	CreatedAt           string         `json:"createdAt"`
	RequestedBloodGroup BloodGroup     `json:"requestedBloodGroup"`
	BloodQuantity       int            `json:"bloodQuantity"`
	UrgencyLevel        UrgencyLevel   `json:"urgencyLevel"`
	Location            string         `json:"location"`
	Latitude            float64        `json:"latitude"`
	Longitude           float64        `json:"longitude"`
	Geohash             string         `json:"geohash"`
	CountryCode         string         `json:"countryCode"`
	DonationDateTime    string         `json:"donationDateTime"`
	ContactNumber       string         `json:"contactNumber"`
	PatientName         string         `json:"patientName,omitempty"`
	TransportationInfo  string         `json:"transportationInfo,omitempty"`
	ShortDescription    string         `json:"shortDescription,omitempty"`
	Status              DonationStatus `json:"status"`
}

// NotificationPayload returns the request fields that donors see in their notification.
func (r DonationRequest) NotificationPayload() map[string]any {
	p := map[string]any{
		PayloadSeekerID:            r.SeekerID,
		PayloadRequestPostID:       r.RequestPostID,
		PayloadCreatedAt:           r.CreatedAt,
		PayloadBloodQuantity:       r.BloodQuantity,
		PayloadRequestedBloodGroup: string(r.RequestedBloodGroup),
		PayloadUrgencyLevel:        string(r.UrgencyLevel),
		PayloadContactNumber:       r.ContactNumber,
		PayloadDonationDateTime:    r.DonationDateTime,
		PayloadLocation:            r.Location,
	}
	if r.PatientName != "" {
		p[PayloadPatientName] = r.PatientName
	}
	if r.ShortDescription != "" {
		p[PayloadShortDescription] = r.ShortDescription
	}
	if r.TransportationInfo != "" {
		p[PayloadTransportationInfo] = r.TransportationInfo
	}
	return p
}

type CreateDonationRequest struct {
	RequestedBloodGroup BloodGroup   `json:"requestedBloodGroup" validate:"required,bloodgroup"`
	BloodQuantity       int          `json:"bloodQuantity" validate:"required,min=1,max=10"`
	UrgencyLevel        UrgencyLevel `json:"urgencyLevel" validate:"required,oneof=regular urgent"`
	Location            string       `json:"location" validate:"required"`
	Latitude            float64      `json:"latitude" validate:"latitude"`
	Longitude           float64      `json:"longitude" validate:"longitude"`
	CountryCode         string       `json:"countryCode" validate:"required,len=2"`
	DonationDateTime    string       `json:"donationDateTime" validate:"required"`
	ContactNumber       string       `json:"contactNumber" validate:"required"`
	PatientName         string       `json:"patientName"`
	TransportationInfo  string       `json:"transportationInfo"`
	ShortDescription    string       `json:"shortDescription" validate:"max=200"`
}

// UpdateDonationRequest carries the editable request fields. Nil fields are left untouched.
type UpdateDonationRequest struct {
	CreatedAt          string        `json:"createdAt" validate:"required"`
	BloodQuantity      *int          `json:"bloodQuantity" validate:"omitempty,min=1,max=10"`
	UrgencyLevel       *UrgencyLevel `json:"urgencyLevel" validate:"omitempty,oneof=regular urgent"`
	DonationDateTime   *string       `json:"donationDateTime"`
	ContactNumber      *string       `json:"contactNumber"`
	PatientName        *string       `json:"patientName"`
	TransportationInfo *string       `json:"transportationInfo"`
	ShortDescription   *string       `json:"shortDescription" validate:"omitempty,max=200"`
}

// Apply copies the non-nil fields onto r and returns the changed fields keyed
// by their notification payload name.
func (u UpdateDonationRequest) Apply(r *DonationRequest) map[string]any {
	changed := map[string]any{}
	if u.BloodQuantity != nil {
		r.BloodQuantity = *u.BloodQuantity
		changed[PayloadBloodQuantity] = *u.BloodQuantity
	}
	if u.UrgencyLevel != nil {
		r.UrgencyLevel = *u.UrgencyLevel
		changed[PayloadUrgencyLevel] = string(*u.UrgencyLevel)
	}
	if u.DonationDateTime != nil {
		r.DonationDateTime = *u.DonationDateTime
		changed[PayloadDonationDateTime] = *u.DonationDateTime
	}
	if u.ContactNumber != nil {
		r.ContactNumber = *u.ContactNumber
		changed[PayloadContactNumber] = *u.ContactNumber
	}
	if u.PatientName != nil {
		r.PatientName = *u.PatientName
		changed[PayloadPatientName] = *u.PatientName
	}
	if u.TransportationInfo != nil {
		r.TransportationInfo = *u.TransportationInfo
		changed[PayloadTransportationInfo] = *u.TransportationInfo
	}
	if u.ShortDescription != nil {
		r.ShortDescription = *u.ShortDescription
		changed[PayloadShortDescription] = *u.ShortDescription
	}
	return changed
}

// AcceptedDonation records a donor's response to a donation request.
type AcceptedDonation struct {
	SeekerID       string             `json:"seekerId"`
	RequestPostID  string             `json:"requestPostId"`
	DonorID        string             `json:"donorId"`
	Status         NotificationStatus `json:"status"`
	AcceptanceTime string             `json:"acceptanceTime,omitempty"`
	DonorName      string             `json:"donorName,omitempty"`
	PhoneNumbers   []string           `json:"phoneNumbers,omitempty"`
	CreatedAt      string             `json:"createdAt"`
}

type AcceptDonationRequest struct {
	SeekerID  string `json:"seekerId" validate:"required"`
	CreatedAt string `json:"createdAt" validate:"required"`
}

type CompleteDonationRequest struct {
	CreatedAt string   `json:"createdAt" validate:"required"`
	DonorIDs  []string `json:"donorIds" validate:"required,min=1,dive,required"`
}

// SearchJob asks the donor search to look for more donors for a request.
type SearchJob struct {
	SeekerID   string `json:"seekerId" validate:"required"`
	RequestID  string `json:"requestId" validate:"required"`
	CreatedAt  string `json:"createdAt" validate:"required"`
	RetryCount int    `json:"retryCount"`
}

func (j SearchJob) String() string {
	return fmt.Sprintf("%s/%s#%d", j.SeekerID, j.RequestID, j.RetryCount)
}
