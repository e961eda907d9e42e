package dynamo

import (
	"context"

	"github.com/go-blood-connect/internal/domain"
)

type donationRequestItem struct {
	PK                  string   `dynamodbav:"PK"`
	SK                  string   `dynamodbav:"SK"`
	LSI1SK              string   `dynamodbav:"LSI1SK,omitempty"`
	RequestedBloodGroup string   `dynamodbav:"requestedBloodGroup,omitempty"`
	BloodQuantity       int      `dynamodbav:"bloodQuantity,omitempty"`
	UrgencyLevel        string   `dynamodbav:"urgencyLevel,omitempty"`
	Location            string   `dynamodbav:"location,omitempty"`
	Latitude            *float64 `dynamodbav:"latitude,omitempty"`
	Longitude           *float64 `dynamodbav:"longitude,omitempty"`
	Geohash             string   `dynamodbav:"geohash,omitempty"`
	CountryCode         string   `dynamodbav:"countryCode,omitempty"`
	DonationDateTime    string   `dynamodbav:"donationDateTime,omitempty"`
	ContactNumber       string   `dynamodbav:"contactNumber,omitempty"`
	PatientName         string   `dynamodbav:"patientName,omitempty"`
	TransportationInfo  string   `dynamodbav:"transportationInfo,omitempty"`
	ShortDescription    string   `dynamodbav:"shortDescription,omitempty"`
	Status              string   `dynamodbav:"status,omitempty"`
}

type donationRequestAdapter struct{ tableIndexes }

func donationRequestSK(createdAt, requestID string) string {
	return joinKey(bloodRequestPrefix, createdAt, requestID)
}

// Requests share the seeker partition and LSI1 with accepted donations, so
// their status keys live under their own prefix.
func requestStatusPrefix(status domain.DonationStatus) string {
	return keyPrefix(bloodRequestPrefix, "STATUS", string(status))
}

// FromDomain writes coordinates only together with the geohash they were
// encoded into, so a sparse update never zeroes them.
func (donationRequestAdapter) FromDomain(r domain.DonationRequest) (donationRequestItem, error) {
	if err := requireKeyParts("donation request", r.SeekerID, r.CreatedAt, r.RequestPostID); err != nil {
		return donationRequestItem{}, err
	}
	item := donationRequestItem{
		PK:                  joinKey(bloodRequestPrefix, r.SeekerID),
		SK:                  donationRequestSK(r.CreatedAt, r.RequestPostID),
		RequestedBloodGroup: string(r.RequestedBloodGroup),
		BloodQuantity:       r.BloodQuantity,
		UrgencyLevel:        string(r.UrgencyLevel),
		Location:            r.Location,
		Geohash:             r.Geohash,
		CountryCode:         r.CountryCode,
		DonationDateTime:    r.DonationDateTime,
		ContactNumber:       r.ContactNumber,
		PatientName:         r.PatientName,
		TransportationInfo:  r.TransportationInfo,
		ShortDescription:    r.ShortDescription,
		Status:              string(r.Status),
	}
	if r.Geohash != "" {
		lat, lon := r.Latitude, r.Longitude
		item.Latitude, item.Longitude = &lat, &lon
	}
	if r.Status != "" {
		item.LSI1SK = joinKey(bloodRequestPrefix, "STATUS", string(r.Status), r.CreatedAt, r.RequestPostID)
	}
	return item, nil
}

func (donationRequestAdapter) ToDomain(item donationRequestItem) (domain.DonationRequest, error) {
	pk, err := parseKey(item.PK, bloodRequestPrefix, "")
	if err != nil {
		return domain.DonationRequest{}, err
	}
	sk, err := parseKey(item.SK, bloodRequestPrefix, "", "")
	if err != nil {
		return domain.DonationRequest{}, err
	}
	r := domain.DonationRequest{
		SeekerID:            pk[0],
		CreatedAt:           sk[0],
		RequestPostID:       sk[1],
		RequestedBloodGroup: domain.BloodGroup(item.RequestedBloodGroup),
		BloodQuantity:       item.BloodQuantity,
		UrgencyLevel:        domain.UrgencyLevel(item.UrgencyLevel),
		Location:            item.Location,
		Geohash:             item.Geohash,
		CountryCode:         item.CountryCode,
		DonationDateTime:    item.DonationDateTime,
		ContactNumber:       item.ContactNumber,
		PatientName:         item.PatientName,
		TransportationInfo:  item.TransportationInfo,
		ShortDescription:    item.ShortDescription,
		Status:              domain.DonationStatus(item.Status),
	}
	if item.Latitude != nil {
		r.Latitude = *item.Latitude
	}
	if item.Longitude != nil {
		r.Longitude = *item.Longitude
	}
	return r, nil
}

type DonationRequestRepo struct {
	*Repository[domain.DonationRequest, donationRequestItem]
}

func NewDonationRequestRepo(client API, table string) *DonationRequestRepo {
	return &DonationRequestRepo{NewRepository[domain.DonationRequest, donationRequestItem](client, table, donationRequestAdapter{tableIndexes{lsi1Index}})}
}

func (r *DonationRequestRepo) Get(ctx context.Context, seekerID, createdAt, requestID string) (domain.DonationRequest, error) {
	return r.GetItem(ctx, joinKey(bloodRequestPrefix, seekerID), donationRequestSK(createdAt, requestID))
}

// ListBySeeker returns a seeker's requests, newest first, optionally in one status.
func (r *DonationRequestRepo) ListBySeeker(ctx context.Context, seekerID string, status domain.DonationStatus) ([]domain.DonationRequest, error) {
	in := QueryInput{Partition: joinKey(bloodRequestPrefix, seekerID), Descending: true}
	if status == "" {
		in.Sort = &SortCondition{Operator: OpBeginsWith, Value: keyPrefix(bloodRequestPrefix)}
		return r.QueryAll(ctx, in, "")
	}
	in.Sort = &SortCondition{Operator: OpBeginsWith, Value: requestStatusPrefix(status)}
	return r.QueryAll(ctx, in, IndexLSI1)
}

// Patch writes the non-empty fields of req onto the stored request.
func (r *DonationRequestRepo) Patch(ctx context.Context, req domain.DonationRequest) (domain.DonationRequest, error) {
	return r.Update(ctx, req)
}
