package dynamo

import (
	"context"

	"github.com/go-blood-connect/internal/domain"
)

const (
	bloodRequestPrefix = "BLOOD_REQ"
	acceptedPrefix     = "ACCEPTED"
)

type acceptedDonationItem struct {
	PK             string   `dynamodbav:"PK"`
	SK             string   `dynamodbav:"SK"`
	LSI1SK         string   `dynamodbav:"LSI1SK,omitempty"`
	Status         string   `dynamodbav:"status,omitempty"`
	AcceptanceTime string   `dynamodbav:"acceptanceTime,omitempty"`
	DonorName      string   `dynamodbav:"donorName,omitempty"`
	PhoneNumbers   []string `dynamodbav:"phoneNumbers,omitempty"`
	CreatedAt      string   `dynamodbav:"createdAt,omitempty"`
}

type acceptedDonationAdapter struct{ tableIndexes }

func acceptedSK(requestID, donorID string) string { return joinKey(acceptedPrefix, requestID, donorID) }

func acceptedStatusPrefix(status domain.NotificationStatus, requestID string) string {
	return keyPrefix(acceptedPrefix, "STATUS", string(status), requestID)
}

func (acceptedDonationAdapter) FromDomain(a domain.AcceptedDonation) (acceptedDonationItem, error) {
	if err := requireKeyParts("accepted donation", a.SeekerID, a.RequestPostID, a.DonorID); err != nil {
		return acceptedDonationItem{}, err
	}
	item := acceptedDonationItem{
		PK:             joinKey(bloodRequestPrefix, a.SeekerID),
		SK:             acceptedSK(a.RequestPostID, a.DonorID),
		Status:         string(a.Status),
		AcceptanceTime: a.AcceptanceTime,
		DonorName:      a.DonorName,
		PhoneNumbers:   a.PhoneNumbers,
		CreatedAt:      a.CreatedAt,
	}
	if a.Status != "" {
		item.LSI1SK = joinKey(acceptedPrefix, "STATUS", string(a.Status), a.RequestPostID, a.DonorID)
	}
	return item, nil
}

func (acceptedDonationAdapter) ToDomain(item acceptedDonationItem) (domain.AcceptedDonation, error) {
	pk, err := parseKey(item.PK, bloodRequestPrefix, "")
	if err != nil {
		return domain.AcceptedDonation{}, err
	}
	sk, err := parseKey(item.SK, acceptedPrefix, "", "")
	if err != nil {
		return domain.AcceptedDonation{}, err
	}
	return domain.AcceptedDonation{
		SeekerID:       pk[0],
		RequestPostID:  sk[0],
		DonorID:        sk[1],
		Status:         domain.NotificationStatus(item.Status),
		AcceptanceTime: item.AcceptanceTime,
		DonorName:      item.DonorName,
		PhoneNumbers:   item.PhoneNumbers,
		CreatedAt:      item.CreatedAt,
	}, nil
}

// AcceptedDonationRepo stores donor responses under the seeker's partition so
// all responders to one request are listed by a single range query.
type AcceptedDonationRepo struct {
	*Repository[domain.AcceptedDonation, acceptedDonationItem]
}

func NewAcceptedDonationRepo(client API, table string) *AcceptedDonationRepo {
	return &AcceptedDonationRepo{NewRepository[domain.AcceptedDonation, acceptedDonationItem](client, table, acceptedDonationAdapter{tableIndexes{lsi1Index}})}
}

func (r *AcceptedDonationRepo) QueryAcceptedRequests(ctx context.Context, seekerID, requestID string) ([]domain.AcceptedDonation, error) {
	return r.QueryAll(ctx, QueryInput{
		Partition: joinKey(bloodRequestPrefix, seekerID),
		Sort:      &SortCondition{Operator: OpBeginsWith, Value: keyPrefix(acceptedPrefix, requestID)},
	}, "")
}

func (r *AcceptedDonationRepo) GetAcceptedRequest(ctx context.Context, seekerID, requestID, donorID string) (domain.AcceptedDonation, error) {
	return r.GetItem(ctx, joinKey(bloodRequestPrefix, seekerID), acceptedSK(requestID, donorID))
}

func (r *AcceptedDonationRepo) DeleteAcceptedRequest(ctx context.Context, seekerID, requestID, donorID string) error {
	return r.Delete(ctx, joinKey(bloodRequestPrefix, seekerID), acceptedSK(requestID, donorID))
}

// QueryAcceptedByStatus lists the responders to one request that are in status.
func (r *AcceptedDonationRepo) QueryAcceptedByStatus(ctx context.Context, seekerID, requestID string, status domain.NotificationStatus) ([]domain.AcceptedDonation, error) {
	return r.QueryAll(ctx, QueryInput{
		Partition: joinKey(bloodRequestPrefix, seekerID),
		Sort:      &SortCondition{Operator: OpBeginsWith, Value: acceptedStatusPrefix(status, requestID)},
	}, IndexLSI1)
}

// Patch writes the non-empty fields of a onto the stored record.
func (r *AcceptedDonationRepo) Patch(ctx context.Context, a domain.AcceptedDonation) (domain.AcceptedDonation, error) {
	return r.Update(ctx, a)
}
