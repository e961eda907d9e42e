package location

import (
	"context"
	"fmt"
	"time"

	"github.com/go-blood-connect/internal/domain"
	"github.com/go-blood-connect/internal/pkg/id"
	"github.com/mmcloughlin/geohash"
)

// GeohashPrecision is the precision donor locations are stored at (about 38m x 19m).
const GeohashPrecision = 8

type Service interface {
	Register(ctx context.Context, userID string, req domain.RegisterLocationRequest) (domain.DonorLocation, error)
	List(ctx context.Context, userID string) ([]domain.DonorLocation, error)
	Delete(ctx context.Context, userID, locationID string) error
}

type locationStore interface {
	Create(ctx context.Context, l domain.DonorLocation) (domain.DonorLocation, error)
	Get(ctx context.Context, userID, locationID string) (domain.DonorLocation, error)
	ListByUser(ctx context.Context, userID string) ([]domain.DonorLocation, error)
	Remove(ctx context.Context, userID, locationID string) error
}

type service struct {
	repo locationStore
}

func NewService(repo locationStore) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, userID string, req domain.RegisterLocationRequest) (domain.DonorLocation, error) {
	if userID == "" {
		return domain.DonorLocation{}, fmt.Errorf("register location: %w", domain.ErrUnauthorized)
	}
	hash := geohash.EncodeWithPrecision(req.Latitude, req.Longitude, GeohashPrecision)
	return s.repo.Create(ctx, domain.DonorLocation{
		UserID:               userID,
		LocationID:           id.New(),
		Area:                 req.Area,
		CountryCode:          req.CountryCode,
		GeoPartition:         domain.PartitionOf(hash),
		Geohash:              hash,
		BloodGroup:           req.BloodGroup,
		AvailableForDonation: req.AvailableForDonation,
		LastVaccinatedDate:   req.LastVaccinatedDate,
		CreatedAt:            time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *service) List(ctx context.Context, userID string) ([]domain.DonorLocation, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete removes one of the user's locations. Unknown ids give ErrNotFound.
func (s *service) Delete(ctx context.Context, userID, locationID string) error {
	if _, err := s.repo.Get(ctx, userID, locationID); err != nil {
		return err
	}
	return s.repo.Remove(ctx, userID, locationID)
}
