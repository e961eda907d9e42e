package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-blood-connect/internal/domain"
)

type Service interface {
	Upsert(ctx context.Context, userID string, req domain.UpsertUserRequest) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetDeviceSnsEndpointArn(ctx context.Context, userID string) (string, error)
	UpdateUserNotificationEndPoint(ctx context.Context, userID, endpointArn string) error
	DetachNotificationEndPoint(ctx context.Context, userID, endpointArn string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	UpdateProfile(ctx context.Context, u domain.User) (domain.User, error)
	SetEndpoint(ctx context.Context, userID, endpointArn string) error
	ClearEndpointIf(ctx context.Context, userID, endpointArn string) error
}

type service struct {
	repo userStore
}

func NewService(repo userStore) Service {
	return &service{repo: repo}
}

func (s *service) Upsert(ctx context.Context, userID string, req domain.UpsertUserRequest) (domain.User, error) {
	u := domain.User{
		UserID:       userID,
		Name:         req.Name,
		PhoneNumbers: req.PhoneNumbers,
		BloodGroup:   req.BloodGroup,
	}
	updated, err := s.repo.UpdateProfile(ctx, u)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}
	u.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	return s.repo.Create(ctx, u)
}

func (s *service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) GetDeviceSnsEndpointArn(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.SnsEndpointArn == "" {
		return "", fmt.Errorf("user %s has no registered device: %w", userID, domain.ErrNotFound)
	}
	return u.SnsEndpointArn, nil
}

// UpdateUserNotificationEndPoint points the user at endpointArn; an empty arn
// removes the reference.
func (s *service) UpdateUserNotificationEndPoint(ctx context.Context, userID, endpointArn string) error {
	return s.repo.SetEndpoint(ctx, userID, endpointArn)
}

// DetachNotificationEndPoint removes the user's endpoint reference if it is
// still endpointArn. A user that already moved to another endpoint, or no
// longer exists, is left alone.
func (s *service) DetachNotificationEndPoint(ctx context.Context, userID, endpointArn string) error {
	err := s.repo.ClearEndpointIf(ctx, userID, endpointArn)
	if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
