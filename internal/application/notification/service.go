package notification

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/go-blood-connect/internal/domain"
	"github.com/go-blood-connect/internal/pkg/id"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultFanOutLimit = 10

type Service interface {
	SendPushNotification(ctx context.Context, attrs domain.NotificationAttributes, recipientID string) error
	CreateNotification(ctx context.Context, attrs domain.NotificationAttributes) (domain.Notification, error)
	CreateBloodDonationNotification(ctx context.Context, attrs domain.NotificationAttributes) (domain.Notification, error)
	SendNotification(ctx context.Context, attrs domain.NotificationAttributes) error
	SendRequestNotification(ctx context.Context, req domain.DonationRequest, donors map[string]domain.EligibleDonor) error
	UpdateBloodDonationNotifications(ctx context.Context, requestID string, patch map[string]any) error
	UpdateBloodDonationNotificationStatus(ctx context.Context, userID, requestID string, t domain.NotificationType, status domain.NotificationStatus) (domain.Notification, error)
	GetBloodDonationNotification(ctx context.Context, userID, requestID string, t domain.NotificationType) (domain.Notification, error)
	GetNotifiedDonorList(ctx context.Context, requestID string) ([]domain.Notification, error)
	GetIgnoredDonorList(ctx context.Context, requestID string) ([]domain.Notification, error)
	GetRejectedDonorsCount(ctx context.Context, requestID string) (int, error)
	StoreDevice(ctx context.Context, reg domain.DeviceRegistration) error
}

type notificationStore interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
	Insert(ctx context.Context, n domain.Notification) (domain.Notification, error)
	UpdatePayload(ctx context.Context, n domain.Notification) (domain.Notification, error)
	UpdateStatus(ctx context.Context, n domain.Notification, from domain.NotificationStatus) (domain.Notification, error)
	GetBloodDonationNotification(ctx context.Context, userID, requestID string, t domain.NotificationType) (domain.Notification, error)
	QueryBloodDonationNotifications(ctx context.Context, requestID string, status domain.NotificationStatus) ([]domain.Notification, error)
}

type userService interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetDeviceSnsEndpointArn(ctx context.Context, userID string) (string, error)
	UpdateUserNotificationEndPoint(ctx context.Context, userID, endpointArn string) error
	DetachNotificationEndPoint(ctx context.Context, userID, endpointArn string) error
}

type pushGateway interface {
	Publish(ctx context.Context, msg domain.NotificationAttributes, endpointArn string) error
	CreatePlatformEndpoint(ctx context.Context, reg domain.DeviceRegistration) (string, error)
	GetEndpointAttributes(ctx context.Context, endpointArn string) (map[string]string, error)
	SetEndpointAttributes(ctx context.Context, endpointArn string, attrs map[string]string) error
}

type jobQueue interface {
	Send(ctx context.Context, queueURL string, job any) error
}

// EndpointCache maps user ids to push endpoint ARNs. Implementations must be
// safe for concurrent use; a miss only costs a user lookup.
type EndpointCache interface {
	Get(ctx context.Context, userID string) (string, bool)
	Set(ctx context.Context, userID, endpointArn string)
	Delete(ctx context.Context, userID string)
}

type Deps struct {
	Store       notificationStore
	Users       userService
	Push        pushGateway
	Queue       jobQueue
	Cache       EndpointCache
	Log         *zap.Logger
	QueueURL    string
	FanOutLimit int
}

type service struct {
	store    notificationStore
	users    userService
	push     pushGateway
	queue    jobQueue
	cache    EndpointCache
	log      *zap.Logger
	queueURL string
	limit    int
}

func NewService(deps Deps) Service {
	limit := deps.FanOutLimit
	if limit < 1 {
		limit = defaultFanOutLimit
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		store:    deps.Store,
		users:    deps.Users,
		push:     deps.Push,
		queue:    deps.Queue,
		cache:    deps.Cache,
		log:      log,
		queueURL: deps.QueueURL,
		limit:    limit,
	}
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// SendPushNotification persists the notification and pushes it to the
// recipient's device. A donation notification that was already recorded for
// the same recipient, request and type is skipped without error.
func (s *service) SendPushNotification(ctx context.Context, attrs domain.NotificationAttributes, recipientID string) error {
	attrs.RecipientID = recipientID
	endpointArn, err := s.endpointFor(ctx, recipientID)
	if err != nil {
		return err
	}

	if attrs.Type.IsDonation() {
		_, created, err := s.createDonation(ctx, attrs)
		if err != nil {
			return err
		}
		if !created {
			s.log.Debug("duplicate notification skipped",
				zap.String("recipient", recipientID),
				zap.String("request", attrs.RequestID()),
				zap.String("type", string(attrs.Type)))
			return nil
		}
	} else if _, err := s.CreateNotification(ctx, attrs); err != nil {
		return err
	}

	if err := s.push.Publish(ctx, attrs, endpointArn); err != nil {
		s.log.Error("push publish failed", zap.String("recipient", recipientID), zap.Error(err))
		return fmt.Errorf("notify %s: %w", recipientID, domain.ErrNotifyUser)
	}
	return nil
}

// endpointFor resolves the push endpoint of a user, filling the cache on a miss.
func (s *service) endpointFor(ctx context.Context, userID string) (string, error) {
	if arn, ok := s.cache.Get(ctx, userID); ok {
		return arn, nil
	}
	arn, err := s.users.GetDeviceSnsEndpointArn(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve endpoint of %s: %w", userID, err)
	}
	s.cache.Set(ctx, userID, arn)
	return arn, nil
}

func (s *service) CreateNotification(ctx context.Context, attrs domain.NotificationAttributes) (domain.Notification, error) {
	return s.store.Create(ctx, domain.Notification{
		ID:        id.New(),
		UserID:    attrs.RecipientID,
		Title:     attrs.Title,
		Body:      attrs.Body,
		Type:      attrs.Type,
		Status:    attrs.Status,
		Payload:   attrs.Payload,
		CreatedAt: now(),
	})
}

// CreateBloodDonationNotification records a donation notification keyed by its
// request. If one already exists it is returned unchanged.
func (s *service) CreateBloodDonationNotification(ctx context.Context, attrs domain.NotificationAttributes) (domain.Notification, error) {
	n, _, err := s.createDonation(ctx, attrs)
	return n, err
}

func (s *service) createDonation(ctx context.Context, attrs domain.NotificationAttributes) (domain.Notification, bool, error) {
	requestID := attrs.RequestID()
	if requestID == "" {
		return domain.Notification{}, false, fmt.Errorf("%s notification without %s: %w", attrs.Type, domain.PayloadRequestPostID, domain.ErrBadRequest)
	}

	existing, err := s.store.GetBloodDonationNotification(ctx, attrs.RecipientID, requestID, attrs.Type)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Notification{}, false, err
	}

	status := attrs.Status
	if status == "" {
		status = domain.StatusPending
	}
	n, err := s.store.Insert(ctx, domain.Notification{
		ID:        requestID,
		UserID:    attrs.RecipientID,
		Title:     attrs.Title,
		Body:      attrs.Body,
		Type:      attrs.Type,
		Status:    status,
		Payload:   attrs.Payload,
		CreatedAt: now(),
	})
	if errors.Is(err, domain.ErrConflict) {
		// Lost the race against a concurrent delivery of the same job.
		existing, err := s.store.GetBloodDonationNotification(ctx, attrs.RecipientID, requestID, attrs.Type)
		return existing, false, err
	}
	if err != nil {
		return domain.Notification{}, false, err
	}
	return n, true, nil
}

func (s *service) SendNotification(ctx context.Context, attrs domain.NotificationAttributes) error {
	return s.queue.Send(ctx, s.queueURL, attrs)
}

// SendRequestNotification queues one alert per eligible donor. Every donor is
// attempted; failures are logged and the first one is returned.
func (s *service) SendRequestNotification(ctx context.Context, req domain.DonationRequest, donors map[string]domain.EligibleDonor) error {
	if len(donors) == 0 {
		return nil
	}
	body := BloodRequestMessage(req.UrgencyLevel, req.RequestedBloodGroup, req.ShortDescription)

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, donorID := range slices.Sorted(maps.Keys(donors)) {
		donor := donors[donorID]
		payload := req.NotificationPayload()
		payload[domain.PayloadLocationID] = donor.LocationID
		payload[domain.PayloadDistance] = donor.Distance

		attrs := domain.NotificationAttributes{
			RecipientID: donorID,
			Title:       TitleBloodRequest,
			Body:        body,
			Type:        domain.NotificationTypeRequestPost,
			Status:      domain.StatusPending,
			Payload:     payload,
		}
		g.Go(func() error {
			if err := s.SendNotification(ctx, attrs); err != nil {
				s.log.Error("queue donor notification failed",
					zap.String("request", req.RequestPostID),
					zap.String("donor", donorID),
					zap.Error(err))
				return fmt.Errorf("queue notification for %s: %w", donorID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// UpdateBloodDonationNotifications merges patch into the payload of every
// notification sent for the request.
func (s *service) UpdateBloodDonationNotifications(ctx context.Context, requestID string, patch map[string]any) error {
	list, err := s.store.QueryBloodDonationNotifications(ctx, requestID, "")
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrNotificationsNotFound)
	}

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, n := range list {
		payload := make(map[string]any, len(n.Payload)+len(patch))
		maps.Copy(payload, n.Payload)
		maps.Copy(payload, patch)
		n.Payload = payload
		g.Go(func() error {
			if _, err := s.store.UpdatePayload(ctx, n); err != nil {
				s.log.Error("update notification payload failed",
					zap.String("request", requestID),
					zap.String("recipient", n.UserID),
					zap.Error(err))
				return fmt.Errorf("failed to update notification of %s: %w", n.UserID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *service) UpdateBloodDonationNotificationStatus(ctx context.Context, userID, requestID string, t domain.NotificationType, status domain.NotificationStatus) (domain.Notification, error) {
	if !t.IsDonation() || !status.Valid() {
		return domain.Notification{}, fmt.Errorf("status %q for %q: %w", status, t, domain.ErrBadRequest)
	}
	current, err := s.store.GetBloodDonationNotification(ctx, userID, requestID, t)
	if err != nil {
		return domain.Notification{}, err
	}
	if !current.Status.CanTransition(status) {
		return domain.Notification{}, fmt.Errorf("%s to %s: %w", current.Status, status, domain.ErrInvalidTransition)
	}
	return s.store.UpdateStatus(ctx, domain.Notification{
		ID:     requestID,
		UserID: userID,
		Type:   t,
		Status: status,
	}, current.Status)
}

func (s *service) GetBloodDonationNotification(ctx context.Context, userID, requestID string, t domain.NotificationType) (domain.Notification, error) {
	return s.store.GetBloodDonationNotification(ctx, userID, requestID, t)
}

// GetNotifiedDonorList returns every notification recorded for the request.
func (s *service) GetNotifiedDonorList(ctx context.Context, requestID string) ([]domain.Notification, error) {
	return s.store.QueryBloodDonationNotifications(ctx, requestID, "")
}

func (s *service) GetIgnoredDonorList(ctx context.Context, requestID string) ([]domain.Notification, error) {
	return s.store.QueryBloodDonationNotifications(ctx, requestID, domain.StatusIgnored)
}

func (s *service) GetRejectedDonorsCount(ctx context.Context, requestID string) (int, error) {
	ignored, err := s.GetIgnoredDonorList(ctx, requestID)
	if err != nil {
		return 0, err
	}
	return len(ignored), nil
}

// StoreDevice registers the device with the push gateway and binds the
// resulting endpoint to the user. A token that is already bound to an
// endpoint moves that endpoint to the new user.
func (s *service) StoreDevice(ctx context.Context, reg domain.DeviceRegistration) error {
	arn, err := s.push.CreatePlatformEndpoint(ctx, reg)
	var exists *domain.EndpointExistsError
	if errors.As(err, &exists) {
		return s.transferEndpoint(ctx, exists.EndpointArn, reg)
	}
	if err != nil {
		return s.registrationFailed(reg, "create endpoint", err)
	}
	if arn == "" {
		return s.registrationFailed(reg, "create endpoint", errors.New("empty endpoint arn"))
	}

	if _, err := s.users.GetUser(ctx, reg.UserID); err != nil {
		return s.registrationFailed(reg, "load user", err)
	}
	if err := s.users.UpdateUserNotificationEndPoint(ctx, reg.UserID, arn); err != nil {
		return s.registrationFailed(reg, "attach endpoint", err)
	}
	s.cache.Set(ctx, reg.UserID, arn)
	return nil
}

// transferEndpoint detaches arn from its current owner and attaches it to
// reg.UserID. The detach only clears the old owner's reference while it still
// points at arn, so a concurrent re-registration by that owner is kept.
func (s *service) transferEndpoint(ctx context.Context, arn string, reg domain.DeviceRegistration) error {
	attrs, err := s.push.GetEndpointAttributes(ctx, arn)
	if err != nil {
		return s.registrationFailed(reg, "read endpoint", err)
	}

	if owner := attrs[domain.EndpointAttrOwner]; owner != "" && owner != reg.UserID {
		if err := s.users.DetachNotificationEndPoint(ctx, owner, arn); err != nil {
			return s.registrationFailed(reg, "detach previous owner", err)
		}
		s.cache.Delete(ctx, owner)
		s.log.Info("endpoint ownership transferred",
			zap.String("endpoint", arn),
			zap.String("from", owner),
			zap.String("to", reg.UserID))
	}

	if err := s.push.SetEndpointAttributes(ctx, arn, map[string]string{
		domain.EndpointAttrOwner:   reg.UserID,
		domain.EndpointAttrToken:   reg.DeviceToken,
		domain.EndpointAttrEnabled: "true",
	}); err != nil {
		return s.registrationFailed(reg, "update endpoint", err)
	}
	if err := s.users.UpdateUserNotificationEndPoint(ctx, reg.UserID, arn); err != nil {
		return s.registrationFailed(reg, "attach endpoint", err)
	}
	s.cache.Set(ctx, reg.UserID, arn)
	return nil
}

func (s *service) registrationFailed(reg domain.DeviceRegistration, step string, err error) error {
	s.log.Error("device registration failed",
		zap.String("user", reg.UserID),
		zap.String("platform", string(reg.Platform)),
		zap.String("step", step),
		zap.Error(err))
	return fmt.Errorf("%s for %s: %w", step, reg.UserID, domain.ErrEndpointRegistration)
}
