package donation

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/go-blood-connect/internal/application/donorsearch"
	"github.com/go-blood-connect/internal/application/notification"
	"github.com/go-blood-connect/internal/domain"
	"github.com/go-blood-connect/internal/pkg/id"
	"github.com/mmcloughlin/geohash"
	"go.uber.org/zap"
)

const (
	requestGeohashPrecision = 8
	defaultMaxRetries       = 5
)

type Service interface {
	CreateRequest(ctx context.Context, seekerID string, req domain.CreateDonationRequest) (domain.DonationRequest, error)
	UpdateRequest(ctx context.Context, seekerID, requestID string, req domain.UpdateDonationRequest) (domain.DonationRequest, error)
	ContinueSearch(ctx context.Context, job domain.SearchJob) error
	Accept(ctx context.Context, donorID, requestID string, req domain.AcceptDonationRequest) (domain.AcceptedDonation, error)
	Ignore(ctx context.Context, donorID, requestID string, req domain.AcceptDonationRequest) error
	Withdraw(ctx context.Context, donorID, requestID string, req domain.AcceptDonationRequest) error
	Complete(ctx context.Context, seekerID, requestID string, req domain.CompleteDonationRequest) error
	ListAccepted(ctx context.Context, seekerID, requestID string) ([]domain.AcceptedDonation, error)
	ListRequests(ctx context.Context, seekerID string, status domain.DonationStatus) ([]domain.DonationRequest, error)
}

type requestStore interface {
	Create(ctx context.Context, r domain.DonationRequest) (domain.DonationRequest, error)
	Get(ctx context.Context, seekerID, createdAt, requestID string) (domain.DonationRequest, error)
	Patch(ctx context.Context, r domain.DonationRequest) (domain.DonationRequest, error)
	ListBySeeker(ctx context.Context, seekerID string, status domain.DonationStatus) ([]domain.DonationRequest, error)
}

type acceptedStore interface {
	Create(ctx context.Context, a domain.AcceptedDonation) (domain.AcceptedDonation, error)
	Patch(ctx context.Context, a domain.AcceptedDonation) (domain.AcceptedDonation, error)
	GetAcceptedRequest(ctx context.Context, seekerID, requestID, donorID string) (domain.AcceptedDonation, error)
	DeleteAcceptedRequest(ctx context.Context, seekerID, requestID, donorID string) error
	QueryAcceptedRequests(ctx context.Context, seekerID, requestID string) ([]domain.AcceptedDonation, error)
	QueryAcceptedByStatus(ctx context.Context, seekerID, requestID string, status domain.NotificationStatus) ([]domain.AcceptedDonation, error)
}

type notifier interface {
	SendNotification(ctx context.Context, attrs domain.NotificationAttributes) error
	SendRequestNotification(ctx context.Context, req domain.DonationRequest, donors map[string]domain.EligibleDonor) error
	CreateBloodDonationNotification(ctx context.Context, attrs domain.NotificationAttributes) (domain.Notification, error)
	UpdateBloodDonationNotifications(ctx context.Context, requestID string, patch map[string]any) error
	UpdateBloodDonationNotificationStatus(ctx context.Context, userID, requestID string, t domain.NotificationType, status domain.NotificationStatus) (domain.Notification, error)
	GetBloodDonationNotification(ctx context.Context, userID, requestID string, t domain.NotificationType) (domain.Notification, error)
	GetNotifiedDonorList(ctx context.Context, requestID string) ([]domain.Notification, error)
	GetRejectedDonorsCount(ctx context.Context, requestID string) (int, error)
}

type userReader interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

type donorFinder interface {
	FindEligibleDonors(ctx context.Context, req domain.DonationRequest, want int, exclude map[string]bool) ([]donorsearch.Candidate, error)
}

type delayQueue interface {
	SendDelayed(ctx context.Context, queueURL string, job any, delay time.Duration) error
}

type Deps struct {
	Requests       requestStore
	Accepted       acceptedStore
	Notifications  notifier
	Users          userReader
	Finder         donorFinder
	Queue          delayQueue
	Log            *zap.Logger
	SearchQueueURL string
	MaxRetries     int
	Now            func() time.Time
}

type service struct {
	requests requestStore
	accepted acceptedStore
	notify   notifier
	users    userReader
	finder   donorFinder
	queue    delayQueue
	log      *zap.Logger
	queueURL string
	retries  int
	now      func() time.Time
}

func NewService(deps Deps) Service {
	s := &service{
		requests: deps.Requests,
		accepted: deps.Accepted,
		notify:   deps.Notifications,
		users:    deps.Users,
		finder:   deps.Finder,
		queue:    deps.Queue,
		log:      deps.Log,
		queueURL: deps.SearchQueueURL,
		retries:  deps.MaxRetries,
		now:      deps.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.retries <= 0 {
		s.retries = defaultMaxRetries
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) timestamp() string { return s.now().UTC().Format(time.RFC3339) }

// CreateRequest stores the request and runs the first donor search round. A
// failed search is logged; the request itself was created.
func (s *service) CreateRequest(ctx context.Context, seekerID string, in domain.CreateDonationRequest) (domain.DonationRequest, error) {
	if seekerID == "" {
		return domain.DonationRequest{}, fmt.Errorf("create request: %w", domain.ErrUnauthorized)
	}
	req, err := s.requests.Create(ctx, domain.DonationRequest{
		SeekerID:            seekerID,
		RequestPostID:       id.NewAt(s.now()),
		CreatedAt:           s.timestamp(),
		RequestedBloodGroup: in.RequestedBloodGroup,
		BloodQuantity:       in.BloodQuantity,
		UrgencyLevel:        in.UrgencyLevel,
		Location:            in.Location,
		Latitude:            in.Latitude,
		Longitude:           in.Longitude,
		Geohash:             geohash.EncodeWithPrecision(in.Latitude, in.Longitude, requestGeohashPrecision),
		CountryCode:         in.CountryCode,
		DonationDateTime:    in.DonationDateTime,
		ContactNumber:       in.ContactNumber,
		PatientName:         in.PatientName,
		TransportationInfo:  in.TransportationInfo,
		ShortDescription:    in.ShortDescription,
		Status:              domain.DonationPending,
	})
	if err != nil {
		return domain.DonationRequest{}, err
	}
	if err := s.searchRound(ctx, req, 0); err != nil {
		s.log.Error("initial donor search failed", zap.String("request", req.RequestPostID), zap.Error(err))
	}
	return req, nil
}

// UpdateRequest applies the edit and copies the changed fields into every
// notification already sent for the request.
func (s *service) UpdateRequest(ctx context.Context, seekerID, requestID string, in domain.UpdateDonationRequest) (domain.DonationRequest, error) {
	req, err := s.requests.Get(ctx, seekerID, in.CreatedAt, requestID)
	if err != nil {
		return domain.DonationRequest{}, err
	}
	if req.Status != domain.DonationPending {
		return domain.DonationRequest{}, fmt.Errorf("request %s is %s: %w", requestID, req.Status, domain.ErrConflict)
	}
	changed := in.Apply(&req)
	if len(changed) == 0 {
		return req, nil
	}
	updated, err := s.requests.Patch(ctx, req)
	if err != nil {
		return domain.DonationRequest{}, err
	}

	err = s.notify.UpdateBloodDonationNotifications(ctx, requestID, changed)
	switch {
	case errors.Is(err, domain.ErrNotificationsNotFound):
		s.log.Info("no notifications to update", zap.String("request", requestID))
	case err != nil:
		return domain.DonationRequest{}, err
	}
	return updated, nil
}

// ContinueSearch runs a follow-up search round for a request that still
// needs donors. Jobs for closed requests or past the retry budget are dropped.
func (s *service) ContinueSearch(ctx context.Context, job domain.SearchJob) error {
	req, err := s.requests.Get(ctx, job.SeekerID, job.CreatedAt, job.RequestID)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("search job for unknown request", zap.Stringer("job", job))
		return nil
	}
	if err != nil {
		return err
	}
	if req.Status != domain.DonationPending {
		s.log.Info("donor search stopped", zap.Stringer("job", job), zap.String("status", string(req.Status)))
		return nil
	}
	if job.RetryCount > s.retries {
		s.log.Info("donor search retries exhausted", zap.Stringer("job", job))
		return nil
	}
	return s.searchRound(ctx, req, job.RetryCount)
}

func (s *service) searchRound(ctx context.Context, req domain.DonationRequest, retry int) error {
	accepted, err := s.accepted.QueryAcceptedByStatus(ctx, req.SeekerID, req.RequestPostID, domain.StatusAccepted)
	if err != nil {
		return err
	}
	remaining := donorsearch.RemainingBagsNeeded(req.BloodQuantity, len(accepted))
	if remaining == 0 {
		s.log.Info("request fully accepted", zap.String("request", req.RequestPostID))
		return nil
	}

	rejected, err := s.notify.GetRejectedDonorsCount(ctx, req.RequestPostID)
	if err != nil {
		return err
	}
	notified, err := s.notify.GetNotifiedDonorList(ctx, req.RequestPostID)
	if err != nil {
		return err
	}
	exclude := make(map[string]bool, len(notified))
	for _, n := range notified {
		exclude[n.UserID] = true
	}

	want := donorsearch.TotalDonorsToFind(remaining, rejected, req.UrgencyLevel)
	donors, err := s.finder.FindEligibleDonors(ctx, req, want, exclude)
	if err != nil {
		return err
	}
	if err := s.notify.SendRequestNotification(ctx, req, donorsearch.AsMap(donors)); err != nil {
		return err
	}

	next := retry + 1
	if next > s.retries {
		return nil
	}
	delay := donorsearch.DelayPeriod(remaining, req.DonationDateTime, req.UrgencyLevel, s.now())
	job := domain.SearchJob{SeekerID: req.SeekerID, RequestID: req.RequestPostID, CreatedAt: req.CreatedAt, RetryCount: next}
	if err := s.queue.SendDelayed(ctx, s.queueURL, job, delay); err != nil {
		return fmt.Errorf("schedule search %s: %w", job, err)
	}
	s.log.Debug("donor search scheduled",
		zap.Stringer("job", job),
		zap.Int("notified", len(donors)),
		zap.Duration("delay", delay))
	return nil
}

// Accept records the donor against the request and tells the seeker.
func (s *service) Accept(ctx context.Context, donorID, requestID string, in domain.AcceptDonationRequest) (domain.AcceptedDonation, error) {
	req, err := s.openRequest(ctx, donorID, requestID, in)
	if err != nil {
		return domain.AcceptedDonation{}, err
	}
	donor, err := s.users.GetUser(ctx, donorID)
	if err != nil {
		return domain.AcceptedDonation{}, err
	}
	if donor.BloodGroup != "" && donor.BloodGroup != req.RequestedBloodGroup {
		return domain.AcceptedDonation{}, fmt.Errorf("donor blood group %s does not match %s: %w", donor.BloodGroup, req.RequestedBloodGroup, domain.ErrBadRequest)
	}

	prev, err := s.accepted.GetAcceptedRequest(ctx, req.SeekerID, requestID, donorID)
	switch {
	case err == nil && prev.Status == domain.StatusCompleted:
		return domain.AcceptedDonation{}, fmt.Errorf("donor %s already donated: %w", donorID, domain.ErrConflict)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.AcceptedDonation{}, err
	}
	fresh := err != nil

	current, err := s.notify.GetBloodDonationNotification(ctx, donorID, requestID, domain.NotificationTypeRequestPost)
	switch {
	case err == nil && !current.Status.CanTransition(domain.StatusAccepted):
		return domain.AcceptedDonation{}, fmt.Errorf("donor %s: %s to %s: %w", donorID, current.Status, domain.StatusAccepted, domain.ErrInvalidTransition)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.AcceptedDonation{}, err
	}

	now := s.timestamp()
	acc, err := s.accepted.Create(ctx, domain.AcceptedDonation{
		SeekerID:       req.SeekerID,
		RequestPostID:  requestID,
		DonorID:        donorID,
		Status:         domain.StatusAccepted,
		AcceptanceTime: now,
		DonorName:      donor.Name,
		PhoneNumbers:   donor.PhoneNumbers,
		CreatedAt:      now,
	})
	if err != nil {
		return domain.AcceptedDonation{}, err
	}
	if err := s.setDonorStatus(ctx, req, donorID, domain.StatusAccepted); err != nil {
		// drop the record this call created
		if fresh {
			if derr := s.accepted.DeleteAcceptedRequest(ctx, req.SeekerID, requestID, donorID); derr != nil {
				s.log.Error("roll back acceptance failed",
					zap.String("request", requestID),
					zap.String("donor", donorID),
					zap.Error(derr))
			}
		}
		return domain.AcceptedDonation{}, err
	}

	payload := req.NotificationPayload()
	maps.Copy(payload, map[string]any{
		domain.PayloadDonorID:      donorID,
		domain.PayloadDonorName:    donor.Name,
		domain.PayloadPhoneNumbers: donor.PhoneNumbers,
	})
	if err := s.notify.SendNotification(ctx, domain.NotificationAttributes{
		RecipientID: req.SeekerID,
		Title:       notification.TitleDonorFound,
		Body:        notification.DonorFoundMessage(req.RequestedBloodGroup),
		Type:        domain.NotificationTypeAccepted,
		Status:      domain.StatusAccepted,
		Payload:     payload,
	}); err != nil {
		s.log.Error("queue seeker notification failed",
			zap.String("request", requestID),
			zap.String("donor", donorID),
			zap.Error(err))
	}
	return acc, nil
}

func (s *service) Ignore(ctx context.Context, donorID, requestID string, in domain.AcceptDonationRequest) error {
	req, err := s.openRequest(ctx, donorID, requestID, in)
	if err != nil {
		return err
	}
	return s.setDonorStatus(ctx, req, donorID, domain.StatusIgnored)
}

// Withdraw removes a donor's acceptance and tells the seeker. The donor's
// notification keeps its status so the search does not pick them again.
func (s *service) Withdraw(ctx context.Context, donorID, requestID string, in domain.AcceptDonationRequest) error {
	acc, err := s.accepted.GetAcceptedRequest(ctx, in.SeekerID, requestID, donorID)
	if err != nil {
		return err
	}
	if acc.Status == domain.StatusCompleted {
		return fmt.Errorf("donor %s already donated: %w", donorID, domain.ErrConflict)
	}
	if err := s.accepted.DeleteAcceptedRequest(ctx, in.SeekerID, requestID, donorID); err != nil {
		return err
	}

	req, err := s.requests.Get(ctx, in.SeekerID, in.CreatedAt, requestID)
	if err != nil {
		s.log.Warn("withdrawn request not found", zap.String("request", requestID), zap.Error(err))
		return nil
	}
	if err := s.notify.SendNotification(ctx, domain.NotificationAttributes{
		RecipientID: in.SeekerID,
		Title:       notification.TitleDonorIgnored,
		Body:        notification.DonorWithdrewMessage(acc.DonorName, req.RequestedBloodGroup),
		Type:        domain.NotificationTypeCommon,
		Payload: map[string]any{
			domain.PayloadRequestPostID: requestID,
			domain.PayloadDonorID:       donorID,
		},
	}); err != nil {
		s.log.Error("queue withdraw notification failed", zap.String("request", requestID), zap.Error(err))
	}
	return nil
}

// Complete marks the listed donors as having donated and closes the request.
func (s *service) Complete(ctx context.Context, seekerID, requestID string, in domain.CompleteDonationRequest) error {
	req, err := s.requests.Get(ctx, seekerID, in.CreatedAt, requestID)
	if err != nil {
		return err
	}
	if req.Status == domain.DonationCompleted {
		return nil
	}
	for _, donorID := range in.DonorIDs {
		acc, err := s.accepted.GetAcceptedRequest(ctx, seekerID, requestID, donorID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("donor %s did not accept request %s: %w", donorID, requestID, domain.ErrBadRequest)
		}
		if err != nil {
			return err
		}
		if acc.Status != domain.StatusCompleted {
			acc.Status = domain.StatusCompleted
			if _, err := s.accepted.Patch(ctx, acc); err != nil {
				return err
			}
		}
		if err := s.setDonorStatus(ctx, req, donorID, domain.StatusCompleted); err != nil {
			return err
		}
	}
	_, err = s.requests.Patch(ctx, domain.DonationRequest{
		SeekerID:      seekerID,
		RequestPostID: requestID,
		CreatedAt:     req.CreatedAt,
		Status:        domain.DonationCompleted,
	})
	return err
}

func (s *service) ListAccepted(ctx context.Context, seekerID, requestID string) ([]domain.AcceptedDonation, error) {
	return s.accepted.QueryAcceptedRequests(ctx, seekerID, requestID)
}

// ListRequests returns the seeker's requests, newest first. An empty status
// lists every request.
func (s *service) ListRequests(ctx context.Context, seekerID string, status domain.DonationStatus) ([]domain.DonationRequest, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, domain.ErrBadRequest)
	}
	return s.requests.ListBySeeker(ctx, seekerID, status)
}

// openRequest loads a request a donor wants to respond to.
func (s *service) openRequest(ctx context.Context, donorID, requestID string, in domain.AcceptDonationRequest) (domain.DonationRequest, error) {
	if donorID == in.SeekerID {
		return domain.DonationRequest{}, fmt.Errorf("seeker cannot respond to own request: %w", domain.ErrForbidden)
	}
	req, err := s.requests.Get(ctx, in.SeekerID, in.CreatedAt, requestID)
	if err != nil {
		return domain.DonationRequest{}, err
	}
	if req.Status != domain.DonationPending {
		return domain.DonationRequest{}, fmt.Errorf("request %s is %s: %w", requestID, req.Status, domain.ErrConflict)
	}
	return req, nil
}

// setDonorStatus moves the donor's request notification to status, creating
// it for donors who found the request without being notified.
func (s *service) setDonorStatus(ctx context.Context, req domain.DonationRequest, donorID string, status domain.NotificationStatus) error {
	_, err := s.notify.UpdateBloodDonationNotificationStatus(ctx, donorID, req.RequestPostID, domain.NotificationTypeRequestPost, status)
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	_, err = s.notify.CreateBloodDonationNotification(ctx, domain.NotificationAttributes{
		RecipientID: donorID,
		Title:       notification.TitleBloodRequest,
		Body:        notification.BloodRequestMessage(req.UrgencyLevel, req.RequestedBloodGroup, req.ShortDescription),
		Type:        domain.NotificationTypeRequestPost,
		Status:      status,
		Payload:     req.NotificationPayload(),
	})
	return err
}
