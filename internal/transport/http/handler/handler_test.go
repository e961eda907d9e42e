package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-blood-connect/internal/domain"
	jwtinfra "github.com/go-blood-connect/internal/infrastructure/jwt"
	"github.com/go-blood-connect/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockDonationSvc struct{ mock.Mock }

func (m *mockDonationSvc) CreateRequest(ctx context.Context, seekerID string, req domain.CreateDonationRequest) (domain.DonationRequest, error) {
	args := m.Called(ctx, seekerID, req)
	return args.Get(0).(domain.DonationRequest), args.Error(1)
}

func (m *mockDonationSvc) UpdateRequest(ctx context.Context, seekerID, requestID string, req domain.UpdateDonationRequest) (domain.DonationRequest, error) {
	args := m.Called(ctx, seekerID, requestID, req)
	return args.Get(0).(domain.DonationRequest), args.Error(1)
}

func (m *mockDonationSvc) ContinueSearch(ctx context.Context, job domain.SearchJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockDonationSvc) Accept(ctx context.Context, donorID, requestID string, req domain.AcceptDonationRequest) (domain.AcceptedDonation, error) {
	args := m.Called(ctx, donorID, requestID, req)
	return args.Get(0).(domain.AcceptedDonation), args.Error(1)
}

func (m *mockDonationSvc) Ignore(ctx context.Context, donorID, requestID string, req domain.AcceptDonationRequest) error {
	return m.Called(ctx, donorID, requestID, req).Error(0)
}

func (m *mockDonationSvc) Withdraw(ctx context.Context, donorID, requestID string, req domain.AcceptDonationRequest) error {
	return m.Called(ctx, donorID, requestID, req).Error(0)
}

func (m *mockDonationSvc) Complete(ctx context.Context, seekerID, requestID string, req domain.CompleteDonationRequest) error {
	return m.Called(ctx, seekerID, requestID, req).Error(0)
}

func (m *mockDonationSvc) ListAccepted(ctx context.Context, seekerID, requestID string) ([]domain.AcceptedDonation, error) {
	args := m.Called(ctx, seekerID, requestID)
	list, _ := args.Get(0).([]domain.AcceptedDonation)
	return list, args.Error(1)
}

func (m *mockDonationSvc) ListRequests(ctx context.Context, seekerID string, status domain.DonationStatus) ([]domain.DonationRequest, error) {
	args := m.Called(ctx, seekerID, status)
	list, _ := args.Get(0).([]domain.DonationRequest)
	return list, args.Error(1)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Upsert(ctx context.Context, userID string, req domain.UpsertUserRequest) (domain.User, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockUserSvc) GetUser(ctx context.Context, userID string) (domain.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockUserSvc) GetDeviceSnsEndpointArn(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *mockUserSvc) UpdateUserNotificationEndPoint(ctx context.Context, userID, endpointArn string) error {
	return m.Called(ctx, userID, endpointArn).Error(0)
}

func (m *mockUserSvc) DetachNotificationEndPoint(ctx context.Context, userID, endpointArn string) error {
	return m.Called(ctx, userID, endpointArn).Error(0)
}

type mockLocationSvc struct{ mock.Mock }

func (m *mockLocationSvc) Register(ctx context.Context, userID string, req domain.RegisterLocationRequest) (domain.DonorLocation, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(domain.DonorLocation), args.Error(1)
}

func (m *mockLocationSvc) List(ctx context.Context, userID string) ([]domain.DonorLocation, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]domain.DonorLocation)
	return list, args.Error(1)
}

func (m *mockLocationSvc) Delete(ctx context.Context, userID, locationID string) error {
	return m.Called(ctx, userID, locationID).Error(0)
}

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) UpdateBloodDonationNotificationStatus(ctx context.Context, userID, requestID string, t domain.NotificationType, status domain.NotificationStatus) (domain.Notification, error) {
	args := m.Called(ctx, userID, requestID, t, status)
	return args.Get(0).(domain.Notification), args.Error(1)
}

func (m *mockNotificationSvc) GetIgnoredDonorList(ctx context.Context, requestID string) ([]domain.Notification, error) {
	args := m.Called(ctx, requestID)
	list, _ := args.Get(0).([]domain.Notification)
	return list, args.Error(1)
}

func (m *mockNotificationSvc) GetRejectedDonorsCount(ctx context.Context, requestID string) (int, error) {
	args := m.Called(ctx, requestID)
	return args.Int(0), args.Error(1)
}

type mockDeviceSvc struct{ mock.Mock }

func (m *mockDeviceSvc) StoreDevice(ctx context.Context, reg domain.DeviceRegistration) error {
	return m.Called(ctx, reg).Error(0)
}

// --- helpers ---

// authedReq builds a request carrying claims for userID, as the auth middleware would.
func authedReq(method, target, userID string, body interface{}) *http.Request {
	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, target, nil)
	case string:
		r = httptest.NewRequest(method, target, bytes.NewBufferString(b))
	default:
		raw, _ := json.Marshal(b)
		r = httptest.NewRequest(method, target, bytes.NewReader(raw))
	}
	claims := &jwtinfra.Claims{UserID: userID}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

// withParam injects a chi URL param into the request context.
func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}

func validCreateRequest() domain.CreateDonationRequest {
	return domain.CreateDonationRequest{
		RequestedBloodGroup: domain.BloodGroup("O+"),
		BloodQuantity:       2,
		UrgencyLevel:        domain.UrgencyLevel("urgent"),
		Location:            "Dhaka Medical College",
		Latitude:            23.7465,
		Longitude:           90.3760,
		CountryCode:         "BD",
		DonationDateTime:    "2026-03-02T10:00:00Z",
		ContactNumber:       "+8801700000000",
	}
}

// --- error mapping ---

func TestHTTPError_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNotificationsNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrConflict), http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrBadRequest, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrEndpointRegistration, http.StatusBadGateway},
		{domain.ErrNotifyUser, http.StatusBadGateway},
		{errors.New("dynamo exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			httpError(rr, tc.err)
			assert.Equal(t, tc.code, rr.Code)
			var env MessageEnvelope
			decodeBody(t, rr, &env)
			assert.Equal(t, tc.code, env.ErrorCode)
			assert.NotContains(t, env.Error, "dynamo")
		})
	}
}

// --- health ---

func TestHealth_Actions(t *testing.T) {
	failing := NewHealthHandler(func(context.Context) error { return errors.New("table creating") })
	healthy := NewHealthHandler(nil)

	cases := []struct {
		name   string
		h      *HealthHandler
		action string
		code   int
	}{
		{"ping", failing, "ping", http.StatusOK},
		{"ready", healthy, "ready", http.StatusOK},
		{"not ready", failing, "ready", http.StatusServiceUnavailable},
		{"unknown", healthy, "reboot", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := withParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/"+tc.action, nil), "action", tc.action)
			rr := httptest.NewRecorder()
			tc.h.Ping(rr, r)
			assert.Equal(t, tc.code, rr.Code)
		})
	}
}

// --- donations ---

func TestCreate_MissingClaims(t *testing.T) {
	h := NewDonationHandler(&mockDonationSvc{})
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/v1/donations", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreate_InvalidBody(t *testing.T) {
	h := NewDonationHandler(&mockDonationSvc{})
	rr := httptest.NewRecorder()
	h.Create(rr, authedReq(http.MethodPost, "/v1/donations", "seeker-1", "not-json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreate_ValidationFailure(t *testing.T) {
	svc := &mockDonationSvc{}
	h := NewDonationHandler(svc)
	req := validCreateRequest()
	req.RequestedBloodGroup = "Z+"
	rr := httptest.NewRecorder()
	h.Create(rr, authedReq(http.MethodPost, "/v1/donations", "seeker-1", req))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_HappyPath(t *testing.T) {
	svc := &mockDonationSvc{}
	req := validCreateRequest()
	svc.On("CreateRequest", mock.Anything, "seeker-1", req).
		Return(domain.DonationRequest{SeekerID: "seeker-1", RequestPostID: "r1", Status: domain.DonationPending}, nil)
	h := NewDonationHandler(svc)

	rr := httptest.NewRecorder()
	h.Create(rr, authedReq(http.MethodPost, "/v1/donations", "seeker-1", req))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var got domain.DonationRequest
	decodeBody(t, rr, &got)
	assert.Equal(t, "r1", got.RequestPostID)
	svc.AssertExpectations(t)
}

func TestUpdate_NotPending(t *testing.T) {
	svc := &mockDonationSvc{}
	qty := 3
	body := domain.UpdateDonationRequest{CreatedAt: "2026-03-01T08:00:00Z", BloodQuantity: &qty}
	svc.On("UpdateRequest", mock.Anything, "seeker-1", "r1", body).Return(domain.DonationRequest{}, domain.ErrConflict)
	h := NewDonationHandler(svc)

	r := withParam(authedReq(http.MethodPatch, "/v1/donations/r1", "seeker-1", body), "id", "r1")
	rr := httptest.NewRecorder()
	h.Update(rr, r)

	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}

func TestAccept_SelfAcceptForbidden(t *testing.T) {
	svc := &mockDonationSvc{}
	body := domain.AcceptDonationRequest{SeekerID: "seeker-1", CreatedAt: "2026-03-01T08:00:00Z"}
	svc.On("Accept", mock.Anything, "seeker-1", "r1", body).Return(domain.AcceptedDonation{}, domain.ErrForbidden)
	h := NewDonationHandler(svc)

	r := withParam(authedReq(http.MethodPost, "/v1/donations/r1/accept", "seeker-1", body), "id", "r1")
	rr := httptest.NewRecorder()
	h.Accept(rr, r)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAccept_HappyPath(t *testing.T) {
	svc := &mockDonationSvc{}
	body := domain.AcceptDonationRequest{SeekerID: "seeker-1", CreatedAt: "2026-03-01T08:00:00Z"}
	svc.On("Accept", mock.Anything, "donor-1", "r1", body).
		Return(domain.AcceptedDonation{SeekerID: "seeker-1", RequestPostID: "r1", DonorID: "donor-1", Status: domain.StatusAccepted}, nil)
	h := NewDonationHandler(svc)

	r := withParam(authedReq(http.MethodPost, "/v1/donations/r1/accept", "donor-1", body), "id", "r1")
	rr := httptest.NewRecorder()
	h.Accept(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var got domain.AcceptedDonation
	decodeBody(t, rr, &got)
	assert.Equal(t, domain.StatusAccepted, got.Status)
	svc.AssertExpectations(t)
}

func TestWithdrawAndIgnore(t *testing.T) {
	body := domain.AcceptDonationRequest{SeekerID: "seeker-1", CreatedAt: "2026-03-01T08:00:00Z"}

	svc := &mockDonationSvc{}
	svc.On("Withdraw", mock.Anything, "donor-1", "r1", body).Return(nil)
	svc.On("Ignore", mock.Anything, "donor-2", "r1", body).Return(domain.ErrInvalidTransition)
	h := NewDonationHandler(svc)

	rr := httptest.NewRecorder()
	h.Withdraw(rr, withParam(authedReq(http.MethodDelete, "/v1/donations/r1/accept", "donor-1", body), "id", "r1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	var env MessageEnvelope
	decodeBody(t, rr, &env)
	assert.Equal(t, "acceptance withdrawn", env.Message)

	rr = httptest.NewRecorder()
	h.Ignore(rr, withParam(authedReq(http.MethodPost, "/v1/donations/r1/ignore", "donor-2", body), "id", "r1"))
	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}

func TestComplete_RequiresDonors(t *testing.T) {
	svc := &mockDonationSvc{}
	h := NewDonationHandler(svc)
	body := domain.CompleteDonationRequest{CreatedAt: "2026-03-01T08:00:00Z"}

	rr := httptest.NewRecorder()
	h.Complete(rr, withParam(authedReq(http.MethodPost, "/v1/donations/r1/complete", "seeker-1", body), "id", "r1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestComplete_HappyPath(t *testing.T) {
	svc := &mockDonationSvc{}
	body := domain.CompleteDonationRequest{CreatedAt: "2026-03-01T08:00:00Z", DonorIDs: []string{"donor-1"}}
	svc.On("Complete", mock.Anything, "seeker-1", "r1", body).Return(nil)
	h := NewDonationHandler(svc)

	rr := httptest.NewRecorder()
	h.Complete(rr, withParam(authedReq(http.MethodPost, "/v1/donations/r1/complete", "seeker-1", body), "id", "r1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestListAccepted_EmptyIsArray(t *testing.T) {
	svc := &mockDonationSvc{}
	svc.On("ListAccepted", mock.Anything, "seeker-1", "r1").Return(nil, nil)
	h := NewDonationHandler(svc)

	rr := httptest.NewRecorder()
	h.ListAccepted(rr, withParam(authedReq(http.MethodGet, "/v1/donations/r1/accepted", "seeker-1", nil), "id", "r1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestListRequests_PassesStatusFilter(t *testing.T) {
	svc := &mockDonationSvc{}
	svc.On("ListRequests", mock.Anything, "seeker-1", domain.DonationPending).
		Return([]domain.DonationRequest{{SeekerID: "seeker-1", RequestPostID: "r1", Status: domain.DonationPending}}, nil)
	h := NewDonationHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, authedReq(http.MethodGet, "/v1/donations?status=PENDING", "seeker-1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []domain.DonationRequest
	decodeBody(t, rr, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RequestPostID)
}

func TestListRequests_BadStatus(t *testing.T) {
	svc := &mockDonationSvc{}
	svc.On("ListRequests", mock.Anything, "seeker-1", domain.DonationStatus("SOMEDAY")).
		Return(nil, fmt.Errorf("status: %w", domain.ErrBadRequest))
	h := NewDonationHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, authedReq(http.MethodGet, "/v1/donations?status=SOMEDAY", "seeker-1", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- notifications ---

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	svc := &mockNotificationSvc{}
	h := NewNotificationHandler(svc)
	body := map[string]string{"type": "BLOOD_REQ_POST", "status": "MAYBE"}

	rr := httptest.NewRecorder()
	h.UpdateStatus(rr, withParam(authedReq(http.MethodPut, "/v1/notifications/r1/status", "donor-1", body), "requestId", "r1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "UpdateBloodDonationNotificationStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_HappyPath(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("UpdateBloodDonationNotificationStatus", mock.Anything, "donor-1", "r1", domain.NotificationTypeRequestPost, domain.StatusIgnored).
		Return(domain.Notification{UserID: "donor-1", Status: domain.StatusIgnored}, nil)
	h := NewNotificationHandler(svc)
	body := map[string]string{"type": "BLOOD_REQ_POST", "status": "IGNORED"}

	rr := httptest.NewRecorder()
	h.UpdateStatus(rr, withParam(authedReq(http.MethodPut, "/v1/notifications/r1/status", "donor-1", body), "requestId", "r1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCountRejections(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("GetRejectedDonorsCount", mock.Anything, "r1").Return(3, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.CountRejections(rr, withParam(authedReq(http.MethodGet, "/v1/donations/r1/rejections", "seeker-1", nil), "id", "r1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got CountEnvelope
	decodeBody(t, rr, &got)
	assert.Equal(t, 3, got.Count)
}

func TestListIgnored_NotFound(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("GetIgnoredDonorList", mock.Anything, "r1").Return(nil, domain.ErrNotificationsNotFound)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.ListIgnored(rr, withParam(authedReq(http.MethodGet, "/v1/donations/r1/ignored", "seeker-1", nil), "id", "r1"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// --- devices, users, locations ---

func TestDeviceRegister_BindsCaller(t *testing.T) {
	svc := &mockDeviceSvc{}
	svc.On("StoreDevice", mock.Anything, domain.DeviceRegistration{UserID: "u1", DeviceToken: "tok", Platform: domain.Platform("FCM")}).Return(nil)
	h := NewDeviceHandler(svc)

	body := map[string]string{"deviceToken": "tok", "platform": "FCM"}
	rr := httptest.NewRecorder()
	h.Register(rr, authedReq(http.MethodPost, "/v1/devices", "u1", body))

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestDeviceRegister_GatewayFailure(t *testing.T) {
	svc := &mockDeviceSvc{}
	svc.On("StoreDevice", mock.Anything, mock.Anything).Return(fmt.Errorf("sns: %w", domain.ErrEndpointRegistration))
	h := NewDeviceHandler(svc)

	body := map[string]string{"deviceToken": "tok", "platform": "APNS"}
	rr := httptest.NewRecorder()
	h.Register(rr, authedReq(http.MethodPost, "/v1/devices", "u1", body))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestUserGet_NotFound(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("GetUser", mock.Anything, "u1").Return(domain.User{}, domain.ErrNotFound)
	h := NewUserHandler(svc)

	rr := httptest.NewRecorder()
	h.Get(rr, authedReq(http.MethodGet, "/v1/users/me", "u1", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserUpsert_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	req := domain.UpsertUserRequest{Name: "Rahim", PhoneNumbers: []string{"+8801700000000"}}
	svc.On("Upsert", mock.Anything, "u1", req).Return(domain.User{UserID: "u1", Name: "Rahim"}, nil)
	h := NewUserHandler(svc)

	rr := httptest.NewRecorder()
	h.Upsert(rr, authedReq(http.MethodPut, "/v1/users/me", "u1", req))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got domain.User
	decodeBody(t, rr, &got)
	assert.Equal(t, "Rahim", got.Name)
}

func TestLocationRegister_HappyPath(t *testing.T) {
	svc := &mockLocationSvc{}
	req := domain.RegisterLocationRequest{
		Area: "Dhanmondi", CountryCode: "BD", Latitude: 23.7465, Longitude: 90.3760,
		BloodGroup: domain.BloodGroup("A+"), AvailableForDonation: true,
	}
	svc.On("Register", mock.Anything, "u1", req).
		Return(domain.DonorLocation{UserID: "u1", LocationID: "l1", Geohash: "wh0r0dcv"}, nil)
	h := NewLocationHandler(svc)

	rr := httptest.NewRecorder()
	h.Register(rr, authedReq(http.MethodPost, "/v1/locations", "u1", req))

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestLocationList_EmptyIsArray(t *testing.T) {
	svc := &mockLocationSvc{}
	svc.On("List", mock.Anything, "u1").Return(nil, nil)
	h := NewLocationHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, authedReq(http.MethodGet, "/v1/locations", "u1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestLocationDelete_Unknown(t *testing.T) {
	svc := &mockLocationSvc{}
	svc.On("Delete", mock.Anything, "u1", "missing").Return(domain.ErrNotFound)
	h := NewLocationHandler(svc)

	rr := httptest.NewRecorder()
	h.Delete(rr, withParam(authedReq(http.MethodDelete, "/v1/locations/missing", "u1", nil), "id", "missing"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	svc.AssertExpectations(t)
}
