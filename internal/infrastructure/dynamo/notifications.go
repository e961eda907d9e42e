package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/go-blood-connect/internal/domain"
)

const notificationPrefix = "NOTIFICATION"

type notificationItem struct {
	PK        string         `dynamodbav:"PK"`
	SK        string         `dynamodbav:"SK"`
	GSI1PK    string         `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK    string         `dynamodbav:"GSI1SK,omitempty"`
	LSI1SK    string         `dynamodbav:"LSI1SK,omitempty"`
	Type      string         `dynamodbav:"type,omitempty"`
	Title     string         `dynamodbav:"title,omitempty"`
	Body      string         `dynamodbav:"body,omitempty"`
	Status    string         `dynamodbav:"status,omitempty"`
	Payload   map[string]any `dynamodbav:"payload,omitempty"`
	CreatedAt string         `dynamodbav:"createdAt,omitempty"`
}

type notificationAdapter struct{ tableIndexes }

func newNotificationAdapter() notificationAdapter {
	return notificationAdapter{tableIndexes{gsi1Index, lsi1Index}}
}

func notificationPK(userID string) string { return joinKey(notificationPrefix, userID) }

func notificationSK(t domain.NotificationType, id string) string { return joinKey(string(t), id) }

// FromDomain keys a notification under its recipient. Donation types also get
// the fan-in index on the request id; their status keys are only written when
// the status is known, so a sparse update without a status leaves them intact.
func (notificationAdapter) FromDomain(n domain.Notification) (notificationItem, error) {
	if err := requireKeyParts("notification", n.UserID, string(n.Type), n.ID); err != nil {
		return notificationItem{}, err
	}
	item := notificationItem{
		PK:        notificationPK(n.UserID),
		SK:        notificationSK(n.Type, n.ID),
		Type:      string(n.Type),
		Title:     n.Title,
		Body:      n.Body,
		Status:    string(n.Status),
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
	}
	if n.Type.IsDonation() {
		item.GSI1PK = escapeKey(n.ID)
		if n.Status != "" {
			item.GSI1SK = joinKey(notificationPrefix, string(n.Status), n.UserID)
			item.LSI1SK = joinKey("STATUS", string(n.Status), n.ID)
		}
	}
	return item, nil
}

func (notificationAdapter) ToDomain(item notificationItem) (domain.Notification, error) {
	pk, err := parseKey(item.PK, notificationPrefix, "")
	if err != nil {
		return domain.Notification{}, err
	}
	sk, err := parseKey(item.SK, "", "")
	if err != nil {
		return domain.Notification{}, err
	}
	return domain.Notification{
		ID:        sk[1],
		UserID:    pk[0],
		Title:     item.Title,
		Body:      item.Body,
		Type:      domain.NotificationType(sk[0]),
		Status:    domain.NotificationStatus(item.Status),
		Payload:   item.Payload,
		CreatedAt: item.CreatedAt,
	}, nil
}

// NotificationRepo stores notifications and serves the request fan-in queries.
type NotificationRepo struct {
	*Repository[domain.Notification, notificationItem]
}

func NewNotificationRepo(client API, table string) *NotificationRepo {
	return &NotificationRepo{NewRepository[domain.Notification, notificationItem](client, table, newNotificationAdapter())}
}

// QueryBloodDonationNotifications returns every notification sent for a
// request, optionally narrowed to one status.
func (r *NotificationRepo) QueryBloodDonationNotifications(ctx context.Context, requestID string, status domain.NotificationStatus) ([]domain.Notification, error) {
	in := QueryInput{Partition: escapeKey(requestID)}
	if status != "" {
		in.Sort = &SortCondition{Operator: OpBeginsWith, Value: keyPrefix(notificationPrefix, string(status))}
	}
	return r.QueryAll(ctx, in, IndexGSI1)
}

// GetBloodDonationNotification is the dedup lookup for (recipient, request, type).
func (r *NotificationRepo) GetBloodDonationNotification(ctx context.Context, userID, requestID string, t domain.NotificationType) (domain.Notification, error) {
	return r.GetItem(ctx, notificationPK(userID), notificationSK(t, requestID))
}

// ListByStatus lists one recipient's donation notifications in a status.
func (r *NotificationRepo) ListByStatus(ctx context.Context, userID string, status domain.NotificationStatus) ([]domain.Notification, error) {
	return r.QueryAll(ctx, QueryInput{
		Partition: notificationPK(userID),
		Sort:      &SortCondition{Operator: OpBeginsWith, Value: keyPrefix("STATUS", string(status))},
	}, IndexLSI1)
}

// UpdateStatus moves a donation notification to n.Status, provided it is
// still in status from. A concurrent transition surfaces as domain.ErrConflict.
func (r *NotificationRepo) UpdateStatus(ctx context.Context, n domain.Notification, from domain.NotificationStatus) (domain.Notification, error) {
	return r.Update(ctx, n, If(expression.Name(fieldStatus).Equal(expression.Value(string(from)))))
}

// UpdatePayload replaces the payload of a notification, leaving its status
// and index keys untouched.
func (r *NotificationRepo) UpdatePayload(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	return r.Update(ctx, domain.Notification{ID: n.ID, UserID: n.UserID, Type: n.Type, Payload: n.Payload})
}
