package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/go-blood-connect/internal/domain"
)

const profileSK = "PROFILE"

type userItem struct {
	PK             string   `dynamodbav:"PK"`
	SK             string   `dynamodbav:"SK"`
	Name           string   `dynamodbav:"name,omitempty"`
	PhoneNumbers   []string `dynamodbav:"phoneNumbers,omitempty"`
	BloodGroup     string   `dynamodbav:"bloodGroup,omitempty"`
	SnsEndpointArn string   `dynamodbav:"snsEndpointArn,omitempty"`
	CreatedAt      string   `dynamodbav:"createdAt,omitempty"`
}

type userAdapter struct{ tableIndexes }

func (userAdapter) FromDomain(u domain.User) (userItem, error) {
	if err := requireKeyParts("user", u.UserID); err != nil {
		return userItem{}, err
	}
	return userItem{
		PK:             joinKey(userPrefix, u.UserID),
		SK:             profileSK,
		Name:           u.Name,
		PhoneNumbers:   u.PhoneNumbers,
		BloodGroup:     string(u.BloodGroup),
		SnsEndpointArn: u.SnsEndpointArn,
		CreatedAt:      u.CreatedAt,
	}, nil
}

func (userAdapter) ToDomain(item userItem) (domain.User, error) {
	pk, err := parseKey(item.PK, userPrefix, "")
	if err != nil {
		return domain.User{}, err
	}
	if _, err := parseKey(item.SK, profileSK); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		UserID:         pk[0],
		Name:           item.Name,
		PhoneNumbers:   item.PhoneNumbers,
		BloodGroup:     domain.BloodGroup(item.BloodGroup),
		SnsEndpointArn: item.SnsEndpointArn,
		CreatedAt:      item.CreatedAt,
	}, nil
}

// UserRepo stores user profiles next to their locations under USER#{id}.
type UserRepo struct {
	*Repository[domain.User, userItem]
}

func NewUserRepo(client API, table string) *UserRepo {
	return &UserRepo{NewRepository[domain.User, userItem](client, table, userAdapter{})}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (domain.User, error) {
	return r.GetItem(ctx, joinKey(userPrefix, userID), profileSK)
}

// SetEndpoint points a user at a push endpoint. An empty arn removes the reference.
func (r *UserRepo) SetEndpoint(ctx context.Context, userID, arn string) error {
	u := domain.User{UserID: userID, SnsEndpointArn: arn}
	var opts []UpdateOption
	if arn == "" {
		opts = append(opts, Remove(fieldSnsEndpointArn))
	}
	_, err := r.Update(ctx, u, opts...)
	return err
}

// ClearEndpointIf removes the user's endpoint reference only while it still
// equals arn. It reports domain.ErrConflict when the user has since moved on.
func (r *UserRepo) ClearEndpointIf(ctx context.Context, userID, arn string) error {
	_, err := r.Update(ctx, domain.User{UserID: userID},
		Remove(fieldSnsEndpointArn),
		If(expression.Name(fieldSnsEndpointArn).Equal(expression.Value(arn))),
	)
	return err
}

// UpdateProfile applies the non-empty profile fields of u to an existing user.
func (r *UserRepo) UpdateProfile(ctx context.Context, u domain.User) (domain.User, error) {
	u.SnsEndpointArn = ""
	return r.Update(ctx, u)
}
