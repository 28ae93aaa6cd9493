package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-api/internal/domain"
)

// OTPRepo is the durable OTP store. PK: email. expires_at doubles as the
// DynamoDB TTL attribute, but TTL sweeps lag by design, so reads still apply
// the lazy expiry check themselves.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// otpItem is the wire shape of a record; timestamps travel as Unix seconds.
type otpItem struct {
	Email        string `dynamodbav:"email"`
	Code         string `dynamodbav:"code"`
	Attempts     int    `dynamodbav:"attempts"`
	ExpiresAt    int64  `dynamodbav:"expires_at"`
	LastIssuedAt int64  `dynamodbav:"last_issued_at"`
	IssueID      string `dynamodbav:"issue_id"`
}

func toItem(o *domain.OTP) otpItem {
	return otpItem{
		Email:        o.Email,
		Code:         o.Code,
		Attempts:     o.Attempts,
		ExpiresAt:    o.ExpiresAt.Unix(),
		LastIssuedAt: o.LastIssuedAt.Unix(),
		IssueID:      o.IssueID,
	}
}

func (i otpItem) toDomain() *domain.OTP {
	return &domain.OTP{
		Email:        i.Email,
		Code:         i.Code,
		Attempts:     i.Attempts,
		ExpiresAt:    time.Unix(i.ExpiresAt, 0),
		LastIssuedAt: time.Unix(i.LastIssuedAt, 0),
		IssueID:      i.IssueID,
	}
}

func (r *OTPRepo) Put(ctx context.Context, o *domain.OTP) error {
	item, err := attributevalue.MarshalMap(toItem(o))
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OTPRepo) Get(ctx context.Context, email string) (*domain.OTP, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       emailKey(email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp for %s: %w", email, domain.ErrNotFound)
	}
	var i otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &i); err != nil {
		return nil, err
	}
	o := i.toDomain()
	if o.Expired(time.Now()) {
		if err := r.Delete(ctx, email); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("otp for %s: %w", email, domain.ErrNotFound)
	}
	return o, nil
}

func (r *OTPRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       emailKey(email),
	})
	return err
}

// IncrementAttempts bumps the failed-attempt counter atomically and returns
// the new count. The condition keeps the update from resurrecting a record
// deleted between the caller's read and this write.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, email string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 emailKey(email),
		UpdateExpression:    aws.String("ADD attempts :one"),
		ConditionExpression: aws.String("attribute_exists(email)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return 0, fmt.Errorf("otp for %s: %w", email, domain.ErrNotFound)
		}
		return 0, err
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, err
	}
	return updated.Attempts, nil
}
