package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-guild-bot/internal/domain"
)

// OTPRepo manages one-time codes.
// PK: otp_id. The code-index GSI supports the unused-code lookup at
// redemption time. Records are never deleted — used codes stay as an
// audit trail.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) Put(ctx context.Context, o *domain.OTP) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// FindUnusedByCode returns the first unused record carrying code.
// Wrong, used and never-issued codes all surface as ErrNotFound.
func (r *OTPRepo) FindUnusedByCode(ctx context.Context, code string) (*domain.OTP, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("code-index"),
		KeyConditionExpression: aws.String("#c = :c"),
		FilterExpression:       aws.String("#u = :f"),
		ExpressionAttributeNames: map[string]string{
			"#c": "code",
			"#u": "used",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: code},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no unused otp for code: %w", domain.ErrNotFound)
	}
	var o domain.OTP
	if err := attributevalue.UnmarshalMap(out.Items[0], &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkUsed flips used to true, conditional on it still being false.
// Under concurrent redemption of the same record exactly one caller
// succeeds; the loser gets ErrNotFound, indistinguishable from a code
// that never existed.
func (r *OTPRepo) MarkUsed(ctx context.Context, otpID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{"used": true})
	if err != nil {
		return err
	}
	ue.Values[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("otp_id", otpID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#f0 = :f"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("otp already redeemed: %w", domain.ErrNotFound)
		}
		return err
	}
	return nil
}
