package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-guild-bot/internal/domain"
)

// SecretRepo holds the single current onboarding shared secret.
// PK: secret_id, always domain.CurrentSecretID. Rotation bumps a version
// counter so overlapping rotations remain visible in the item history,
// but it is deliberately not transactional against in-flight validations
// that read the prior value.
type SecretRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSecretRepo(client *dynamodb.Client, tableName string) *SecretRepo {
	return &SecretRepo{client: client, tableName: tableName}
}

func (r *SecretRepo) Current(ctx context.Context) (*domain.ServerSecret, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("secret_id", domain.CurrentSecretID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("no current secret: %w", domain.ErrNotFound)
	}
	var s domain.ServerSecret
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Rotate replaces the current value and increments the version counter.
// Upserts, so the very first rotation seeds the item. "value" is a
// DynamoDB reserved word, hence the #v alias.
func (r *SecretRepo) Rotate(ctx context.Context, newValue string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("secret_id", domain.CurrentSecretID),
		UpdateExpression:         aws.String("SET #v = :v, updated_at = :t ADD version :one"),
		ExpressionAttributeNames: map[string]string{"#v": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":   &types.AttributeValueMemberS{Value: newValue},
			":t":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	return err
}
