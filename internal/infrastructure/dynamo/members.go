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

// MemberRepo provides typed DynamoDB operations for the guild_members table.
// PK: guild_id, SK: member_id.
type MemberRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMemberRepo(client *dynamodb.Client, tableName string) *MemberRepo {
	return &MemberRepo{client: client, tableName: tableName}
}

func (r *MemberRepo) Get(ctx context.Context, guildID, memberID string) (*domain.MemberRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("guild_id", guildID, "member_id", memberID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("member record not found: %w", domain.ErrNotFound)
	}
	var rec domain.MemberRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save writes the record, asserting nobody else wrote it since it was read.
// rec.Version must already be incremented by the caller: a write at
// version N asserts the stored version is N-1, and a write at version 1
// asserts the record does not exist yet. A failed assertion returns
// ErrConflict so the caller can re-read and retry.
func (r *MemberRepo) Save(ctx context.Context, rec *domain.MemberRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal member record: %w", err)
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}
	if rec.Version <= 1 {
		input.ConditionExpression = aws.String("attribute_not_exists(guild_id)")
	} else {
		input.ConditionExpression = aws.String("version = :prev")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.Version-1)},
		}
	}
	_, err = r.client.PutItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("member record version moved: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}
