package dedupe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultTTL is how long DynamoDB keeps a claimed delivery id.
const DefaultTTL = 7 * 24 * time.Hour

type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoClaimer claims ids with a conditional PutItem so concurrent
// deliveries across instances race on a single write.
type DynamoClaimer struct {
	DB    DynamoAPI
	Table string
	TTL   time.Duration
	Now   func() time.Time
}

func NewDynamoClaimer(db DynamoAPI, table string) *DynamoClaimer {
	return &DynamoClaimer{DB: db, Table: strings.TrimSpace(table), TTL: DefaultTTL}
}

func pk(webhookID string) string {
	return fmt.Sprintf("WH#%s", webhookID)
}

func (c *DynamoClaimer) Claim(ctx context.Context, webhookID, shopDomain, topic string) (bool, error) {
	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now().UTC()
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	_, err := c.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.Table),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: pk(webhookID)},
			"Shop":      &types.AttributeValueMemberS{Value: shopDomain},
			"Topic":     &types.AttributeValueMemberS{Value: topic},
			"CreatedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttl).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (c *DynamoClaimer) Release(ctx context.Context, webhookID string) error {
	_, err := c.DB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk(webhookID)},
		},
	})
	return err
}
