package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/aws"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
)

const shippingKey = "shipping"

// ErrUnavailable wraps any failure to read the settings table.
var ErrUnavailable = errors.New("settings unavailable")

// Shipping is the shop's shipping configuration document.
type Shipping struct {
	Enabled        bool
	TestMode       bool
	Email          string
	Password       string
	PickupLocation string
	LengthCm       float64
	BreadthCm      float64
	HeightCm       float64
	WeightKg       float64
	Token          *shipping.PersistedToken
	UpdatedAt      time.Time
}

// Account returns the credentials and persisted token in the form the shipping client takes.
func (s *Shipping) Account() shipping.Account {
	return shipping.Account{
		Credentials: shipping.Credentials{
			Email:    s.Email,
			Password: s.Password,
			Enabled:  s.Enabled,
			TestMode: s.TestMode,
		},
		Token: s.Token,
	}
}

// FormatOptions returns the parcel defaults used when formatting orders.
func (s *Shipping) FormatOptions() shipping.FormatOptions {
	return shipping.FormatOptions{
		PickupLocation: s.PickupLocation,
		LengthCm:       s.LengthCm,
		BreadthCm:      s.BreadthCm,
		HeightCm:       s.HeightCm,
		WeightKg:       s.WeightKg,
	}
}

type shippingItem struct {
	SettingKey     string                   `dynamodbav:"setting_key"`
	Enabled        bool                     `dynamodbav:"enabled"`
	TestMode       bool                     `dynamodbav:"test_mode"`
	Email          string                   `dynamodbav:"email"`
	Password       string                   `dynamodbav:"password"`
	PickupLocation string                   `dynamodbav:"pickup_location"`
	LengthCm       float64                  `dynamodbav:"length_cm,omitempty"`
	BreadthCm      float64                  `dynamodbav:"breadth_cm,omitempty"`
	HeightCm       float64                  `dynamodbav:"height_cm,omitempty"`
	WeightKg       float64                  `dynamodbav:"weight_kg,omitempty"`
	Token          *shipping.PersistedToken `dynamodbav:"token,omitempty"`
	UpdatedAt      time.Time                `dynamodbav:"updated_at"`
}

// Store reads and writes the settings table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

func shippingItemKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"setting_key": &types.AttributeValueMemberS{Value: shippingKey},
	}
}

// LoadShipping returns the shipping settings. A missing document yields
// disabled settings rather than an error.
func (s *Store) LoadShipping(ctx context.Context) (*Shipping, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            shippingItemKey(),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s: %s", ErrUnavailable, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(out.Item) == 0 {
		return &Shipping{}, nil
	}

	var item shippingItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("%w: unmarshal shipping settings: %v", ErrUnavailable, err)
	}
	return &Shipping{
		Enabled:        item.Enabled,
		TestMode:       item.TestMode,
		Email:          item.Email,
		Password:       item.Password,
		PickupLocation: item.PickupLocation,
		LengthCm:       item.LengthCm,
		BreadthCm:      item.BreadthCm,
		HeightCm:       item.HeightCm,
		WeightKg:       item.WeightKg,
		Token:          item.Token,
		UpdatedAt:      item.UpdatedAt,
	}, nil
}

// SaveShipping writes the whole shipping document, including its token.
func (s *Store) SaveShipping(ctx context.Context, sh *Shipping) error {
	item, err := attributevalue.MarshalMap(shippingItem{
		SettingKey:     shippingKey,
		Enabled:        sh.Enabled,
		TestMode:       sh.TestMode,
		Email:          sh.Email,
		Password:       sh.Password,
		PickupLocation: sh.PickupLocation,
		LengthCm:       sh.LengthCm,
		BreadthCm:      sh.BreadthCm,
		HeightCm:       sh.HeightCm,
		WeightKg:       sh.WeightKg,
		Token:          sh.Token,
		UpdatedAt:      s.nowFunc(),
	})
	if err != nil {
		return fmt.Errorf("marshal shipping settings: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put shipping settings: %w", err)
	}
	return nil
}

// SaveToken stores a freshly issued provider token on the shipping document.
func (s *Store) SaveToken(ctx context.Context, token shipping.PersistedToken) error {
	av, err := attributevalue.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              shippingItemKey(),
		UpdateExpression: awsString("SET #tok = :tok, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#tok": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tok": av,
			":ua":  &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("update item (save token): %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
