// Package realtime pushes sync lifecycle events to connected annotation-UI
// clients over API Gateway WebSocket connections. Connection ids live in a
// DynamoDB table maintained by the connect/disconnect routes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"phenotag-backend/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Broadcaster fans one domain event out to every connected client
type Broadcaster struct {
	apiClient    *apigatewaymanagementapi.Client
	dynamoClient *dynamodb.Client
	tableName    string
	logger       *zap.Logger
}

// NewBroadcaster creates a broadcaster over the given connections table
func NewBroadcaster(apiClient *apigatewaymanagementapi.Client, dynamoClient *dynamodb.Client, tableName string, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		apiClient:    apiClient,
		dynamoClient: dynamoClient,
		tableName:    tableName,
		logger:       logger,
	}
}

// wsMessage is the frame sent to UI clients
type wsMessage struct {
	Type    string             `json:"type"`
	Payload events.DomainEvent `json:"payload"`
}

// Broadcast sends the event to all active connections. Gone connections are
// pruned; individual send failures are logged and do not fail the broadcast.
func (b *Broadcaster) Broadcast(ctx context.Context, event events.DomainEvent) error {
	data, err := json.Marshal(wsMessage{Type: event.GetEventType(), Payload: event})
	if err != nil {
		return fmt.Errorf("marshal ws message: %w", err)
	}

	connectionIDs, err := b.activeConnections(ctx)
	if err != nil {
		return err
	}

	for _, connectionID := range connectionIDs {
		if err := b.send(ctx, connectionID, data); err != nil {
			b.logger.Warn("websocket send failed",
				zap.String("connectionId", connectionID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// AttachTo subscribes the broadcaster to an in-process emitter, forwarding the
// sync lifecycle events the annotation UI listens for.
func (b *Broadcaster) AttachTo(emitter *events.Emitter) func() {
	return emitter.Subscribe(func(ctx context.Context, event events.DomainEvent) error {
		switch event.GetEventType() {
		case events.EventTypeSyncToggled,
			events.EventTypeSyncStarted,
			events.EventTypeSyncError,
			events.EventTypeSyncCompleted:
			return b.Broadcast(ctx, event)
		}
		return nil
	})
}

func (b *Broadcaster) activeConnections(ctx context.Context) ([]string, error) {
	var connectionIDs []string

	paginator := dynamodb.NewScanPaginator(b.dynamoClient, &dynamodb.ScanInput{
		TableName: aws.String(b.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan connections: %w", err)
		}
		for _, item := range page.Items {
			if connID, ok := item["ConnectionID"].(*types.AttributeValueMemberS); ok {
				connectionIDs = append(connectionIDs, connID.Value)
			}
		}
	}
	return connectionIDs, nil
}

func (b *Broadcaster) send(ctx context.Context, connectionID string, data []byte) error {
	_, err := b.apiClient.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		var gone *apigwtypes.GoneException
		if errors.As(err, &gone) {
			b.removeStaleConnection(ctx, connectionID)
			return nil
		}
		return err
	}
	return nil
}

func (b *Broadcaster) removeStaleConnection(ctx context.Context, connectionID string) {
	_, err := b.dynamoClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("CONNECTION#%s", connectionID)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		b.logger.Warn("failed to remove stale connection",
			zap.String("connectionId", connectionID),
			zap.Error(err),
		)
		return
	}
	b.logger.Debug("stale connection removed", zap.String("connectionId", connectionID))
}
