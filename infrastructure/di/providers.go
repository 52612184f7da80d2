package di

import (
	"context"
	"fmt"

	"phenotag-backend/application/ports"
	"phenotag-backend/application/sequence"
	syncengine "phenotag-backend/application/sync"
	"phenotag-backend/domain/events"
	"phenotag-backend/infrastructure/config"
	ebpublisher "phenotag-backend/infrastructure/messaging/eventbridge"
	dynamostore "phenotag-backend/infrastructure/persistence/dynamodb"
	"phenotag-backend/infrastructure/persistence/memory"
	"phenotag-backend/infrastructure/realtime"
	"phenotag-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsapigw "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Emitter     *events.Emitter
	Store       ports.AnnotationStore
	Sequencer   *sequence.Sequencer
	SyncEngine  *syncengine.Engine
	Publisher   ports.EventPublisher
	Broadcaster *realtime.Broadcaster
	Tracer      *observability.Tracer
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideAPIGatewayClient creates a management client for the WebSocket API
func ProvideAPIGatewayClient(awsCfg aws.Config, cfg *config.Config) *awsapigw.Client {
	return awsapigw.NewFromConfig(awsCfg, func(o *awsapigw.Options) {
		if cfg.WebSocketEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.WebSocketEndpoint)
		}
	})
}

// ProvideTracer creates the tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("phenotag-backend", cfg.EnableTracing)
}

// ProvideEmitter creates the in-process event emitter
func ProvideEmitter(logger *zap.Logger) *events.Emitter {
	return events.NewEmitter(logger)
}

// ProvideAnnotationStore selects the configured storage backend
func ProvideAnnotationStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger, tracer *observability.Tracer) (ports.AnnotationStore, error) {
	switch cfg.StorageBackend {
	case "dynamodb":
		return dynamostore.NewAnnotationStore(client, cfg.DynamoDBTable, logger, tracer), nil
	case "memory":
		return memory.NewAnnotationStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// ProvideSequencer creates the sequence manager
func ProvideSequencer(store ports.AnnotationStore, emitter *events.Emitter, logger *zap.Logger) *sequence.Sequencer {
	return sequence.NewSequencer(store, emitter, logger)
}

// ProvideSequenceReader exposes the sequencer through the reader port
func ProvideSequenceReader(sequencer *sequence.Sequencer) ports.SequenceReader {
	return sequencer
}

// ProvideSyncEngine creates the real-time sync engine
func ProvideSyncEngine(store ports.AnnotationStore, sequences ports.SequenceReader, emitter *events.Emitter, cfg *config.Config, logger *zap.Logger) *syncengine.Engine {
	return syncengine.NewEngine(store, sequences, emitter, logger).
		WithTargetTimeout(cfg.SyncTargetTimeout)
}

// ProvideEventPublisher creates the EventBridge publisher
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	return ebpublisher.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideBroadcaster creates the WebSocket broadcaster
func ProvideBroadcaster(apiClient *awsapigw.Client, dynamoClient *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *realtime.Broadcaster {
	return realtime.NewBroadcaster(apiClient, dynamoClient, cfg.ConnectionsTable, logger)
}

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	dynamoClient := ProvideDynamoDBClient(awsCfg)
	tracer := ProvideTracer(cfg)
	emitter := ProvideEmitter(logger)

	store, err := ProvideAnnotationStore(dynamoClient, cfg, logger, tracer)
	if err != nil {
		return nil, err
	}

	sequencer := ProvideSequencer(store, emitter, logger)
	engine := ProvideSyncEngine(store, sequencer, emitter, cfg, logger)

	container := &Container{
		Config:     cfg,
		Logger:     logger,
		Emitter:    emitter,
		Store:      store,
		Sequencer:  sequencer,
		SyncEngine: engine,
		Tracer:     tracer,
	}

	if cfg.EventBusName != "" {
		publisher := ProvideEventPublisher(ProvideEventBridgeClient(awsCfg), cfg, logger)
		if p, ok := publisher.(*ebpublisher.Publisher); ok {
			p.AttachTo(emitter)
		}
		container.Publisher = publisher
	}

	if cfg.WebSocketEndpoint != "" {
		broadcaster := ProvideBroadcaster(ProvideAPIGatewayClient(awsCfg, cfg), dynamoClient, cfg, logger)
		broadcaster.AttachTo(emitter)
		container.Broadcaster = broadcaster
	}

	logger.Info("container initialized",
		zap.String("environment", cfg.Environment),
		zap.String("storageBackend", cfg.StorageBackend),
		zap.Bool("websocket", cfg.WebSocketEndpoint != ""),
	)
	return container, nil
}
