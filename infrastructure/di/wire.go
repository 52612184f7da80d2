//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"phenotag-backend/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideAPIGatewayClient,
	ProvideTracer,
	ProvideEmitter,
	ProvideAnnotationStore,
	ProvideSequencer,
	ProvideSequenceReader,
	ProvideSyncEngine,
	ProvideEventPublisher,
	ProvideBroadcaster,
	wire.Struct(new(Container), "*"),
)

// InitializeWiredContainer builds the container through wire
func InitializeWiredContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
