package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"phenotag-backend/application/ports"
	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/core/valueobjects"
	pkgerrors "phenotag-backend/pkg/errors"
	"phenotag-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// AnnotationStore implements the AnnotationStore port on a single DynamoDB
// table: one item per image, replaced wholesale on save.
type AnnotationStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
	tracer    *observability.Tracer
}

// NewAnnotationStore creates a DynamoDB-backed annotation store
func NewAnnotationStore(client *dynamodb.Client, tableName string, logger *zap.Logger, tracer *observability.Tracer) ports.AnnotationStore {
	return &AnnotationStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		tracer:    tracer,
	}
}

// annotationItem is the DynamoDB item structure for one frame's annotations
type annotationItem struct {
	PK           string           `dynamodbav:"PK"`
	SK           string           `dynamodbav:"SK"`
	EntityType   string           `dynamodbav:"EntityType"`
	ImageID      string           `dynamodbav:"ImageID"`
	Annotations  []annotationData `dynamodbav:"Annotations"`
	LastModified string           `dynamodbav:"LastModified"`
}

type annotationData struct {
	ID            string           `dynamodbav:"ID"`
	Order         int              `dynamodbav:"Order"`
	Type          string           `dynamodbav:"Type"`
	CustomTypeID  string           `dynamodbav:"CustomTypeID,omitempty"`
	X             float64          `dynamodbav:"X"`
	Y             float64          `dynamodbav:"Y"`
	Direction     *float64         `dynamodbav:"Direction,omitempty"`
	DirectionType string           `dynamodbav:"DirectionType,omitempty"`
	Directions    []directionData  `dynamodbav:"Directions,omitempty"`
	MaxDirections int              `dynamodbav:"MaxDirections,omitempty"`
	Timestamp     string           `dynamodbav:"Timestamp"`
}

type directionData struct {
	Angle  float64  `dynamodbav:"Angle"`
	Type   string   `dynamodbav:"Type,omitempty"`
	ClickX *float64 `dynamodbav:"ClickX,omitempty"`
	ClickY *float64 `dynamodbav:"ClickY,omitempty"`
}

// Get retrieves the annotation set for an image, or (nil, nil) when the image
// has never been annotated
func (s *AnnotationStore) Get(ctx context.Context, imageID string) (*entities.AnnotationSet, error) {
	ctx, done := s.tracer.Segment(ctx, "AnnotationStore.Get")
	defer done()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: imagePK(imageID)},
			"SK": &types.AttributeValueMemberS{Value: annotationsSK},
		},
	})
	if err != nil {
		s.logger.Error("failed to read annotation set",
			zap.String("imageId", imageID),
			zap.Error(err),
		)
		return nil, pkgerrors.NewStoreUnavailableError(imageID, err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item annotationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewStoreUnavailableError(imageID, fmt.Errorf("unmarshal annotation item: %w", err))
	}

	set := fromItem(item)
	return &set, nil
}

// Save replaces the annotation set for an image. The write is conditional on
// LastModified not having moved past the incoming set, which surfaces as a
// store-rejected error rather than silently losing the newer document.
func (s *AnnotationStore) Save(ctx context.Context, imageID string, set entities.AnnotationSet) error {
	ctx, done := s.tracer.Segment(ctx, "AnnotationStore.Save")
	defer done()

	item := toItem(imageID, set)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewStoreRejectedError(imageID, fmt.Errorf("marshal annotation item: %w", err))
	}

	cond := expression.Or(
		expression.AttributeNotExists(expression.Name("LastModified")),
		expression.Name("LastModified").LessThanEqual(expression.Value(item.LastModified)),
	)
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return pkgerrors.NewStoreRejectedError(imageID, fmt.Errorf("build condition: %w", err))
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			s.logger.Warn("annotation save rejected by condition",
				zap.String("imageId", imageID),
			)
			return pkgerrors.NewStoreRejectedError(imageID, err)
		}
		s.logger.Error("failed to save annotation set",
			zap.String("imageId", imageID),
			zap.Error(err),
		)
		return pkgerrors.NewStoreUnavailableError(imageID, err)
	}

	s.logger.Debug("annotation set saved",
		zap.String("imageId", imageID),
		zap.Int("annotations", len(set.Annotations)),
	)
	return nil
}

const annotationsSK = "ANNOTATIONS"

func imagePK(imageID string) string {
	return fmt.Sprintf("IMAGE#%s", imageID)
}

func toItem(imageID string, set entities.AnnotationSet) annotationItem {
	item := annotationItem{
		PK:           imagePK(imageID),
		SK:           annotationsSK,
		EntityType:   "ANNOTATION_SET",
		ImageID:      imageID,
		Annotations:  make([]annotationData, len(set.Annotations)),
		LastModified: set.LastModified.UTC().Format(time.RFC3339Nano),
	}
	for i, a := range set.Annotations {
		data := annotationData{
			ID:            a.ID,
			Order:         a.Order,
			Type:          string(a.Type),
			CustomTypeID:  a.CustomTypeID,
			X:             a.X,
			Y:             a.Y,
			Direction:     a.Direction,
			DirectionType: string(a.DirectionType),
			MaxDirections: a.MaxDirections,
			Timestamp:     a.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		for _, d := range a.Directions {
			dd := directionData{Angle: d.Angle, Type: d.Type}
			if d.ClickPosition != nil {
				x, y := d.ClickPosition.X, d.ClickPosition.Y
				dd.ClickX, dd.ClickY = &x, &y
			}
			data.Directions = append(data.Directions, dd)
		}
		item.Annotations[i] = data
	}
	return item
}

func fromItem(item annotationItem) entities.AnnotationSet {
	set := entities.AnnotationSet{
		ImageID:     item.ImageID,
		Annotations: make([]entities.Annotation, len(item.Annotations)),
	}
	if t, err := time.Parse(time.RFC3339Nano, item.LastModified); err == nil {
		set.LastModified = t
	}
	for i, data := range item.Annotations {
		a := entities.Annotation{
			ID:            data.ID,
			Order:         data.Order,
			Type:          valueobjects.AnnotationType(data.Type),
			CustomTypeID:  data.CustomTypeID,
			X:             data.X,
			Y:             data.Y,
			Direction:     data.Direction,
			DirectionType: valueobjects.DirectionType(data.DirectionType),
			MaxDirections: data.MaxDirections,
		}
		if t, err := time.Parse(time.RFC3339Nano, data.Timestamp); err == nil {
			a.Timestamp = t
		}
		for _, dd := range data.Directions {
			entry := valueobjects.DirectionEntry{Angle: dd.Angle, Type: dd.Type}
			if dd.ClickX != nil && dd.ClickY != nil {
				entry.ClickPosition = &valueobjects.ClickPosition{X: *dd.ClickX, Y: *dd.ClickY}
			}
			a.Directions = append(a.Directions, entry)
		}
		set.Annotations[i] = a
	}
	return set
}
