package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/domain/events"
)

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

var at = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestPublisher_Publish(t *testing.T) {
	// Arrange
	client := &mockEventBridge{}
	var captured *eventbridge.PutEventsInput
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*eventbridge.PutEventsInput) }).
		Return(&eventbridge.PutEventsOutput{}, nil)
	publisher := NewPublisher(client, "valks-bus", zap.NewNop())

	// Act
	err := publisher.Publish(context.Background(), events.NewCategoryOfDaySelected("Games", 12, at))

	// Assert
	require.NoError(t, err)
	require.Len(t, captured.Entries, 1)
	entry := captured.Entries[0]
	assert.Equal(t, "valks-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, events.SourceValks, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeCategoryOfDaySelected, aws.ToString(entry.DetailType))

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "Games", detail["category"])
	assert.Equal(t, float64(12), detail["score"])
}

func TestPublisher_PublishBatch_SplitsIntoChunks(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{}, nil)
	publisher := NewPublisher(client, "valks-bus", zap.NewNop())

	batch := make([]events.DomainEvent, 0, 23)
	for i := 0; i < 23; i++ {
		batch = append(batch, events.NewRoomDeleted(fmt.Sprintf("room-%d", i), at))
	}

	require.NoError(t, publisher.PublishBatch(context.Background(), batch))
	client.AssertNumberOfCalls(t, "PutEvents", 3)
}

func TestPublisher_FailedEntries(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("ThrottlingException")}},
	}, nil)
	publisher := NewPublisher(client, "valks-bus", zap.NewNop())

	err := publisher.Publish(context.Background(), events.NewAccountDeleted("a@valks.io", at))

	assert.EqualError(t, err, "1 events failed to publish")
}

func TestPublisher_ClientError(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("no route"))
	publisher := NewPublisher(client, "valks-bus", zap.NewNop())

	err := publisher.Publish(context.Background(), events.NewRoomCreated("r1", "Chat", "a@valks.io", at))

	assert.ErrorContains(t, err, "no route")
}
