package main

import (
	"context"
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

type recordingProcessor struct {
	calls [][2]string
	err   error
}

func (r *recordingProcessor) HandlePaymentRequestCreated(_ context.Context, userID, pushID string) error {
	r.calls = append(r.calls, [2]string{userID, pushID})
	return r.err
}

func insertRecord(collection, docID string) awsevents.DynamoDBEventRecord {
	return awsevents.DynamoDBEventRecord{
		EventName: "INSERT",
		Change: awsevents.DynamoDBStreamRecord{
			Keys: map[string]awsevents.DynamoDBAttributeValue{
				"collection": awsevents.NewStringAttribute(collection),
				"docId":      awsevents.NewStringAttribute(docID),
			},
		},
	}
}

func TestHandleTriggersOrchestrationForPaymentInserts(t *testing.T) {
	proc := &recordingProcessor{}
	evt := awsevents.DynamoDBEvent{Records: []awsevents.DynamoDBEventRecord{
		insertRecord("stripe_customers/user-1/payments", "push-1"),
		insertRecord("parking_lots", "lot-1"),
		insertRecord("stripe_customers/user-2/payments", "push-2"),
	}}

	require.NoError(t, handle(context.Background(), proc, logging.Default(), evt))
	assert.Equal(t, [][2]string{{"user-1", "push-1"}, {"user-2", "push-2"}}, proc.calls)
}

func TestHandleSkipsNonInsertEvents(t *testing.T) {
	proc := &recordingProcessor{}
	record := insertRecord("stripe_customers/user-1/payments", "push-1")
	record.EventName = "MODIFY"
	evt := awsevents.DynamoDBEvent{Records: []awsevents.DynamoDBEventRecord{record}}

	require.NoError(t, handle(context.Background(), proc, logging.Default(), evt))
	assert.Empty(t, proc.calls)
}

func TestPaymentsOwner(t *testing.T) {
	cases := []struct {
		collection string
		wantUser   string
		wantOK     bool
	}{
		{"stripe_customers/user-1/payments", "user-1", true},
		{"stripe_customers", "", false},
		{"stripe_customers/user-1", "", false},
		{"stripe_customers//payments", "", false},
		{"stripe_customers/a/b/payments", "", false},
		{"parking_lots", "", false},
	}
	for _, tc := range cases {
		user, ok := paymentsOwner(tc.collection)
		assert.Equal(t, tc.wantOK, ok, tc.collection)
		assert.Equal(t, tc.wantUser, user, tc.collection)
	}
}
