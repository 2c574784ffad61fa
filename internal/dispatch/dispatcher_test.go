package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dar-workers/internal/common/logger"
	"dar-workers/internal/models"
	"dar-workers/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockProcess struct {
	mock.Mock
	mu   sync.Mutex
	sent []models.WorkflowRequestKind
}

func (m *mockProcess) Publish(ctx context.Context, req models.WorkflowEngineRequest) error {
	m.mu.Lock()
	m.sent = append(m.sent, req.Kind)
	m.mu.Unlock()
	return m.Called(req.Kind).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, ev models.NotificationEvent) error {
	return m.Called(ev.Category).Error(0)
}

func TestDispatchDeliversEverything(t *testing.T) {
	proc := &mockProcess{}
	proc.On("Publish", models.RequestStepCompletion).Return(nil)
	proc.On("Publish", models.RequestManagerApproval).Return(nil)
	notifier := &mockNotifier{}
	notifier.On("Notify", models.CategoryStepAdvanced).Return(nil)
	notifier.On("Notify", models.CategoryDecisionRecorded).Return(nil)

	d := New(proc, notifier, time.Second, logger.NewTestLogger(t))
	d.Dispatch(&service.Outcome{
		Notifications: []models.NotificationEvent{
			{Category: models.CategoryStepAdvanced, RecipientIDs: []string{"r1"}},
			{Category: models.CategoryDecisionRecorded, RecipientIDs: []string{"a1"}},
		},
		WorkflowRequests: []models.WorkflowEngineRequest{
			{BusinessKey: "app-1", Kind: models.RequestStepCompletion},
			{BusinessKey: "app-1", Kind: models.RequestManagerApproval},
		},
	})
	d.Wait()

	proc.AssertExpectations(t)
	notifier.AssertExpectations(t)
	assert.Equal(t, []models.WorkflowRequestKind{models.RequestStepCompletion, models.RequestManagerApproval}, proc.sent)
}

func TestDispatchFailuresDoNotRetry(t *testing.T) {
	proc := &mockProcess{}
	proc.On("Publish", models.RequestResubmission).Return(errors.New("unavailable"))
	notifier := &mockNotifier{}
	notifier.On("Notify", models.CategoryAmendmentsResubmitted).Return(errors.New("ses throttled"))

	d := New(proc, notifier, time.Second, logger.NewTestLogger(t))
	d.Dispatch(&service.Outcome{
		Notifications:    []models.NotificationEvent{{Category: models.CategoryAmendmentsResubmitted}},
		WorkflowRequests: []models.WorkflowEngineRequest{{BusinessKey: "app-1", Kind: models.RequestResubmission}},
	})
	d.Wait()

	assert.Len(t, proc.sent, 1)
	proc.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDispatchWithoutCollaborators(t *testing.T) {
	d := New(nil, nil, 0, logger.NewNoOpLogger())
	d.Dispatch(&service.Outcome{
		Notifications:    []models.NotificationEvent{{Category: models.CategoryReviewStarted}},
		WorkflowRequests: []models.WorkflowEngineRequest{{Kind: models.RequestInitialSubmission}},
	})
	d.Dispatch(nil)
	d.Wait()
}
