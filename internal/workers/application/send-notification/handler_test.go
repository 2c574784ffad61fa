// internal/workers/application/send-notification/handler_test.go
package sendnotification

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "dar-workers/internal/common/errors"
	"dar-workers/internal/common/logger"
	"dar-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         []*ses.SendEmailInput
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.SendEmailFunc == nil {
		return &ses.SendEmailOutput{}, nil
	}
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.PublishFunc == nil {
		return &sns.PublishOutput{}, nil
	}
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// Test Helper Functions
// ==========================

const contactQuery = `SELECT email, phone FROM user_contacts WHERE user_id = $1`

func createTestConfig() *Config {
	return &Config{
		EmailEnabled:    true,
		SMSEnabled:      true,
		FromEmail:       "dar-noreply@example.org",
		SMSCategories:   []string{string(models.CategoryDeadlinePassed)},
		ContactCacheTTL: time.Minute,
		Timeout:         30 * time.Second,
	}
}

type fixture struct {
	handler *Handler
	mock    sqlmock.Sqlmock
	ses     *MockSESService
	sns     *MockSNSService
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T, cfg *Config) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := &fixture{mock: mock, ses: &MockSESService{}, sns: &MockSNSService{}, redis: mr}
	f.handler = NewHandler(cfg, db, rdb, f.ses, f.sns, nil, logger.NewTestLogger(t))
	return f
}

func (f *fixture) expectContact(userID, email, phone string) {
	f.mock.ExpectQuery(regexp.QuoteMeta(contactQuery)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"email", "phone"}).AddRow(email, phone))
}

func (f *fixture) expectRecord(userID, category, channel, status string) {
	f.mock.ExpectExec("INSERT INTO notifications").
		WithArgs(sqlmock.AnyArg(), userID, category, channel, status, "app-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestExecute_EmailAndSMSForConfiguredCategory(t *testing.T) {
	f := newFixture(t, createTestConfig())
	f.expectContact("manager-1", "manager@example.org", "+447700900000")
	f.expectRecord("manager-1", "deadlinePassed", ChannelEmail, StatusSent)
	f.expectRecord("manager-1", "deadlinePassed", ChannelSMS, StatusSent)

	out, err := f.handler.Execute(context.Background(), &Input{
		RecipientIDs:  []string{"manager-1"},
		Category:      string(models.CategoryDeadlinePassed),
		Message:       "The deadline for Panel has passed",
		ApplicationID: "app-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.Status)
	assert.Len(t, out.NotificationIDs, 2)

	require.Len(t, f.ses.calls, 1)
	assert.Equal(t, []string{"manager@example.org"}, f.ses.calls[0].Destination.ToAddresses)
	assert.Equal(t, "Review deadline passed", *f.ses.calls[0].Message.Subject.Data)
	assert.Equal(t, "The deadline for Panel has passed", *f.ses.calls[0].Message.Body.Text.Data)
	require.Len(t, f.sns.calls, 1)
	assert.Equal(t, "+447700900000", *f.sns.calls[0].PhoneNumber)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestExecute_NoSMSForOtherCategories(t *testing.T) {
	f := newFixture(t, createTestConfig())
	f.expectContact("applicant-1", "applicant@example.org", "+447700900001")
	f.expectRecord("applicant-1", "amendmentsReturned", ChannelEmail, StatusSent)

	out, err := f.handler.Execute(context.Background(), &Input{
		RecipientIDs:  []string{"applicant-1"},
		Category:      string(models.CategoryAmendmentsReturned),
		ApplicationID: "app-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.Status)
	assert.Empty(t, f.sns.calls)
	require.Len(t, f.ses.calls, 1)
	assert.Equal(t, "Changes requested on application app-1", *f.ses.calls[0].Message.Subject.Data)
}

func TestExecute_ContactCachedAfterFirstLookup(t *testing.T) {
	f := newFixture(t, createTestConfig())
	f.expectContact("reviewer-1", "reviewer@example.org", "")
	f.expectRecord("reviewer-1", "reviewStarted", ChannelEmail, StatusSent)
	f.expectRecord("reviewer-1", "reviewStarted", ChannelEmail, StatusSent)

	input := &Input{
		RecipientIDs:  []string{"reviewer-1"},
		Category:      string(models.CategoryReviewStarted),
		ApplicationID: "app-1",
	}
	_, err := f.handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, f.redis.Exists(contactKeyPrefix+"reviewer-1"))

	_, err = f.handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Len(t, f.ses.calls, 2)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestExecute_UnknownRecipientIsSkipped(t *testing.T) {
	f := newFixture(t, createTestConfig())
	f.mock.ExpectQuery(regexp.QuoteMeta(contactQuery)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	out, err := f.handler.Execute(context.Background(), &Input{
		RecipientIDs:  []string{"ghost"},
		Category:      string(models.CategoryDecisionRecorded),
		ApplicationID: "app-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, out.Status)
	assert.Empty(t, f.ses.calls)
}

func TestExecute_AllDeliveriesFailing(t *testing.T) {
	f := newFixture(t, createTestConfig())
	f.ses.SendEmailFunc = func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, errors.New("throttled")
	}
	f.expectContact("manager-1", "manager@example.org", "")
	f.expectRecord("manager-1", "stepOverride", ChannelEmail, StatusFailed)

	_, err := f.handler.Execute(context.Background(), &Input{
		RecipientIDs:  []string{"manager-1"},
		Category:      string(models.CategoryStepOverride),
		ApplicationID: "app-1",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.CodeOf(err))
}

func TestExecute_PartialDelivery(t *testing.T) {
	f := newFixture(t, createTestConfig())
	f.ses.SendEmailFunc = func(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		if in.Destination.ToAddresses[0] == "bad@example.org" {
			return nil, errors.New("rejected")
		}
		return &ses.SendEmailOutput{}, nil
	}
	f.expectContact("manager-1", "bad@example.org", "")
	f.expectRecord("manager-1", "finalDecisionRequired", ChannelEmail, StatusFailed)
	f.expectContact("manager-2", "good@example.org", "")
	f.expectRecord("manager-2", "finalDecisionRequired", ChannelEmail, StatusSent)

	out, err := f.handler.Execute(context.Background(), &Input{
		RecipientIDs:  []string{"manager-1", "manager-2"},
		Category:      string(models.CategoryFinalDecisionRequired),
		ApplicationID: "app-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, out.Status)
	assert.Len(t, out.NotificationIDs, 1)
}

func TestExecute_DisabledChannels(t *testing.T) {
	cfg := createTestConfig()
	cfg.EmailEnabled = false
	cfg.SMSEnabled = false
	f := newFixture(t, cfg)
	f.expectContact("manager-1", "manager@example.org", "+447700900000")

	out, err := f.handler.Execute(context.Background(), &Input{
		RecipientIDs:  []string{"manager-1"},
		Category:      string(models.CategoryDeadlinePassed),
		ApplicationID: "app-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, out.Status)
	assert.Empty(t, f.ses.calls)
	assert.Empty(t, f.sns.calls)
}

func TestExecute_UnknownCategory(t *testing.T) {
	f := newFixture(t, createTestConfig())

	_, err := f.handler.Execute(context.Background(), &Input{RecipientIDs: []string{"u"}, Category: "marketing"})
	assert.Equal(t, apperrors.ErrCodeInvalidJobInput, apperrors.CodeOf(err))
}

func TestNotifyMapsEvent(t *testing.T) {
	f := newFixture(t, createTestConfig())
	f.expectContact("applicant-1", "applicant@example.org", "")
	f.expectRecord("applicant-1", "applicationWithdrawn", ChannelEmail, StatusSent)

	err := f.handler.Notify(context.Background(), models.NotificationEvent{
		RecipientIDs: []string{"applicant-1"},
		Category:     models.CategoryApplicationWithdrawn,
		Message:      "withdrawn",
		RelatedID:    "app-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "withdrawn", *f.ses.calls[0].Message.Body.Text.Data)
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data map[string]interface{}
		want string
	}{
		{"substitutes", "Application {{applicationId}} submitted", map[string]interface{}{"applicationId": "app-9"}, "Application app-9 submitted"},
		{"drops missing", "Step {{stepName}} started", nil, "Step started"},
		{"formats numbers", "Version {{version}}", map[string]interface{}{"version": 2}, "Version 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderTemplate(tt.tmpl, tt.data))
		})
	}
}

func TestEveryCategoryHasTemplate(t *testing.T) {
	templates := loadTemplates()
	for _, c := range []models.NotificationCategory{
		models.CategoryApplicationSubmitted, models.CategoryAmendmentsReturned,
		models.CategoryAmendmentsResubmitted, models.CategoryReviewStarted,
		models.CategoryStepAdvanced, models.CategoryFinalDecisionRequired,
		models.CategoryDeadlineApproaching, models.CategoryDeadlinePassed,
		models.CategoryStepOverride, models.CategoryDecisionRecorded,
		models.CategoryApplicationWithdrawn,
	} {
		_, ok := templates[string(c)]
		assert.True(t, ok, string(c))
	}
}
