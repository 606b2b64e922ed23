package otp

import (
	"context"
	"errors"
	"testing"

	"github.com/go-guild-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Put(ctx context.Context, o *domain.OTP) error {
	return m.Called(ctx, o).Error(0)
}
func (m *mockRepo) FindUnusedByCode(ctx context.Context, code string) (*domain.OTP, error) {
	args := m.Called(ctx, code)
	if o, _ := args.Get(0).(*domain.OTP); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRepo) MarkUsed(ctx context.Context, otpID string) error {
	return m.Called(ctx, otpID).Error(0)
}

// --- tests ---

func TestIssue_StoresSixDigitCode(t *testing.T) {
	repo := new(mockRepo)
	var stored *domain.OTP
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.OTP")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OTP) }).
		Return(nil)

	code, err := NewService(repo).Issue(context.Background(), "member-1")
	require.NoError(t, err)

	assert.Len(t, code, 6)
	assert.Regexp(t, `^[1-9]\d{5}$`, code)
	require.NotNil(t, stored)
	assert.Equal(t, code, stored.Code)
	assert.Equal(t, "member-1", stored.SubjectID)
	assert.False(t, stored.Used)
	assert.NotEmpty(t, stored.OTPID)
	repo.AssertExpectations(t)
}

func TestRedeem_MarksRecordUsed(t *testing.T) {
	repo := new(mockRepo)
	rec := &domain.OTP{OTPID: "otp-1", SubjectID: "member-1", Code: "123456"}
	repo.On("FindUnusedByCode", mock.Anything, "123456").Return(rec, nil)
	repo.On("MarkUsed", mock.Anything, "otp-1").Return(nil)

	got, err := NewService(repo).Redeem(context.Background(), "123456")
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.Equal(t, "member-1", got.SubjectID)
	repo.AssertExpectations(t)
}

func TestRedeem_UnknownCode_NotFound(t *testing.T) {
	repo := new(mockRepo)
	repo.On("FindUnusedByCode", mock.Anything, "999999").Return(nil, domain.ErrNotFound)

	_, err := NewService(repo).Redeem(context.Background(), "999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// The store rejects the conditional mark when another caller already
// redeemed the record: the loser must see the same NotFound a bad code
// gets, with no hint the code ever existed.
func TestRedeem_LostRace_NotFound(t *testing.T) {
	repo := new(mockRepo)
	rec := &domain.OTP{OTPID: "otp-1", Code: "123456"}
	repo.On("FindUnusedByCode", mock.Anything, "123456").Return(rec, nil)
	repo.On("MarkUsed", mock.Anything, "otp-1").Return(domain.ErrNotFound)

	_, err := NewService(repo).Redeem(context.Background(), "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedeem_StoreFailure_Propagates(t *testing.T) {
	repo := new(mockRepo)
	boom := errors.New("dynamo unavailable")
	repo.On("FindUnusedByCode", mock.Anything, "123456").Return(nil, boom)

	_, err := NewService(repo).Redeem(context.Background(), "123456")
	assert.ErrorIs(t, err, boom)
}
