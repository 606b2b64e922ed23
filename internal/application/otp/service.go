package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-guild-bot/internal/domain"
	"github.com/go-guild-bot/internal/pkg/id"
)

// Repo is the minimal interface the registry requires from the OTP store.
type Repo interface {
	Put(ctx context.Context, o *domain.OTP) error
	FindUnusedByCode(ctx context.Context, code string) (*domain.OTP, error)
	MarkUsed(ctx context.Context, otpID string) error
}

// Service is the OTP registry: it issues one-time codes for out-of-band
// delivery and redeems them at most once each.
type Service interface {
	Issue(ctx context.Context, subjectID string) (string, error)
	Redeem(ctx context.Context, code string) (*domain.OTP, error)
}

type service struct {
	repo Repo
}

func NewService(repo Repo) Service {
	return &service{repo: repo}
}

// Issue generates a 6-digit code for subjectID and stores the unused
// record. Issuing does not revoke earlier unused codes for the same
// subject; exclusivity is only enforced per record at redemption.
func (s *service) Issue(ctx context.Context, subjectID string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64()+100000)

	o := &domain.OTP{
		OTPID:     id.New(),
		SubjectID: subjectID,
		Code:      code,
		Used:      false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Put(ctx, o); err != nil {
		return "", err
	}
	return code, nil
}

// Redeem finds an unused record for code and marks it used. The lookup
// and the mark are not one round trip, but MarkUsed is conditional on
// used still being false, so two concurrent redemptions of the same
// record resolve to exactly one winner; the loser gets ErrNotFound, the
// same answer a wrong or never-issued code gets.
func (s *service) Redeem(ctx context.Context, code string) (*domain.OTP, error) {
	o, err := s.repo.FindUnusedByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkUsed(ctx, o.OTPID); err != nil {
		return nil, err
	}
	o.Used = true
	return o, nil
}
