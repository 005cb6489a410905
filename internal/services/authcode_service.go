package services

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	authCodeLength      = 6
	authCodeTTL         = 15 * time.Minute
	authCodeMaxAttempts = 10
)

var authCodePattern = regexp.MustCompile(`^\d{6}$`)

// AuthCodeRepository is the storage contract of the code issuer/verifier.
type AuthCodeRepository interface {
	CreateAuthCode(ctx context.Context, code *models.AuthCode) error
	FindPendingAuthCode(ctx context.Context, code string) (*models.AuthCode, error)
	UpdateAuthCodeStatus(ctx context.Context, id primitive.ObjectID, status models.AuthCodeStatus, usedAt *time.Time) error
	BindAuthCodeAccount(ctx context.Context, id primitive.ObjectID, accountID string) error
}

// AuthCodeService issues short-lived single-use numeric codes that bridge a
// chat participant into the external account-linking flow.
type AuthCodeService struct {
	repo AuthCodeRepository
	now  func() time.Time

	issueMu sync.Mutex
}

func NewAuthCodeService(repo AuthCodeRepository) *AuthCodeService {
	return &AuthCodeService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// IssueRequest carries the optional bindings an operator sets at issuance.
type IssueRequest struct {
	OperatorID     string
	AccountID      string
	GuestToken     string
	ConversationID *primitive.ObjectID
	DeviceInfo     string
}

// Issue generates a code unique among pending codes, retrying on collision up
// to a fixed bound. An exhausted bound fails the issuance rather than handing
// out a colliding code.
func (s *AuthCodeService) Issue(ctx context.Context, req IssueRequest) (*models.AuthCode, error) {
	if req.OperatorID == "" {
		return nil, fmt.Errorf("%w: issuing operator required", models.ErrValidation)
	}

	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	now := s.now()
	for attempt := 0; attempt < authCodeMaxAttempts; attempt++ {
		candidate := generateNumericCode(authCodeLength)
		_, err := s.repo.FindPendingAuthCode(ctx, candidate)
		if err == nil {
			continue // collision with a pending code
		}
		if err != models.ErrNotFound {
			return nil, err
		}

		code := &models.AuthCode{
			Code:           candidate,
			OperatorID:     req.OperatorID,
			AccountID:      req.AccountID,
			GuestToken:     req.GuestToken,
			ConversationID: req.ConversationID,
			Status:         models.CodePending,
			ExpiresAt:      now.Add(authCodeTTL),
			DeviceInfo:     req.DeviceInfo,
			CreatedAt:      now,
		}
		if err := s.repo.CreateAuthCode(ctx, code); err != nil {
			return nil, err
		}
		return code, nil
	}
	return nil, fmt.Errorf("%w: could not generate a unique code", models.ErrExhausted)
}

// Verify consumes a pending code. Every failure path reports the same
// ErrNotFound so callers cannot distinguish missing, expired, spent or
// foreign codes and mine the endpoint for valid ones. A claimed identity
// that does not match a binding set at issuance fails without mutating the
// code; a claimed account id is backfilled when no account was bound yet.
func (s *AuthCodeService) Verify(ctx context.Context, code, claimedAccountID, claimedGuestToken string) (*models.AuthCode, error) {
	if !authCodePattern.MatchString(code) {
		return nil, models.ErrNotFound
	}

	ac, err := s.repo.FindPendingAuthCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !now.Before(ac.ExpiresAt) {
		if err := s.repo.UpdateAuthCodeStatus(ctx, ac.ID, models.CodeExpired, nil); err != nil {
			return nil, err
		}
		return nil, models.ErrNotFound
	}

	if ac.AccountID != "" && ac.AccountID != claimedAccountID {
		return nil, models.ErrNotFound
	}
	if ac.GuestToken != "" && ac.GuestToken != claimedGuestToken {
		return nil, models.ErrNotFound
	}

	usedAt := now
	if err := s.repo.UpdateAuthCodeStatus(ctx, ac.ID, models.CodeUsed, &usedAt); err != nil {
		return nil, err
	}
	ac.Status = models.CodeUsed
	ac.UsedAt = &usedAt

	if ac.AccountID == "" && claimedAccountID != "" {
		if err := s.repo.BindAuthCodeAccount(ctx, ac.ID, claimedAccountID); err != nil {
			return nil, err
		}
		ac.AccountID = claimedAccountID
	}
	return ac, nil
}

func generateNumericCode(length int) string {
	const digits = "0123456789"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = digits[seededRand.Intn(len(digits))]
	}
	return string(b)
}
