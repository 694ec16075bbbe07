package user

import (
	"context"

	"github.com/safebite/server/internal/billing"
	"github.com/safebite/server/internal/models"
)

type Service interface {
	GetOrCreate(ctx context.Context, userID, email, firstName, lastName, timezone string) (*models.User, error)
	SignOut(ctx context.Context, userID string) error
}

// EntitlementResetter clears persisted per-user entitlement/quota state when
// an account signs out. Implemented by the backing store.
type EntitlementResetter interface {
	ResetUser(ctx context.Context, userID string) error
}

// SnapshotResetter drops the in-memory entitlement snapshot alongside the
// persisted rows. Implemented by the entitlement cache.
type SnapshotResetter interface {
	Reset(userID string)
}

type UserService struct {
	repo      Repository
	billing   *billing.Billing
	resetter  EntitlementResetter
	snapshots SnapshotResetter
}

func NewUserService(repo Repository, billing *billing.Billing, resetter EntitlementResetter, snapshots SnapshotResetter) *UserService {
	return &UserService{
		repo:      repo,
		billing:   billing,
		resetter:  resetter,
		snapshots: snapshots,
	}
}

func (s *UserService) GetOrCreate(ctx context.Context, userID, email, firstName, lastName, timezone string) (*models.User, error) {
	user, err := s.repo.GetOrCreate(ctx, userID, email, firstName, lastName, timezone)
	if err != nil {
		return nil, err
	}

	if user.StripeCustomerID == nil {
		customer, err := s.billing.CreateCustomer(ctx, userID, email)
		if err != nil {
			return nil, err
		}
		if err := s.repo.UpdateStripeCustomerID(ctx, userID, customer.ID); err != nil {
			return nil, err
		}
		user.StripeCustomerID = &customer.ID
	}

	return user, nil
}

// SignOut resets all locally held entitlement and quota state for the user.
// The billing provider's record is untouched: a later restore rebuilds the
// entitlement from truth.
func (s *UserService) SignOut(ctx context.Context, userID string) error {
	if s.snapshots != nil {
		s.snapshots.Reset(userID)
	}
	if s.resetter == nil {
		return nil
	}
	return s.resetter.ResetUser(ctx, userID)
}
