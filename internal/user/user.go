package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/safebite/server/internal/models"
	"github.com/uptrace/bun"
)

type Repository interface {
	InitializeDatabase(ctx context.Context) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	GetOrCreate(ctx context.Context, userID, email, firstName, lastName, timezone string) (*models.User, error)
	UpdateStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error
	StripeCustomerID(ctx context.Context, userID string) (string, error)
	TrialAnchor(ctx context.Context, userID string) (time.Time, string, error)
	Delete(ctx context.Context, userID string) error
}

type UserRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) InitializeDatabase(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*models.UserDB)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = r.db.NewCreateIndex().
		Model((*models.UserDB)(nil)).
		Index("idx_users_email").
		Column("email").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = r.db.NewCreateIndex().
		Model((*models.UserDB)(nil)).
		Index("idx_users_stripe_customer_id").
		Column("stripe_customer_id").
		IfNotExists().
		Exec(ctx)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return userDB.ToUser(), nil
}

func (r *UserRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.User, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Where("stripe_customer_id = ?", stripeCustomerID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return userDB.ToUser(), nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	userDB := models.UserFromDomain(user)
	userDB.CreatedAt = time.Now()
	userDB.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(userDB).Exec(ctx)
	return err
}

// GetOrCreate provisions a user on first sight. The trial anchor is issued
// here, server-side, and never moves afterwards: the client-supplied
// timezone is captured once so trial days stay stable for traveling users.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID, email, firstName, lastName, timezone string) (*models.User, error) {
	user, err := r.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if timezone == "" {
		timezone = "UTC"
	}
	newUser := &models.User{
		ID:             userID,
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		TrialStartedAt: time.Now().UTC(),
		TrialTimezone:  timezone,
	}

	if err := r.createIfAbsent(ctx, newUser); err != nil {
		return nil, err
	}

	// Two requests can first-sight the same user at once. Re-read after the
	// insert so both callers get the row that actually won, anchor intact.
	return r.GetByID(ctx, userID)
}

func (r *UserRepository) createIfAbsent(ctx context.Context, user *models.User) error {
	userDB := models.UserFromDomain(user)
	userDB.CreatedAt = time.Now()
	userDB.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(userDB).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

func (r *UserRepository) UpdateStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.UserDB)(nil)).
		Set("stripe_customer_id = ?", stripeCustomerID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

// StripeCustomerID implements billing.CustomerResolver. A user without a
// provisioned customer resolves to "" rather than an error.
func (r *UserRepository) StripeCustomerID(ctx context.Context, userID string) (string, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Column("stripe_customer_id").
		Where("id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if userDB.StripeCustomerID == nil {
		return "", nil
	}
	return *userDB.StripeCustomerID, nil
}

func (r *UserRepository) TrialAnchor(ctx context.Context, userID string) (time.Time, string, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Column("trial_started_at", "trial_timezone").
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		return time.Time{}, "", err
	}
	return userDB.TrialStartedAt, userDB.TrialTimezone, nil
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.NewDelete().
		Model((*models.UserDB)(nil)).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}
