package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safebite/server/internal/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresStore backs the quota ledger and the entitlement cache with one
// row per user+feature and one entitlement row per user.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connectionString)))

	db := bun.NewDB(sqldb, pgdialect.New())

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	store := &PostgresStore{db: db}

	ctx := context.Background()
	if err := store.InitializeDatabase(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// NewPostgresStoreWithDB wraps an existing bun handle (shared with the user
// repository) without re-running initialization.
func NewPostgresStoreWithDB(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InitializeDatabase(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*models.FeatureQuotaDB)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create feature_quotas table: %w", err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*models.FeatureQuotaDB)(nil)).
		Index("idx_feature_quotas_user_feature").
		Unique().
		Column("user_id", "feature_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create user_feature index: %w", err)
	}

	_, err = s.db.NewCreateTable().
		Model((*models.EntitlementDB)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create entitlements table: %w", err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*models.EntitlementDB)(nil)).
		Index("idx_entitlements_last_verified_at").
		Column("last_verified_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create last_verified_at index: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetQuota(ctx context.Context, userID string, featureID models.FeatureID) (*models.FeatureQuota, error) {
	quotaDB := new(models.FeatureQuotaDB)
	err := s.db.NewSelect().
		Model(quotaDB).
		Where("user_id = ?", userID).
		Where("feature_id = ?", string(featureID)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return quotaDB.ToFeatureQuota(), nil
}

func (s *PostgresStore) SaveQuota(ctx context.Context, userID string, quota *models.FeatureQuota) error {
	quotaDB := models.FeatureQuotaFromDomain(userID, quota)
	quotaDB.UpdatedAt = time.Now()
	_, err := s.db.NewInsert().
		Model(quotaDB).
		On("CONFLICT (user_id, feature_id) DO UPDATE").
		Set("used = EXCLUDED.used").
		Set("window_start = EXCLUDED.window_start").
		Set("window_length_sec = EXCLUDED.window_length_sec").
		Set("schema_version = EXCLUDED.schema_version").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *PostgresStore) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	entDB := new(models.EntitlementDB)
	err := s.db.NewSelect().
		Model(entDB).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entDB.ToEntitlement(), nil
}

func (s *PostgresStore) SaveEntitlement(ctx context.Context, userID string, ent *models.Entitlement) error {
	entDB := models.EntitlementFromDomain(userID, ent)
	entDB.UpdatedAt = time.Now()
	_, err := s.db.NewInsert().
		Model(entDB).
		On("CONFLICT (user_id) DO UPDATE").
		Set("is_premium = EXCLUDED.is_premium").
		Set("tier = EXCLUDED.tier").
		Set("expires_at = EXCLUDED.expires_at").
		Set("source = EXCLUDED.source").
		Set("last_verified_at = EXCLUDED.last_verified_at").
		Set("schema_version = EXCLUDED.schema_version").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ResetUser removes all quota and entitlement rows for a user, for account
// sign-out and plan changes.
func (s *PostgresStore) ResetUser(ctx context.Context, userID string) error {
	if _, err := s.db.NewDelete().
		Model((*models.FeatureQuotaDB)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset quotas: %w", err)
	}
	if _, err := s.db.NewDelete().
		Model((*models.EntitlementDB)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset entitlement: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
