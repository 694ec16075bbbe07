package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SchemaVersion is stamped on every persisted entitlement/quota row.
// Unknown feature rows read back under a newer version default to used=0
// at the currently configured limit, so adding feature types is not a
// destructive migration.
const SchemaVersion = 1

type UserDB struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               string    `bun:"id,pk" json:"id"`
	Email            string    `bun:"email,notnull" json:"email"`
	FirstName        string    `bun:"first_name" json:"first_name"`
	LastName         string    `bun:"last_name" json:"last_name"`
	StripeCustomerID *string   `bun:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	TrialStartedAt   time.Time `bun:"trial_started_at,notnull" json:"trial_started_at"`
	TrialTimezone    string    `bun:"trial_timezone,notnull,default:'UTC'" json:"trial_timezone"`
	SchemaVersion    int       `bun:"schema_version,notnull,default:1" json:"schema_version"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *UserDB) ToUser() *User {
	return &User{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		StripeCustomerID: u.StripeCustomerID,
		TrialStartedAt:   u.TrialStartedAt,
		TrialTimezone:    u.TrialTimezone,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func UserFromDomain(u *User) *UserDB {
	return &UserDB{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		StripeCustomerID: u.StripeCustomerID,
		TrialStartedAt:   u.TrialStartedAt,
		TrialTimezone:    u.TrialTimezone,
		SchemaVersion:    SchemaVersion,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

type FeatureQuotaDB struct {
	bun.BaseModel `bun:"table:feature_quotas,alias:fq"`

	ID              uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	UserID          string    `bun:"user_id,notnull,unique:user_feature" json:"user_id"`
	FeatureID       string    `bun:"feature_id,notnull,unique:user_feature" json:"feature_id"`
	Used            int64     `bun:"used,notnull,default:0" json:"used"`
	WindowStart     time.Time `bun:"window_start,notnull" json:"window_start"`
	WindowLengthSec int64     `bun:"window_length_sec,notnull" json:"window_length_sec"`
	SchemaVersion   int       `bun:"schema_version,notnull,default:1" json:"schema_version"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (q *FeatureQuotaDB) ToFeatureQuota() *FeatureQuota {
	return &FeatureQuota{
		FeatureID:    FeatureID(q.FeatureID),
		Used:         q.Used,
		WindowStart:  q.WindowStart,
		WindowLength: time.Duration(q.WindowLengthSec) * time.Second,
	}
}

func FeatureQuotaFromDomain(userID string, q *FeatureQuota) *FeatureQuotaDB {
	return &FeatureQuotaDB{
		ID:              uuid.New(),
		UserID:          userID,
		FeatureID:       string(q.FeatureID),
		Used:            q.Used,
		WindowStart:     q.WindowStart,
		WindowLengthSec: int64(q.WindowLength / time.Second),
		SchemaVersion:   SchemaVersion,
	}
}

type EntitlementDB struct {
	bun.BaseModel `bun:"table:entitlements,alias:e"`

	UserID         string     `bun:"user_id,pk" json:"user_id"`
	IsPremium      bool       `bun:"is_premium,notnull,default:false" json:"is_premium"`
	Tier           string     `bun:"tier,notnull,default:'none'" json:"tier"`
	ExpiresAt      *time.Time `bun:"expires_at" json:"expires_at,omitempty"`
	Source         string     `bun:"source,notnull" json:"source"`
	LastVerifiedAt time.Time  `bun:"last_verified_at,notnull" json:"last_verified_at"`
	SchemaVersion  int        `bun:"schema_version,notnull,default:1" json:"schema_version"`
	CreatedAt      time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (e *EntitlementDB) ToEntitlement() *Entitlement {
	return &Entitlement{
		IsPremium:      e.IsPremium,
		Tier:           Tier(e.Tier),
		ExpiresAt:      e.ExpiresAt,
		Source:         EntitlementSource(e.Source),
		LastVerifiedAt: e.LastVerifiedAt,
	}
}

func EntitlementFromDomain(userID string, ent *Entitlement) *EntitlementDB {
	return &EntitlementDB{
		UserID:         userID,
		IsPremium:      ent.IsPremium,
		Tier:           string(ent.Tier),
		ExpiresAt:      ent.ExpiresAt,
		Source:         string(ent.Source),
		LastVerifiedAt: ent.LastVerifiedAt,
		SchemaVersion:  SchemaVersion,
	}
}
