// Package store provides the reference host.Store over gorm.io/gorm, with
// postgres for production and sqlite for tests — the same driver split the
// teacher's clearnode uses (gorm.io/driver/postgres, gorm.io/driver/sqlite),
// and shopspring/decimal for on-disk amounts, mirroring Channel.RawAmount in
// the teacher's channel.go.
package store

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chanlattice/installproto/middleware"
)

//go:embed migrations/postgres/*.sql
var embedMigrations embed.FS

// PersistedAppInstance is the "Persisted commitment record" of spec §6,
// keyed by (multisigAddress, appIdentityHash, versionNumber).
type PersistedAppInstance struct {
	MultisigAddress string `gorm:"column:multisig_address;primaryKey"`
	AppIdentityHash string `gorm:"column:app_identity_hash;primaryKey"`
	VersionNumber   uint64 `gorm:"column:version_number;primaryKey"`

	Type             uint8           `gorm:"column:type;not null"`
	ChannelSnapshot  string          `gorm:"column:channel_snapshot;type:text;not null"`
	AppInstanceJSON  string          `gorm:"column:app_instance_json;type:text;not null"`
	FreeBalanceTotal decimal.Decimal `gorm:"column:free_balance_total;type:varchar(78)"`
	CommitmentHash   string          `gorm:"column:commitment_hash;not null"`
	SignatureOwner0  string          `gorm:"column:signature_owner0"`
	SignatureOwner1  string          `gorm:"column:signature_owner1"`
	CreatedAt        time.Time
}

func (PersistedAppInstance) TableName() string { return "install_commitments" }

// Connect opens a gorm DB. dsn prefixed with "sqlite://" opens an on-disk (or
// ":memory:") sqlite database for tests, migrated via gorm.AutoMigrate;
// anything else is handed to the postgres driver and migrated with
// versioned goose SQL files, mirroring the teacher's ConnectToDB
// DSN-sniffing and its sqlite-AutoMigrate / postgres-goose split.
func Connect(dsn string) (*gorm.DB, error) {
	const sqlitePrefix = "sqlite://"
	if len(dsn) >= len(sqlitePrefix) && dsn[:len(sqlitePrefix)] == sqlitePrefix {
		path := dsn[len(sqlitePrefix):]
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		if err := db.AutoMigrate(&PersistedAppInstance{}); err != nil {
			return nil, fmt.Errorf("store: automigrate sqlite: %w", err)
		}
		return db, nil
	}

	if err := migratePostgres(dsn); err != nil {
		return nil, fmt.Errorf("store: migrate postgres: %w", err)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return db, nil
}

func migratePostgres(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	goose.SetBaseFS(embedMigrations)
	return goose.Up(sqlDB, "migrations/postgres")
}

// Store is the reference host.Store.
type Store struct {
	db *gorm.DB
}

// New wraps an already-connected *gorm.DB.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// PersistAppInstance implements host.Store. It stores only
// PersistCreateInstance requests, the one type this core emits, and returns
// an error for PersistUpdateInstance/PersistRemoveInstance/PersistReject.
func (s *Store) PersistAppInstance(ctx context.Context, req middleware.PersistRequest) error {
	if req.Type != middleware.PersistCreateInstance {
		return fmt.Errorf("store: unsupported persist type %d for install protocol", req.Type)
	}

	channelJSON, err := json.Marshal(req.Channel)
	if err != nil {
		return fmt.Errorf("store: marshal channel: %w", err)
	}
	appJSON, err := json.Marshal(req.AppInstance)
	if err != nil {
		return fmt.Errorf("store: marshal app instance: %w", err)
	}

	total := decimal.NewFromBigInt(new(big.Int).Add(req.AppInstance.InitiatorDeposit, req.AppInstance.ResponderDeposit), 0)

	rec := PersistedAppInstance{
		MultisigAddress:  req.Channel.MultisigAddress.Hex(),
		AppIdentityHash:  req.AppInstance.IdentityHash.Hex(),
		VersionNumber:    req.Channel.FreeBalance.LatestVersionNumber,
		Type:             uint8(req.Type),
		ChannelSnapshot:  string(channelJSON),
		AppInstanceJSON:  string(appJSON),
		FreeBalanceTotal: total,
		CommitmentHash:   req.Commitment.StateHash.Hex(),
	}
	if req.Commitment.Signatures[0] != nil {
		rec.SignatureOwner0 = req.Commitment.Signatures[0].String()
	}
	if req.Commitment.Signatures[1] != nil {
		rec.SignatureOwner1 = req.Commitment.Signatures[1].String()
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("store: persist app instance: %w", err)
	}
	return nil
}
