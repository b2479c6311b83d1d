package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-gateway/pkg/db"
	"github.com/angelmondragon/storefront-gateway/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLBackend persists session state in the client_state table (postgres or sqlite).
type SQLBackend struct {
	client *db.Client
	now    func() time.Time
}

func NewSQLBackend(client *db.Client) (*SQLBackend, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	return &SQLBackend{client: client, now: time.Now}, nil
}

func (s *SQLBackend) Get(ctx context.Context, sessionID, key string) (string, error) {
	var row models.ClientState
	err := s.client.DB().WithContext(ctx).
		Where("session_id = ? AND state_key = ?", sessionID, key).
		Where("expires_at IS NULL OR expires_at > ?", s.now().UTC()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func (s *SQLBackend) Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error {
	row := s.row(sessionID, key, value, ttl)
	return s.client.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

// errClaimHeld aborts the claim transaction when a live row already holds the key.
var errClaimHeld = errors.New("state key already claimed")

// SetNX clears an expired holder and inserts in one transaction so a stale claim never blocks
// a new one and two racing claims cannot both win.
func (s *SQLBackend) SetNX(ctx context.Context, sessionID, key, value string, ttl time.Duration) (bool, error) {
	row := s.row(sessionID, key, value, ttl)
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.
			Where("session_id = ? AND state_key = ? AND expires_at IS NOT NULL AND expires_at <= ?", sessionID, key, row.UpdatedAt).
			Delete(&models.ClientState{}).Error; err != nil {
			return err
		}
		err := tx.Create(&row).Error
		if db.IsUniqueViolation(err, "") {
			return errClaimHeld
		}
		return err
	})
	if errors.Is(err, errClaimHeld) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLBackend) Del(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.DB().WithContext(ctx).
		Where("session_id = ? AND state_key IN ?", sessionID, keys).
		Delete(&models.ClientState{}).Error
}

func (s *SQLBackend) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SQLBackend) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.client.DB().WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
		Delete(&models.ClientState{})
	return res.RowsAffected, res.Error
}

func (s *SQLBackend) row(sessionID, key, value string, ttl time.Duration) models.ClientState {
	now := s.now().UTC()
	row := models.ClientState{
		SessionID: sessionID,
		StateKey:  key,
		Value:     value,
		UpdatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		row.ExpiresAt = &exp
	}
	return row
}
