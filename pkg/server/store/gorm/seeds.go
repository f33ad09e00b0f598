package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/sealed"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

// Ensure SeedStore implements store.SeedStore
var _ store.SeedStore = (*SeedStore)(nil)

// SeedStore implements store.SeedStore using GORM. Seeds are sealed with the
// data-key cipher by the model hooks.
type SeedStore struct {
	db     *gorm.DB
	cipher sealed.Cipher
}

// NewSeedStore creates a new SeedStore
func NewSeedStore(db *gorm.DB, cipher sealed.Cipher) *SeedStore {
	return &SeedStore{db: db, cipher: cipher}
}

func (s *SeedStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(model.WithCipher(ctx, s.cipher))
}

// FetchSeed retrieves and unseals the signing seed of a resource.
func (s *SeedStore) FetchSeed(ctx context.Context, resourceID string) (*model.SigningSeed, error) {
	var seed model.SigningSeed
	err := s.conn(ctx).Where("resource_id = ?", resourceID).First(&seed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrSeedNotFound
		}
		return nil, err
	}
	return &seed, nil
}

// PutSeed seals and stores a seed. The caller's value is left unsealed.
func (s *SeedStore) PutSeed(ctx context.Context, seed *model.SigningSeed) error {
	row := *seed
	row.Seed = append([]byte(nil), seed.Seed...)
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"seed", "fingerprint"}),
	}).Create(&row).Error
}
