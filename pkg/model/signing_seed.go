package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/membership-gateway/pkg/sealed"
)

type cipherKey struct{}

// WithCipher attaches the data-key cipher used by the sealing hooks.
func WithCipher(ctx context.Context, c sealed.Cipher) context.Context {
	return context.WithValue(ctx, cipherKey{}, c)
}

func cipherFor(tx *gorm.DB) (sealed.Cipher, error) {
	c, ok := tx.Statement.Context.Value(cipherKey{}).(sealed.Cipher)
	if !ok || c == nil {
		return nil, errors.New("no data-key cipher on database context")
	}
	return c, nil
}

// SigningSeed is the sealed ed25519 seed of a resource's signing identity.
// Seed is plaintext in memory and sealed at rest with the resource id as AAD.
type SigningSeed struct {
	ResourceID  string    `gorm:"column:resource_id;primaryKey"`
	Seed        []byte    `gorm:"column:seed;type:bytea;not null"`
	Fingerprint string    `gorm:"column:fingerprint;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SigningSeed) TableName() string {
	return "resource_signing_seeds"
}

func (s *SigningSeed) BeforeCreate(tx *gorm.DB) error {
	c, err := cipherFor(tx)
	if err != nil {
		return err
	}
	s.Seed, err = c.Seal([]byte(s.ResourceID), s.Seed)
	if err != nil {
		return fmt.Errorf("signing seed encryption failed for resource_id=%q", s.ResourceID)
	}
	return nil
}

func (s *SigningSeed) AfterFind(tx *gorm.DB) error {
	c, err := cipherFor(tx)
	if err != nil {
		return err
	}
	s.Seed, err = c.Open([]byte(s.ResourceID), s.Seed)
	if err != nil {
		return fmt.Errorf("signing seed decryption failed for resource_id=%q", s.ResourceID)
	}
	return nil
}
