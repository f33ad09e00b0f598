package store

import (
	"context"
	"errors"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// ErrSeedNotFound is returned when a resource has no signing seed
var ErrSeedNotFound = errors.New("signing seed not found")

// SeedStore is the secret store holding per-resource signing seeds
type SeedStore interface {
	// FetchSeed returns the unsealed seed of a resource.
	// Returns ErrSeedNotFound if the resource has none.
	FetchSeed(ctx context.Context, resourceID string) (*model.SigningSeed, error)

	// PutSeed seals and stores a seed, replacing any previous one.
	PutSeed(ctx context.Context, seed *model.SigningSeed) error
}
