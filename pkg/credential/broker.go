package credential

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

// Broker maps a resource id to its signing identity.
type Broker struct {
	seeds   store.SeedStore
	timeout time.Duration
	logger  log.FieldLogger
}

func NewBroker(seeds store.SeedStore, timeout time.Duration, logger log.FieldLogger) *Broker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Broker{seeds: seeds, timeout: timeout, logger: logger}
}

// Acquire looks up the resource's seed and derives its identity. Every
// failure is a credential error; callers must not retry.
func (b *Broker) Acquire(ctx context.Context, resourceID string) (*Signer, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	seed, err := b.seeds.FetchSeed(ctx, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrSeedNotFound) {
			return nil, errs.Credential(err, "no signing credential for resource %q", resourceID)
		}
		b.logger.WithError(err).WithField("resource_id", resourceID).Error("signing seed lookup failed")
		return nil, errs.Credential(err, "signing credential lookup failed for resource %q", resourceID)
	}

	signer, err := NewSigner(resourceID, seed.Seed)
	if err != nil {
		return nil, errs.Credential(err, "invalid signing seed for resource %q", resourceID)
	}
	if seed.Fingerprint != "" && seed.Fingerprint != signer.Fingerprint() {
		b.logger.WithField("resource_id", resourceID).Error("signing seed fingerprint mismatch")
		return nil, errs.Credential(nil, "signing seed fingerprint mismatch for resource %q", resourceID)
	}
	return signer, nil
}

// Provision generates and stores a new seed for resourceID, replacing any
// existing one.
func (b *Broker) Provision(ctx context.Context, resourceID string) (*Signer, error) {
	seed, err := GenerateSeed()
	if err != nil {
		return nil, err
	}
	signer, err := NewSigner(resourceID, seed)
	if err != nil {
		return nil, err
	}
	err = b.seeds.PutSeed(ctx, &model.SigningSeed{
		ResourceID:  resourceID,
		Seed:        seed,
		Fingerprint: signer.Fingerprint(),
	})
	if err != nil {
		return nil, err
	}
	return signer, nil
}
