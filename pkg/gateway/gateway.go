package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/doodlesbykumbi/membership-gateway/pkg/audit"
	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
	"github.com/doodlesbykumbi/membership-gateway/pkg/credential"
	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph"
	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
)

// Acquirer derives the signing identity of a resource.
type Acquirer interface {
	Acquire(ctx context.Context, resourceID string) (*credential.Signer, error)
}

// MutationFunc performs one logical mutation with a resource-bound Mutator.
// The Mutator must not be used after the function returns.
type MutationFunc func(ctx context.Context, m graph.Mutator) error

// Options configures a Gate.
type Options struct {
	Mode            string
	WaitTimeout     time.Duration
	MutationTimeout time.Duration
	Metrics         *metrics.Metrics
	Logger          log.FieldLogger
}

// OptionsFromConfig reads the gateway settings of cfg.
func OptionsFromConfig(cfg *config.MembershipConfig) Options {
	return Options{
		Mode:            cfg.GatewayMode,
		WaitTimeout:     cfg.GatewayWaitTimeout,
		MutationTimeout: cfg.MutationTimeout,
	}
}

// Gate is the only path from the services to graph store writes.
type Gate struct {
	opts   Options
	broker Acquirer
	client *graph.Client
	shared *graph.SharedClient
	sem    *semaphore.Weighted
}

// New creates a Gate. client must be a read-only graph client; the gate
// derives signed clients from it.
func New(broker Acquirer, client *graph.Client, opts Options) (*Gate, error) {
	if opts.Mode == "" {
		opts.Mode = config.GatewayModeIsolated
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}

	g := &Gate{opts: opts, broker: broker, client: client}
	switch opts.Mode {
	case config.GatewayModeIsolated:
	case config.GatewayModeSerialized:
		g.shared = graph.NewSharedClient(client)
		g.sem = semaphore.NewWeighted(1)
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", opts.Mode)
	}
	return g, nil
}

func (g *Gate) Mode() string {
	return g.opts.Mode
}

// WithResourceCredential acquires the identity of resourceID, binds it, runs
// fn and releases the binding. Credential failures are returned before fn
// is called.
func (g *Gate) WithResourceCredential(ctx context.Context, resourceID string, fn MutationFunc) error {
	logger := g.opts.Logger.WithFields(log.Fields{"resource_id": resourceID, "gateway_mode": g.opts.Mode})
	start := time.Now()

	signer, err := g.broker.Acquire(ctx, resourceID)
	if err != nil {
		g.opts.Metrics.GateAcquisitionsTotal.WithLabelValues(g.opts.Mode, "credential_error").Inc()
		audit.Log(audit.CredentialEvent{ResourceID: resourceID, Mode: g.opts.Mode, ErrorMessage: err.Error()})
		logger.WithError(err).Error("resource credential acquisition failed")
		return err
	}

	m, release, err := g.bind(ctx, signer)
	if err != nil {
		g.opts.Metrics.GateAcquisitionsTotal.WithLabelValues(g.opts.Mode, "wait_timeout").Inc()
		logger.WithError(err).Warn("timed out waiting for the mutation gateway")
		return err
	}
	defer release()

	g.opts.Metrics.GateAcquisitionsTotal.WithLabelValues(g.opts.Mode, "success").Inc()
	g.opts.Metrics.GateWaitDuration.WithLabelValues(g.opts.Mode).Observe(time.Since(start).Seconds())
	audit.Log(audit.CredentialEvent{ResourceID: resourceID, DID: signer.DID(), Mode: g.opts.Mode, Success: true})
	logger.WithField("did", signer.DID()).Debug("resource credential bound")

	mctx := ctx
	if g.opts.MutationTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, g.opts.MutationTimeout)
		defer cancel()
	}

	mstart := time.Now()
	err = fn(mctx, m)
	if err != nil && errs.KindOf(err) == errs.KindInternal && errors.Is(err, context.DeadlineExceeded) {
		err = errs.Upstream(err, "mutation on resource %s exceeded %s", resourceID, g.opts.MutationTimeout)
	}
	g.opts.Metrics.MutationDuration.WithLabelValues(g.opts.Mode, metrics.Outcome(err)).Observe(time.Since(mstart).Seconds())
	if errs.KindOf(err) == errs.KindUpstream {
		g.opts.Metrics.UpstreamErrorsTotal.Inc()
	}
	return err
}

func (g *Gate) bind(ctx context.Context, signer *credential.Signer) (graph.Mutator, func(), error) {
	if g.opts.Mode == config.GatewayModeIsolated {
		return g.client.WithSigner(signer), func() {}, nil
	}

	wctx := ctx
	if g.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, g.opts.WaitTimeout)
		defer cancel()
	}
	if err := g.sem.Acquire(wctx, 1); err != nil {
		return nil, nil, errs.Upstream(err, "mutation gateway busy")
	}

	b := g.shared.Bind(signer)
	return b, func() {
		b.Release()
		g.sem.Release(1)
	}, nil
}

// Do runs fn through the gate and returns its result.
func Do[T any](ctx context.Context, g *Gate, resourceID string, fn func(ctx context.Context, m graph.Mutator) (T, error)) (T, error) {
	var result T
	err := g.WithResourceCredential(ctx, resourceID, func(ctx context.Context, m graph.Mutator) error {
		var err error
		result, err = fn(ctx, m)
		return err
	})
	return result, err
}
