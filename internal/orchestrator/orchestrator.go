// Package orchestrator drives round-by-round token deployments over the active
// (network, credential) pairs until every pair is retired.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Bidon15/autodeploy/internal/catalog"
	"github.com/Bidon15/autodeploy/internal/registry"
	"github.com/Bidon15/autodeploy/internal/tokengen"
)

// Sentinel errors
var (
	ErrNoExecutor  = errors.New("orchestrator: executor is required")
	ErrNoGenerator = errors.New("orchestrator: token generator is required")
)

// Executor performs one deployment and returns the contract address.
type Executor interface {
	Deploy(ctx context.Context, network catalog.Network, cred registry.Credential, token tokengen.Descriptor) (common.Address, error)
}

// TokenGenerator supplies fresh token metadata for every attempt.
type TokenGenerator interface {
	Next() tokengen.Descriptor
}

// Attempt is the record of one deployment attempt.
type Attempt struct {
	RunID       uuid.UUID
	Round       int
	Pair        registry.Pair
	Token       tokengen.Descriptor
	Outcome     registry.Outcome
	Address     common.Address
	ExplorerURL string
	Err         error
	StartedAt   time.Time
	Duration    time.Duration
}

// Observer is notified of run progress. Calls happen on the orchestrating
// goroutine, in order.
type Observer interface {
	RoundStarted(round int, active registry.RoundState)
	AttemptFinished(a Attempt)
	RoundFinished(round int, survivors registry.RoundState)
}

// Config contains configuration for the Orchestrator.
type Config struct {
	// Logger for structured logging
	Logger *slog.Logger

	// Policy decides the blast radius of a fatal failure
	Policy Policy

	// PacingMin and PacingMax bound the wait after every attempt
	PacingMin time.Duration
	PacingMax time.Duration

	// MaxRounds stops the run after that many rounds; 0 means until exhausted
	MaxRounds int

	// Rand drives the pacing jitter
	Rand *rand.Rand

	// Sleep waits between attempts; replaced in tests
	Sleep func(ctx context.Context, d time.Duration) error

	// Observers receive progress events (metrics, ledger)
	Observers []Observer

	// RunID tags every log line and attempt; generated when zero
	RunID uuid.UUID
}

// Summary describes a finished run.
type Summary struct {
	RunID     uuid.UUID
	Rounds    int
	Attempts  int
	Deployed  int
	Exhausted int
	Failed    int
	Skipped   int
	Remaining int
}

// Orchestrator runs deployment rounds. A single Run must not be shared across
// goroutines; pairs are attempted strictly one at a time.
type Orchestrator struct {
	executor  Executor
	generator TokenGenerator
	config    Config
	logger    *slog.Logger
}

// New creates an orchestrator, filling unset config fields with defaults.
func New(executor Executor, generator TokenGenerator, config Config) *Orchestrator {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Policy == "" {
		config.Policy = PolicyIndependent
	}
	if config.PacingMin <= 0 {
		config.PacingMin = DefaultPacingMin
	}
	if config.PacingMax < config.PacingMin {
		config.PacingMax = max(DefaultPacingMax, config.PacingMin)
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if config.Sleep == nil {
		config.Sleep = SleepContext
	}
	if config.RunID == uuid.Nil {
		config.RunID = uuid.New()
	}

	return &Orchestrator{
		executor:  executor,
		generator: generator,
		config:    config,
		logger:    config.Logger.With(slog.String("run_id", config.RunID.String())),
	}
}

// RunID identifies this orchestrator's run.
func (o *Orchestrator) RunID() uuid.UUID {
	return o.config.RunID
}

// Run drives rounds starting from initial until no pair survives, MaxRounds is
// reached, or ctx is cancelled. Pair-scoped deploy failures are handled here and
// never returned; only cancellation and internal errors escape.
func (o *Orchestrator) Run(ctx context.Context, initial registry.RoundState) (Summary, error) {
	summary := Summary{RunID: o.config.RunID}

	if o.executor == nil {
		return summary, ErrNoExecutor
	}
	if o.generator == nil {
		return summary, ErrNoGenerator
	}

	o.logger.Info("starting deployment run",
		slog.Int("pairs", initial.Len()),
		slog.Int("networks", initial.NetworkCount()),
		slog.String("policy", string(o.config.Policy)),
		slog.Duration("pacing_min", o.config.PacingMin),
		slog.Duration("pacing_max", o.config.PacingMax),
	)

	state := initial
	for round := 1; !state.Empty(); round++ {
		if o.config.MaxRounds > 0 && round > o.config.MaxRounds {
			o.logger.Info("round limit reached",
				slog.Int("max_rounds", o.config.MaxRounds),
				slog.Int("remaining_pairs", state.Len()),
			)
			break
		}

		next, err := o.runRound(ctx, round, registry.BeginRound(state), &summary)
		summary.Rounds = round
		if err != nil {
			summary.Remaining = state.Len()
			return summary, err
		}
		state = next
	}

	summary.Remaining = state.Len()
	if state.Empty() {
		o.logger.Info("all pairs exhausted, deployment finished",
			slog.Int("rounds", summary.Rounds),
			slog.Int("deployed", summary.Deployed),
			slog.Int("insufficient_funds", summary.Exhausted),
			slog.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

// runRound attempts every pair of current once and returns the survivors.
func (o *Orchestrator) runRound(ctx context.Context, round int, current registry.RoundState, summary *Summary) (registry.RoundState, error) {
	o.logger.Info("round started",
		slog.Int("round", round),
		slog.Int("active_pairs", current.Len()),
		slog.Int("networks", current.NetworkCount()),
	)
	for _, obs := range o.config.Observers {
		obs.RoundStarted(round, current)
	}

	survivors := registry.NewBuilder(current)

	for _, group := range current.Groups() {
		for i, cred := range group.Credentials {
			pair := registry.Pair{Network: group.Network, Credential: cred}

			outcome, err := o.attempt(ctx, round, pair, summary)
			if err != nil {
				return registry.RoundState{}, err
			}

			if registry.RecordOutcome(pair, outcome) == registry.Keep {
				if err := survivors.Keep(pair); err != nil {
					return registry.RoundState{}, fmt.Errorf("round %d: %w", round, err)
				}
			}

			if err := o.pace(ctx, round, group.Network); err != nil {
				return registry.RoundState{}, err
			}

			if outcome == registry.OutcomeFatal && o.config.Policy == PolicyNetworkAbort {
				skipped := len(group.Credentials) - i - 1
				summary.Skipped += skipped
				survivors.DropNetwork(group.Network)
				o.logger.Error("aborting network for the rest of the run",
					slog.Int("round", round),
					slog.String("network", group.Network.Name),
					slog.String("credential", cred.Redacted()),
					slog.Int("skipped_this_round", skipped),
				)
				break
			}
		}
	}

	next := survivors.State()
	o.logger.Info("round finished",
		slog.Int("round", round),
		slog.Int("surviving_pairs", next.Len()),
		slog.Int("retired_pairs", current.Len()-next.Len()),
	)
	for _, g := range next.Groups() {
		o.logger.Debug("network still active",
			slog.Int("round", round),
			slog.String("network", g.Network.Name),
			slog.Int("credentials", len(g.Credentials)),
		)
	}
	for _, obs := range o.config.Observers {
		obs.RoundFinished(round, next)
	}
	return next, nil
}

// attempt runs one deployment and classifies the result. The returned error is
// non-nil only when ctx was cancelled.
func (o *Orchestrator) attempt(ctx context.Context, round int, pair registry.Pair, summary *Summary) (registry.Outcome, error) {
	token := o.generator.Next()
	log := o.logger.With(
		slog.Int("round", round),
		slog.String("network", pair.Network.Name),
		slog.String("credential", pair.Credential.Redacted()),
	)

	log.Info("deploying token",
		slog.String("token_name", token.Name),
		slog.String("token_symbol", token.Symbol),
		slog.Int64("token_supply", token.Supply),
	)

	started := time.Now()
	address, err := o.executor.Deploy(ctx, pair.Network, pair.Credential, token)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, fmt.Errorf("deployment on %s interrupted: %w", pair.Network.Name, ctxErr)
	}

	a := Attempt{
		RunID:     o.config.RunID,
		Round:     round,
		Pair:      pair,
		Token:     token,
		Outcome:   Classify(err),
		Err:       err,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	summary.Attempts++

	switch a.Outcome {
	case registry.OutcomeSuccess:
		summary.Deployed++
		a.Address = address
		a.ExplorerURL = pair.Network.AddressURL(address.Hex())
		log.Info("deployment successful",
			slog.String("address", address.Hex()),
			slog.String("explorer_url", a.ExplorerURL),
			slog.Duration("took", a.Duration),
		)
	case registry.OutcomeRetryable:
		summary.Exhausted++
		log.Warn("deployment halted: insufficient funds, retiring credential on this network",
			slog.String("error", err.Error()),
		)
	default:
		summary.Failed++
		log.Error("deployment failed, retiring credential on this network",
			slog.String("error", err.Error()),
		)
	}

	for _, obs := range o.config.Observers {
		obs.AttemptFinished(a)
	}
	return a.Outcome, nil
}

func (o *Orchestrator) pace(ctx context.Context, round int, network catalog.Network) error {
	delay := PacingDelay(o.config.Rand, o.config.PacingMin, o.config.PacingMax)
	o.logger.Info("waiting before next deployment",
		slog.Int("round", round),
		slog.String("network", network.Name),
		slog.Duration("delay", delay),
	)
	if err := o.config.Sleep(ctx, delay); err != nil {
		return fmt.Errorf("pacing on %s interrupted: %w", network.Name, err)
	}
	return nil
}
