package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/mate/internal/observability"
	"github.com/harun/mate/internal/tracing"
)

// Invoker makes single model calls with retry, backoff and credential
// failover. It never loops over tool rounds; that is the dispatcher's job.
type Invoker struct {
	logger          zerolog.Logger
	providerFactory ProviderCreator

	authProfiles []AuthProfile
	authMu       sync.RWMutex

	retryMax        int
	retryBase       time.Duration
	providerTimeout time.Duration
}

// InvokerConfig holds invoker configuration.
type InvokerConfig struct {
	Logger          zerolog.Logger
	AuthProfiles    []AuthProfile
	ProviderFactory ProviderCreator
	RetryMax        int
	RetryBaseMs     int
	ProviderTimeout time.Duration
}

// NewInvoker creates a new invoker.
func NewInvoker(cfg InvokerConfig) (*Invoker, error) {
	observability.EnsureRegistered()

	if len(cfg.AuthProfiles) == 0 {
		return nil, fmt.Errorf("at least one auth profile is required")
	}

	factory := cfg.ProviderFactory
	if factory == nil {
		factory = &ProviderFactory{}
	}

	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 3
	}
	retryBase := time.Duration(cfg.RetryBaseMs) * time.Millisecond
	if retryBase <= 0 {
		retryBase = time.Second
	}
	providerTimeout := cfg.ProviderTimeout
	if providerTimeout <= 0 {
		providerTimeout = 2 * time.Minute
	}

	return &Invoker{
		logger:          cfg.Logger,
		providerFactory: factory,
		authProfiles:    cfg.AuthProfiles,
		retryMax:        retryMax,
		retryBase:       retryBase,
		providerTimeout: providerTimeout,
	}, nil
}

// Invoke makes one model call with retry and credential failover. The result
// is either a final message or a non-empty set of tool calls; an empty
// response is treated as a provider error.
func (inv *Invoker) Invoke(ctx context.Context, params InvokeParams) (*InvokeResult, error) {
	if params.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"mate.agent",
		"agent.invoke",
		attribute.String("model", params.Model),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, inv.logger)

	inv.authMu.RLock()
	profiles := make([]AuthProfile, len(inv.authProfiles))
	copy(profiles, inv.authProfiles)
	inv.authMu.RUnlock()

	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	var lastErr error

	for idx, profile := range profiles {
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}

		provider, err := inv.providerFactory.NewProvider(profile)
		if err != nil {
			logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			lastErr = err
			continue
		}

		result, retried, err := inv.callWithRetry(ctx, provider, params)
		if err == nil {
			inv.updateProfileSuccess(profile.ID)
			if retried || idx > 0 {
				result.Degraded = true
			}
			observability.RecordTokens(result.Model, result.Usage.InputTokens, result.Usage.OutputTokens)
			return result, nil
		}

		lastErr = err
		inv.updateProfileFailure(profile.ID)
		logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Auth profile failed")

		// Permanent errors abort failover: a malformed request will fail
		// the same way against every credential.
		if !IsRetryableError(err) && ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable auth profile")
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	// Only transient faults reach this point, so the caller may still
	// answer in degraded form.
	return nil, fmt.Errorf("%w: %w: %v", ErrProviderDegraded, ErrAllProfilesFailed, lastErr)
}

// callWithRetry calls the provider with exponential backoff and jitter.
// The second return reports whether any retry happened.
func (inv *Invoker) callWithRetry(ctx context.Context, provider LLMProvider, params InvokeParams) (*InvokeResult, bool, error) {
	logger := tracing.LoggerFromContext(ctx, inv.logger)

	var lastErr error
	retried := false

	for attempt := 0; attempt < inv.retryMax; attempt++ {
		result, err := inv.callOnce(ctx, provider, params)
		if err == nil {
			return result, retried, nil
		}
		lastErr = err

		if !IsRetryableError(err) || ctx.Err() != nil {
			return nil, retried, err
		}
		if attempt == inv.retryMax-1 {
			break
		}

		observability.RecordProviderRetry(provider.Provider())
		retried = true

		// Exponential backoff with up to 25% jitter.
		delay := inv.retryBase * time.Duration(1<<attempt)
		delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Str("provider", provider.Provider()).
			Msg("Retrying model call after error")

		select {
		case <-ctx.Done():
			return nil, retried, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, retried, fmt.Errorf("max retries (%d) exceeded: %w", inv.retryMax, lastErr)
}

func (inv *Invoker) callOnce(ctx context.Context, provider LLMProvider, params InvokeParams) (*InvokeResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, inv.providerTimeout)
	defer cancel()

	start := time.Now()
	result, err := provider.Call(callCtx, params)
	observability.RecordProviderCall(provider.Provider(), time.Since(start), err == nil)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("provider call timed out after %s: %w", inv.providerTimeout, err)
		}
		return nil, err
	}

	if result.Content == "" && len(result.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	if result.Usage == nil {
		result.Usage = &TokenUsage{}
	}
	if result.Model == "" {
		result.Model = params.Model
	}
	return result, nil
}

func (inv *Invoker) updateProfileSuccess(profileID string) {
	inv.authMu.Lock()
	defer inv.authMu.Unlock()

	for i := range inv.authProfiles {
		if inv.authProfiles[i].ID == profileID {
			inv.authProfiles[i].FailureCount = 0
			inv.authProfiles[i].CooldownUntil = nil
			break
		}
	}
}

func (inv *Invoker) updateProfileFailure(profileID string) {
	inv.authMu.Lock()
	defer inv.authMu.Unlock()

	for i := range inv.authProfiles {
		if inv.authProfiles[i].ID == profileID {
			inv.authProfiles[i].FailureCount++
			cooldown := time.Now().UnixMilli() + int64(60000*inv.authProfiles[i].FailureCount)
			inv.authProfiles[i].CooldownUntil = &cooldown
			break
		}
	}
}
