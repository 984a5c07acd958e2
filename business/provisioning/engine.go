package provisioning

import (
	"context"
	"errors"
	"fmt"
	"qittMarket/domain"
	"qittMarket/pkg/logger"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

// ProfileRepository contract interface
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (domain.Profile, error)
	Insert(ctx context.Context, profile *domain.Profile) error
}

// WalletRepository contract interface
type WalletRepository interface {
	FindByUserID(ctx context.Context, userID string) (domain.Wallet, error)
	Insert(ctx context.Context, wallet *domain.Wallet) error
}

const defaultLookupTimeout = 5 * time.Second

const emailUnconfirmedMessage = "Please check your email and click the confirmation link to complete registration."

// Engine decides, for one authenticated identity, whether a profile and
// wallet exist and creates whatever is missing.
//
// The existence check is advisory. Two entry points can both observe a
// missing profile, so a duplicate-key rejection on insert is the real
// idempotency guard and is always collapsed into success. Engine keeps no
// per-identity state and is safe for concurrent use.
type Engine struct {
	profileRepo ProfileRepository
	walletRepo  WalletRepository
	validate    *validator.Validate

	// lookups shares one in-flight profile lookup between concurrent callers
	// for the same identity.
	lookups       singleflight.Group
	lookupTimeout time.Duration
}

func NewEngine(profileRepo ProfileRepository, walletRepo WalletRepository, validate *validator.Validate) *Engine {
	if validate == nil {
		validate = NewValidator()
	}

	return &Engine{
		profileRepo:   profileRepo,
		walletRepo:    walletRepo,
		validate:      validate,
		lookupTimeout: defaultLookupTimeout,
	}
}

// MissingFields reports which registration fields still need input. A nil
// context is missing every field.
func (e *Engine) MissingFields(rc *domain.RegistrationContext) ([]string, error) {
	if rc != nil {
		normalized := NormalizeContext(*rc)
		rc = &normalized
	}
	return invalidFields(e.validate, rc)
}

// Provision runs the state machine from AUTHENTICATED until it halts. rc may
// be nil when the entry point holds no form data (OAuth, session resume).
func (e *Engine) Provision(ctx context.Context, identity *domain.Identity, rc *domain.RegistrationContext) domain.Snapshot {
	if identity == nil || identity.ID == "" {
		return domain.Snapshot{State: domain.StateUnauthenticated}
	}
	enter(domain.StateAuthenticated)

	if !identity.EmailVerified {
		enter(domain.StateAwaitingEmailConfirmation)
		return domain.Snapshot{
			State: domain.StateAwaitingEmailConfirmation,
			LastError: &domain.ProvisioningError{
				Kind:        domain.ErrorKindEmailUnconfirmed,
				Message:     emailUnconfirmedMessage,
				Recoverable: true,
			},
		}
	}

	snap := e.checkProfile(ctx, identity.ID)
	if snap.State != domain.StateProfileMissing {
		return snap
	}

	return e.createProfile(ctx, identity, rc)
}

type lookupResult struct {
	profile domain.Profile
	found   bool
}

func (e *Engine) checkProfile(ctx context.Context, userID string) domain.Snapshot {
	enter(domain.StateCheckingProfile)

	// The shared lookup runs detached from the caller that started it, so
	// one cancelled caller cannot fail the others waiting on the same key.
	ch := e.lookups.DoChan(userID, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.lookupTimeout)
		defer cancel()

		profile, err := e.profileRepo.FindByID(lookupCtx, userID)
		if errors.Is(err, domain.ErrProfileNotFound) {
			return lookupResult{}, nil
		}
		if err != nil {
			return nil, err
		}
		return lookupResult{profile: profile, found: true}, nil
	})

	var shared singleflight.Result
	select {
	case shared = <-ch:
	case <-ctx.Done():
		shared = singleflight.Result{Err: ctx.Err()}
	}
	if shared.Err != nil {
		// A failed lookup is not "missing"; inserting here could race a
		// profile that already exists.
		logger.Error("Failed to check profile", "user_id", userID, "error", shared.Err)
		return failed(domain.ErrorKindNetwork, "could not check your account, please try again", true)
	}

	res := shared.Val.(lookupResult)
	if !res.found {
		enter(domain.StateProfileMissing)
		return domain.Snapshot{State: domain.StateProfileMissing}
	}

	return e.profileFound(ctx, userID, &res.profile)
}

// profileFound performs no writes. The wallet is loaded best-effort. profile
// is nil when the row is known to exist but could not be read.
func (e *Engine) profileFound(ctx context.Context, userID string, profile *domain.Profile) domain.Snapshot {
	enter(domain.StateProfileFound)

	snap := domain.Snapshot{Profile: profile}

	wallet, err := e.walletRepo.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		snap.Wallet = &wallet
	case errors.Is(err, domain.ErrWalletNotFound):
		logger.Warn("Profile has no wallet, degraded state", "user_id", userID)
		snap.WalletDegraded = true
	default:
		logger.Warn("Failed to load wallet, degraded state", "user_id", userID, "error", err)
		snap.WalletDegraded = true
	}

	return ready(snap)
}

func (e *Engine) createProfile(ctx context.Context, identity *domain.Identity, rc *domain.RegistrationContext) domain.Snapshot {
	var normalized domain.RegistrationContext
	if rc != nil {
		normalized = NormalizeContext(*rc)
		rc = &normalized
	}

	missing, err := invalidFields(e.validate, rc)
	if err != nil {
		logger.Error("Failed to validate registration context", err)
		return failed(domain.ErrorKindValidation, err.Error(), true)
	}
	if len(missing) > 0 {
		enter(domain.StateAwaitingProfileInput)
		snap := domain.Snapshot{
			State:         domain.StateAwaitingProfileInput,
			MissingFields: missing,
		}
		if rc != nil {
			snap.LastError = &domain.ProvisioningError{
				Kind:        domain.ErrorKindValidation,
				Message:     fmt.Sprintf("please fill in all required fields: %v", missing),
				Recoverable: true,
			}
		}
		return snap
	}

	enter(domain.StateCreatingProfile)
	profile := domain.Profile{
		ID:         identity.ID,
		Email:      identity.Email,
		Name:       rc.Name,
		School:     rc.School,
		Department: rc.Department,
		Level:      rc.Level,
		Role:       domain.RoleBuyer,
	}

	err = e.profileRepo.Insert(ctx, &profile)
	switch {
	case err == nil:
		logger.Info("Profile created", "user_id", profile.ID)
	case errors.Is(err, domain.ErrDuplicateKey):
		// Another entry point won the race. Its row is authoritative.
		DuplicateCollapsesTotal.WithLabelValues("profile").Inc()
		logger.Info("Profile already created by a concurrent flow", "user_id", profile.ID)
		existing, ferr := e.profileRepo.FindByID(ctx, profile.ID)
		if ferr != nil {
			// The row exists but could not be read back; report no profile
			// rather than one that was never stored.
			logger.Warn("Failed to read back concurrently created profile", "user_id", profile.ID, "error", ferr)
			return e.profileFound(ctx, profile.ID, nil)
		}
		return e.profileFound(ctx, existing.ID, &existing)
	case errors.Is(err, domain.ErrConstraintViolation):
		logger.Error("Profile rejected by store", "user_id", profile.ID, "error", err)
		return failed(domain.ErrorKindConstraintViolation, "failed to create your profile", false)
	default:
		logger.Error("Failed to create profile", "user_id", profile.ID, "error", err)
		return failed(domain.ErrorKindNetwork, "failed to create your profile, please try again", true)
	}

	return e.createWallet(ctx, profile)
}

// createWallet never fails the run. A profile without a wallet is a valid
// degraded state that the wallet service heals on the next read.
func (e *Engine) createWallet(ctx context.Context, profile domain.Profile) domain.Snapshot {
	enter(domain.StateCreatingWallet)

	snap := domain.Snapshot{Profile: &profile}
	wallet := domain.NewWallet(profile.ID)

	err := e.walletRepo.Insert(ctx, &wallet)
	switch {
	case err == nil:
		snap.Wallet = &wallet
	case errors.Is(err, domain.ErrDuplicateKey):
		DuplicateCollapsesTotal.WithLabelValues("wallet").Inc()
		if existing, ferr := e.walletRepo.FindByUserID(ctx, profile.ID); ferr == nil {
			snap.Wallet = &existing
		} else {
			snap.Wallet = &wallet
		}
	default:
		logger.Warn("Wallet creation failed, degraded state", "user_id", profile.ID, "error", err)
		snap.WalletDegraded = true
	}

	return ready(snap)
}

func ready(snap domain.Snapshot) domain.Snapshot {
	enter(domain.StateReady)
	if snap.WalletDegraded {
		DegradedWalletsTotal.Inc()
	}
	snap.State = domain.StateReady
	return snap
}

func failed(kind domain.ErrorKind, message string, recoverable bool) domain.Snapshot {
	enter(domain.StateError)
	return domain.Snapshot{
		State: domain.StateError,
		LastError: &domain.ProvisioningError{
			Kind:        kind,
			Message:     message,
			Recoverable: recoverable,
		},
	}
}

func enter(state domain.ProvisioningState) {
	TransitionsTotal.WithLabelValues(string(state)).Inc()
}
