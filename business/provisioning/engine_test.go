package provisioning

import (
	"context"
	"errors"
	"fmt"
	"qittMarket/domain"
	"qittMarket/internal/testutil"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetwork = errors.New("network unreachable")

func verifiedIdentity(id string) *domain.Identity {
	return &domain.Identity{
		ID:            id,
		Email:         id + "@students.example.edu",
		EmailVerified: true,
		Provider:      "password",
	}
}

func completeContext() *domain.RegistrationContext {
	return &domain.RegistrationContext{
		Name:       "Ada",
		School:     "X",
		Department: "Computer Science",
		Level:      "300",
	}
}

func newTestEngine(store *testutil.MemoryStore) *Engine {
	return NewEngine(store, store.Wallets(), NewValidator())
}

func TestProvision_FreshSignupCreatesProfileAndWallet(t *testing.T) {
	store := testutil.NewMemoryStore()
	engine := newTestEngine(store)

	snap := engine.Provision(context.Background(), verifiedIdentity("u-1"), completeContext())

	require.Equal(t, domain.StateReady, snap.State)
	assert.Nil(t, snap.LastError)
	assert.False(t, snap.WalletDegraded)
	assert.Equal(t, 1, store.Calls(testutil.OpInsertProfile))
	assert.Equal(t, 1, store.Calls(testutil.OpInsertWallet))

	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u-1", snap.Profile.ID)
	assert.Equal(t, domain.RoleBuyer, snap.Profile.Role)
	assert.Equal(t, "u-1@students.example.edu", snap.Profile.Email)

	require.NotNil(t, snap.Wallet)
	assert.True(t, snap.Wallet.Balance.Equal(decimal.Zero))
	assert.Equal(t, "0.00", snap.Wallet.Balance.StringFixed(2))
}

func TestProvision_UnverifiedEmailNeverTouchesStore(t *testing.T) {
	store := testutil.NewMemoryStore()
	engine := newTestEngine(store)

	identity := verifiedIdentity("u-2")
	identity.EmailVerified = false

	snap := engine.Provision(context.Background(), identity, completeContext())

	assert.Equal(t, domain.StateAwaitingEmailConfirmation, snap.State)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, domain.ErrorKindEmailUnconfirmed, snap.LastError.Kind)
	assert.True(t, snap.LastError.Recoverable)
	assert.Zero(t, store.Calls(testutil.OpFindProfile))
	assert.Zero(t, store.Calls(testutil.OpInsertProfile))
	assert.Zero(t, store.Calls(testutil.OpInsertWallet))
}

func TestProvision_NilIdentityIsUnauthenticated(t *testing.T) {
	store := testutil.NewMemoryStore()
	snap := newTestEngine(store).Provision(context.Background(), nil, nil)

	assert.Equal(t, domain.StateUnauthenticated, snap.State)
	assert.Zero(t, store.Calls(testutil.OpFindProfile))
}

func TestProvision_MissingContextAwaitsInput(t *testing.T) {
	store := testutil.NewMemoryStore()
	engine := newTestEngine(store)

	snap := engine.Provision(context.Background(), verifiedIdentity("u-3"), nil)

	assert.Equal(t, domain.StateAwaitingProfileInput, snap.State)
	assert.Equal(t, []string{"name", "school", "department", "level"}, snap.MissingFields)
	assert.Nil(t, snap.LastError)
	assert.Zero(t, store.Calls(testutil.OpInsertProfile))
	assert.Zero(t, store.ProfileCount())
}

func TestProvision_IncompleteContextNeverCreatesProfile(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(rc *domain.RegistrationContext)
		missing []string
	}{
		{"empty name", func(rc *domain.RegistrationContext) { rc.Name = "" }, []string{"name"}},
		{"blank school", func(rc *domain.RegistrationContext) { rc.School = "   " }, []string{"school"}},
		{"empty department", func(rc *domain.RegistrationContext) { rc.Department = "" }, []string{"department"}},
		{"empty level", func(rc *domain.RegistrationContext) { rc.Level = "" }, []string{"level"}},
		{"unknown level", func(rc *domain.RegistrationContext) { rc.Level = "600" }, []string{"level"}},
		{"unknown department", func(rc *domain.RegistrationContext) { rc.Department = "Astrology" }, []string{"department"}},
		{"two fields", func(rc *domain.RegistrationContext) { rc.Name = ""; rc.Level = "" }, []string{"name", "level"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemoryStore()
			rc := completeContext()
			tt.mutate(rc)

			snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-4"), rc)

			assert.Equal(t, domain.StateAwaitingProfileInput, snap.State)
			assert.Equal(t, tt.missing, snap.MissingFields)
			require.NotNil(t, snap.LastError)
			assert.Equal(t, domain.ErrorKindValidation, snap.LastError.Kind)
			assert.Zero(t, store.Calls(testutil.OpInsertProfile))
		})
	}
}

func TestProvision_ContextIsTrimmedBeforeInsert(t *testing.T) {
	store := testutil.NewMemoryStore()
	rc := &domain.RegistrationContext{
		Name:       "  Ada Lovelace ",
		School:     " Unilag",
		Department: "Mathematics ",
		Level:      " Postgraduate ",
	}

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-5"), rc)

	require.Equal(t, domain.StateReady, snap.State)
	assert.Equal(t, "Ada Lovelace", snap.Profile.Name)
	assert.Equal(t, "Unilag", snap.Profile.School)
	assert.Equal(t, "Mathematics", snap.Profile.Department)
	assert.Equal(t, domain.LevelPostgraduate, snap.Profile.Level)
}

func TestProvision_ExistingProfileNeedsNoWrites(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedProfile(domain.Profile{ID: "u-6", Name: "Ada", Role: domain.RoleBuyer})
	store.SeedWallet(domain.NewWallet("u-6"))

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-6"), nil)

	assert.Equal(t, domain.StateReady, snap.State)
	assert.False(t, snap.WalletDegraded)
	require.NotNil(t, snap.Wallet)
	assert.Zero(t, store.Calls(testutil.OpInsertProfile))
	assert.Zero(t, store.Calls(testutil.OpInsertWallet))
}

func TestProvision_ExistingProfileWalletLoadFailureIsDegradedNotError(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedProfile(domain.Profile{ID: "u-7", Name: "Ada", Role: domain.RoleBuyer})
	store.SeedWallet(domain.NewWallet("u-7"))
	store.Fail(testutil.OpFindWallet, errNetwork, 1)

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-7"), nil)

	assert.Equal(t, domain.StateReady, snap.State)
	assert.True(t, snap.WalletDegraded)
	assert.Nil(t, snap.LastError)
	assert.Nil(t, snap.Wallet)
}

func TestProvision_LookupFailureIsErrorNotMissing(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Fail(testutil.OpFindProfile, errNetwork, 0)

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-8"), completeContext())

	assert.Equal(t, domain.StateError, snap.State)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, domain.ErrorKindNetwork, snap.LastError.Kind)
	assert.True(t, snap.LastError.Recoverable)
	assert.Zero(t, store.Calls(testutil.OpInsertProfile))
	assert.Zero(t, store.Calls(testutil.OpInsertWallet))
}

func TestProvision_ProfileInsertNetworkErrorIsRecoverable(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Fail(testutil.OpInsertProfile, errNetwork, 1)
	engine := newTestEngine(store)

	snap := engine.Provision(context.Background(), verifiedIdentity("u-9"), completeContext())

	assert.Equal(t, domain.StateError, snap.State)
	require.NotNil(t, snap.LastError)
	assert.True(t, snap.LastError.Recoverable)
	assert.Zero(t, store.Calls(testutil.OpInsertWallet))
	assert.Equal(t, 1, store.Calls(testutil.OpInsertProfile), "engine must not retry on its own")

	snap = engine.Provision(context.Background(), verifiedIdentity("u-9"), completeContext())
	assert.Equal(t, domain.StateReady, snap.State)
	assert.Equal(t, 1, store.ProfileCount())
	assert.Equal(t, 1, store.WalletCount())
}

func TestProvision_ConstraintViolationIsFatal(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Fail(testutil.OpInsertProfile, fmt.Errorf("insert profile: %w", domain.ErrConstraintViolation), 1)

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-10"), completeContext())

	assert.Equal(t, domain.StateError, snap.State)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, domain.ErrorKindConstraintViolation, snap.LastError.Kind)
	assert.False(t, snap.LastError.Recoverable)
	assert.Zero(t, store.Calls(testutil.OpInsertWallet))
}

func TestProvision_DuplicateProfileCollapsesIntoReady(t *testing.T) {
	store := testutil.NewMemoryStore()
	// Another entry point inserts between our check and our insert.
	store.BeforeProfileInsert = func() {
		store.SeedProfile(domain.Profile{ID: "u-11", Name: "Winner", Role: domain.RoleBuyer})
		store.SeedWallet(domain.NewWallet("u-11"))
	}

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-11"), completeContext())

	assert.Equal(t, domain.StateReady, snap.State)
	assert.Nil(t, snap.LastError)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Winner", snap.Profile.Name)
	assert.Zero(t, store.Calls(testutil.OpInsertWallet))
	assert.Equal(t, 1, store.ProfileCount())
	assert.Equal(t, 1, store.WalletCount())
}

func TestProvision_DuplicateProfileUnreadableIsReportedWithoutProfile(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.BeforeProfileInsert = func() {
		store.SeedProfile(domain.Profile{ID: "u-12", Name: "Winner", Role: domain.RoleBuyer})
		store.SeedWallet(domain.NewWallet("u-12"))
		store.Fail(testutil.OpFindProfile, errNetwork, 1)
	}

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-12"), completeContext())

	assert.Equal(t, domain.StateReady, snap.State)
	assert.Nil(t, snap.LastError)
	assert.Nil(t, snap.Profile)
	require.NotNil(t, snap.Wallet)
	assert.False(t, snap.WalletDegraded)
	assert.Equal(t, 2, store.Calls(testutil.OpFindProfile))
	assert.Equal(t, 1, store.ProfileCount())
}

func TestProvision_WalletFailureDoesNotBlockReadiness(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Fail(testutil.OpInsertWallet, errNetwork, 1)

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-12"), completeContext())

	assert.Equal(t, domain.StateReady, snap.State)
	assert.True(t, snap.WalletDegraded)
	assert.Nil(t, snap.LastError)
	assert.Equal(t, 1, store.ProfileCount())
	assert.Zero(t, store.WalletCount())
}

func TestProvision_DuplicateWalletIsNotDegraded(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Fail(testutil.OpInsertWallet, domain.ErrDuplicateKey, 1)

	snap := newTestEngine(store).Provision(context.Background(), verifiedIdentity("u-13"), completeContext())

	assert.Equal(t, domain.StateReady, snap.State)
	assert.False(t, snap.WalletDegraded)
	require.NotNil(t, snap.Wallet)
}

func TestProvision_ConcurrentInvocationsConverge(t *testing.T) {
	for _, n := range []int{1, 2, 8, 32} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			store := testutil.NewMemoryStore()
			store.FindDelay = 5 * time.Millisecond
			engine := newTestEngine(store)

			var (
				wg    sync.WaitGroup
				start = make(chan struct{})
				snaps = make([]domain.Snapshot, n)
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					snaps[i] = engine.Provision(context.Background(), verifiedIdentity("u-race"), completeContext())
				}(i)
			}
			close(start)
			wg.Wait()

			for i, snap := range snaps {
				assert.Equal(t, domain.StateReady, snap.State, "invocation %d", i)
				assert.Nil(t, snap.LastError, "invocation %d", i)
			}
			assert.Equal(t, 1, store.ProfileCount())
			assert.Equal(t, 1, store.WalletCount())
		})
	}
}

func TestMissingFields(t *testing.T) {
	engine := newTestEngine(testutil.NewMemoryStore())

	missing, err := engine.MissingFields(nil)
	require.NoError(t, err)
	assert.Len(t, missing, 4)

	missing, err = engine.MissingFields(completeContext())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestProvision_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedProfile(domain.Profile{ID: "u-shared", Name: "Ada", Role: domain.RoleBuyer})
	store.SeedWallet(domain.NewWallet("u-shared"))
	store.FindDelay = 100 * time.Millisecond
	engine := newTestEngine(store)

	leaderCtx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	var (
		wg       sync.WaitGroup
		leader   domain.Snapshot
		follower domain.Snapshot
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		leader = engine.Provision(leaderCtx, verifiedIdentity("u-shared"), nil)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		follower = engine.Provision(context.Background(), verifiedIdentity("u-shared"), nil)
	}()
	wg.Wait()

	assert.Equal(t, domain.StateError, leader.State)
	require.Equal(t, domain.StateReady, follower.State)
	assert.Nil(t, follower.LastError)
	require.NotNil(t, follower.Profile)
	assert.Equal(t, "Ada", follower.Profile.Name)
	assert.Equal(t, 1, store.Calls(testutil.OpFindProfile))
}
