package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genline/internal/domain"
	"genline/internal/events"
	"genline/internal/logging"
	"genline/internal/store"
)

type fakeAnalyzer struct {
	err error
}

func (a fakeAnalyzer) Analyze(_ context.Context, path string) (domain.ProjectDescriptor, error) {
	if a.err != nil {
		return domain.ProjectDescriptor{}, a.err
	}
	return domain.ProjectDescriptor{
		Path:             path,
		Language:         "Java",
		LanguageVersion:  "17",
		Framework:        "Spring Boot",
		FrameworkVersion: "3.2.0",
		BuildTool:        "maven",
		BasePackage:      "com.example",
		Packages:         map[string]string{domain.RoleEntity: "com.example.model"},
		Features:         map[string]bool{"lombok": true},
	}, nil
}

type recordedEvent struct {
	Type, Kind, ID string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) Record(_ context.Context, evtType, entityKind, entityID string, _ events.EventPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{evtType, entityKind, entityID})
	return nil
}

func (r *fakeRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	m     *Manager
	clock *clock
	rec   *fakeRecorder
}

func newFixture(t *testing.T, policy Policy) fixture {
	t.Helper()
	mem, err := store.NewMemory(100, logging.Discard())
	require.NoError(t, err)
	c := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 1234*int(time.Millisecond), time.UTC)}
	rec := &fakeRecorder{}
	if policy.TTL == 0 {
		policy.TTL = time.Hour
	}
	return fixture{
		m: &Manager{
			Store:    mem,
			Analyzer: fakeAnalyzer{},
			Events:   rec,
			Logger:   logging.Discard(),
			Policy:   policy,
			Now:      c.Now,
		},
		clock: c,
		rec:   rec,
	}
}

func (f fixture) create(t *testing.T, desc string) *domain.Plan {
	t.Helper()
	p, err := f.m.Create(context.Background(), CreateRequest{Capability: "postgresql", ProjectPath: "/srv/app", Description: desc})
	require.NoError(t, err)
	return p
}

func TestCreateKeywordPlanIsReachableFromEveryAlias(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword})
	ctx := context.Background()
	p := f.create(t, "Simple User Management service")

	assert.True(t, strings.HasPrefix(p.ID, "user-management-plan-"))
	assert.Equal(t, domain.PlanCreated, p.Status)
	assert.Equal(t, f.clock.Now().Add(time.Hour), p.ExpiresAt)
	assert.Equal(t, "/srv/app", p.Project.Path)
	assert.NotNil(t, p.Options)

	keys, err := f.m.LiveIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p.ID, "user-management-simple-integration", "simplified-user-management"}, keys)

	for _, k := range keys {
		got, err := f.m.Resolve(ctx, k)
		require.NoError(t, err, k)
		assert.Equal(t, p.ID, got.ID)
	}
	assert.Equal(t, []string{events.PlanCreated}, f.rec.types())
}

func TestCreateRandomPlanStoresNormalizedKey(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDRandom})
	p := f.create(t, "user management")

	assert.True(t, strings.HasPrefix(p.ID, "plan_"))
	keys, err := f.m.LiveIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p.ID, strings.ReplaceAll(p.ID, "_", "-")}, keys)
}

func TestCreateKeywordCollisionFallsBackToRandom(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword})
	first := f.create(t, "blog engine")
	second := f.create(t, "another blog")

	assert.True(t, strings.HasPrefix(first.ID, "blog-system-plan-"))
	assert.True(t, strings.HasPrefix(second.ID, "plan_"))

	got, err := f.m.Resolve(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "blog engine", got.Description)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, Policy{})
	_, err := f.m.Create(context.Background(), CreateRequest{Capability: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	f.m.Analyzer = fakeAnalyzer{err: errors.New("disk gone")}
	_, err = f.m.Create(context.Background(), CreateRequest{Capability: "postgresql"})
	assert.ErrorContains(t, err, "disk gone")
}

func TestResolveNormalizedAndFuzzy(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword})
	ctx := context.Background()
	p := f.create(t, "user management")

	cases := []string{
		strings.ToUpper(p.ID),
		strings.ReplaceAll(p.ID, "-", "_"),
		"simplified",
		" Simplified User Management ",
	}
	for _, id := range cases {
		got, err := f.m.Resolve(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, p.ID, got.ID, id)
	}
}

func TestResolveNotFoundListsLiveIDs(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword})
	ctx := context.Background()
	p := f.create(t, "blog")

	_, err := f.m.Resolve(ctx, "inventory-9")
	require.ErrorIs(t, err, ErrNotFound)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindNotFound, perr.Kind)
	assert.Equal(t, HintCreateNew, perr.Hint)
	assert.Equal(t, []string{"blog-system-integration", p.ID}, perr.LiveIDs)
	assert.Contains(t, err.Error(), "Plan not found: inventory-9")

	_, err = f.m.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResolveExpiryEvictsEveryAlias(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword})
	ctx := context.Background()
	p := f.create(t, "user management")

	f.clock.Advance(time.Hour)
	_, err := f.m.Resolve(ctx, p.ID)
	require.NoError(t, err, "a plan is live at exactly its expiration instant")

	f.clock.Advance(time.Millisecond)
	_, err = f.m.Resolve(ctx, "simplified-user-management")
	require.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "Plan expired: simplified-user-management. Please create a new plan.", err.Error())

	keys, err := f.m.LiveIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// once evicted, never resolvable again
	for _, id := range []string{p.ID, "user-management-simple-integration"} {
		_, err = f.m.Resolve(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
	assert.Equal(t, []string{events.PlanCreated, events.PlanExpired}, f.rec.types())
}

func TestUpdateInPlace(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword, UpdatePolicy: UpdateInPlace})
	ctx := context.Background()
	p := f.create(t, "user management")

	f.clock.Advance(30 * time.Minute)
	updated, err := f.m.Update(ctx, "simplified-user-management", Patch{Options: map[string]any{"naming_strategy": "camelCase"}})
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, domain.PlanUpdated, updated.Status)
	assert.Equal(t, f.clock.Now().Add(time.Hour), updated.ExpiresAt)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	keys, err := f.m.LiveIDs(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		got, err := f.m.Resolve(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "camelCase", got.Options["naming_strategy"], k)
		assert.Equal(t, domain.PlanUpdated, got.Status, k)
	}

	// the extended expiry keeps the plan alive past its original deadline
	f.clock.Advance(45 * time.Minute)
	_, err = f.m.Resolve(ctx, p.ID)
	require.NoError(t, err)
}

func TestUpdateWithoutOptionsKeepsThem(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	p, err := f.m.Create(ctx, CreateRequest{Capability: "postgresql", Options: map[string]any{"audit_fields": true}})
	require.NoError(t, err)

	updated, err := f.m.Update(ctx, p.ID, Patch{})
	require.NoError(t, err)
	assert.Equal(t, true, updated.Options["audit_fields"])

	updated, err = f.m.Update(ctx, p.ID, Patch{Options: map[string]any{}})
	require.NoError(t, err)
	assert.Empty(t, updated.Options)
}

func TestUpdateNewIDKeepsOldKeysResolvable(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword, UpdatePolicy: UpdateNewID})
	ctx := context.Background()
	p := f.create(t, "blog")

	v2, err := f.m.Update(ctx, p.ID, Patch{Options: map[string]any{"id_generation": "UUID"}})
	require.NoError(t, err)
	assert.Equal(t, p.ID+"_v2", v2.ID)

	for _, id := range []string{p.ID, v2.ID, "blog-system-integration"} {
		got, err := f.m.Resolve(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, v2.ID, got.ID, id)
		assert.Equal(t, "UUID", got.Options["id_generation"], id)
	}

	v3, err := f.m.Update(ctx, v2.ID, Patch{})
	require.NoError(t, err)
	assert.Equal(t, p.ID+"_v3", v3.ID)
}

func TestUpdateMissingPlan(t *testing.T) {
	f := newFixture(t, Policy{})
	_, err := f.m.Update(context.Background(), "nope", Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesEveryAlias(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDKeyword})
	ctx := context.Background()
	p := f.create(t, "user management")
	other := f.create(t, "blog")

	ok, err := f.m.Delete(ctx, "user-management-simple-integration")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.m.Resolve(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.m.Resolve(ctx, other.ID)
	assert.NoError(t, err)

	ok, err = f.m.Delete(ctx, "user-management-simple-integration")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteExpiredPlan(t *testing.T) {
	f := newFixture(t, Policy{})
	p := f.create(t, "")
	f.clock.Advance(2 * time.Hour)

	ok, err := f.m.Delete(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	p := f.create(t, "")

	a, err := f.m.Resolve(ctx, p.ID)
	require.NoError(t, err)
	a.Project.Packages[domain.RoleEntity] = "mutated"
	a.Options["x"] = 1

	b, err := f.m.Resolve(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "com.example.model", b.Project.Packages[domain.RoleEntity])
	assert.NotContains(t, b.Options, "x")
}

func TestConcurrentLifecycle(t *testing.T) {
	f := newFixture(t, Policy{IDStrategy: IDRandom})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.m.Create(ctx, CreateRequest{Capability: "postgresql", Description: fmt.Sprintf("worker %d", i)})
			if err != nil {
				errs <- err
				return
			}
			if _, err := f.m.Resolve(ctx, p.ID); err != nil {
				errs <- err
			}
			if _, err := f.m.Update(ctx, p.ID, Patch{Options: map[string]any{"n": i}}); err != nil {
				errs <- err
			}
			if i%2 == 0 {
				if _, err := f.m.Delete(ctx, p.ID); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	keys, err := f.m.LiveIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 16)
}
