// Package plan manages the lifecycle of generation plans: creation,
// resolution through aliases, updates, expiry and deletion.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"genline/internal/analyzer"
	"genline/internal/domain"
	"genline/internal/events"
	"genline/internal/naming"
	"genline/internal/store"
)

// UpdatePolicy decides whether an update keeps the plan id.
type UpdatePolicy string

const (
	UpdateInPlace UpdatePolicy = "in_place"
	// UpdateNewID issues <id>_v2 and re-points every existing alias at it.
	UpdateNewID UpdatePolicy = "new_id"
)

const DefaultTTL = 120 * time.Minute

// Policy tunes id minting, expiry and update identity.
type Policy struct {
	TTL          time.Duration
	IDStrategy   IDStrategy
	UpdatePolicy UpdatePolicy
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	Capability  string
	ProjectPath string
	Description string
	Options     map[string]any
}

// Patch is the input to Update. A nil Options leaves options untouched; a
// non-nil map, even an empty one, replaces them.
type Patch struct {
	Options map[string]any
}

// Manager owns every plan mutation. It is safe for concurrent use as long
// as its Store is.
type Manager struct {
	Store    store.Store
	Analyzer analyzer.Analyzer
	Events   events.Recorder
	Logger   *slog.Logger
	Policy   Policy
	Now      func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now()
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *Manager) ttl() time.Duration {
	if m.Policy.TTL <= 0 {
		return DefaultTTL
	}
	return m.Policy.TTL
}

func (m *Manager) record(ctx context.Context, evtType, entityKind, id string, payload events.EventPayload) {
	if m.Events == nil {
		return
	}
	if err := m.Events.Record(ctx, evtType, entityKind, id, payload); err != nil {
		m.logger().WarnContext(ctx, "record event", "event", evtType, "entity_id", id, "err", err)
	}
}

// Create analyzes the target project, mints an id and stores the plan under
// its canonical id, normalized id and any keyword aliases.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*domain.Plan, error) {
	capability := strings.TrimSpace(req.Capability)
	if capability == "" {
		return nil, Invalid("capability is required")
	}
	project, err := m.Analyzer.Analyze(ctx, req.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("analyze project: %w", err)
	}
	now := m.now()
	minted := mintID(m.Policy.IDStrategy, req.Description, now)
	if _, err := m.Store.Get(ctx, minted.ID); err == nil {
		// keyword ids carry little entropy; never overwrite a live plan
		minted.ID = randomID(now)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	p := &domain.Plan{
		ID:          minted.ID,
		Capability:  capability,
		Description: req.Description,
		Project:     project,
		Options:     req.Options,
		Status:      domain.PlanCreated,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl()),
	}
	if p.Options == nil {
		p.Options = map[string]any{}
	}
	keys := minted.Keys()
	for _, k := range keys {
		if err := m.Store.Put(ctx, k, p); err != nil {
			return nil, fmt.Errorf("store plan %s: %w", p.ID, err)
		}
	}
	m.logger().InfoContext(ctx, "plan created", "plan_id", p.ID, "capability", capability, "aliases", len(keys)-1)
	m.record(ctx, events.PlanCreated, events.KindPlan, p.ID, events.EventPayload{
		"capability": capability,
		"keys":       keys,
		"expires_at": p.ExpiresAt,
	})
	return p.Clone(), nil
}

// Resolve finds a plan by exact key, then normalized key, then fuzzy match.
// Expired plans are evicted with all their aliases and reported as expired.
func (m *Manager) Resolve(ctx context.Context, id string) (*domain.Plan, error) {
	p, err := m.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Expired(m.now()) {
		n, rmErr := m.Store.RemoveAllAliasesOf(ctx, p)
		if rmErr != nil {
			m.logger().WarnContext(ctx, "evict expired plan", "plan_id", p.ID, "err", rmErr)
		}
		m.logger().InfoContext(ctx, "plan expired", "plan_id", p.ID, "requested", id, "aliases_removed", n)
		m.record(ctx, events.PlanExpired, events.KindPlan, p.ID, events.EventPayload{"requested": id, "expired_at": p.ExpiresAt})
		return nil, expired(id)
	}
	m.logger().DebugContext(ctx, "plan resolved", "plan_id", p.ID, "requested", id)
	return p, nil
}

// locate runs the three lookup stages without looking at expiry.
func (m *Manager) locate(ctx context.Context, id string) (*domain.Plan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, Invalid("plan id is required")
	}
	p, err := m.get(ctx, id)
	if err != nil || p != nil {
		return p, err
	}
	normalized := naming.NormalizeID(id)
	if normalized != id {
		if p, err = m.get(ctx, normalized); err != nil || p != nil {
			return p, err
		}
	}
	keys, err := m.Store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if !fuzzyMatch(id, normalized, k) {
			continue
		}
		if p, err = m.get(ctx, k); err != nil || p != nil {
			m.logger().DebugContext(ctx, "plan matched fuzzily", "requested", id, "key", k)
			return p, err
		}
	}
	sort.Strings(keys)
	return nil, notFound(id, keys)
}

func (m *Manager) get(ctx context.Context, key string) (*domain.Plan, error) {
	p, err := m.Store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// fuzzyMatch accepts a key equal ignoring case, with an equal normalized
// form, or containing (or contained in) the request, raw or normalized.
// Empty normalized forms never match by containment.
func fuzzyMatch(requested, normalized, key string) bool {
	if strings.EqualFold(requested, key) {
		return true
	}
	nk := naming.NormalizeID(key)
	if normalized != "" && normalized == nk {
		return true
	}
	if strings.Contains(key, requested) || strings.Contains(requested, key) {
		return true
	}
	if normalized == "" || nk == "" {
		return false
	}
	return strings.Contains(nk, normalized) || strings.Contains(normalized, nk)
}

// Update applies patch to the resolved plan, marks it updated and extends
// its expiry. Under UpdateNewID the result carries a fresh id and every
// key that resolved to the old plan resolves to the new one.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) (*domain.Plan, error) {
	current, err := m.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	next := current.Clone()
	if patch.Options != nil {
		next.Options = patch.Options
	}
	next.Status = domain.PlanUpdated
	next.ExpiresAt = now.Add(m.ttl())

	aliases, err := m.Store.AliasesOf(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	keys := aliases
	if m.Policy.UpdatePolicy == UpdateNewID {
		next.ID = nextVersionID(current.ID)
		next.CreatedAt = now
		keys = append(mintedID{ID: next.ID}.Keys(), aliases...)
	} else if len(keys) == 0 {
		keys = []string{current.ID}
	}
	for _, k := range keys {
		if err := m.Store.Put(ctx, k, next); err != nil {
			return nil, fmt.Errorf("store plan %s: %w", next.ID, err)
		}
	}
	m.logger().InfoContext(ctx, "plan updated", "plan_id", next.ID, "previous_id", current.ID, "options_replaced", patch.Options != nil)
	m.record(ctx, events.PlanUpdated, events.KindPlan, next.ID, events.EventPayload{
		"previous_id":      current.ID,
		"options_replaced": patch.Options != nil,
		"expires_at":       next.ExpiresAt,
	})
	return next.Clone(), nil
}

// Delete removes the plan reachable from id along with all its aliases.
// It reports false when nothing matched. Expired plans are deletable.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	p, err := m.locate(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	n, err := m.Store.RemoveAllAliasesOf(ctx, p)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	m.logger().InfoContext(ctx, "plan deleted", "plan_id", p.ID, "requested", id, "aliases_removed", n)
	m.record(ctx, events.PlanDeleted, events.KindPlan, p.ID, events.EventPayload{"requested": id, "aliases_removed": n})
	return true, nil
}

// LiveIDs lists every key currently held, sorted.
func (m *Manager) LiveIDs(ctx context.Context) ([]string, error) {
	keys, err := m.Store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
