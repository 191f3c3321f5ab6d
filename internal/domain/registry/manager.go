package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/arcadia-launcher/arcadia/backend/internal/domain/extension"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/hooks"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/manifest"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/permissions"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/monitoring"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/id"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
	"github.com/arcadia-launcher/arcadia/backend/internal/storage"
)

// Manager is the authoritative table of installed extensions. It owns
// the lifecycle state machine, the permission gate, and the hook
// dispatcher, and serializes lifecycle operations per extension id.
type Manager struct {
	mu         sync.RWMutex
	extensions map[string]*types.Extension // Protected by mu
	instances  map[string]extension.Instance

	locks sync.Map // extension id -> *sync.Mutex, one lifecycle op in flight per id

	store      storage.Store
	gate       *permissions.Gate
	dispatcher *hooks.Dispatcher
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	events     EventSink
}

// NewManager creates a registry backed by the given store
func NewManager(store storage.Store, logger *logging.Logger) *Manager {
	m := &Manager{
		extensions: make(map[string]*types.Extension),
		instances:  make(map[string]extension.Instance),
		store:      store,
		gate:       permissions.NewGate(),
		logger:     logger,
		events:     nopSink{},
	}
	m.dispatcher = hooks.NewDispatcher(m.handlerEnabled)
	return m
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithEvents adds an event sink to the manager
func (m *Manager) WithEvents(sink EventSink) *Manager {
	m.events = sink
	return m
}

// Gate exposes the permission gate
func (m *Manager) Gate() *permissions.Gate { return m.gate }

// Load restores persisted extensions into memory. Rows caught in a
// transient state by a previous crash are parked in Failed so they can
// be uninstalled.
func (m *Manager) Load(ctx context.Context) error {
	rows, err := m.store.List(ctx, storage.BucketExtensions, "")
	if err != nil {
		return &types.IOError{Op: "list", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, data := range rows {
		var ext types.Extension
		if err := sonic.Unmarshal(data, &ext); err != nil {
			m.logger.Error("Skipping corrupt extension row",
				zap.String("key", key), zap.Error(err))
			continue
		}

		switch ext.State {
		case types.StateInstalled, types.StateEnabled, types.StateDisabled, types.StateFailed:
			// durable states, restore as-is
		default:
			ext.State = types.StateFailed
			ext.FailureReason = "interrupted by restart"
			ext.Enabled = false
			if data, merr := sonic.Marshal(&ext); merr == nil {
				if serr := m.store.Set(ctx, storage.BucketExtensions, ext.ID, data); serr != nil {
					m.logger.Warn("Failed to persist interrupted state",
						zap.String("extension_id", ext.ID), zap.Error(serr))
				}
			}
		}

		m.extensions[ext.ID] = &ext
		if ext.State != types.StateFailed {
			m.wireLocked(&ext)
		}
	}

	m.logger.Info("Extension registry loaded", zap.Int("extensions", len(m.extensions)))
	m.updateGauges()
	return nil
}

// Install validates a raw manifest, resolves its dependencies against
// installed extensions, and commits a new row through
// Installing -> Installed.
func (m *Manager) Install(ctx context.Context, rawManifest []byte, sourceID string) (types.ExtensionInfo, error) {
	man, err := manifest.Validate(rawManifest)
	if err != nil {
		return types.ExtensionInfo{}, err
	}

	extID := id.NewExtensionID()
	now := time.Now()
	ext := &types.Extension{
		ID:          extID,
		Manifest:    *man,
		State:       types.StateInstalling,
		Granted:     []types.Permission{},
		SourceID:    sourceID,
		InstalledAt: now,
		UpdatedAt:   now,
	}

	// Duplicate check, dependency resolution, and table reservation
	// must be one atomic step or two racing installs could both pass.
	m.mu.Lock()
	for _, existing := range m.extensions {
		if existing.Manifest.Identity() == man.Identity() && existing.State != types.StateFailed {
			m.mu.Unlock()
			return types.ExtensionInfo{}, &types.AlreadyInstalledError{
				Name:   man.Name,
				Author: man.Author,
				ID:     existing.ID,
			}
		}
	}
	if err := m.resolveLocked(man); err != nil {
		m.mu.Unlock()
		return types.ExtensionInfo{}, err
	}
	m.extensions[extID] = ext
	m.mu.Unlock()

	lock := m.lockFor(extID)
	lock.Lock()
	defer lock.Unlock()

	m.publishState(ext)
	if err := m.persist(ctx, ext); err != nil {
		m.fail(ctx, ext, fmt.Sprintf("persist install: %v", err))
		return types.ExtensionInfo{}, err
	}

	inst := extension.New(extID, *man)
	m.gate.Register(extID, man.Permissions)
	for _, hook := range man.Hooks {
		m.dispatcher.Register(hook, extID, instanceHandler(inst))
	}

	m.mu.Lock()
	m.instances[extID] = inst
	ext.State = types.StateInstalled
	ext.UpdatedAt = time.Now()
	m.mu.Unlock()

	if err := m.persist(ctx, ext); err != nil {
		m.fail(ctx, ext, fmt.Sprintf("persist installed state: %v", err))
		return types.ExtensionInfo{}, err
	}
	m.publishState(ext)

	m.logger.Info("Extension installed",
		zap.String("extension_id", extID),
		zap.String("name", man.Name),
		zap.String("version", man.Version),
	)
	m.updateGauges()
	return ext.Info(), nil
}

// Enable transitions an extension through Enabling to Enabled and
// fires its on_enable hook before settling. A no-op when already
// enabled.
func (m *Manager) Enable(ctx context.Context, extID string) error {
	lock, err := m.tryLock(extID)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ext, err := m.get(extID)
	if err != nil {
		return err
	}
	if ext.State == types.StateEnabled && ext.Enabled {
		return nil
	}
	if ext.State != types.StateInstalled && ext.State != types.StateDisabled {
		return fmt.Errorf("cannot enable extension %s in state %s", extID, ext.State)
	}

	if err := m.setState(ctx, ext, types.StateEnabling); err != nil {
		return err
	}
	m.fireLifecycleHook(ctx, extID, "on_enable")

	m.mu.Lock()
	ext.Enabled = true
	m.mu.Unlock()
	if err := m.setState(ctx, ext, types.StateEnabled); err != nil {
		return err
	}

	m.logger.Info("Extension enabled", zap.String("extension_id", extID))
	m.updateGauges()
	return nil
}

// Disable transitions an extension through Disabling to Disabled and
// fires its on_disable hook. Hooks registered by the extension are
// silenced immediately at dispatch time. A no-op when already disabled.
func (m *Manager) Disable(ctx context.Context, extID string) error {
	lock, err := m.tryLock(extID)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ext, err := m.get(extID)
	if err != nil {
		return err
	}
	if ext.State == types.StateDisabled && !ext.Enabled {
		return nil
	}
	if ext.State != types.StateEnabled {
		return fmt.Errorf("cannot disable extension %s in state %s", extID, ext.State)
	}

	if err := m.setState(ctx, ext, types.StateDisabling); err != nil {
		return err
	}

	m.mu.Lock()
	ext.Enabled = false
	m.mu.Unlock()
	m.fireLifecycleHook(ctx, extID, "on_disable")

	if err := m.setState(ctx, ext, types.StateDisabled); err != nil {
		return err
	}

	m.logger.Info("Extension disabled", zap.String("extension_id", extID))
	m.updateGauges()
	return nil
}

// Uninstall fires on_uninstall, then removes the persisted row and all
// settings for the extension. A misbehaving hook handler is logged and
// never blocks removal. Unlike other operations, Uninstall waits for
// any in-flight operation on the same id to reach its terminal outcome.
func (m *Manager) Uninstall(ctx context.Context, extID string) error {
	lock := m.lockFor(extID)
	lock.Lock()
	defer lock.Unlock()

	ext, err := m.get(extID)
	if err != nil {
		return err
	}
	switch ext.State {
	case types.StateInstalled, types.StateDisabled, types.StateFailed:
	default:
		return fmt.Errorf("cannot uninstall extension %s in state %s: disable it first", extID, ext.State)
	}

	if err := m.setState(ctx, ext, types.StateUninstalling); err != nil {
		return err
	}
	m.fireLifecycleHook(ctx, extID, "on_uninstall")

	// Purge settings before the row so a crash between the two leaves
	// no orphaned settings.
	settings, err := m.store.List(ctx, storage.BucketSettings, extID+"/")
	if err != nil {
		m.fail(ctx, ext, fmt.Sprintf("list settings: %v", err))
		return &types.IOError{Op: "list", Err: err}
	}
	for key := range settings {
		if err := m.store.Delete(ctx, storage.BucketSettings, key); err != nil {
			m.fail(ctx, ext, fmt.Sprintf("purge setting %s: %v", key, err))
			return &types.IOError{Op: "delete", Err: err}
		}
	}
	if err := m.store.Delete(ctx, storage.BucketExtensions, extID); err != nil {
		m.fail(ctx, ext, fmt.Sprintf("delete row: %v", err))
		return &types.IOError{Op: "delete", Err: err}
	}

	m.gate.Drop(extID)
	m.dispatcher.UnregisterExtension(extID)

	m.mu.Lock()
	delete(m.extensions, extID)
	delete(m.instances, extID)
	m.mu.Unlock()
	m.locks.Delete(extID)

	m.events.Publish(Event{
		Type:        EventStateChanged,
		ExtensionID: extID,
		State:       types.StateRemoved,
		Time:        time.Now(),
	})
	if m.metrics != nil {
		m.metrics.RecordTransition(string(types.StateRemoved))
	}

	m.logger.Info("Extension uninstalled", zap.String("extension_id", extID))
	m.updateGauges()
	return nil
}

// Update replaces an installed extension's manifest from a newer
// package, preserving its id and whichever grants the new manifest
// still declares. The extension type is immutable across updates.
func (m *Manager) Update(ctx context.Context, extID string, rawManifest []byte) (types.ExtensionInfo, error) {
	man, err := manifest.Validate(rawManifest)
	if err != nil {
		return types.ExtensionInfo{}, err
	}

	lock, err := m.tryLock(extID)
	if err != nil {
		return types.ExtensionInfo{}, err
	}
	defer lock.Unlock()

	ext, err := m.get(extID)
	if err != nil {
		return types.ExtensionInfo{}, err
	}
	if man.Type != ext.Manifest.Type {
		return types.ExtensionInfo{}, &types.ManifestError{
			Kind:  types.ManifestUnsupportedType,
			Field: "type",
			Cause: fmt.Sprintf("type is immutable after install (%s -> %s requires reinstall)", ext.Manifest.Type, man.Type),
		}
	}

	m.mu.Lock()
	if err := m.resolveLocked(man); err != nil {
		m.mu.Unlock()
		return types.ExtensionInfo{}, err
	}

	ext.Manifest = *man
	ext.Granted = retainDeclared(ext.Granted, man.Permissions)
	ext.UpdatedAt = time.Now()

	inst := extension.New(extID, *man)
	m.instances[extID] = inst
	m.mu.Unlock()

	m.gate.Register(extID, man.Permissions)
	for _, p := range ext.Granted {
		if err := m.gate.Grant(extID, p); err != nil {
			m.logger.Warn("Failed to replay grant after update",
				zap.String("extension_id", extID), zap.Error(err))
		}
	}
	m.dispatcher.UnregisterExtension(extID)
	for _, hook := range man.Hooks {
		m.dispatcher.Register(hook, extID, instanceHandler(inst))
	}

	if err := m.persist(ctx, ext); err != nil {
		m.fail(ctx, ext, fmt.Sprintf("persist update: %v", err))
		return types.ExtensionInfo{}, err
	}

	m.logger.Info("Extension updated",
		zap.String("extension_id", extID),
		zap.String("version", man.Version),
	)
	return ext.Info(), nil
}

// Get returns the read-only projection of one extension
func (m *Manager) Get(extID string) (types.ExtensionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.extensions[extID]
	if !ok {
		return types.ExtensionInfo{}, &types.NotFoundError{Kind: "extension", ID: extID}
	}
	return ext.Info(), nil
}

// List returns projections of all extensions, sorted by name then id
func (m *Manager) List() []types.ExtensionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ExtensionInfo, 0, len(m.extensions))
	for _, ext := range m.extensions {
		out = append(out, ext.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindByIdentity returns the id of the live extension matching a
// manifest name+author, if any
func (m *Manager) FindByIdentity(name, author string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lookup := types.Manifest{Name: name, Author: author}
	key := lookup.Identity()
	for _, ext := range m.extensions {
		if ext.Manifest.Identity() == key && ext.State != types.StateFailed {
			return ext.ID, true
		}
	}
	return "", false
}

// GrantPermission records a grant through the gate and persists it
func (m *Manager) GrantPermission(ctx context.Context, extID string, p types.Permission) error {
	if !p.Valid() {
		return &types.PermissionError{ExtensionID: extID, Permission: p, Reason: "unknown permission"}
	}
	if err := m.gate.Grant(extID, p); err != nil {
		return err
	}

	m.mu.Lock()
	ext, ok := m.extensions[extID]
	if ok {
		ext.Granted = m.gate.Granted(extID)
		ext.UpdatedAt = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return &types.NotFoundError{Kind: "extension", ID: extID}
	}
	return m.persist(ctx, ext)
}

// RevokePermission revokes a grant, effective for the next Authorize
func (m *Manager) RevokePermission(ctx context.Context, extID string, p types.Permission) error {
	if err := m.gate.Revoke(extID, p); err != nil {
		return err
	}

	m.mu.Lock()
	ext, ok := m.extensions[extID]
	if ok {
		ext.Granted = m.gate.Granted(extID)
		ext.UpdatedAt = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return &types.NotFoundError{Kind: "extension", ID: extID}
	}
	return m.persist(ctx, ext)
}

// Authorize gates a capability-sensitive call for an extension
func (m *Manager) Authorize(extID string, p types.Permission) error {
	err := m.gate.Authorize(extID, p)
	if err != nil && m.metrics != nil {
		m.metrics.PermissionDenials.Inc()
	}
	return err
}

// InvokeHook dispatches an application event to every enabled
// extension registered for it and returns per-handler outcomes
func (m *Manager) InvokeHook(ctx context.Context, hook string, params map[string]interface{}) []hooks.Outcome {
	outcomes := m.dispatcher.Invoke(ctx, hook, params)

	failures := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failures++
		}
	}
	if m.metrics != nil {
		m.metrics.RecordHookDispatch(hook, failures)
	}
	m.events.Publish(Event{
		Type: EventHookDispatched,
		Hook: hook,
		Time: time.Now(),
	})
	return outcomes
}

// CallAPI invokes a named API provided by an enabled extension
func (m *Manager) CallAPI(ctx context.Context, extID, name string, params map[string]interface{}) (interface{}, error) {
	m.mu.RLock()
	ext, ok := m.extensions[extID]
	inst := m.instances[extID]
	m.mu.RUnlock()

	if !ok {
		return nil, &types.NotFoundError{Kind: "extension", ID: extID}
	}
	if !ext.Enabled || ext.State != types.StateEnabled {
		return nil, fmt.Errorf("extension %s is not enabled", extID)
	}

	result, err := inst.CallAPI(ctx, name, params)
	if err != nil {
		if _, notFound := err.(*types.NotFoundError); notFound {
			return nil, err
		}
		return nil, &types.ExtensionError{ExtensionID: extID, Hook: name, Err: err}
	}
	return result, nil
}

// Menu aggregates menu items contributed by enabled extensions
func (m *Manager) Menu() []types.MenuItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []types.MenuItem
	for _, ext := range m.extensions {
		if ext.Enabled && ext.State == types.StateEnabled {
			items = append(items, ext.Manifest.MenuItems...)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Stats returns registry statistics
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var enabled, failed int
	byType := make(map[string]int)
	for _, ext := range m.extensions {
		byType[string(ext.Manifest.Type)]++
		if ext.Enabled {
			enabled++
		}
		if ext.State == types.StateFailed {
			failed++
		}
	}
	return map[string]interface{}{
		"total":   len(m.extensions),
		"enabled": enabled,
		"failed":  failed,
		"by_type": byType,
	}
}

// ---- internals ----

func (m *Manager) lockFor(extID string) *sync.Mutex {
	actual, _ := m.locks.LoadOrStore(extID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// tryLock acquires the per-id lock without waiting; contention means
// another lifecycle operation is in flight for this id
func (m *Manager) tryLock(extID string) (*sync.Mutex, error) {
	lock := m.lockFor(extID)
	if !lock.TryLock() {
		return nil, &types.OperationInProgressError{ExtensionID: extID}
	}
	return lock, nil
}

func (m *Manager) get(extID string) (*types.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.extensions[extID]
	if !ok {
		return nil, &types.NotFoundError{Kind: "extension", ID: extID}
	}
	return ext, nil
}

// handlerEnabled is the dispatch-time predicate for hook handlers
func (m *Manager) handlerEnabled(extID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.extensions[extID]
	return ok && ext.Enabled && ext.State == types.StateEnabled
}

func (m *Manager) persist(ctx context.Context, ext *types.Extension) error {
	m.mu.RLock()
	data, err := sonic.Marshal(ext)
	m.mu.RUnlock()
	if err != nil {
		return &types.IOError{Op: "marshal", Err: err}
	}
	if err := m.store.Set(ctx, storage.BucketExtensions, ext.ID, data); err != nil {
		return &types.IOError{Op: "write", Err: err}
	}
	return nil
}

// setState commits one state transition: mutate, persist, publish.
// A persistence failure parks the extension in Failed.
func (m *Manager) setState(ctx context.Context, ext *types.Extension, state types.LifecycleState) error {
	m.mu.Lock()
	ext.State = state
	ext.UpdatedAt = time.Now()
	m.mu.Unlock()

	if err := m.persist(ctx, ext); err != nil {
		m.fail(ctx, ext, fmt.Sprintf("persist %s: %v", state, err))
		return err
	}
	m.publishState(ext)
	return nil
}

// fail parks an extension in the Failed sink; only Uninstalling is
// reachable from there
func (m *Manager) fail(ctx context.Context, ext *types.Extension, reason string) {
	m.mu.Lock()
	ext.State = types.StateFailed
	ext.FailureReason = reason
	ext.Enabled = false
	ext.UpdatedAt = time.Now()
	m.mu.Unlock()

	if err := m.persist(ctx, ext); err != nil {
		m.logger.Error("Failed to persist failure state",
			zap.String("extension_id", ext.ID), zap.Error(err))
	}
	m.publishState(ext)
	m.logger.Error("Extension parked in failed state",
		zap.String("extension_id", ext.ID), zap.String("reason", reason))
}

func (m *Manager) publishState(ext *types.Extension) {
	m.mu.RLock()
	event := Event{
		Type:        EventStateChanged,
		ExtensionID: ext.ID,
		State:       ext.State,
		Reason:      ext.FailureReason,
		Time:        time.Now(),
	}
	m.mu.RUnlock()

	m.events.Publish(event)
	if m.metrics != nil {
		m.metrics.RecordTransition(string(event.State))
	}
}

// wireLocked rebuilds gate and dispatcher state for a loaded row.
// Caller holds m.mu.
func (m *Manager) wireLocked(ext *types.Extension) {
	inst := extension.New(ext.ID, ext.Manifest)
	m.instances[ext.ID] = inst
	m.gate.Register(ext.ID, ext.Manifest.Permissions)
	for _, p := range ext.Granted {
		if err := m.gate.Grant(ext.ID, p); err != nil {
			m.logger.Warn("Dropping persisted grant no longer declared",
				zap.String("extension_id", ext.ID), zap.String("permission", string(p)))
		}
	}
	for _, hook := range ext.Manifest.Hooks {
		m.dispatcher.Register(hook, ext.ID, instanceHandler(inst))
	}
}

// fireLifecycleHook invokes one extension's own handler for a
// lifecycle event. Handler failure is logged and never blocks the
// transition.
func (m *Manager) fireLifecycleHook(ctx context.Context, extID, hook string) {
	m.mu.RLock()
	inst := m.instances[extID]
	m.mu.RUnlock()
	if inst == nil {
		return
	}

	if _, err := inst.HandleHook(ctx, hook, nil); err != nil {
		m.logger.Warn("Lifecycle hook handler failed",
			zap.String("extension_id", extID),
			zap.String("hook", hook),
			zap.Error(err),
		)
	}
}

func (m *Manager) updateGauges() {
	if m.metrics == nil {
		return
	}
	m.mu.RLock()
	installed := len(m.extensions)
	enabled := 0
	for _, ext := range m.extensions {
		if ext.Enabled {
			enabled++
		}
	}
	m.mu.RUnlock()
	m.metrics.SetExtensionCounts(installed, enabled)
}

// instanceHandler adapts an extension instance to the dispatcher
func instanceHandler(inst extension.Instance) hooks.Handler {
	return hooks.HandlerFunc(func(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error) {
		return inst.HandleHook(ctx, hook, params)
	})
}

func retainDeclared(granted, declared []types.Permission) []types.Permission {
	set := make(map[types.Permission]struct{}, len(declared))
	for _, p := range declared {
		set[p] = struct{}{}
	}
	out := make([]types.Permission, 0, len(granted))
	for _, p := range granted {
		if _, ok := set[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
