package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceLister fetches the full device list from the backend.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// Registry owns the id ↔ name mapping and the last known property values
// of every device.
//
// State lives in an immutable Snapshot behind an atomic pointer. Writers
// (Refresh, ApplyStatus) build a new snapshot and swap it in; readers load
// the pointer and never lock, so a reader sees either the old or the new
// mapping in full.
//
// All public methods are thread-safe.
type Registry struct {
	lister  DeviceLister
	current atomic.Pointer[Snapshot]

	// writeMu serialises writers; readers never take it.
	writeMu sync.Mutex

	logger Logger
}

// NewRegistry creates an empty registry backed by lister.
func NewRegistry(lister DeviceLister) *Registry {
	r := &Registry{
		lister: lister,
		logger: noopLogger{},
	}
	r.current.Store(emptySnapshot())
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Refresh fetches the device list and replaces the snapshot.
//
// On failure the snapshot is left untouched and the error wraps
// ErrRefreshFailed. Devices without an id or a name are skipped. When two
// ids share a name, the lower id keeps it and the others are left out of
// the snapshot with a warning: they would otherwise be published into the
// same Homie tree. The refresh still succeeds.
func (r *Registry) Refresh(ctx context.Context) error {
	devices, err := r.lister.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	previous := r.current.Load()
	next := r.buildSnapshot(devices, previous)
	r.current.Store(next)

	r.logger.Debug("device registry refreshed", "count", len(next.ordered))
	return nil
}

func (r *Registry) buildSnapshot(devices []Device, previous *Snapshot) *Snapshot {
	valid := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.ID == "" || d.Name == "" {
			r.logger.Warn("skipping device without id or name", "id", d.ID, "name", d.Name)
			continue
		}
		valid = append(valid, d.Clone())
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].ID < valid[j].ID })

	s := &Snapshot{
		byID:        make(map[string]int, len(valid)),
		byName:      make(map[string]string, len(valid)),
		refreshedAt: time.Now(),
	}

	for _, d := range valid {
		if _, dup := s.byID[d.ID]; dup {
			r.logger.Warn("duplicate device id in device list", "id", d.ID)
			continue
		}
		if owner, taken := s.byName[d.Name]; taken {
			r.logger.Warn("device name collision, keeping first id",
				"name", d.Name,
				"kept_id", owner,
				"ignored_id", d.ID,
			)
			continue
		}
		if !homie.IsValidID(d.Name) {
			r.logger.Warn("device name is not a valid Homie id, publishing as-is",
				"id", d.ID,
				"name", d.Name,
			)
		}
		if prev, ok := previous.device(d.ID); ok {
			d.Properties = carryOver(d.Properties, prev.Properties)
		}

		s.byID[d.ID] = len(s.ordered)
		s.ordered = append(s.ordered, d)
		s.byName[d.Name] = d.ID
	}

	return s
}

// ApplyStatus merges polled values into a device's properties and returns
// the updated device. It reports false if the id is not in the snapshot.
func (r *Registry) ApplyStatus(id string, values []PropertyValue) (Device, bool) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.current.Load()
	i, ok := cur.byID[id]
	if !ok {
		return Device{}, false
	}

	next := &Snapshot{
		byID:        cur.byID,
		byName:      cur.byName,
		ordered:     make([]Device, len(cur.ordered)),
		refreshedAt: cur.refreshedAt,
	}
	copy(next.ordered, cur.ordered)

	updated := next.ordered[i].Clone()
	updated.Properties = MergeValues(updated.Properties, values)
	next.ordered[i] = updated

	r.current.Store(next)
	return updated.Clone(), true
}

// Snapshot returns the current immutable view of the registry.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// NameFor returns the name of the device with the given id.
func (r *Registry) NameFor(id string) (string, bool) {
	return r.current.Load().NameFor(id)
}

// IDFor returns the id of the device with the given name. A known raw id
// is accepted as well and returned unchanged.
func (r *Registry) IDFor(name string) (string, bool) {
	return r.current.Load().IDFor(name)
}

// NameOrSelf returns the device name for id, or id itself when unknown.
func (r *Registry) NameOrSelf(id string) string {
	if name, ok := r.NameFor(id); ok {
		return name
	}
	return id
}

// IDOrSelf returns the device id for name, or name itself when unknown.
func (r *Registry) IDOrSelf(name string) string {
	if id, ok := r.IDFor(name); ok {
		return id
	}
	return name
}

// Device returns a copy of the device with the given id.
func (r *Registry) Device(id string) (Device, bool) {
	return r.current.Load().Device(id)
}

// Devices returns copies of all devices ordered by id.
func (r *Registry) Devices() []Device {
	return r.current.Load().Devices()
}

// Count returns the number of devices in the current snapshot.
func (r *Registry) Count() int {
	return r.current.Load().Count()
}

// LastRefresh returns when the current snapshot was built by Refresh.
// It is the zero time before the first successful refresh.
func (r *Registry) LastRefresh() time.Time {
	return r.current.Load().RefreshedAt()
}
