package device

import "time"

// Snapshot is an immutable view of the registry at one point in time.
// Every lookup on the same Snapshot sees the same mapping.
type Snapshot struct {
	byID        map[string]int
	byName      map[string]string
	ordered     []Device
	refreshedAt time.Time
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		byID:   map[string]int{},
		byName: map[string]string{},
	}
}

func (s *Snapshot) device(id string) (Device, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Device{}, false
	}
	return s.ordered[i], true
}

// NameFor returns the name of the device with the given id.
func (s *Snapshot) NameFor(id string) (string, bool) {
	d, ok := s.device(id)
	if !ok {
		return "", false
	}
	return d.Name, true
}

// IDFor returns the id owning name, or name itself if it is a known id.
func (s *Snapshot) IDFor(name string) (string, bool) {
	if id, ok := s.byName[name]; ok {
		return id, true
	}
	if _, ok := s.byID[name]; ok {
		return name, true
	}
	return "", false
}

// Device returns a copy of the device with the given id.
func (s *Snapshot) Device(id string) (Device, bool) {
	d, ok := s.device(id)
	if !ok {
		return Device{}, false
	}
	return d.Clone(), true
}

// Devices returns copies of all devices ordered by id.
func (s *Snapshot) Devices() []Device {
	out := make([]Device, len(s.ordered))
	for i, d := range s.ordered {
		out[i] = d.Clone()
	}
	return out
}

// Count returns the number of devices.
func (s *Snapshot) Count() int {
	return len(s.ordered)
}

// RefreshedAt returns when the device list behind this snapshot was fetched.
func (s *Snapshot) RefreshedAt() time.Time {
	return s.refreshedAt
}
