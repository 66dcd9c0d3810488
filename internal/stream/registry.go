package stream

import (
	"strings"
	"sync"
)

// Registry maps mount paths to streams.
type Registry struct {
	mutex   sync.RWMutex
	streams map[string]*Stream
}

// NewRegistry allocates a Registry.
func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[string]*Stream),
	}
}

// Add registers a stream under its ID. Its aliases are not stored
// separately: Resolve matches them against the registered streams.
func (r *Registry) Add(s *Stream) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.streams[s.ID] = s
}

// Remove unregisters a stream.
func (r *Registry) Remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.streams, id)
}

// Get returns the stream with the given ID.
func (r *Registry) Get(id string) *Stream {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.streams[id]
}

// Streams returns all registered streams.
func (r *Registry) Streams() []*Stream {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ret := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		ret = append(ret, s)
	}
	return ret
}

// Resolve maps a mount path (possibly carrying a trackID control
// attribute) to a stream. The returned stream's ID is the identity to
// store on sessions, never the path the client sent.
func (r *Registry) Resolve(mountPath string) *Stream {
	mountPath = strings.Trim(mountPath, "/")

	if i := strings.Index(mountPath, "/trackID="); i >= 0 {
		mountPath = mountPath[:i]
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if s, ok := r.streams[mountPath]; ok {
		return s
	}

	for _, s := range r.streams {
		for _, alias := range s.Aliases {
			if strings.Trim(alias, "/") == mountPath {
				return s
			}
		}
	}

	return nil
}
