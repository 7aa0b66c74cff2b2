package codec

import (
	"fmt"
	"slices"
	"sync"

	"github.com/anisan-cli/reelplay/media"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// PassthroughName is the registered name of the passthrough decoder.
const PassthroughName = "reelplay.passthrough"

// Entry registers one decoder implementation.
type Entry struct {
	Name         string
	MimeTypes    []string
	Capabilities Capabilities
	New          func() Session
}

// Supports reports whether the entry decodes mimeType.
func (e Entry) Supports(mimeType string) bool {
	return slices.Contains(e.MimeTypes, mimeType)
}

// Registry is a Selector and Factory over registered decoders. Entries are consulted in registration
// order.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewRegistry returns a registry holding the passthrough decoder for raw audio and video.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(Entry{
		Name:      PassthroughName,
		MimeTypes: []string{media.MimeVideoRaw, media.MimeAudioRaw},
		Capabilities: Capabilities{
			Adaptive: true,
			Secure:   true,
		},
		New: func() Session {
			return NewPassthrough(PassthroughName, PassthroughOptions{})
		},
	})
	return r
}

// Register adds an entry. Registering a name twice panics.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lo.ContainsBy(r.entries, func(existing Entry) bool { return existing.Name == e.Name }) {
		panic(fmt.Sprintf("codec: decoder %q registered twice", e.Name))
	}
	r.entries = append(r.entries, e)
}

// Entries returns a copy of the registered entries.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries)
}

func (r *Registry) DecoderInfo(mimeType string, requiresSecureDecoder bool) (mo.Option[DecoderInfo], error) {
	if mimeType == "" {
		return mo.None[DecoderInfo](), ErrInvalidMimeType
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := lo.Find(r.entries, func(e Entry) bool {
		return e.Supports(mimeType) && (!requiresSecureDecoder || e.Capabilities.Secure)
	})
	if !ok {
		return mo.None[DecoderInfo](), nil
	}

	return mo.Some(DecoderInfo{Name: entry.Name, Capabilities: entry.Capabilities}), nil
}

func (r *Registry) CreateSession(name string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := lo.Find(r.entries, func(e Entry) bool { return e.Name == name })
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDecoder, name)
	}
	return entry.New(), nil
}
