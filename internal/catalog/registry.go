package catalog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Built-in model names.
const (
	ModelGanglion   = "ganglion"
	ModelBrainAlive = "brainalive"
)

var (
	Ganglion = MustProfile(Definition{
		Model:            ModelGanglion,
		NamePrefix:       "Ganglion",
		AltName:          "Simblee",
		Service:          "fe84",
		Send:             "2d30c083-f39f-4ce6-923f-3484ea480596",
		Receive:          "2d30c082-f39f-4ce6-923f-3484ea480596",
		Disconnect:       "2d30c084-f39f-4ce6-923f-3484ea480596",
		SamplingRate:     200,
		PacketLength:     20,
		OperationTimeout: 5 * time.Second,
		Encoding:         EncodingByte,
		Start:            "b",
		Stop:             "s",
		DisconnectToken:  " ",
	})

	// BrainAlive uses one characteristic for both the send and disconnect roles.
	BrainAlive = MustProfile(Definition{
		Model:            ModelBrainAlive,
		NamePrefix:       "BrainAlive",
		Service:          "0000fe40-8e22-4541-9d4c-21edae82ed19",
		Send:             "0000fe41-8e22-4541-9d4c-21edae82ed19",
		Receive:          "0000fe42-8e22-4541-9d4c-21edae82ed19",
		Disconnect:       "0000fe41-8e22-4541-9d4c-21edae82ed19",
		SamplingRate:     250,
		PacketLength:     20,
		OperationTimeout: 6 * time.Second,
		Encoding:         EncodingString,
		Start:            "0x0a8000000d",
		Stop:             "0x0a4000000d",
		DisconnectToken:  " ",
	})
)

// Registry keeps profiles in registration order.
type Registry struct {
	mu       sync.RWMutex
	profiles *orderedmap.OrderedMap[string, Profile]
}

// NewRegistry creates a registry holding the given profiles.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: orderedmap.New[string, Profile]()}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry with the built-in models.
func Default() *Registry {
	r, err := NewRegistry(Ganglion, BrainAlive)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds p. Model names are unique and case-insensitive.
func (r *Registry) Register(p Profile) error {
	key := strings.ToLower(p.Model)
	if key == "" {
		return fmt.Errorf("profile model cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles.Get(key); exists {
		return fmt.Errorf("profile %q already registered", key)
	}
	r.profiles.Set(key, p)
	return nil
}

// Lookup finds the profile for model, ignoring case.
func (r *Registry) Lookup(model string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles.Get(strings.ToLower(strings.TrimSpace(model)))
	if !ok {
		return Profile{}, fmt.Errorf("unknown headset model %q (known: %s)", model, strings.Join(r.modelsLocked(), ", "))
	}
	return p, nil
}

// Models lists the registered model names in registration order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modelsLocked()
}

func (r *Registry) modelsLocked() []string {
	models := make([]string, 0, r.profiles.Len())
	for pair := r.profiles.Oldest(); pair != nil; pair = pair.Next() {
		models = append(models, pair.Key)
	}
	return models
}

// Profiles returns all registered profiles in registration order.
func (r *Registry) Profiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, r.profiles.Len())
	for pair := r.profiles.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// MatchName returns the first profile whose name rules match an advertised name.
func (r *Registry) MatchName(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for pair := r.profiles.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.MatchesName(name) {
			return pair.Value, true
		}
	}
	return Profile{}, false
}
