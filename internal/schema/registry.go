package schema

import (
	"sort"

	"ammcpi/internal/errors"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// Registry maps human readable account names to keys. Scenario files and
// the CLI refer to accounts by name.
type Registry struct {
	keys      map[string]solana.PublicKey
	nameByKey map[solana.PublicKey]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		keys:      make(map[string]solana.PublicKey),
		nameByKey: make(map[solana.PublicKey]string),
	}
}

// Add registers a named key.
func (r *Registry) Add(name string, key solana.PublicKey) error {
	if name == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "empty account name")
	}
	if key.IsZero() {
		return errors.Wrapf(exception.ErrConfigInvalidKey, "name: %s", name)
	}
	if _, ok := r.keys[name]; ok {
		return errors.Wrapf(exception.ErrConfigDuplicateName, "name: %s", name)
	}
	r.keys[name] = key
	r.nameByKey[key] = name
	return nil
}

// Key returns the key registered under name.
func (r *Registry) Key(name string) (solana.PublicKey, bool) {
	key, ok := r.keys[name]
	return key, ok
}

// Resolve is Key that reports unknown names as a config error.
func (r *Registry) Resolve(name string) (solana.PublicKey, error) {
	key, ok := r.keys[name]
	if !ok {
		return solana.PublicKey{}, errors.Wrapf(exception.ErrConfigUnknownAccount, "name: %s", name)
	}
	return key, nil
}

// Name returns the registered name of key, or its base58 form.
func (r *Registry) Name(key solana.PublicKey) string {
	if name, ok := r.nameByKey[key]; ok {
		return name
	}
	return key.String()
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.keys))
	for name := range r.keys {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int {
	return len(r.keys)
}
