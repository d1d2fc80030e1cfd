package language

import "github.com/assesshub/codexec/config"

// Registry is the immutable set of supported toolchains, built once at
// startup and injected into the orchestrator.
type Registry struct {
	byName map[string]Toolchain
	names  []string
}

// NewRegistry builds the registry, applying per-language image and dockerfile
// overrides from the configuration.
func NewRegistry(cfg *config.Config) *Registry {
	builders := []struct {
		name string
		make func(image, dockerfile string) Toolchain
	}{
		{"python", newPython},
		{"javascript", newJavascript},
		{"java", newJava},
		{"cpp", newCpp},
		{"csharp", newCsharp},
		{"go", newGolang},
		{"rust", newRust},
	}

	r := &Registry{byName: make(map[string]Toolchain, len(builders))}
	for _, b := range builders {
		var override config.Language
		if cfg != nil {
			override = cfg.Languages[b.name]
		}
		tc := b.make(override.Image, override.Dockerfile)
		r.byName[b.name] = tc
		r.names = append(r.names, b.name)
	}
	return r
}

// Resolve looks up a toolchain by language name.
func (r *Registry) Resolve(name string) (Toolchain, bool) {
	tc, ok := r.byName[name]
	return tc, ok
}

// All returns the toolchains in a stable order.
func (r *Registry) All() []Toolchain {
	out := make([]Toolchain, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
