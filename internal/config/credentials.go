package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Source is one place a setting can come from.
type Source interface {
	Name() string
	Lookup(key string) (string, bool)
}

// Resolver looks a key up in each source in order and returns the first
// non-empty value. The default order is: explicit overrides, the secrets
// file, the environment, then the file named by <KEY>_FILE.
type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// DefaultResolver builds the standard chain. overrides may be nil.
func DefaultResolver(overrides map[string]string) *Resolver {
	secretsPath := strings.TrimSpace(os.Getenv("SECRETS_FILE"))
	if v, ok := overrides["SECRETS_FILE"]; ok && v != "" {
		secretsPath = v
	}
	if secretsPath == "" {
		secretsPath = "secrets.toml"
	}
	return NewResolver(
		MapSource{SourceName: "override", Values: overrides},
		NewSecretsFileSource(secretsPath),
		EnvSource{},
		FileRefSource{},
	)
}

// Get returns the resolved value or "".
func (r *Resolver) Get(key string) string {
	v, _, _ := r.Lookup(key)
	return v
}

// Lookup returns the value and the name of the source that supplied it.
func (r *Resolver) Lookup(key string) (value, source string, ok bool) {
	for _, s := range r.sources {
		if v, found := s.Lookup(key); found {
			if v = strings.TrimSpace(v); v != "" {
				return v, s.Name(), true
			}
		}
	}
	return "", "", false
}

// MapSource serves fixed values, e.g. command line flags.
type MapSource struct {
	SourceName string
	Values     map[string]string
}

func (m MapSource) Name() string {
	if m.SourceName == "" {
		return "map"
	}
	return m.SourceName
}

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// EnvSource reads the process environment.
type EnvSource struct{}

func (EnvSource) Name() string { return "env" }

func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// FileRefSource reads the contents of the file named by <KEY>_FILE.
type FileRefSource struct{}

func (FileRefSource) Name() string { return "file" }

func (FileRefSource) Lookup(key string) (string, bool) {
	p := strings.TrimSpace(os.Getenv(key + "_FILE"))
	if p == "" {
		return "", false
	}
	b, err := os.ReadFile(p)
	if err != nil {
		slog.Warn("Cannot read credential file", "key", key, "path", p, "error", err)
		return "", false
	}
	return string(b), true
}

// SecretsFileSource reads a flat secrets file (toml, yaml or json).
// A missing file yields no values.
type SecretsFileSource struct {
	v *viper.Viper
}

func NewSecretsFileSource(path string) *SecretsFileSource {
	if _, err := os.Stat(path); err != nil {
		return &SecretsFileSource{}
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("Cannot read secrets file", "path", path, "error", err)
		return &SecretsFileSource{}
	}
	return &SecretsFileSource{v: v}
}

func (s *SecretsFileSource) Name() string { return "secrets" }

func (s *SecretsFileSource) Lookup(key string) (string, bool) {
	if s.v == nil || !s.v.IsSet(key) {
		return "", false
	}
	return s.v.GetString(key), true
}
