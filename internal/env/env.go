// Package env composes the environment handed to the target process.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

type Var map[string]string

// Env layers variables over a base environment. The zero base is the
// current process environment, captured lazily on Merge.
type Env struct {
	Var  Var // overrides (K->V)
	base Var
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	e.base = parse(os.Environ())
}

// FromList replaces the base with the given "K=V" entries.
func (e *Env) FromList(kvs []string) {
	e.base = parse(kvs)
}

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Unset removes an override.
func (e *Env) Unset(k string) {
	delete(e.Var, k)
}

// LoadFiles applies dotenv files in order; later files win.
func (e *Env) LoadFiles(paths ...string) error {
	for _, p := range paths {
		m, err := godotenv.Read(filepath.Clean(p))
		if err != nil {
			return fmt.Errorf("read env file %s: %w", p, err)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e.Set(k, m[k])
		}
	}
	return nil
}

// Merge composes base, then Var, then extra "K=V" entries. Each layer's
// ${VAR} references expand against the layers beneath it, so PATH=${PATH}:x
// extends the inherited PATH. Expansion is a single pass and unknown names
// are left as written. The result is sorted by key.
func (e *Env) Merge(extra []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Var)+len(extra))
	for k, v := range e.base {
		m[k] = v
	}
	m = overlay(m, e.Var)
	m = overlay(m, parse(extra))
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// overlay returns below with vars applied, each value expanded against below.
func overlay(below, vars Var) Var {
	m := make(Var, len(below)+len(vars))
	for k, v := range below {
		m[k] = v
	}
	for k, v := range vars {
		if k == "" {
			continue
		}
		m[k] = expand(v, below)
	}
	return m
}

func parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		m[kv[:i]] = kv[i+1:]
	}
	return m
}

func expand(s string, m Var) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}
