package env

import (
	"os"
	"strings"
)

// Env composes the environment handed to launched workers: the OS
// environment as base, global overrides from config, then per-worker
// entries. Values may reference ${VAR} from the composed set.
type Env struct {
	global map[string]string
	base   map[string]string
}

func New() *Env {
	return &Env{global: make(map[string]string)}
}

// Set records a global override.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	e.global[k] = v
}

// SetAll records every "KEY=VALUE" entry as a global override. Malformed
// entries are skipped.
func (e *Env) SetAll(kvs []string) {
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.global[kv[:i]] = kv[i+1:]
		}
	}
}

// Merge returns the final "KEY=VALUE" slice for a worker: OS env, then
// global overrides, then perWorker entries, with one pass of ${VAR}
// expansion over the composed map.
func (e *Env) Merge(perWorker []string) []string {
	if e.base == nil {
		e.base = fromOS()
	}
	m := make(map[string]string, len(e.base)+len(e.global)+len(perWorker))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.global {
		m[k] = v
	}
	for _, kv := range perWorker {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out
}

func fromOS() map[string]string {
	base := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	return base
}

// expand performs a single non-recursive ${VAR} substitution pass.
func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	for k, v := range m {
		s = strings.ReplaceAll(s, "${"+k+"}", v)
	}
	return s
}
