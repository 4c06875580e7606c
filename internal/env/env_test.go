package env

import (
	"slices"
	"testing"
)

func lookup(kvs []string, key string) (string, bool) {
	for _, kv := range kvs {
		if len(kv) > len(key) && kv[:len(key)] == key && kv[len(key)] == '=' {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

func TestMergePrecedence(t *testing.T) {
	e := New()
	e.SetAll([]string{"FOO=bar", "PORT=1000"})
	got := e.Merge([]string{"PORT=2000"})
	if v, ok := lookup(got, "FOO"); !ok || v != "bar" {
		t.Fatalf("FOO=%q ok=%v", v, ok)
	}
	if v, _ := lookup(got, "PORT"); v != "2000" {
		t.Fatalf("per-worker should win, PORT=%q", v)
	}
}

func TestMergeExpansion(t *testing.T) {
	e := New()
	e.Set("FOO", "bar")
	got := e.Merge([]string{"CHAIN=${FOO}-x"})
	if v, _ := lookup(got, "CHAIN"); v != "bar-x" {
		t.Fatalf("CHAIN=%q", v)
	}
}

func TestMergeSkipsMalformed(t *testing.T) {
	e := New()
	e.SetAll([]string{"=broken", "novalue"})
	got := e.Merge([]string{"=alsonothing"})
	if slices.ContainsFunc(got, func(kv string) bool { return kv == "" || kv[0] == '=' }) {
		t.Fatalf("malformed entries leaked: %v", got)
	}
}

func TestMergeIncludesOSEnv(t *testing.T) {
	t.Setenv("SPIDERCTL_TEST_ONLY", "1")
	got := New().Merge(nil)
	if v, ok := lookup(got, "SPIDERCTL_TEST_ONLY"); !ok || v != "1" {
		t.Fatalf("OS env missing from merge: %q %v", v, ok)
	}
}
