package env

import (
	"sort"
	"strings"
	"testing"
)

// FuzzMerge_SelfReference layers a variable over itself twice: an override
// that prepends and an extra entry that appends. Each reference must resolve
// to the value beneath it, never to itself.
func FuzzMerge_SelfReference(f *testing.F) {
	f.Add("PATH", "/bin", "/opt/bin:", ":/usr/local/bin")
	f.Add("ASAN_OPTIONS", "detect_leaks=0", "", ":abort_on_error=1")
	f.Add("K", "", "a=b", "}")
	f.Add("X", "${X}", "", "")

	f.Fuzz(func(t *testing.T, key, base, prefix, suffix string) {
		if key == "" || strings.ContainsAny(key, "=}") {
			t.Skip()
		}
		if strings.Contains(prefix, "$") || strings.Contains(suffix, "$") {
			t.Skip()
		}
		ref := "${" + key + "}"

		e := New()
		e.FromList([]string{key + "=" + base})
		e.Set(key, prefix+ref)
		out := e.Merge([]string{key + "=" + ref + suffix})

		if !sort.StringsAreSorted(out) {
			t.Fatalf("not sorted: %q", out)
		}
		if len(out) != 1 {
			t.Fatalf("expected one entry, got %q", out)
		}
		if want := key + "=" + prefix + base + suffix; out[0] != want {
			t.Fatalf("got %q, want %q", out[0], want)
		}
	})
}
