package visitor

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func headers(m map[string]string) func(string) string {
	return func(name string) string { return m[name] }
}

func mustRanges(t *testing.T, items ...string) TrustedRanges {
	t.Helper()
	tr, err := ParseRanges(items)
	if err != nil {
		t.Fatalf("ParseRanges: %v", err)
	}
	return tr
}

func TestResolveTrustedWithHeader(t *testing.T) {
	r := NewResolver(mustRanges(t, "173.245.48.0/20", "2400:cb00::/32"))
	got, err := r.Resolve("173.245.48.10", headers(map[string]string{ForwardedHeader: "9.9.9.9"}))
	if err != nil || got != "9.9.9.9" {
		t.Fatalf("Resolve = %q, %v; want 9.9.9.9", got, err)
	}
	got, err = r.Resolve("2400:cb00::1", headers(map[string]string{ForwardedHeader: "2001:db8::7"}))
	if err != nil || got != "2001:db8::7" {
		t.Fatalf("Resolve v6 = %q, %v", got, err)
	}
}

func TestResolveTrustedWithoutHeader(t *testing.T) {
	r := NewResolver(mustRanges(t, "173.245.48.0/20"))
	got, err := r.Resolve("173.245.48.10", headers(nil))
	if err != nil || got != "173.245.48.10" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
}

func TestResolveUntrustedIgnoresHeader(t *testing.T) {
	r := NewResolver(mustRanges(t, "173.245.48.0/20"))
	for _, h := range []map[string]string{nil, {ForwardedHeader: "9.9.9.9"}} {
		got, src, err := r.ResolveSource("8.8.8.8", headers(h))
		if err != nil || got != "8.8.8.8" || src != SourceConnection {
			t.Fatalf("Resolve = %q, %q, %v", got, src, err)
		}
	}
}

func TestResolveBadForwardedValueFallsBack(t *testing.T) {
	r := NewResolver(mustRanges(t, "10.0.0.0/8"))
	got, err := r.Resolve("10.1.2.3", headers(map[string]string{ForwardedHeader: "garbage"}))
	if err != nil || got != "10.1.2.3" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
}

func TestResolveInvalidConnection(t *testing.T) {
	r := NewResolver(TrustedRanges{})
	for _, s := range []string{"", "not-an-ip", "1.2.3", "1.2.3.4:80"} {
		if _, err := r.Resolve(s, nil); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidAddress", s, err)
		}
	}
}

func TestResolveMappedIPv4(t *testing.T) {
	r := NewResolver(mustRanges(t, "10.0.0.0/8"))
	got, err := r.Resolve("::ffff:10.0.0.1", headers(map[string]string{ForwardedHeader: "1.1.1.1"}))
	if err != nil || got != "1.1.1.1" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
}

func TestResolveRequest(t *testing.T) {
	r := NewResolver(mustRanges(t, "192.0.2.0/24"))
	req := httptest.NewRequest("POST", "/count", nil)
	req.RemoteAddr = "192.0.2.1:41234"
	req.Header.Set("cf-connecting-ip", "203.0.113.9")
	got, src, err := r.ResolveRequest(req)
	if err != nil || got != "203.0.113.9" || src != SourceHeader {
		t.Fatalf("ResolveRequest = %q, %q, %v", got, src, err)
	}

	req.RemoteAddr = "[2001:db8::1]:5555"
	got, _, err = r.ResolveRequest(req)
	if err != nil || got != "2001:db8::1" {
		t.Fatalf("ResolveRequest v6 = %q, %v", got, err)
	}
}

func TestReadRanges(t *testing.T) {
	in := strings.NewReader("# cloudflare\n173.245.48.0/20\n\n103.21.244.5/22 # not masked\n1.1.1.1\n173.245.48.0/20\n")
	tr, err := ReadRanges(in)
	if err != nil {
		t.Fatalf("ReadRanges: %v", err)
	}
	want := []string{"173.245.48.0/20", "103.21.244.0/22", "1.1.1.1/32"}
	got := tr.Strings()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("ranges = %v, want %v", got, want)
	}
	if _, err := ReadRanges(strings.NewReader("10.0.0.0/33\n")); err == nil {
		t.Fatal("expected error for bad prefix")
	}
}
