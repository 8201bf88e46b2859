package continuum

import (
	"testing"

	"github.com/cachemir/mc/pkg/hashfn"
)

func mustBuild(t *testing.T, specs []string) *Ring {
	t.Helper()
	servers := make([]Server, len(specs))
	for i, s := range specs {
		srv, err := ParseServer(s)
		if err != nil {
			t.Fatalf("ParseServer(%q): %v", s, err)
		}
		servers[i] = srv
	}
	ring, err := Build(servers)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ring
}

func TestLookupMatchesReferenceExample(t *testing.T) {
	ring := mustBuild(t, []string{"localhost", "myhost:11211", "127.0.0.1:11212", "myhost:11213"})
	md5 := hashfn.Resolve(hashfn.MD5)

	cases := map[string]string{
		"test:60000": "myhost:11213",
		"test:20000": "127.0.0.1:11212",
	}
	for key, want := range cases {
		idx := ring.Lookup([]byte(key), md5)
		got := ring.Servers()[idx].Addr()
		if got != want {
			t.Errorf("Lookup(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestLookupIsStableAcrossCalls(t *testing.T) {
	ring := mustBuild(t, []string{"a:11211", "b:11211", "c:11211"})
	md5 := hashfn.Resolve(hashfn.MD5)

	first := ring.Lookup([]byte("stable-key"), md5)
	for i := 0; i < 100; i++ {
		if got := ring.Lookup([]byte("stable-key"), md5); got != first {
			t.Fatalf("Lookup is not stable: call %d returned %d, want %d", i, got, first)
		}
	}
}

func TestLookupFailoverSkipsDeadServers(t *testing.T) {
	ring := mustBuild(t, []string{"a:11211", "b:11211", "c:11211"})
	md5 := hashfn.Resolve(hashfn.MD5)

	key := []byte("failover-key")
	first := ring.Lookup(key, md5)

	idx, ok := ring.LookupFailover(key, md5, func(i int) bool { return i == first })
	if !ok {
		t.Fatal("LookupFailover: expected a live server")
	}
	if idx == first {
		t.Fatalf("LookupFailover returned the dead server %d", idx)
	}
}

func TestLookupFailoverAllDeadReturnsNotOK(t *testing.T) {
	ring := mustBuild(t, []string{"a:11211", "b:11211"})
	md5 := hashfn.Resolve(hashfn.MD5)

	_, ok := ring.LookupFailover([]byte("anything"), md5, func(int) bool { return true })
	if ok {
		t.Fatal("expected ok=false when every server is dead")
	}
}

func TestParseServerDefaultPortElidedFromLabel(t *testing.T) {
	srv, err := ParseServer("cache1:11211")
	if err != nil {
		t.Fatal(err)
	}
	if srv.Label() != "cache1" {
		t.Errorf("Label() = %q, want %q", srv.Label(), "cache1")
	}
	if srv.Addr() != "cache1:11211" {
		t.Errorf("Addr() = %q, want %q", srv.Addr(), "cache1:11211")
	}
}

func TestParseServerAlias(t *testing.T) {
	srv, err := ParseServer("10.0.0.1:11211 shardA")
	if err != nil {
		t.Fatal(err)
	}
	if srv.Label() != "shardA" {
		t.Errorf("Label() = %q, want %q", srv.Label(), "shardA")
	}
	if srv.Addr() != "10.0.0.1:11211" {
		t.Errorf("Addr() = %q, want %q", srv.Addr(), "10.0.0.1:11211")
	}
}

func TestBuildRejectsEmptyServerList(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Fatal("expected error building a continuum with no servers")
	}
}
