package client_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cachemir/mc/internal/testserver"
	"github.com/cachemir/mc/pkg/client"
)

func newTestClient(t *testing.T, opts ...func(*client.Config)) (*client.Client, *testserver.Server) {
	t.Helper()
	srv, err := testserver.New()
	if err != nil {
		t.Fatalf("testserver.New: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	cfg := client.Config{
		Servers: []string{srv.Addr()},
		Timeout: time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return c, srv
}

func TestSetAndGetRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.Set(ctx, "greeting", "hello world", 0)
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}

	v, found, err := c.Get(ctx, "greeting")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected a hit")
	}
	if string(v.([]byte)) != "hello world" {
		t.Fatalf("Get = %v, want %q", v, "hello world")
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestClient(t)
	_, found, err := c.Get(context.Background(), "never-set")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected a miss")
	}
}

func TestAddFailsWhenKeyExists(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.Add(ctx, "k", "v1", 0)
	if err != nil || !ok {
		t.Fatalf("first Add: ok=%v err=%v", ok, err)
	}
	ok, err = c.Add(ctx, "k", "v2", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected second Add to fail, key already exists")
	}
}

func TestReplaceFailsWhenKeyMissing(t *testing.T) {
	c, _ := newTestClient(t)
	ok, err := c.Replace(context.Background(), "missing", "v", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected Replace to fail for a missing key")
	}
}

func TestIncrDecr(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "counter", "10", 0); err != nil {
		t.Fatal(err)
	}

	n, ok, err := c.Incr(ctx, "counter", 5)
	if err != nil || !ok || n != 15 {
		t.Fatalf("Incr: n=%d ok=%v err=%v", n, ok, err)
	}

	n, ok, err = c.Decr(ctx, "counter", 20)
	if err != nil || !ok || n != 0 {
		t.Fatalf("Decr floor at zero: n=%d ok=%v err=%v", n, ok, err)
	}
}

func TestDeleteMulti(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "a", "1", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Set(ctx, "b", "2", 0); err != nil {
		t.Fatal(err)
	}

	ok, err := c.DeleteMulti(ctx, []string{"a", "b"})
	if err != nil || !ok {
		t.Fatalf("DeleteMulti both present: ok=%v err=%v", ok, err)
	}

	ok, err = c.DeleteMulti(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected DeleteMulti to report false once keys are gone")
	}
}

func TestGetMultiExcludesInvalidKeyWithoutAffectingOthers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "good", "v", 0); err != nil {
		t.Fatal(err)
	}

	out, err := c.GetMulti(ctx, []string{"good", "has space"})
	if err != nil {
		t.Fatalf("GetMulti should not abort the batch over one bad key: %v", err)
	}
	if _, ok := out["good"]; !ok {
		t.Fatal("expected the valid key to still be fetched")
	}
	if _, ok := out["has space"]; ok {
		t.Fatal("invalid key should never appear in the result")
	}
}

func TestDeleteMultiExcludesInvalidKeyWithoutAffectingOthers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "good", "v", 0); err != nil {
		t.Fatal(err)
	}

	ok, err := c.DeleteMulti(ctx, []string{"good", "has space"})
	if err != nil {
		t.Fatalf("DeleteMulti should not abort the batch over one bad key: %v", err)
	}
	if ok {
		t.Fatal("expected the aggregate result to be false because of the invalid key")
	}

	_, found, err := c.Get(ctx, "good")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected the valid key to still have been deleted despite the invalid key in the batch")
	}
}

func TestSetMultiExcludesInvalidKeyWithoutAffectingOthers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetMulti(ctx, map[string]any{
		"good":      "v",
		"has space": "v",
	}, 0)
	if err != nil {
		t.Fatalf("SetMulti should not abort the batch over one bad key: %v", err)
	}
	if ok {
		t.Fatal("expected the aggregate result to be false because of the invalid key")
	}

	_, found, err := c.Get(ctx, "good")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected the valid key to still have been stored despite the invalid key in the batch")
	}
}

func TestCasRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "cask", "v1", 0); err != nil {
		t.Fatal(err)
	}

	_, cas, found, err := c.GetsCas(ctx, "cask")
	if err != nil || !found {
		t.Fatalf("GetsCas: found=%v err=%v", found, err)
	}

	ok, err := c.Cas(ctx, "cask", "v2", 0, cas)
	if err != nil || !ok {
		t.Fatalf("Cas with fresh token: ok=%v err=%v", ok, err)
	}

	// Reusing the stale token must now fail.
	ok, err = c.Cas(ctx, "cask", "v3", 0, cas)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected Cas with a stale token to fail")
	}
}

func TestPrefixIsolatesKeys(t *testing.T) {
	srv, err := testserver.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })

	ctx := context.Background()
	a, err := client.New(client.Config{Servers: []string{srv.Addr()}, Prefix: "a:", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	b, err := client.New(client.Config{Servers: []string{srv.Addr()}, Prefix: "b:", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Set(ctx, "shared", "from-a", 0); err != nil {
		t.Fatal(err)
	}
	_, found, err := b.Get(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected client b's differently prefixed namespace to miss a's key")
	}
}

func TestLargeValueIsChunkedAndReassembled(t *testing.T) {
	c, _ := newTestClient(t, func(cfg *client.Config) { cfg.ChunkSize = 64 })
	ctx := context.Background()

	big := bytes.Repeat([]byte("0123456789"), 50) // 500 bytes, well above the 64-byte chunk size

	ok, err := c.Set(ctx, "bigblob", big, 0)
	if err != nil || !ok {
		t.Fatalf("Set large value: ok=%v err=%v", ok, err)
	}

	v, found, err := c.Get(ctx, "bigblob")
	if err != nil || !found {
		t.Fatalf("Get large value: found=%v err=%v", found, err)
	}
	if !bytes.Equal(v.([]byte), big) {
		t.Fatal("reassembled chunked value does not match what was stored")
	}
}

func TestAppendPrepend(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "ap", "middle", 0); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Append(ctx, "ap", []byte("-end")); err != nil || !ok {
		t.Fatalf("Append: ok=%v err=%v", ok, err)
	}
	if ok, err := c.Prepend(ctx, "ap", []byte("start-")); err != nil || !ok {
		t.Fatalf("Prepend: ok=%v err=%v", ok, err)
	}

	v, found, err := c.Get(ctx, "ap")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(v.([]byte)) != "start-middle-end" {
		t.Fatalf("Get = %q, want %q", v, "start-middle-end")
	}
}

func TestInvalidKeyRejected(t *testing.T) {
	c, _ := newTestClient(t)
	_, _, err := c.Get(context.Background(), "")
	if err == nil {
		t.Fatal("expected an error for an empty key")
	}
}

func TestFlushAllBlockedByDefault(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}

	err := c.FlushAll(ctx)
	if err == nil {
		t.Fatal("expected FlushAll to fail locally until enabled")
	}

	_, found, getErr := c.Get(ctx, "k")
	if getErr != nil {
		t.Fatal(getErr)
	}
	if !found {
		t.Fatal("expected the blocked FlushAll to leave existing items untouched")
	}
}

func TestFlushAllSucceedsOnceToggledOn(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}

	c.ToggleFlushAll(true)
	if err := c.FlushAll(ctx); err != nil {
		t.Fatal(err)
	}
	_, found, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected FlushAll to clear all items once enabled")
	}

	c.ToggleFlushAll(false)
	if err := c.FlushAll(ctx); err == nil {
		t.Fatal("expected FlushAll to fail locally again after being toggled off")
	}
}

func TestFlushAllEnabledViaConfig(t *testing.T) {
	c, _ := newTestClient(t, func(cfg *client.Config) { cfg.FlushAllEnabled = true })
	if err := c.FlushAll(context.Background()); err != nil {
		t.Fatalf("expected FlushAll to succeed when enabled via Config: %v", err)
	}
}

func TestVersionAndStats(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	versions, err := c.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 server version, got %d", len(versions))
	}

	if _, err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected stats from 1 server, got %d", len(stats))
	}
}
