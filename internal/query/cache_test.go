package query

import (
	"testing"

	"github.com/repolex/repolex/internal/quadstore"
)

func TestResultCacheGetPutRoundTrip(t *testing.T) {
	c := NewResultCache(DefaultCacheCapacity)
	want := &quadstore.Result{Kind: quadstore.ResultBoolean, Boolean: true}
	c.Put("acme/demo\x00ASK {}", want)

	got, ok := c.Get("acme/demo\x00ASK {}")
	if !ok || got != want {
		t.Fatalf("expected cache hit with the stored result, got %v, %v", got, ok)
	}
}

func TestResultCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewResultCache(2)
	c.Put("a", &quadstore.Result{Kind: quadstore.ResultBoolean})
	c.Put("b", &quadstore.Result{Kind: quadstore.ResultBoolean})

	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to still be cached")
	}
	c.Put("c", &quadstore.Result{Kind: quadstore.ResultBoolean})

	if _, ok := c.Get("b"); ok {
		t.Errorf("expected b evicted as least-recently-used, still cached")
	}
	if _, ok := c.Get("a"); !ok {
		t.Errorf("expected a to survive eviction since it was touched more recently")
	}
	if _, ok := c.Get("c"); !ok {
		t.Errorf("expected c to be cached")
	}
}

func TestResultCacheInvalidatePrefixScopesToRepo(t *testing.T) {
	c := NewResultCache(DefaultCacheCapacity)
	c.Put("acme/demo\x00ASK {}", &quadstore.Result{Kind: quadstore.ResultBoolean})
	c.Put("acme/demo2\x00ASK {}", &quadstore.Result{Kind: quadstore.ResultBoolean})

	c.InvalidatePrefix("acme/demo" + "\x00")

	if _, ok := c.Get("acme/demo\x00ASK {}"); ok {
		t.Errorf("expected acme/demo entry invalidated")
	}
	if _, ok := c.Get("acme/demo2\x00ASK {}"); !ok {
		t.Errorf("expected acme/demo2 entry untouched by acme/demo's invalidation")
	}
}

func TestResultCacheZeroCapacityDisablesCaching(t *testing.T) {
	c := NewResultCache(0)
	c.Put("a", &quadstore.Result{Kind: quadstore.ResultBoolean})
	if _, ok := c.Get("a"); ok {
		t.Errorf("expected a zero-capacity cache to never hit")
	}
}
