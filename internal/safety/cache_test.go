package safety

import (
	"fmt"
	"testing"
)

func TestVerdictCache_GetPut(t *testing.T) {
	t.Parallel()

	c := newVerdictCache(50, 10)
	if _, ok := c.get("missing"); ok {
		t.Error("unexpected hit on empty cache")
	}

	c.put("hello", true)
	v, ok := c.get("hello")
	if !ok || !v {
		t.Errorf("get = %v, %v; want true, true", v, ok)
	}
}

func TestVerdictCache_BulkEviction(t *testing.T) {
	t.Parallel()

	c := newVerdictCache(50, 10)
	for i := 0; i < 50; i++ {
		c.put(fmt.Sprintf("entry-%d", i), false)
	}
	if c.len() != 50 {
		t.Fatalf("len = %d, want 50", c.len())
	}

	// The 51st insert evicts the oldest 10 in one batch.
	c.put("entry-50", true)
	if c.len() != 41 {
		t.Errorf("len after eviction = %d, want 41", c.len())
	}

	for i := 0; i < 10; i++ {
		if _, ok := c.get(fmt.Sprintf("entry-%d", i)); ok {
			t.Errorf("entry-%d survived eviction", i)
		}
	}
	for i := 10; i < 50; i++ {
		if _, ok := c.get(fmt.Sprintf("entry-%d", i)); !ok {
			t.Errorf("entry-%d was evicted, should have survived", i)
		}
	}
	if _, ok := c.get("entry-50"); !ok {
		t.Error("newest entry missing after eviction")
	}
}

func TestVerdictCache_UpdateDoesNotGrow(t *testing.T) {
	t.Parallel()

	c := newVerdictCache(50, 10)
	c.put("key", false)
	c.put("key", true)
	if c.len() != 1 {
		t.Errorf("len = %d, want 1", c.len())
	}
	if v, _ := c.get("key"); !v {
		t.Error("update did not take effect")
	}
}
