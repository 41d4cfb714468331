package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/calmahq/calma/internal/catalog"
	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/provider/providertest"
)

func TestFallbacks_ExcludesCurrentInCatalogOrder(t *testing.T) {
	t.Parallel()

	c := catalog.New(map[string][]string{
		"openai": {"m1", "m2", "m3"},
	})

	got := c.Fallbacks("openai", "m2")
	want := []string{"m1", "m3"}
	if len(got) != len(want) {
		t.Fatalf("Fallbacks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fallbacks[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFallbacks_Deterministic(t *testing.T) {
	t.Parallel()

	c := catalog.New(map[string][]string{"p": {"a", "b", "c", "d"}})
	first := c.Fallbacks("p", "c")
	for i := 0; i < 10; i++ {
		again := c.Fallbacks("p", "c")
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("ordering changed between calls: %v vs %v", first, again)
			}
		}
	}
}

func TestFallbacks_UnknownProvider(t *testing.T) {
	t.Parallel()

	c := catalog.New(nil)
	if got := c.Fallbacks("nope", "m"); len(got) != 0 {
		t.Errorf("Fallbacks for unknown provider = %v, want empty", got)
	}
}

func TestSetModels_ReplacesList(t *testing.T) {
	t.Parallel()

	c := catalog.New(map[string][]string{"p": {"old"}})
	c.SetModels("p", []string{"new1", "new2"})

	got := c.Models("p")
	if len(got) != 2 || got[0] != "new1" {
		t.Errorf("Models = %v", got)
	}
}

func TestRefreshJob_UpdatesFromListers(t *testing.T) {
	t.Parallel()

	c := catalog.New(map[string][]string{"mock": {"seed"}})
	mock := &providertest.MockProvider{
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"fresh-1", "fresh-2"}, nil
		},
	}

	job := catalog.NewRefreshJob(c, map[string]provider.Provider{"mock": mock}, "0 * * * *", nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := c.Models("mock")
	if len(got) != 2 || got[0] != "fresh-1" {
		t.Errorf("Models after refresh = %v", got)
	}
}

func TestRefreshJob_FailureKeepsSeedList(t *testing.T) {
	t.Parallel()

	c := catalog.New(map[string][]string{"mock": {"seed"}})
	mock := &providertest.MockProvider{
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return nil, errors.New("listing down")
		},
	}

	job := catalog.NewRefreshJob(c, map[string]provider.Provider{"mock": mock}, "0 * * * *", nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := c.Models("mock")
	if len(got) != 1 || got[0] != "seed" {
		t.Errorf("Models after failed refresh = %v, want seed preserved", got)
	}
}
