package sources

import (
	"testing"
)

func TestEmptyRegistry(t *testing.T) {
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(r.List()) != 0 {
		t.Error("fresh registry must be empty")
	}
	if r.Default() != nil {
		t.Error("fresh registry has no default")
	}
}

func TestAddAndPersist(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}

	src, err := r.Add("marketplace", "https://market.example.com/graphql", "public marketplace")
	if err != nil {
		t.Fatal(err)
	}
	if !src.Default {
		t.Error("first source must become the default")
	}

	reloaded, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reloaded.Get("marketplace")
	if !ok || got.Endpoint != "https://market.example.com/graphql" {
		t.Errorf("registry did not persist: %v", reloaded.List())
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	r, _ := Open(t.TempDir())
	if _, err := r.Add("a", "https://a.example.com", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add("a", "https://other.example.com", ""); err == nil {
		t.Fatal("duplicate name must be rejected")
	}
}

func TestInvalidEndpointRejected(t *testing.T) {
	r, _ := Open(t.TempDir())
	for _, endpoint := range []string{"", "not-a-url", "ftp://files.example.com"} {
		if _, err := r.Add("x", endpoint, ""); err == nil {
			t.Errorf("endpoint %q must be rejected", endpoint)
		}
	}
}

func TestRemovePromotesNewDefault(t *testing.T) {
	r, _ := Open(t.TempDir())
	if _, err := r.Add("first", "https://a.example.com", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add("second", "https://b.example.com", ""); err != nil {
		t.Fatal(err)
	}

	if err := r.Remove("first"); err != nil {
		t.Fatal(err)
	}
	def := r.Default()
	if def == nil || def.Name != "second" {
		t.Errorf("remaining source must become the default, got %v", def)
	}

	if err := r.Remove("ghost"); err == nil {
		t.Error("removing an unknown source must fail")
	}
}

func TestSetDefault(t *testing.T) {
	r, _ := Open(t.TempDir())
	_, _ = r.Add("a", "https://a.example.com", "")
	_, _ = r.Add("b", "https://b.example.com", "")

	if err := r.SetDefault("b"); err != nil {
		t.Fatal(err)
	}
	if r.Default().Name != "b" {
		t.Error("default not switched")
	}
	a, _ := r.Get("a")
	if a.Default {
		t.Error("old default must be cleared")
	}
	if err := r.SetDefault("ghost"); err == nil {
		t.Error("unknown source must fail")
	}
}
