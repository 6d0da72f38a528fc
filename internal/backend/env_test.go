package backend

import (
	"errors"
	"testing"
)

func TestEnv_LookupFallsThroughToBase(t *testing.T) {
	env := newEnv(map[string]any{"rate": 0.2})

	v, ok := env.Lookup("rate")
	if !ok || v != 0.2 {
		t.Fatalf("expected base value 0.2, got %v (ok=%v)", v, ok)
	}

	if _, ok := env.Lookup("absent"); ok {
		t.Fatal("expected miss for unknown name")
	}
}

func TestEnv_RequireReturnsMissingBinding(t *testing.T) {
	env := newEnv(nil)

	_, err := env.Require("tax")
	var missing *MissingBindingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingBindingError, got %v", err)
	}
	if missing.Name != "tax" {
		t.Errorf("expected name %q, got %q", "tax", missing.Name)
	}
}

func TestEnv_SetShadowsBase(t *testing.T) {
	base := map[string]any{"n": 1}
	env := newEnv(base)

	env.Set("n", 2)

	if v, _ := env.Lookup("n"); v != 2 {
		t.Errorf("expected overlay value 2, got %v", v)
	}
	if base["n"] != 1 {
		t.Errorf("overlay write must not touch the base, got %v", base["n"])
	}
}

func TestEnv_SetIsPrivatePerEnv(t *testing.T) {
	shared := map[string]any{"n": 1}
	a := newEnv(shared)
	b := newEnv(shared)

	a.Set("n", 99)

	if v, _ := b.Lookup("n"); v != 1 {
		t.Errorf("sibling env must not see another env's write, got %v", v)
	}
}

func TestEnv_BindUpdatesBase(t *testing.T) {
	env := newEnv(nil)
	env.bind("limit", 10)

	v, err := env.Require("limit")
	if err != nil || v != 10 {
		t.Fatalf("expected bound value 10, got %v (err %v)", v, err)
	}

	env.bind("limit", 20)
	if v, _ := env.Lookup("limit"); v != 20 {
		t.Errorf("rebind must overwrite, got %v", v)
	}
}

func TestCopyBindings_Shallow(t *testing.T) {
	src := map[string]any{"a": 1, "b": "two"}
	dst := copyBindings(src)

	src["a"] = 99
	if dst["a"] != 1 {
		t.Errorf("copy must not alias the source map, got %v", dst["a"])
	}
	if len(dst) != 2 || dst["b"] != "two" {
		t.Errorf("unexpected copy contents: %v", dst)
	}
}
