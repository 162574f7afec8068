package route

import "testing"

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("/missing"); ok {
		t.Fatal("expected lookup miss on empty registry")
	}

	first := NewLongPollQueue("/bot", nil)
	second := NewLongPollQueue("/bot", nil)
	r.Register("/bot", first)
	r.Register("/bot", second)

	got, ok := r.Lookup("/bot")
	if !ok || got != second {
		t.Error("expected last registration to win")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 path, got %d", r.Len())
	}
}

func TestRegistry_Paths(t *testing.T) {
	r := NewRegistry()
	for _, p := range []string{"/c", "/a", "/b"} {
		r.Register(p, NewLongPollQueue(p, nil))
	}

	paths := r.Paths()
	if len(paths) != 3 || paths[0] != "/a" || paths[2] != "/c" {
		t.Errorf("expected sorted paths, got %v", paths)
	}
}
