package profilestore

import (
	"sort"
	"testing"

	"github.com/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGet(t *testing.T) {
	store := openTestStore(t)

	w, err := store.Put("profile-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(`{"id":"profile-1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := store.Get("profile-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"id":"profile-1"}` {
		t.Fatalf("got %q", data)
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("nope")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestGCReturnsOnQuietStore(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 3; i++ {
		w, err := store.Put("profile-1")
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("overwritten"))
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	// Nothing here guarantees a rewrite happens; GC just has to finish
	// and leave the data readable.
	store.GC()

	data, err := store.Get("profile-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "overwritten" {
		t.Fatalf("got %q", data)
	}
}

func TestList(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []string{"b", "a", "c"} {
		w, err := store.Put(id)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(id))
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(ids)
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("ids = %v", ids)
	}
}
