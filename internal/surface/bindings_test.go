package surface_test

import (
	"errors"
	"testing"

	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/bryanchriswhite/pixview/internal/surface/surfacetest"
)

func TestBindingTableOpensOncePerName(t *testing.T) {
	b := surface.NewBindingTable()
	opens := 0
	b.Register("test", func() (surface.Driver, error) {
		opens++
		return surfacetest.New(), nil
	})

	first, err := b.Open("test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := b.Open("test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if first != second || opens != 1 {
		t.Fatalf("driver opened %d times", opens)
	}

	if _, err := b.Open("missing"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if names := b.Names(); len(names) != 1 || names[0] != "test" {
		t.Fatalf("names = %v", names)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := b.Open("test"); !errors.Is(err, surface.ErrClosed) {
		t.Fatalf("open after close: %v", err)
	}
}

func TestBindingsIsProcessWide(t *testing.T) {
	if surface.Bindings() != surface.Bindings() {
		t.Fatalf("Bindings returned different tables")
	}
}

func TestBindingTableWrapsOpenError(t *testing.T) {
	b := surface.NewBindingTable()
	boom := errors.New("no display")
	b.Register("x", func() (surface.Driver, error) { return nil, boom })
	if _, err := b.Open("x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
