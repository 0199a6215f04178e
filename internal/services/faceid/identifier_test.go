package faceid

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

type staticGallery struct {
	entries []GalleryEntry
	err     error
}

func (g *staticGallery) GetAllEncodings(context.Context) ([]GalleryEntry, error) {
	return g.entries, g.err
}

// encodingAtDistance builds a 128-d vector at an exact Euclidean distance
// from the zero vector.
func encodingAtDistance(d float64) []float64 {
	v := make([]float64, 128)
	v[0] = d
	return v
}

func zeroEncoding() []float64 {
	return make([]float64, 128)
}

func loadedIdentifier(t *testing.T, entries []GalleryEntry) *Identifier {
	t.Helper()
	id := NewIdentifier(&staticGallery{entries: entries}, 0.6, zerolog.Nop())
	if err := id.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return id
}

func TestIdentifyWithinTolerance(t *testing.T) {
	id := loadedIdentifier(t, []GalleryEntry{
		{PersonID: 1, Name: "Alice", Encoding: zeroEncoding()},
	})

	match := id.Identify(encodingAtDistance(0.3))
	if !match.IsKnown {
		t.Fatal("distance 0.3 should match at tolerance 0.6")
	}
	if match.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", match.Name)
	}
	if match.PersonID == nil || *match.PersonID != 1 {
		t.Errorf("PersonID = %v, want 1", match.PersonID)
	}
	if math.Abs(match.Confidence-50) > 1e-9 {
		t.Errorf("Confidence = %v, want 50", match.Confidence)
	}
}

func TestIdentifyAtToleranceBoundary(t *testing.T) {
	// 0.25 and its square are exact in binary floating point, so the
	// computed distance lands exactly on the tolerance.
	id := NewIdentifier(&staticGallery{entries: []GalleryEntry{
		{PersonID: 1, Name: "Alice", Encoding: zeroEncoding()},
	}}, 0.25, zerolog.Nop())
	if err := id.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	match := id.Identify(encodingAtDistance(0.25))
	if !match.IsKnown {
		t.Fatal("distance exactly at tolerance should still match")
	}
	if match.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", match.Confidence)
	}
}

func TestIdentifyBeyondTolerance(t *testing.T) {
	id := loadedIdentifier(t, []GalleryEntry{
		{PersonID: 1, Name: "Alice", Encoding: zeroEncoding()},
	})

	match := id.Identify(encodingAtDistance(0.61))
	if match.IsKnown {
		t.Fatal("distance beyond tolerance must not match")
	}
	if match.Name != "Unknown" {
		t.Errorf("Name = %q, want Unknown", match.Name)
	}
	if match.PersonID != nil {
		t.Errorf("PersonID = %v, want nil", match.PersonID)
	}
}

func TestIdentifyNearestWins(t *testing.T) {
	far := encodingAtDistance(10)
	id := loadedIdentifier(t, []GalleryEntry{
		{PersonID: 1, Name: "Alice", Encoding: far},
		{PersonID: 2, Name: "Bob", Encoding: zeroEncoding()},
	})

	match := id.Identify(encodingAtDistance(0.1))
	if !match.IsKnown || match.Name != "Bob" {
		t.Errorf("match = %+v, want Bob", match)
	}
}

func TestIdentifyEmptyGallery(t *testing.T) {
	id := loadedIdentifier(t, nil)

	match := id.Identify(encodingAtDistance(0.1))
	if match.IsKnown {
		t.Fatal("empty gallery cannot produce a known match")
	}
	if match.Name != "Unknown" {
		t.Errorf("Name = %q, want Unknown", match.Name)
	}
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	gallery := &staticGallery{entries: []GalleryEntry{
		{PersonID: 1, Name: "Alice", Encoding: zeroEncoding()},
	}}
	id := NewIdentifier(gallery, 0.6, zerolog.Nop())
	if err := id.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	gallery.err = errors.New("database down")
	if err := id.Reload(context.Background()); err == nil {
		t.Fatal("Reload should propagate the store error")
	}

	if id.KnownCount() != 1 {
		t.Errorf("KnownCount = %d after failed reload, want 1", id.KnownCount())
	}
	if match := id.Identify(encodingAtDistance(0.1)); !match.IsKnown {
		t.Error("previous snapshot should keep matching after failed reload")
	}
}

func TestEuclideanDistance(t *testing.T) {
	a := []float64{3, 4}
	b := []float64{0, 0}
	if d := euclideanDistance(a, b); math.Abs(d-5) > 1e-12 {
		t.Errorf("distance = %v, want 5", d)
	}
}
