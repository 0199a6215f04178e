package faceid

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"homecam-gateway/internal/models"
)

// GalleryEntry is one enrolled encoding with its owner.
type GalleryEntry struct {
	PersonID int64
	Name     string
	Encoding []float64
}

// Gallery supplies the enrolled encodings, typically from the database.
type Gallery interface {
	GetAllEncodings(ctx context.Context) ([]GalleryEntry, error)
}

// Identifier matches face encodings against the in-memory gallery snapshot.
// The snapshot is refreshed with Reload; matching itself never touches the
// database, so it stays cheap enough to run per frame.
type Identifier struct {
	gallery   Gallery
	tolerance float64
	log       zerolog.Logger

	mu        sync.RWMutex
	encodings [][]float64
	personIDs []int64
	names     []string
}

func NewIdentifier(gallery Gallery, tolerance float64, logger zerolog.Logger) *Identifier {
	return &Identifier{
		gallery:   gallery,
		tolerance: tolerance,
		log:       logger,
	}
}

// Reload replaces the gallery snapshot from the store. On error the
// previous snapshot stays in effect.
func (i *Identifier) Reload(ctx context.Context) error {
	if i.gallery == nil {
		return nil
	}

	entries, err := i.gallery.GetAllEncodings(ctx)
	if err != nil {
		i.log.Error().Err(err).Msg("Failed to reload face gallery")
		return err
	}

	encodings := make([][]float64, 0, len(entries))
	personIDs := make([]int64, 0, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		encodings = append(encodings, entry.Encoding)
		personIDs = append(personIDs, entry.PersonID)
		names = append(names, entry.Name)
	}

	i.mu.Lock()
	i.encodings = encodings
	i.personIDs = personIDs
	i.names = names
	i.mu.Unlock()

	i.log.Info().Int("encodings", len(encodings)).Msg("Face gallery reloaded")
	return nil
}

// KnownCount returns the number of encodings in the current snapshot.
func (i *Identifier) KnownCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.encodings)
}

// Identify matches one encoding against the gallery. The nearest enrolled
// encoding wins when its Euclidean distance is within tolerance; ties keep
// the first-seen entry. Confidence maps distance 0 to 100 and distance at
// tolerance to 0.
func (i *Identifier) Identify(encoding []float64) models.FaceMatch {
	i.mu.RLock()
	defer i.mu.RUnlock()

	bestIdx := -1
	bestDist := math.Inf(1)
	for idx, known := range i.encodings {
		d := euclideanDistance(known, encoding)
		if d < bestDist {
			bestDist = d
			bestIdx = idx
		}
	}

	if bestIdx < 0 || bestDist > i.tolerance {
		return models.FaceMatch{Name: "Unknown"}
	}

	confidence := (1 - bestDist/i.tolerance) * 100
	if confidence < 0 {
		confidence = 0
	}
	personID := i.personIDs[bestIdx]
	return models.FaceMatch{
		PersonID:   &personID,
		Name:       i.names[bestIdx],
		Confidence: confidence,
		IsKnown:    true,
	}
}

func euclideanDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
