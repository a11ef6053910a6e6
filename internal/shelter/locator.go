package shelter

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/mr1hm/go-shelter-alerts/internal/geo"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

const (
	// MaxResults caps every lookup regardless of what the caller asks for.
	MaxResults = 20

	DefaultSearchRadiusKm = 10.0
)

// Store is the only persistence the locator touches.
type Store interface {
	FindOpenInBoundingBox(ctx context.Context, box geo.Bounds) ([]models.Shelter, error)
}

// Result is a shelter with its distance and walking time from the query point.
type Result struct {
	Shelter    models.Shelter
	DistanceKm float64
	ETASeconds int
}

type Locator struct {
	store Store
}

func NewLocator(store Store) *Locator {
	return &Locator{store: store}
}

// FindNearest returns open shelters around point sorted by distance, at most
// min(maxResults, MaxResults) of them. An empty result is not an error.
func (l *Locator) FindNearest(ctx context.Context, point models.Coordinates, maxResults int, searchRadiusKm float64) ([]Result, error) {
	if searchRadiusKm <= 0 {
		searchRadiusKm = DefaultSearchRadiusKm
	}

	candidates, err := l.Candidates(ctx, point, searchRadiusKm)
	if err != nil {
		return nil, err
	}

	results, err := Rank(point, candidates)
	if err != nil {
		return nil, err
	}

	limit := min(maxResults, MaxResults)
	if limit < 0 {
		limit = 0
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Candidates fetches open shelters inside the bounding box around point.
func (l *Locator) Candidates(ctx context.Context, point models.Coordinates, radiusKm float64) ([]models.Shelter, error) {
	box := geo.BoundingBox(point.Latitude, point.Longitude, radiusKm)
	shelters, err := l.store.FindOpenInBoundingBox(ctx, box)
	if err != nil {
		return nil, fmt.Errorf("error fetching shelters: %w", err)
	}
	return shelters, nil
}

// Rank computes exact distances and ETAs and sorts ascending by distance,
// breaking ties by shelter ID.
func Rank(point models.Coordinates, shelters []models.Shelter) ([]Result, error) {
	results := make([]Result, 0, len(shelters))
	for _, s := range shelters {
		d := geo.HaversineKm(point.Latitude, point.Longitude, s.Latitude, s.Longitude)
		eta, err := geo.WalkETASeconds(d)
		if err != nil {
			return nil, fmt.Errorf("shelter %d: %w", s.ID, err)
		}
		results = append(results, Result{Shelter: s, DistanceKm: d, ETASeconds: eta})
	}

	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
			return c
		}
		return cmp.Compare(a.Shelter.ID, b.Shelter.ID)
	})
	return results, nil
}

// Nearest picks the closest shelter by linear scan. ok is false when
// shelters is empty.
func Nearest(point models.Coordinates, shelters []models.Shelter) (res Result, ok bool) {
	for _, s := range shelters {
		d := geo.HaversineKm(point.Latitude, point.Longitude, s.Latitude, s.Longitude)
		if !ok || d < res.DistanceKm || (d == res.DistanceKm && s.ID < res.Shelter.ID) {
			res = Result{Shelter: s, DistanceKm: d}
			ok = true
		}
	}
	if ok {
		// Distance from HaversineKm is never negative.
		res.ETASeconds, _ = geo.WalkETASeconds(res.DistanceKm)
	}
	return res, ok
}
