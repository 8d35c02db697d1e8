// Package georoute maps a coordinate to the administrative zone that handles it.
package georoute

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"smartnagrik/backend/internal/config"
	"smartnagrik/backend/internal/models"
)

const earthRadiusKm = 6371.0

// ZoneCatalog is the read side of the zone table.
type ZoneCatalog interface {
	ListZones(ctx context.Context) ([]models.Zone, error)
}

// Router resolves zones from a cached copy of the catalog. It never changes
// the complaint it is routing.
type Router struct {
	catalog ZoneCatalog
	ttl     time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	zones    []models.Zone
	loadedAt time.Time
}

// NewRouter creates a Router that reloads the catalog every config.ZoneCacheTTL.
func NewRouter(catalog ZoneCatalog) *Router {
	return &Router{catalog: catalog, ttl: config.ZoneCacheTTL, now: time.Now}
}

// ResolveZone returns the zone for (lat, lng), or nil when no zones exist.
//
// A zone whose boundary polygon contains the point wins. Otherwise the zone
// with the nearest centroid is used, and if no zone has a centroid the zone
// with the lowest ID.
func (r *Router) ResolveZone(ctx context.Context, lat, lng float64) (*models.Zone, error) {
	zones, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, nil
	}

	for i := range zones {
		if v := zones[i].Vertices(); len(v) >= 3 && contains(v, lat, lng) {
			z := zones[i]
			return &z, nil
		}
	}

	best := -1
	bestDist := math.Inf(1)
	for i := range zones {
		if !zones[i].HasCentroid() {
			continue
		}
		d := Haversine(lat, lng, *zones[i].CentroidLat, *zones[i].CentroidLng)
		if d < bestDist || (d == bestDist && zones[i].ID < zones[best].ID) {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		z := zones[best]
		return &z, nil
	}

	lowest := 0
	for i := range zones {
		if zones[i].ID < zones[lowest].ID {
			lowest = i
		}
	}
	z := zones[lowest]
	return &z, nil
}

// Invalidate drops the cached catalog so the next lookup reloads it.
func (r *Router) Invalidate() {
	r.mu.Lock()
	r.zones = nil
	r.loadedAt = time.Time{}
	r.mu.Unlock()
}

func (r *Router) snapshot(ctx context.Context) ([]models.Zone, error) {
	r.mu.RLock()
	if !r.loadedAt.IsZero() && r.now().Sub(r.loadedAt) < r.ttl {
		zones := r.zones
		r.mu.RUnlock()
		return zones, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loadedAt.IsZero() && r.now().Sub(r.loadedAt) < r.ttl {
		return r.zones, nil
	}

	zones, err := r.catalog.ListZones(ctx)
	if err != nil {
		if r.zones != nil {
			log.Printf("WARN: zone catalog reload failed, using cached zones: %v", err)
			return r.zones, nil
		}
		return nil, err
	}
	r.zones = zones
	r.loadedAt = r.now()
	return zones, nil
}

// contains is the even-odd ray casting test with lat as y and lng as x.
func contains(poly [][2]float64, lat, lng float64) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		yi, xi := poly[i][0], poly[i][1]
		yj, xj := poly[j][0], poly[j][1]
		if (yi > lat) != (yj > lat) && lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
