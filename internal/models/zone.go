package models

import (
	"time"

	"github.com/lib/pq"
)

// Zone is an administrative subdivision complaints are routed to.
type Zone struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"uniqueIndex;not null" json:"name"`
	Department string `json:"department,omitempty"`

	// CentroidLat and CentroidLng are nil when the zone has no reference point.
	CentroidLat *float64 `json:"centroid_lat,omitempty"`
	CentroidLng *float64 `json:"centroid_lng,omitempty"`

	// Boundary holds polygon vertices as alternating lat,lng pairs.
	Boundary pq.Float64Array `gorm:"type:double precision[]" json:"boundary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasCentroid reports whether both centroid coordinates are set.
func (z *Zone) HasCentroid() bool {
	return z.CentroidLat != nil && z.CentroidLng != nil
}

// Vertices returns the boundary as (lat, lng) pairs. A trailing odd value is ignored.
func (z *Zone) Vertices() [][2]float64 {
	out := make([][2]float64, 0, len(z.Boundary)/2)
	for i := 0; i+1 < len(z.Boundary); i += 2 {
		out = append(out, [2]float64{z.Boundary[i], z.Boundary[i+1]})
	}
	return out
}

// Category is the complaint subject (roads, water, sanitation...).
type Category struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"uniqueIndex;not null" json:"name"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
