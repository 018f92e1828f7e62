package geo

import (
	"math"
	"testing"

	"github.com/spec-kit/repair-service/internal/domain"
)

func TestHaversineKm(t *testing.T) {
	cases := []struct {
		name string
		a, b domain.Position
		want float64
		tol  float64
	}{
		{"same point", domain.Position{Latitude: -23.55, Longitude: -46.63}, domain.Position{Latitude: -23.55, Longitude: -46.63}, 0, 1e-9},
		{"one degree of longitude at the equator", domain.Position{}, domain.Position{Longitude: 1}, 111.195, 0.01},
		{"antipodal points", domain.Position{Latitude: 10, Longitude: 20}, domain.Position{Latitude: -10, Longitude: -160}, math.Pi * EarthRadiusKm, 1e-6},
		{"sao paulo to rio", domain.Position{Latitude: -23.5505, Longitude: -46.6333}, domain.Position{Latitude: -22.9068, Longitude: -43.1729}, 361, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HaversineKm(tc.a, tc.b)
			if math.Abs(got-tc.want) > tc.tol {
				t.Fatalf("HaversineKm = %.3f, want %.3f±%.3f", got, tc.want, tc.tol)
			}
		})
	}
}

func TestHaversineKmSymmetric(t *testing.T) {
	a := domain.Position{Latitude: 40.7128, Longitude: -74.0060}
	b := domain.Position{Latitude: 34.0522, Longitude: -118.2437}
	if d1, d2 := HaversineKm(a, b), HaversineKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d1, d2)
	}
}
