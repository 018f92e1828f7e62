package repository

import (
	"strings"
	"testing"
)

func TestNearbyQueryClampsAsinArgument(t *testing.T) {
	if !strings.Contains(nearbyQuery, "ASIN(LEAST(1.0, SQRT(") {
		t.Fatalf("haversine term must be clamped before ASIN:\n%s", nearbyQuery)
	}
	if !strings.Contains(nearbyQuery, "ORDER BY distance_km ASC, id ASC") {
		t.Fatalf("candidates must be ordered by distance then id:\n%s", nearbyQuery)
	}
}
