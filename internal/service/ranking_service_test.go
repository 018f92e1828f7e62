package service

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/spec-kit/repair-service/internal/domain"
)

func seedRanking(t *testing.T, h *harness) {
	t.Helper()
	campinas := domain.Region{City: "Campinas", State: "SP"}
	for _, tech := range []domain.Technician{
		{ID: "a", Rating: 4.9, ReviewCount: 3, Region: campinas},
		{ID: "b", Rating: 4.9, ReviewCount: 8, Region: campinas},
		{ID: "c", Rating: 4.2, ReviewCount: 50, Region: campinas},
		{ID: "d", Rating: 4.9, ReviewCount: 8, Region: campinas},
		{ID: "e", Rating: 5.0, ReviewCount: 1, Region: domain.Region{City: "Santos", State: "SP"}},
		{ID: "f", Rating: 3.0, ReviewCount: 2, Region: domain.Region{City: "Curitiba", State: "PR"}},
	} {
		h.addTechnician(t, tech)
	}
}

func rankedIDs(r Ranking) []string {
	var ids []string
	for tech := range r.All() {
		ids = append(ids, tech.ID)
	}
	return ids
}

func TestTopTechniciansOrdering(t *testing.T) {
	h := newHarness(t)
	seedRanking(t, h)

	ranking, err := h.ranking.TopTechnicians(context.Background(), domain.Region{City: "campinas"}, 3)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if got := rankedIDs(ranking); !slices.Equal(got, []string{"b", "d", "a"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if ranking.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", ranking.Len())
	}
}

func TestTopTechniciansIsRestartable(t *testing.T) {
	h := newHarness(t)
	seedRanking(t, h)

	ranking, _ := h.ranking.TopTechnicians(context.Background(), domain.Region{State: "SP"}, 10)
	first := rankedIDs(ranking)
	second := rankedIDs(ranking)
	if !slices.Equal(first, second) || len(first) != 5 {
		t.Fatalf("iteration not repeatable: %v vs %v", first, second)
	}
	if first[0] != "e" {
		t.Fatalf("expected e first, got %v", first)
	}

	yielded := slices.Collect(ranking.All())
	yielded[0].ID = "mutated"
	if rankedIDs(ranking)[0] != "e" {
		t.Fatalf("ranking was mutated through a yielded value")
	}
}

func TestTopTechniciansFallbacks(t *testing.T) {
	h := newHarness(t)
	seedRanking(t, h)
	ctx := context.Background()

	ranking, _ := h.ranking.TopTechnicians(ctx, domain.Region{City: "Sorocaba", State: "SP"}, 10)
	if ranking.Len() != 5 {
		t.Fatalf("expected state fallback with 5 entries, got %d", ranking.Len())
	}

	ranking, _ = h.ranking.TopTechnicians(ctx, domain.Region{City: "Sorocaba"}, 10)
	if got := rankedIDs(ranking); !slices.Equal(got, []string{"e", "b", "d", "a", "c", "f"}) {
		t.Fatalf("expected directory fallback for unknown city, got %v", got)
	}

	ranking, _ = h.ranking.TopTechnicians(ctx, domain.Region{City: "Sorocaba", State: "RJ"}, 10)
	if ranking.Len() != 6 {
		t.Fatalf("expected directory fallback when city and state miss, got %d", ranking.Len())
	}

	ranking, _ = h.ranking.TopTechnicians(ctx, domain.Region{}, 0)
	if got := rankedIDs(ranking); len(got) != 5 || got[0] != "e" {
		t.Fatalf("expected default limit over the directory, got %v", got)
	}
}

func TestRankTechniciansDoesNotReorderInput(t *testing.T) {
	input := []domain.Technician{{ID: "z", Rating: 1}, {ID: "y", Rating: 5}}
	out := rankTechnicians(input, 1)
	if len(out) != 1 || out[0].ID != "y" {
		t.Fatalf("unexpected ranking %v", out)
	}
	if input[0].ID != "z" {
		t.Fatalf("input was reordered")
	}
}

func TestTopTechniciansScenarios(t *testing.T) {
	saoPauloRegion := domain.Region{City: "São Paulo", State: "SP"}
	cases := []struct {
		name    string
		ratings []float64
		counts  []int
		region  domain.Region
		limit   int
		want    []string
	}{
		{
			name:    "rating then review count",
			ratings: []float64{5, 5, 4.9, 4.9, 4.8, 4.7},
			counts:  []int{3, 9, 20, 2, 1, 1},
			region:  domain.Region{City: "São Paulo"},
			limit:   5,
			want:    []string{"t1", "t0", "t2", "t3", "t4"},
		},
		{
			name:    "case-insensitive city",
			ratings: []float64{4, 4.5},
			counts:  []int{10, 1},
			region:  domain.Region{City: "são paulo"},
			limit:   0,
			want:    []string{"t1", "t0"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			for i, rating := range tc.ratings {
				h.addTechnician(t, domain.Technician{
					ID:          fmt.Sprintf("t%d", i),
					Rating:      rating,
					ReviewCount: tc.counts[i],
					Region:      saoPauloRegion,
				})
			}
			ranking, err := h.ranking.TopTechnicians(context.Background(), tc.region, tc.limit)
			if err != nil {
				t.Fatalf("ranking: %v", err)
			}
			if got := rankedIDs(ranking); !slices.Equal(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTopTechniciansEqualMeansPreferMoreReviews(t *testing.T) {
	h := newHarness(t)
	region := domain.Region{City: "Campinas", State: "SP"}
	many := domain.Technician{ID: "a-many", Region: region}
	for _, r := range []int{4, 3, 1, 3, 2, 5, 2, 4, 5, 2, 4, 3, 3, 4, 2, 1, 1, 3, 1, 5, 4, 3, 2, 3, 5, 3} {
		many.ApplyReview(r)
	}
	few := domain.Technician{ID: "b-few", Region: region}
	few.ApplyReview(3)
	few.ApplyReview(3)
	h.addTechnician(t, few)
	h.addTechnician(t, many)

	ranking, _ := h.ranking.TopTechnicians(context.Background(), region, 5)
	if got := rankedIDs(ranking); !slices.Equal(got, []string{"a-many", "b-few"}) {
		t.Fatalf("expected review count to break the tie, got %v (ratings %v / %v)", got, many.Rating, few.Rating)
	}
}
