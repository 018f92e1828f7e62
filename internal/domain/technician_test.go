package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestApplyReviewRunningMean(t *testing.T) {
	tech := &Technician{Rating: 4.6, ReviewCount: 10}
	tech.ApplyReview(5)

	want := (4.6*10 + 5) / 11
	if math.Abs(tech.Rating-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, tech.Rating)
	}
	if tech.ReviewCount != 11 {
		t.Fatalf("expected 11 reviews, got %d", tech.ReviewCount)
	}
	if tech.DisplayRating() != 4.6 {
		t.Fatalf("expected display 4.6, got %v", tech.DisplayRating())
	}
}

func TestApplyReviewFirstReview(t *testing.T) {
	tech := &Technician{}
	tech.ApplyReview(3)
	if tech.Rating != 3 || tech.ReviewCount != 1 {
		t.Fatalf("unexpected aggregate %v/%d", tech.Rating, tech.ReviewCount)
	}
}

func TestApplyReviewStaysBetweenOldAndNew(t *testing.T) {
	for _, start := range []float64{0, 1, 2.5, 4.636, 5} {
		for count := 0; count < 4; count++ {
			for rating := MinRating; rating <= MaxRating; rating++ {
				tech := &Technician{Rating: start, ReviewCount: count}
				if count == 0 {
					tech.Rating = 0
				}
				old := tech.Rating
				tech.ApplyReview(rating)

				lo, hi := math.Min(old, float64(rating)), math.Max(old, float64(rating))
				if count == 0 {
					lo, hi = float64(rating), float64(rating)
				}
				if tech.Rating < lo-1e-12 || tech.Rating > hi+1e-12 {
					t.Fatalf("start %v count %d rating %d: %v outside [%v,%v]", old, count, rating, tech.Rating, lo, hi)
				}
				if tech.ReviewCount != count+1 {
					t.Fatalf("expected count %d, got %d", count+1, tech.ReviewCount)
				}
			}
		}
	}
}

func TestOffers(t *testing.T) {
	tech := &Technician{
		Specialties: []string{"Notebook"},
		Services:    []ServiceOffering{{Name: "Screen replacement", Price: decimal.NewFromInt(200)}},
	}
	cases := map[string]bool{
		"":                   true,
		"notebook":           true,
		" Screen Replacement": true,
		"Printer":            false,
	}
	for category, want := range cases {
		if got := tech.Offers(category); got != want {
			t.Fatalf("Offers(%q) = %v, want %v", category, got, want)
		}
	}
}

func TestRegionMatching(t *testing.T) {
	tech := &Technician{Region: Region{City: "São Paulo", State: "SP"}}
	if !tech.InCity("são paulo") || !tech.InState("sp") {
		t.Fatal("expected case-insensitive region match")
	}
	if tech.InCity("Campinas") {
		t.Fatal("unexpected city match")
	}
}

func TestCompareRatingIgnoresRunningMeanDrift(t *testing.T) {
	many := &Technician{}
	for _, r := range []int{4, 3, 1, 3, 2, 5, 2, 4, 5, 2, 4, 3, 3, 4, 2, 1, 1, 3, 1, 5, 4, 3, 2, 3, 5, 3} {
		many.ApplyReview(r)
	}
	few := &Technician{}
	few.ApplyReview(3)
	few.ApplyReview(3)

	if got := CompareRating(many.Rating, few.Rating); got != 0 {
		t.Fatalf("equal means %v and %v compared as %d", many.Rating, few.Rating, got)
	}
	if CompareRating(4.9, 5) != -1 || CompareRating(5, 4.9) != 1 {
		t.Fatalf("distinct ratings must still order")
	}
	if CompareRating(4.8999999, 4.9) != -1 {
		t.Fatalf("differences above the comparison scale must order")
	}
}
