package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Region scopes ranking queries.
type Region struct {
	City  string
	State string
}

// ServiceOffering is a catalog entry with its default price.
type ServiceOffering struct {
	Name  string
	Price decimal.Decimal
}

// Technician is a directory entry. Rating and ReviewCount are owned by the
// rating aggregator; Version guards every read-modify-write.
type Technician struct {
	ID          string
	Name        string
	Specialties []string
	Services    []ServiceOffering
	Position    Position
	Available   bool
	Rating      float64
	ReviewCount int
	Region      Region
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayRating rounds the aggregate to one decimal place.
func (t *Technician) DisplayRating() float64 {
	return math.Round(t.Rating*10) / 10
}

// ratingScale is the number of decimals CompareRating looks at. The running
// mean of equal review sets can differ in the last bits depending on order.
const ratingScale = 9

// CompareRating orders two aggregates after rounding both to ratingScale
// decimals, returning -1, 0 or +1 like cmp.Compare.
func CompareRating(a, b float64) int {
	return decimal.NewFromFloat(a).Round(ratingScale).Cmp(decimal.NewFromFloat(b).Round(ratingScale))
}

// ApplyReview folds rating into the running mean in O(1).
func (t *Technician) ApplyReview(rating int) {
	count := float64(t.ReviewCount)
	t.Rating = (t.Rating*count + float64(rating)) / (count + 1)
	t.ReviewCount++
}

// Offers reports whether the technician lists category among its specialties
// or services. Matching is case-insensitive on trimmed names.
func (t *Technician) Offers(category string) bool {
	category = strings.TrimSpace(category)
	if category == "" {
		return true
	}
	for _, specialty := range t.Specialties {
		if strings.EqualFold(strings.TrimSpace(specialty), category) {
			return true
		}
	}
	for _, service := range t.Services {
		if strings.EqualFold(strings.TrimSpace(service.Name), category) {
			return true
		}
	}
	return false
}

// InCity reports a case-insensitive city match.
func (t *Technician) InCity(city string) bool {
	return strings.EqualFold(strings.TrimSpace(t.Region.City), strings.TrimSpace(city))
}

// InState reports a case-insensitive state match.
func (t *Technician) InState(state string) bool {
	return strings.EqualFold(strings.TrimSpace(t.Region.State), strings.TrimSpace(state))
}

// Clone returns a deep copy.
func (t *Technician) Clone() *Technician {
	if t == nil {
		return nil
	}
	out := *t
	out.Specialties = append([]string(nil), t.Specialties...)
	out.Services = append([]ServiceOffering(nil), t.Services...)
	return &out
}
