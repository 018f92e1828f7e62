package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// Fixtures is the YAML document of directory entries to register.
type Fixtures struct {
	Technicians []Technician `yaml:"technicians"`
}

// Technician is one directory entry. Prices are decimal strings.
type Technician struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Specialties []string  `yaml:"specialties"`
	Services    []Service `yaml:"services"`
	Latitude    float64   `yaml:"latitude"`
	Longitude   float64   `yaml:"longitude"`
	Available   *bool     `yaml:"available"`
	City        string    `yaml:"city"`
	State       string    `yaml:"state"`
}

// Service is a catalog entry.
type Service struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// LoadFile reads fixtures from path.
func LoadFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses fixtures, rejecting unknown keys.
func Decode(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fixtures Fixtures
	if err := dec.Decode(&fixtures); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &fixtures, nil
}

// Result counts what Apply did.
type Result struct {
	Created int
	Skipped int
}

// Apply registers every fixture through the technician service on behalf
// of admin. Entries whose id already exists are skipped.
func Apply(ctx context.Context, technicians *service.TechnicianService, admin domain.Actor, fixtures *Fixtures, logger *zap.Logger) (Result, error) {
	var result Result
	for i, fixture := range fixtures.Technicians {
		input, err := fixture.input()
		if err != nil {
			return result, fmt.Errorf("technician %d (%s): %w", i, fixture.Name, err)
		}
		if _, err := technicians.Register(ctx, admin, input); err != nil {
			if input.ID != "" && apperrors.HasCode(err, apperrors.CodeConflict) {
				logger.Info("technician already present", zap.String("technician_id", input.ID))
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("technician %d (%s): %w", i, fixture.Name, err)
		}
		result.Created++
	}
	return result, nil
}

func (t Technician) input() (service.TechnicianInput, error) {
	offerings := make([]domain.ServiceOffering, 0, len(t.Services))
	for _, s := range t.Services {
		price, err := service.ServicePrice(s.Price)
		if err != nil {
			return service.TechnicianInput{}, err
		}
		offerings = append(offerings, domain.ServiceOffering{Name: s.Name, Price: price})
	}
	available := true
	if t.Available != nil {
		available = *t.Available
	}
	return service.TechnicianInput{
		ID:          t.ID,
		Name:        t.Name,
		Specialties: t.Specialties,
		Services:    offerings,
		Position:    domain.Position{Latitude: t.Latitude, Longitude: t.Longitude},
		Available:   available,
		Region:      domain.Region{City: t.City, State: t.State},
	}, nil
}
