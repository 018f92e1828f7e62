package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// TechnicianService manages the technician directory.
type TechnicianService struct {
	technicians repository.TechnicianRepository
	logger      *zap.Logger
	now         Clock
}

// TechnicianInput describes a directory entry to register. ID is optional
// and generated when empty.
type TechnicianInput struct {
	ID          string
	Name        string
	Specialties []string
	Services    []domain.ServiceOffering
	Position    domain.Position
	Available   bool
	Region      domain.Region
}

// TechnicianListFilter narrows directory listing.
type TechnicianListFilter struct {
	City      *string
	State     *string
	Available *bool
	Limit     int
	Offset    int
}

// NewTechnicianService creates the service.
func NewTechnicianService(technicians repository.TechnicianRepository, logger *zap.Logger, clock Clock) *TechnicianService {
	return &TechnicianService{technicians: technicians, logger: loggerOrNop(logger), now: clockOrDefault(clock)}
}

// Register adds a technician to the directory. Only admins may call it.
func (s *TechnicianService) Register(ctx context.Context, actor domain.Actor, input TechnicianInput) (*domain.Technician, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewNotAuthorized("only admins may register technicians")
	}
	return s.register(ctx, input)
}

func (s *TechnicianService) register(ctx context.Context, input TechnicianInput) (*domain.Technician, error) {
	technician, err := buildTechnician(input, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.technicians.Create(ctx, technician); err != nil {
		return nil, mapRepoError(err, "technician", map[string]any{"technician_id": technician.ID})
	}
	s.logger.Info("technician registered", zap.String("technician_id", technician.ID), zap.String("city", technician.Region.City))
	return technician, nil
}

func buildTechnician(input TechnicianInput, now time.Time) (*domain.Technician, error) {
	name := domain.NormalizeText(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("technician name is required", map[string]any{"field": "name"})
	}
	pos := input.Position
	if pos.Latitude < -90 || pos.Latitude > 90 || pos.Longitude < -180 || pos.Longitude > 180 {
		return nil, apperrors.NewValidationError("position is out of range", map[string]any{"field": "position"})
	}

	specialties := make([]string, 0, len(input.Specialties))
	for _, specialty := range input.Specialties {
		if specialty = strings.TrimSpace(specialty); specialty != "" {
			specialties = append(specialties, specialty)
		}
	}
	services := make([]domain.ServiceOffering, 0, len(input.Services))
	for i, service := range input.Services {
		service.Name = strings.TrimSpace(service.Name)
		if service.Name == "" {
			return nil, apperrors.NewValidationError("service name is required", map[string]any{"index": i})
		}
		if service.Price.IsNegative() {
			return nil, apperrors.NewValidationError("service price must not be negative",
				map[string]any{"index": i, "price": service.Price.String()})
		}
		service.Price = service.Price.Round(2)
		services = append(services, service)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return &domain.Technician{
		ID:          id,
		Name:        name,
		Specialties: specialties,
		Services:    services,
		Position:    pos,
		Available:   input.Available,
		Region: domain.Region{
			City:  strings.TrimSpace(input.Region.City),
			State: strings.TrimSpace(input.Region.State),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get returns one technician.
func (s *TechnicianService) Get(ctx context.Context, id string) (*domain.Technician, error) {
	technician, err := s.technicians.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "technician", map[string]any{"technician_id": id})
	}
	return technician, nil
}

// List returns directory entries ordered by id.
func (s *TechnicianService) List(ctx context.Context, filter TechnicianListFilter) ([]domain.Technician, error) {
	technicians, err := s.technicians.List(ctx, repository.TechnicianFilter{
		City:      trimmedOrNil(filter.City),
		State:     trimmedOrNil(filter.State),
		Available: filter.Available,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if technicians == nil {
		technicians = []domain.Technician{}
	}
	return technicians, nil
}

// SetAvailability toggles whether the technician takes new tickets. The
// technician itself or an admin may call it. A concurrent update of the
// same entry returns Conflict.
func (s *TechnicianService) SetAvailability(ctx context.Context, actor domain.Actor, id string, available bool) (*domain.Technician, error) {
	if !actor.IsAdmin() && !(actor.Role == domain.RoleTechnician && actor.ID == id) {
		return nil, apperrors.NewNotAuthorized("only the technician or an admin may change availability")
	}
	technician, err := s.technicians.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "technician", map[string]any{"technician_id": id})
	}
	if technician.Available == available {
		return technician, nil
	}
	technician.Available = available
	technician.UpdatedAt = s.now()
	if err := s.technicians.Update(ctx, technician); err != nil {
		return nil, mapRepoError(err, "technician", map[string]any{"technician_id": id})
	}
	s.logger.Info("technician availability changed", zap.String("technician_id", id), zap.Bool("available", available))
	return technician, nil
}

// ServicePrice parses a catalog price.
func ServicePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperrors.NewValidationError("price must be a decimal number", map[string]any{"value": raw})
	}
	return price, nil
}
