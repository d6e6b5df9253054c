package services

import (
	"context"

	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

type AttendancePage struct {
	Items  []models.AttendanceView `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

type AttendanceService struct {
	repos repomanager.RepositoryManager
}

func NewAttendanceService(m repomanager.RepositoryManager) *AttendanceService {
	return &AttendanceService{repos: m}
}

// List pages through a device's events, newest first.
func (s *AttendanceService) List(ctx context.Context, deviceID string, limit, offset int) (*AttendancePage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	db := s.repos.DB()
	if _, err := s.repos.Devices(db).GetByID(ctx, deviceID); err != nil {
		return nil, err
	}
	repo := s.repos.Attendance(db)
	total, err := repo.CountByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	items, err := repo.ListByDevice(ctx, deviceID, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.AttendanceView{}
	}
	return &AttendancePage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}
