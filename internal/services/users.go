package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/dbx"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
)

// UserUpdate is an administrator edit of an enrolled user.
type UserUpdate struct {
	DisplayName string             `json:"display_name"`
	Role        models.Role        `json:"role"`
	Profile     models.UserProfile `json:"profile"`
}

type UserService struct {
	repos repomanager.RepositoryManager
}

func NewUserService(m repomanager.RepositoryManager) *UserService {
	return &UserService{repos: m}
}

// ListByDevice returns the stored roster of a device.
func (s *UserService) ListByDevice(ctx context.Context, deviceID string) ([]models.UserWithProfile, error) {
	db := s.repos.DB()
	if _, err := s.repos.Devices(db).GetByID(ctx, deviceID); err != nil {
		return nil, err
	}
	list, err := s.repos.Users(db).ListWithProfiles(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.UserWithProfile{}
	}
	return list, nil
}

// Update changes name, role and profile of one user in a single
// transaction. The next upload pushes the change to the terminal.
func (s *UserService) Update(ctx context.Context, id string, in UserUpdate) (*models.UserWithProfile, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("display name is required: %w", common.ErrorInvalidArgument)
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", in.Role, common.ErrorInvalidArgument)
	}

	var out *models.UserWithProfile
	err := dbx.WithTx(ctx, s.repos.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		if err := repo.UpdateIdentity(ctx, id, name, in.Role); err != nil {
			return err
		}
		p := in.Profile
		p.OwnerUserID = id
		if err := repo.UpsertProfile(ctx, &p); err != nil {
			return err
		}
		var err error
		out, err = repo.GetWithProfile(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
