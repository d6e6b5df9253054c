// Package admins stores operator accounts for the admin API.
package admins

import (
	"context"

	"github.com/dmitrijs2005/srbio/internal/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Admin) (*models.Admin, error)
	GetByUsername(ctx context.Context, username string) (*models.Admin, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}
