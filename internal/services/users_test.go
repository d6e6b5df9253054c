package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

func TestUserService_ListAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, term := f.addDevice(t, "Gate", "10.0.0.1")
	term.PutUser(terminal.RawUser{Slot: 1, UserID: "7", Name: "JANE S"})

	empty, err := f.users.ListByDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	out, err := f.sync.DownloadUsers(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)

	list, err := f.users.ListByDevice(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	got, err := f.users.Update(ctx, id, UserUpdate{
		DisplayName: " Jane ",
		Role:        models.RoleAdmin,
		Profile:     models.UserProfile{LastName: "Smith", City: "Lima", Email: "jane@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.DisplayName)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "Smith", got.Profile.LastName)
	assert.Equal(t, "Lima", got.Profile.City)
	assert.Equal(t, 1, got.InternalSlot, "slot is not editable")

	_, err = f.users.ListByDevice(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserService_UpdateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Update(ctx, "any", UserUpdate{DisplayName: " "})
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)

	_, err = f.users.Update(ctx, "any", UserUpdate{DisplayName: "x", Role: "root"})
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)

	_, err = f.users.Update(ctx, "missing", UserUpdate{DisplayName: "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
