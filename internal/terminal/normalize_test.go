package terminal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/srbio/internal/models"
)

func TestNormalizeUser(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawUser
		want    User
		wantErr bool
	}{
		{
			name: "admin privilege",
			raw:  RawUser{Slot: 1, UserID: " 7 ", Name: "JANE S ", Password: "1234", CardNo: "99", Privilege: 14},
			want: User{ExternalUserID: "7", DisplayName: "JANE S", Role: models.RoleAdmin, Credential: "1234", CardNumber: "99", Slot: 1},
		},
		{
			name: "unknown privilege is user",
			raw:  RawUser{Slot: 2, UserID: "8", Privilege: 3},
			want: User{ExternalUserID: "8", Role: models.RoleUser, Slot: 2},
		},
		{name: "empty id", raw: RawUser{Slot: 3, UserID: "  "}, wantErr: true},
		{name: "negative slot", raw: RawUser{Slot: -1, UserID: "9"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUser(tt.raw)
			if tt.wantErr {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAttendance(t *testing.T) {
	riga, err := time.LoadLocation("Europe/Riga")
	require.NoError(t, err)

	// terminal clock reads 10:00:05.7 local; drivers hand it over with an arbitrary zone
	raw := RawAttendance{UserID: "7", Timestamp: time.Date(2024, 3, 1, 10, 0, 5, 700, time.UTC), VerifyType: 1, State: 0}

	got, err := NormalizeAttendance(raw, riga)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 5, 0, time.UTC), got.Timestamp)
	assert.Equal(t, time.UTC, got.Timestamp.Location())
	assert.Equal(t, "7", got.ExternalUserID)
	assert.Equal(t, 1, got.VerificationMethod)

	_, err = NormalizeAttendance(RawAttendance{UserID: "", Timestamp: raw.Timestamp}, riga)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = NormalizeAttendance(RawAttendance{UserID: "7"}, riga)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "7", ve.ExternalUserID)
}

func TestPrivilegeRoundTrip(t *testing.T) {
	assert.Equal(t, 14, PrivilegeFromRole(models.RoleAdmin))
	assert.Equal(t, 0, PrivilegeFromRole(models.RoleUser))
	assert.Equal(t, models.RoleAdmin, RoleFromPrivilege(PrivilegeFromRole(models.RoleAdmin)))
}
