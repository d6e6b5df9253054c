package terminal

import (
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/srbio/internal/models"
)

// adminPrivilege is the privilege level terminals use for administrators.
const adminPrivilege = 14

// RoleFromPrivilege maps a terminal privilege level to a Role. Anything
// other than the admin level is a plain user.
func RoleFromPrivilege(p int) models.Role {
	if p == adminPrivilege {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// PrivilegeFromRole is the inverse of RoleFromPrivilege.
func PrivilegeFromRole(r models.Role) int {
	if r == models.RoleAdmin {
		return adminPrivilege
	}
	return 0
}

// NormalizeUser validates a raw roster entry.
func NormalizeUser(raw RawUser) (User, error) {
	id := strings.TrimSpace(raw.UserID)
	if id == "" {
		return User{}, &ValidationError{Reason: "empty user id at slot " + strconv.Itoa(raw.Slot)}
	}
	if raw.Slot < 0 {
		return User{}, &ValidationError{ExternalUserID: id, Reason: "negative slot " + strconv.Itoa(raw.Slot)}
	}
	return User{
		ExternalUserID: id,
		DisplayName:    strings.TrimSpace(raw.Name),
		Role:           RoleFromPrivilege(raw.Privilege),
		Credential:     raw.Password,
		CardNumber:     strings.TrimSpace(raw.CardNo),
		Slot:           raw.Slot,
	}, nil
}

// NormalizeAttendance validates a raw punch and converts the terminal wall
// clock, read in loc, to a UTC instant truncated to the second.
func NormalizeAttendance(raw RawAttendance, loc *time.Location) (Attendance, error) {
	id := strings.TrimSpace(raw.UserID)
	if id == "" {
		return Attendance{}, &ValidationError{Reason: "empty user id"}
	}
	if raw.Timestamp.IsZero() {
		return Attendance{}, &ValidationError{ExternalUserID: id, Reason: "missing timestamp"}
	}
	if loc == nil {
		loc = time.Local
	}

	ts := raw.Timestamp
	wall := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, loc)

	return Attendance{
		ExternalUserID:     id,
		Timestamp:          wall.UTC(),
		VerificationMethod: raw.VerifyType,
		EventKind:          raw.State,
	}, nil
}
