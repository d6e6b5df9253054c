package terminal

import (
	"time"

	"github.com/dmitrijs2005/srbio/internal/models"
)

// RawUser is a roster entry exactly as a driver decoded it.
type RawUser struct {
	Slot      int
	UserID    string
	Name      string
	Password  string
	CardNo    string
	Privilege int
}

// RawAttendance is a punch exactly as a driver decoded it. Timestamp holds
// the terminal's wall clock; its Location is not meaningful.
type RawAttendance struct {
	UserID     string
	Timestamp  time.Time
	VerifyType int
	State      int
}

// User is a validated roster entry.
type User struct {
	ExternalUserID string
	DisplayName    string
	Role           models.Role
	Credential     string
	CardNumber     string
	Slot           int
}

// Attendance is a validated punch with a UTC timestamp truncated to the
// second.
type Attendance struct {
	ExternalUserID     string
	Timestamp          time.Time
	VerificationMethod int
	EventKind          int
}

// UserRecord is what SetUser writes into a slot.
type UserRecord struct {
	Slot           int
	ExternalUserID string
	Name           string
	Credential     string
	Role           models.Role
	CardNumber     string
}

// Info is the terminal's self description. Zero counts mean unknown.
type Info struct {
	Model          string
	Firmware       string
	SerialNumber   string
	Platform       string
	MACAddress     string
	UserCount      int
	UserCapacity   int
	LogCount       int
	LogCapacity    int
	FingerCount    int
	FingerCapacity int
}

// Unknown is reported for identity fields a terminal cannot provide.
const Unknown = "Unknown"

// UnknownInfo is the fallback when a terminal lacks CapInfo.
func UnknownInfo() Info {
	return Info{Model: Unknown, Firmware: Unknown, SerialNumber: Unknown, Platform: Unknown}
}
