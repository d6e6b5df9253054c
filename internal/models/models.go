// Package models holds the persistent domain types of the sync service.
package models

import "time"

// Status is the last known reachability of a device.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Role is the privilege level of an enrolled user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Device is a networked attendance terminal.
type Device struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	Port         int        `json:"port"`
	Status       Status     `json:"status"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	MACAddress   string     `json:"mac_address"`
	Model        string     `json:"model"`
	Firmware     string     `json:"firmware"`
	SerialNumber string     `json:"serial_number"`
	CreatedAt    time.Time  `json:"created_at"`
}

// EnrolledUser is a roster entry known to one device. (DeviceID,
// ExternalUserID) is unique.
type EnrolledUser struct {
	ID             string `json:"id"`
	DeviceID       string `json:"device_id"`
	ExternalUserID string `json:"external_user_id"`
	DisplayName    string `json:"display_name"`
	Role           Role   `json:"role"`
	Credential     string `json:"-"`
	CardNumber     string `json:"card_number"`
	InternalSlot   int    `json:"internal_slot"`
}

// UserProfile carries central-only details of an enrolled user.
type UserProfile struct {
	OwnerUserID string `json:"owner_user_id"`
	LastName    string `json:"last_name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Province    string `json:"province"`
	TaxID       string `json:"tax_id"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// UserWithProfile joins an enrolled user with its optional profile. Profile
// fields are empty when no profile row exists.
type UserWithProfile struct {
	EnrolledUser
	Profile UserProfile `json:"profile"`
}

// AttendanceEvent is one punch read from a device. (DeviceID,
// ExternalUserID, Timestamp) is unique.
type AttendanceEvent struct {
	ID                 string    `json:"id"`
	DeviceID           string    `json:"device_id"`
	ExternalUserID     string    `json:"external_user_id"`
	Timestamp          time.Time `json:"timestamp"`
	VerificationMethod int       `json:"verification_method"`
	EventKind          int       `json:"event_kind"`
}

// AttendanceView is an AttendanceEvent with the enrolled user's names
// joined in for listing.
type AttendanceView struct {
	AttendanceEvent
	DisplayName string `json:"display_name"`
	LastName    string `json:"last_name"`
}

// Admin is an operator account for the admin API.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// StatusChange records a reachability transition of one device.
type StatusChange struct {
	DeviceID string    `json:"device_id"`
	Status   Status    `json:"status"`
	At       time.Time `json:"at"`
}
