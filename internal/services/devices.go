package services

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/health"
	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

// Capacity defaults for terminals that do not report their limits.
const (
	defaultUserCapacity   = 3000
	defaultLogCapacity    = 100000
	defaultFingerCapacity = 5000
	defaultFaceCapacity   = 500
)

// Checker runs a single reachability probe.
type Checker interface {
	Check(ctx context.Context, d *models.Device) health.ProbeResult
	Snapshot() map[string]health.ProbeResult
}

type Capacity struct {
	UserCount      int `json:"user_count"`
	UserCapacity   int `json:"user_capacity"`
	LogCount       int `json:"log_count"`
	LogCapacity    int `json:"log_capacity"`
	FingerCount    int `json:"fingerprint_count"`
	FingerCapacity int `json:"fingerprint_capacity"`
	FaceCount      int `json:"face_count"`
	FaceCapacity   int `json:"face_capacity"`
}

// DeviceDiagnostics is what a terminal says about itself. DeviceTime is nil
// when the terminal cannot report its clock.
type DeviceDiagnostics struct {
	DeviceTime   *time.Time `json:"device_time"`
	Model        string     `json:"model"`
	Firmware     string     `json:"firmware_version"`
	SerialNumber string     `json:"serial_number"`
	Platform     string     `json:"platform"`
	MACAddress   string     `json:"mac_address"`
	Capacity     Capacity   `json:"capacity"`
}

// DeviceHealth joins a device with its last probe.
type DeviceHealth struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Address    string              `json:"address"`
	Status     models.Status       `json:"status"`
	LastSeenAt *time.Time          `json:"last_seen_at,omitempty"`
	Probe      *health.ProbeResult `json:"probe,omitempty"`
}

type DeviceService struct {
	repos    repomanager.RepositoryManager
	sessions sessionRunner
	checker  Checker
	logger   logging.Logger
}

func NewDeviceService(m repomanager.RepositoryManager, sessions sessionRunner, checker Checker, logger logging.Logger) *DeviceService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DeviceService{repos: m, sessions: sessions, checker: checker, logger: logger.With("module", "devices")}
}

func (s *DeviceService) repo() devices.Repository {
	return s.repos.Devices(s.repos.DB())
}

func (s *DeviceService) List(ctx context.Context) ([]models.Device, error) {
	return s.repo().List(ctx)
}

func (s *DeviceService) Get(ctx context.Context, id string) (*models.Device, error) {
	return s.repo().GetByID(ctx, id)
}

func validateDevice(d *models.Device) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Address = strings.TrimSpace(d.Address)
	if d.Port == 0 {
		d.Port = common.DefaultTerminalPort
	}
	switch {
	case d.Name == "":
		return fmt.Errorf("device name is required: %w", common.ErrorInvalidArgument)
	case d.Address == "":
		return fmt.Errorf("device address is required: %w", common.ErrorInvalidArgument)
	case strings.ContainsAny(d.Address, " /"):
		return fmt.Errorf("device address %q is not a host: %w", d.Address, common.ErrorInvalidArgument)
	case d.Port < 1 || d.Port > 65535:
		return fmt.Errorf("device port %d out of range: %w", d.Port, common.ErrorInvalidArgument)
	}
	if ip := net.ParseIP(d.Address); ip != nil {
		d.Address = ip.String()
	}
	return nil
}

// Create stores a new device. It starts offline until a probe or session
// reaches it.
func (s *DeviceService) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	if err := validateDevice(d); err != nil {
		return nil, err
	}
	d.Status = models.StatusOffline
	out, err := s.repo().Create(ctx, d)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "device created", "device_id", out.ID, "address", out.Address)
	return out, nil
}

// Update edits name, address, port and the admin-entered hardware fields.
func (s *DeviceService) Update(ctx context.Context, d *models.Device) (*models.Device, error) {
	if err := validateDevice(d); err != nil {
		return nil, err
	}
	repo := s.repo()
	if err := repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, d.ID)
}

// Delete removes the device with its roster and attendance.
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	if err := s.repo().Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "device deleted", "device_id", id)
	return nil
}

// Info reads identity, clock and capacity from the terminal in one session
// and stores the hardware details on the device.
func (s *DeviceService) Info(ctx context.Context, id string) (Outcome, error) {
	repo := s.repo()
	d, err := repo.GetByID(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	var diag DeviceDiagnostics
	err = s.sessions.WithSession(context.WithoutCancel(ctx), d, func(ctx context.Context, c terminal.Client) error {
		info, err := terminal.ReadInfo(ctx, c)
		if err != nil {
			return err
		}
		ts, err := terminal.ReadTime(ctx, c)
		if err != nil {
			return err
		}
		userCount := info.UserCount
		if c.Capabilities().Has(terminal.CapUsers) {
			users, err := c.GetUsers(ctx)
			switch {
			case terminal.Unsupported(err):
			case err != nil:
				return err
			default:
				userCount = len(users)
			}
		}
		diag = diagnostics(info, ts, userCount)
		return nil
	})
	if err != nil {
		return failed(err), nil
	}

	hw := devices.Hardware{Model: diag.Model, MACAddress: diag.MACAddress, Firmware: diag.Firmware, SerialNumber: diag.SerialNumber}
	if err := repo.UpdateHardware(ctx, id, knownOnly(hw)); err != nil {
		return Outcome{}, err
	}
	if err := s.sessions.MarkOnline(ctx, id); err != nil {
		s.logger.Warn(ctx, "failed to mark device online", "device_id", id, "err", err)
	}
	return Outcome{Success: true, Message: "device information read", Data: diag}, nil
}

func diagnostics(info terminal.Info, ts time.Time, userCount int) DeviceDiagnostics {
	orDefault := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	diag := DeviceDiagnostics{
		Model:        info.Model,
		Firmware:     info.Firmware,
		SerialNumber: info.SerialNumber,
		Platform:     info.Platform,
		MACAddress:   info.MACAddress,
		Capacity: Capacity{
			UserCount:      userCount,
			UserCapacity:   orDefault(info.UserCapacity, defaultUserCapacity),
			LogCount:       info.LogCount,
			LogCapacity:    orDefault(info.LogCapacity, defaultLogCapacity),
			FingerCount:    info.FingerCount,
			FingerCapacity: orDefault(info.FingerCapacity, defaultFingerCapacity),
			FaceCapacity:   defaultFaceCapacity,
		},
	}
	if !ts.IsZero() {
		diag.DeviceTime = &ts
	}
	return diag
}

// knownOnly blanks fields the terminal could not report so they do not
// overwrite stored values.
func knownOnly(hw devices.Hardware) devices.Hardware {
	clean := func(s string) string {
		if s == terminal.Unknown {
			return ""
		}
		return s
	}
	return devices.Hardware{
		Model:        clean(hw.Model),
		MACAddress:   clean(hw.MACAddress),
		Firmware:     clean(hw.Firmware),
		SerialNumber: clean(hw.SerialNumber),
	}
}

// TestConnection probes the device once, outside the monitor schedule.
func (s *DeviceService) TestConnection(ctx context.Context, id string) (Outcome, error) {
	d, err := s.repo().GetByID(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	res := s.checker.Check(ctx, d)
	if !res.Online {
		return Outcome{Success: false, Message: "unreachable: " + res.Err, Data: res}, nil
	}
	return Outcome{Success: true, Message: fmt.Sprintf("reachable in %s", res.RTT.Round(time.Millisecond)), Data: res}, nil
}

// Health lists every device with its last probe result.
func (s *DeviceService) Health(ctx context.Context) ([]DeviceHealth, error) {
	list, err := s.repo().List(ctx)
	if err != nil {
		return nil, err
	}
	snap := s.checker.Snapshot()
	out := make([]DeviceHealth, 0, len(list))
	for _, d := range list {
		h := DeviceHealth{ID: d.ID, Name: d.Name, Address: d.Address, Status: d.Status, LastSeenAt: d.LastSeenAt}
		if p, ok := snap[d.ID]; ok {
			h.Probe = &p
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
