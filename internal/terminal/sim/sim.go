// Package sim is an in-memory terminal driver. It backs development mode
// and the sync engine tests, and it records how sessions overlap so tests
// can check that a device is never opened twice at once.
//
// Importing the package registers the shared Default fleet as "sim".
package sim

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/srbio/internal/terminal"
)

// Default is the fleet registered under the "sim" driver name. Unknown
// endpoints are created on first dial.
var Default = NewFleet(true)

func init() {
	terminal.Register("sim", Default)
}

// Fleet is a set of simulated terminals keyed by address:port.
type Fleet struct {
	mu         sync.Mutex
	terminals  map[string]*Terminal
	autoCreate bool
}

func NewFleet(autoCreate bool) *Fleet {
	return &Fleet{terminals: map[string]*Terminal{}, autoCreate: autoCreate}
}

func key(address string, port int) string {
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// Add creates (or returns) the terminal at address:port.
func (f *Fleet) Add(address string, port int) *Terminal {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(address, port)
	if t, ok := f.terminals[k]; ok {
		return t
	}
	t := NewTerminal()
	f.terminals[k] = t
	return t
}

// Terminal returns the terminal at address:port, if any.
func (f *Fleet) Terminal(address string, port int) (*Terminal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.terminals[key(address, port)]
	return t, ok
}

// Dial opens a session. Unknown endpoints are refused unless the fleet
// auto-creates them.
func (f *Fleet) Dial(ctx context.Context, ep terminal.Endpoint) (terminal.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	t, ok := f.terminals[key(ep.Address, ep.Port)]
	if !ok && f.autoCreate {
		t = NewTerminal()
		f.terminals[key(ep.Address, ep.Port)] = t
		ok = true
	}
	f.mu.Unlock()

	if !ok {
		return nil, refused(ep)
	}
	return t.open(ctx, ep)
}

// Probe answers the health monitor without opening a session. An
// unreachable terminal times out instead of refusing, since a refusal
// still proves the host is up.
func (f *Fleet) Probe(ctx context.Context, address string, port int) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, ok := f.Terminal(address, port)
	if !ok && f.autoCreate {
		t, ok = f.Add(address, port), true
	}
	if !ok {
		return 0, fmt.Errorf("probe %s: %w", key(address, port), os.ErrDeadlineExceeded)
	}
	t.mu.Lock()
	reachable, latency := t.reachable, t.latency
	t.mu.Unlock()
	if !reachable {
		return 0, fmt.Errorf("probe %s: %w", key(address, port), os.ErrDeadlineExceeded)
	}
	return latency, nil
}

func refused(ep terminal.Endpoint) error {
	return &net.OpError{Op: "dial", Net: "tcp", Addr: addr(ep), Err: syscall.ECONNREFUSED}
}

type tcpAddr string

func (a tcpAddr) Network() string { return "tcp" }
func (a tcpAddr) String() string  { return string(a) }

func addr(ep terminal.Endpoint) net.Addr {
	return tcpAddr(key(ep.Address, ep.Port))
}

// Terminal is one simulated device. Its roster is addressed by slot like
// the real hardware.
type Terminal struct {
	mu sync.Mutex

	caps      terminal.Capabilities
	info      terminal.Info
	clock     func() time.Time
	latency   time.Duration
	reachable bool

	users map[int]terminal.RawUser
	logs  []terminal.RawAttendance

	failures map[string]error

	active        int
	maxActive     int
	sessions      int
	clears        int
	slotConflicts int
}

func NewTerminal() *Terminal {
	return &Terminal{
		caps: terminal.CapAll,
		info: terminal.Info{
			Model:          "SIM-100",
			Firmware:       "sim-1.0",
			SerialNumber:   "SIM0000001",
			Platform:       "sim",
			UserCapacity:   3000,
			LogCapacity:    100000,
			FingerCapacity: 5000,
		},
		clock:     time.Now,
		reachable: true,
		users:     map[int]terminal.RawUser{},
		failures:  map[string]error{},
	}
}

// SetCapabilities limits what sessions negotiate.
func (t *Terminal) SetCapabilities(c terminal.Capabilities) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caps = c
}

// SetInfo replaces the reported identity.
func (t *Terminal) SetInfo(info terminal.Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info = info
}

// SetClock replaces the terminal wall clock.
func (t *Terminal) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = now
}

// SetLatency makes every command take at least d.
func (t *Terminal) SetLatency(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latency = d
}

// SetReachable toggles whether Dial succeeds.
func (t *Terminal) SetReachable(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reachable = ok
}

// FailOn makes the named command (e.g. "SetUser") return err until
// cleared with a nil err.
func (t *Terminal) FailOn(command string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, command)
		return
	}
	t.failures[command] = err
}

// PutUser stores u in its slot.
func (t *Terminal) PutUser(u terminal.RawUser) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[u.Slot] = u
}

// AddLogs appends punches to the attendance buffer.
func (t *Terminal) AddLogs(logs ...terminal.RawAttendance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = append(t.logs, logs...)
}

// Users returns the roster ordered by slot.
func (t *Terminal) Users() []terminal.RawUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedUsers()
}

// Logs returns a copy of the attendance buffer.
func (t *Terminal) Logs() []terminal.RawAttendance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]terminal.RawAttendance(nil), t.logs...)
}

// Stats reports session bookkeeping.
type Stats struct {
	Sessions      int
	MaxConcurrent int
	Clears        int
	SlotConflicts int
}

func (t *Terminal) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Sessions: t.sessions, MaxConcurrent: t.maxActive, Clears: t.clears, SlotConflicts: t.slotConflicts}
}

func (t *Terminal) sortedUsers() []terminal.RawUser {
	out := make([]terminal.RawUser, 0, len(t.users))
	for _, u := range t.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

func (t *Terminal) open(ctx context.Context, ep terminal.Endpoint) (terminal.Client, error) {
	t.mu.Lock()
	if !t.reachable {
		t.mu.Unlock()
		return nil, refused(ep)
	}
	if err := t.failures["Dial"]; err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.active++
	t.sessions++
	if t.active > t.maxActive {
		t.maxActive = t.active
	}
	caps := t.caps
	t.mu.Unlock()

	return &session{t: t, caps: caps}, nil
}

type session struct {
	t      *Terminal
	caps   terminal.Capabilities
	closed bool
}

// begin waits out the configured latency and reports any injected failure.
func (s *session) begin(ctx context.Context, command string) error {
	if s.closed {
		return fmt.Errorf("%s on closed session: %w", command, net.ErrClosed)
	}

	s.t.mu.Lock()
	latency := s.t.latency
	err := s.t.failures[command]
	s.t.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *session) Capabilities() terminal.Capabilities { return s.caps }

func (s *session) GetInfo(ctx context.Context) (terminal.Info, error) {
	if err := s.begin(ctx, "GetInfo"); err != nil {
		return terminal.Info{}, err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	info := s.t.info
	info.UserCount = len(s.t.users)
	info.LogCount = len(s.t.logs)
	return info, nil
}

func (s *session) GetTime(ctx context.Context) (time.Time, error) {
	if err := s.begin(ctx, "GetTime"); err != nil {
		return time.Time{}, err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.clock().Truncate(time.Second), nil
}

func (s *session) GetUsers(ctx context.Context) ([]terminal.RawUser, error) {
	if err := s.begin(ctx, "GetUsers"); err != nil {
		return nil, err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.sortedUsers(), nil
}

func (s *session) GetAttendanceEvents(ctx context.Context) ([]terminal.RawAttendance, error) {
	if err := s.begin(ctx, "GetAttendanceEvents"); err != nil {
		return nil, err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return append([]terminal.RawAttendance(nil), s.t.logs...), nil
}

// SetUser writes into a slot. Writing a different user id over an occupied
// slot is refused and counted, since real terminals silently overwrite.
func (s *session) SetUser(ctx context.Context, u terminal.UserRecord) error {
	if err := s.begin(ctx, "SetUser"); err != nil {
		return err
	}
	if u.Slot <= 0 {
		return fmt.Errorf("slot %d out of range", u.Slot)
	}

	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if cur, ok := s.t.users[u.Slot]; ok && cur.UserID != u.ExternalUserID {
		s.t.slotConflicts++
		return fmt.Errorf("slot %d already holds user %s", u.Slot, cur.UserID)
	}
	s.t.users[u.Slot] = terminal.RawUser{
		Slot:      u.Slot,
		UserID:    u.ExternalUserID,
		Name:      u.Name,
		Password:  u.Credential,
		CardNo:    u.CardNumber,
		Privilege: terminal.PrivilegeFromRole(u.Role),
	}
	return nil
}

func (s *session) ClearAttendanceBuffer(ctx context.Context) error {
	if err := s.begin(ctx, "ClearAttendanceBuffer"); err != nil {
		return err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.logs = nil
	s.t.clears++
	return nil
}

func (s *session) Disconnect() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.active--
	return nil
}
