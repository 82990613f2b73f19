package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
	"shuttle/internal/utils"
)

// SnapshotStore persists one snapshot blob per driver. Load returns
// domain.ErrNoSnapshot when nothing is stored.
type SnapshotStore interface {
	Load(driverID string) (codec string, data []byte, err error)
	Save(driverID, codec string, data []byte, savedAt time.Time) error
	Delete(driverID string) error
}

// ManagerOptions wires a ShiftManager.
type ManagerOptions struct {
	Config   ShiftConfig
	Clock    clock.Clock
	Verifier QRVerifier
	Codec    SnapshotCodec
	Store    SnapshotStore
	Events   EventStore
	// SinkFor adds a per-driver sink, e.g. the websocket hub.
	SinkFor func(driverID string) EventSink
}

// ShiftManager keeps one ShiftService per driver. A shift is restored from its
// stored snapshot the first time the driver touches it and saved after every
// intent that went through Run.
type ShiftManager struct {
	mu     sync.Mutex
	opts   ManagerOptions
	shifts map[string]*ShiftService
}

func NewShiftManager(opts ManagerOptions) *ShiftManager {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Codec == nil {
		opts.Codec = JSONCodec{}
	}
	return &ShiftManager{opts: opts, shifts: map[string]*ShiftService{}}
}

// Shift returns the driver's shift, loading it from the store on first use.
func (m *ShiftManager) Shift(driverID string) (*ShiftService, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, domain.ValidationError{Field: "driver_id", Msg: "required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc, ok := m.shifts[driverID]; ok {
		return svc, nil
	}
	svc := m.newShift(driverID)
	if err := m.load(driverID, svc); err != nil {
		return nil, err
	}
	m.shifts[driverID] = svc
	return svc, nil
}

func (m *ShiftManager) newShift(driverID string) *ShiftService {
	sinks := MultiSink{LogSink{RequestID: "driver:" + driverID}}
	if m.opts.Events != nil {
		sinks = append(sinks, RepoSink{DriverID: driverID, Store: m.opts.Events})
	}
	if m.opts.SinkFor != nil {
		if extra := m.opts.SinkFor(driverID); extra != nil {
			sinks = append(sinks, extra)
		}
	}
	cfg := m.opts.Config
	cfg.Stops = append([]models.Stop(nil), cfg.Stops...)
	return NewShiftService(cfg, ShiftDeps{Clock: m.opts.Clock, Sink: sinks, Verifier: m.opts.Verifier})
}

// load restores a stored snapshot. A snapshot that no longer fits the
// configured route is dropped and the driver starts clean.
func (m *ShiftManager) load(driverID string, svc *ShiftService) error {
	if m.opts.Store == nil {
		return nil
	}
	codecName, data, err := m.opts.Store.Load(driverID)
	if errors.Is(err, domain.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return domain.InternalError{Msg: "load snapshot", Err: err}
	}
	codec, err := CodecByName(codecName)
	if err != nil {
		return err
	}
	var snap models.Snapshot
	if err := codec.Unmarshal(data, &snap); err != nil {
		utils.LogEvent("", "shift", "load_snapshot", utils.Fields("driver", driverID, "decode_error", err))
		return nil
	}
	if err := svc.Restore(snap); err != nil {
		utils.LogEvent("", "shift", "load_snapshot", utils.Fields("driver", driverID, "restore_error", err))
		return nil
	}
	return nil
}

// Run executes fn against the driver's shift and persists the result.
// The snapshot is written even when fn fails, since a refused intent may
// still have cancelled a scan.
func (m *ShiftManager) Run(driverID string, fn func(*ShiftService) error) error {
	svc, err := m.Shift(driverID)
	if err != nil {
		return err
	}
	runErr := fn(svc)
	if err := m.save(driverID, svc); err != nil {
		utils.LogEvent("", "shift", "save_snapshot", utils.Fields("driver", driverID, "error", err))
	}
	return runErr
}

func (m *ShiftManager) save(driverID string, svc *ShiftService) error {
	if m.opts.Store == nil {
		return nil
	}
	snap := svc.Capture()
	data, err := m.opts.Codec.Marshal(snap)
	if err != nil {
		return err
	}
	return m.opts.Store.Save(driverID, m.opts.Codec.Name(), data, snap.CapturedAt)
}

// Reset drops the driver's shift and its stored snapshot.
func (m *ShiftManager) Reset(driverID string) error {
	m.mu.Lock()
	svc, ok := m.shifts[driverID]
	delete(m.shifts, driverID)
	m.mu.Unlock()
	if ok {
		svc.Close()
	}
	if m.opts.Store == nil {
		return nil
	}
	return m.opts.Store.Delete(driverID)
}

// Drivers lists the drivers with a live shift.
func (m *ShiftManager) Drivers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.shifts))
	for id := range m.shifts {
		out = append(out, id)
	}
	return out
}

// Close saves every live shift and stops its timers.
func (m *ShiftManager) Close() error {
	m.mu.Lock()
	shifts := make(map[string]*ShiftService, len(m.shifts))
	for id, svc := range m.shifts {
		shifts[id] = svc
	}
	m.mu.Unlock()

	var errs []error
	for id, svc := range shifts {
		svc.Close()
		if err := m.save(id, svc); err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ReportLoader adapts the manager to ReportService.Loader.
func (m *ShiftManager) ReportLoader(driverID string) (ShiftReportData, error) {
	svc, err := m.Shift(driverID)
	if err != nil {
		return ShiftReportData{}, err
	}
	return svc.ReportData(driverID), nil
}
