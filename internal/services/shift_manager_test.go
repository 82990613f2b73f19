package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	codec map[string]string
	saves int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{blobs: map[string][]byte{}, codec: map[string]string{}}
}

func (s *memoryStore) Load(driverID string) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[driverID]
	if !ok {
		return "", nil, domain.ErrNoSnapshot
	}
	return s.codec[driverID], data, nil
}

func (s *memoryStore) Save(driverID, codec string, data []byte, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[driverID] = data
	s.codec[driverID] = codec
	s.saves++
	return nil
}

func (s *memoryStore) Delete(driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, driverID)
	delete(s.codec, driverID)
	return nil
}

type memoryEvents struct {
	mu     sync.Mutex
	byUser map[string]int
}

func (e *memoryEvents) Insert(driverID string, _ models.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.byUser == nil {
		e.byUser = map[string]int{}
	}
	e.byUser[driverID]++
	return nil
}

func newTestManager(store SnapshotStore, codec SnapshotCodec, events EventStore) *ShiftManager {
	return NewShiftManager(ManagerOptions{
		Config: ShiftConfig{Stops: []models.Stop{{Name: "Depot"}, {Name: "Market"}, {Name: "Station"}}, DriverName: testDriver},
		Clock:  clock.Fake(time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)),
		Codec:  codec,
		Store:  store,
		Events: events,
	})
}

func TestShiftManagerPersistsAcrossRestart(t *testing.T) {
	store := newMemoryStore()
	events := &memoryEvents{}
	m := newTestManager(store, CBORCodec{}, events)

	err := m.Run("drv-1", func(s *ShiftService) error {
		if res := s.Dispatch(models.ActionStartShift); res.Err != nil {
			return res.Err
		}
		_, err := s.AddSettlement(models.SettlementPerson{Name: "Driver Smirnov", Amount: 700})
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.codec["drv-1"] != "cbor" || store.saves != 1 {
		t.Fatalf("snapshot not saved: codec=%q saves=%d", store.codec["drv-1"], store.saves)
	}
	if events.byUser["drv-1"] == 0 {
		t.Fatalf("events should reach the event store")
	}

	restarted := newTestManager(store, JSONCodec{}, nil)
	svc, err := restarted.Shift("drv-1")
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if svc.State() != models.TripWaitingStart || len(svc.Settlements()) != 1 {
		t.Fatalf("shift not restored: state=%s", svc.State())
	}
}

func TestShiftManagerSavesOnFailedIntent(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store, JSONCodec{}, nil)
	err := m.Run("drv-2", func(s *ShiftService) error {
		return s.Dispatch(models.ActionDepartStop).Err
	})
	if err == nil {
		t.Fatalf("depart from offline must fail")
	}
	if store.saves != 1 {
		t.Fatalf("snapshot should still be saved, got %d saves", store.saves)
	}
}

func TestShiftManagerDropsIncompatibleSnapshot(t *testing.T) {
	store := newMemoryStore()
	data, _ := JSONCodec{}.Marshal(models.Snapshot{Version: SnapshotVersion, TripState: models.TripInTransit, StopIndex: 9})
	_ = store.Save("drv-3", "json", data, time.Time{})

	svc, err := newTestManager(store, JSONCodec{}, nil).Shift("drv-3")
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if svc.State() != models.TripOffline {
		t.Fatalf("incompatible snapshot should start clean, got %s", svc.State())
	}
}

func TestShiftManagerResetAndValidation(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store, JSONCodec{}, nil)
	if _, err := m.Shift(" "); err == nil {
		t.Fatalf("blank driver id must be refused")
	}
	_ = m.Run("drv-4", func(s *ShiftService) error { return s.Dispatch(models.ActionStartShift).Err })
	if err := m.Reset("drv-4"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, _, err := store.Load("drv-4"); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Fatalf("snapshot should be deleted")
	}
	if len(m.Drivers()) != 0 {
		t.Fatalf("shift should be dropped")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
