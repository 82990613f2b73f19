package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	intconfig "shuttle/internal/config"
	intdb "shuttle/internal/db"
	"shuttle/internal/domain/models"
)

// EventRepository appends trip events to fsm_events. When the table is
// missing, inserts are skipped so the service runs without the audit log.
type EventRepository struct {
	DB *sql.DB
}

type eventPayload struct {
	Context *models.TripContext `json:"context,omitempty"`
	Details map[string]any      `json:"details,omitempty"`
}

func (r EventRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r EventRepository) Insert(driverID string, ev models.Event) error {
	db := r.db()
	if db == nil || !intdb.HasTable(db, intdb.TableFSMEvents) {
		return nil
	}
	payload, err := json.Marshal(eventPayload{Context: ev.Context, Details: ev.Details})
	if err != nil {
		return err
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = db.Exec(`INSERT INTO fsm_events (driver_id, trip_id, kind, old_state, new_state, action, reason, payload, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		driverID,
		ev.TripID,
		string(ev.Kind),
		intdb.NullIfEmpty(string(ev.OldState)),
		intdb.NullIfEmpty(string(ev.NewState)),
		intdb.NullIfEmpty(ev.Action),
		intdb.NullIfEmpty(ev.Reason),
		string(payload),
		ts,
	)
	return err
}

// ListByDriver returns the newest events first.
func (r EventRepository) ListByDriver(driverID string, limit int) ([]models.Event, error) {
	db := r.db()
	if db == nil || !intdb.HasTable(db, intdb.TableFSMEvents) {
		return []models.Event{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.Query(`SELECT trip_id, kind, COALESCE(old_state,''), COALESCE(new_state,''), COALESCE(action,''),
		COALESCE(reason,''), COALESCE(payload,'{}'), created_at
		FROM fsm_events WHERE driver_id=? ORDER BY id DESC LIMIT ?`, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Event{}
	for rows.Next() {
		var (
			ev       models.Event
			kind     string
			oldState string
			newState string
			payload  []byte
		)
		if err := rows.Scan(&ev.TripID, &kind, &oldState, &newState, &ev.Action, &ev.Reason, &payload, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Kind = models.EventKind(kind)
		ev.OldState = models.TripState(oldState)
		ev.NewState = models.TripState(newState)
		var p eventPayload
		if len(payload) > 0 && json.Unmarshal(payload, &p) == nil {
			ev.Context = p.Context
			ev.Details = p.Details
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
