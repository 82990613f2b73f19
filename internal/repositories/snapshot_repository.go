package repositories

import (
	"database/sql"
	"errors"
	"time"

	intconfig "shuttle/internal/config"
	"shuttle/internal/domain"
)

// SnapshotRepository stores one shift snapshot per driver in shift_snapshots.
type SnapshotRepository struct {
	DB *sql.DB
}

func (r SnapshotRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// Load returns the stored codec name and blob, or domain.ErrNoSnapshot.
func (r SnapshotRepository) Load(driverID string) (string, []byte, error) {
	db := r.db()
	if db == nil {
		return "", nil, domain.ErrNoSnapshot
	}
	var (
		codec string
		data  []byte
	)
	err := db.QueryRow(`SELECT codec, data FROM shift_snapshots WHERE driver_id=? LIMIT 1`, driverID).Scan(&codec, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, domain.ErrNoSnapshot
	}
	if err != nil {
		return "", nil, err
	}
	return codec, data, nil
}

// Save upserts the driver's snapshot.
func (r SnapshotRepository) Save(driverID, codec string, data []byte, savedAt time.Time) error {
	db := r.db()
	if db == nil {
		return domain.InternalError{Msg: "database is not connected"}
	}
	_, err := db.Exec(`INSERT INTO shift_snapshots (driver_id, codec, data, updated_at) VALUES (?,?,?,?)
		ON DUPLICATE KEY UPDATE codec=VALUES(codec), data=VALUES(data), updated_at=VALUES(updated_at)`,
		driverID, codec, data, savedAt)
	return err
}

func (r SnapshotRepository) Delete(driverID string) error {
	db := r.db()
	if db == nil {
		return nil
	}
	_, err := db.Exec(`DELETE FROM shift_snapshots WHERE driver_id=?`, driverID)
	return err
}
