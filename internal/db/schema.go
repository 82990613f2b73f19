package db

import (
	"database/sql"
	"fmt"
)

const (
	TableShiftSnapshots = "shift_snapshots"
	TableFSMEvents      = "fsm_events"
	TableDriverAccounts = "driver_accounts"
)

var schema = []struct {
	table string
	ddl   string
}{
	{TableShiftSnapshots, `CREATE TABLE IF NOT EXISTS shift_snapshots (
		driver_id  VARCHAR(64) NOT NULL PRIMARY KEY,
		codec      VARCHAR(16) NOT NULL,
		data       MEDIUMBLOB NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{TableFSMEvents, `CREATE TABLE IF NOT EXISTS fsm_events (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		driver_id  VARCHAR(64) NOT NULL,
		trip_id    VARCHAR(64) NOT NULL DEFAULT '',
		kind       VARCHAR(64) NOT NULL,
		old_state  VARCHAR(32) NULL,
		new_state  VARCHAR(32) NULL,
		action     VARCHAR(64) NULL,
		reason     VARCHAR(255) NULL,
		payload    JSON NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_fsm_events_driver (driver_id, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{TableDriverAccounts, `CREATE TABLE IF NOT EXISTS driver_accounts (
		id            BIGINT AUTO_INCREMENT PRIMARY KEY,
		login         VARCHAR(64) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		display_name  VARCHAR(128) NOT NULL,
		confirmed     TINYINT(1) NOT NULL DEFAULT 0,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

// EnsureSchema creates the tables the service writes to.
func EnsureSchema(db *sql.DB) error {
	for _, s := range schema {
		if _, err := db.Exec(s.ddl); err != nil {
			return fmt.Errorf("create %s: %w", s.table, err)
		}
	}
	return nil
}
