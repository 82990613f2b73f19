package repositories

import (
	"database/sql"
	"strings"

	intconfig "shuttle/internal/config"
	"shuttle/internal/domain"
)

type DriverAccount struct {
	ID           int64
	Login        string
	PasswordHash string
	DisplayName  string
	Confirmed    bool
}

type DriverAccountRepository struct {
	DB *sql.DB
}

func (r DriverAccountRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r DriverAccountRepository) GetByLogin(login string) (DriverAccount, error) {
	login = strings.TrimSpace(login)
	db := r.db()
	if db == nil || login == "" {
		return DriverAccount{}, domain.NotFoundError{Resource: "driver account"}
	}
	var acc DriverAccount
	err := db.QueryRow(`SELECT id, login, password_hash, display_name, confirmed FROM driver_accounts WHERE login=? LIMIT 1`, login).
		Scan(&acc.ID, &acc.Login, &acc.PasswordHash, &acc.DisplayName, &acc.Confirmed)
	if err == sql.ErrNoRows {
		return DriverAccount{}, domain.NotFoundError{Resource: "driver account", Err: err}
	}
	if err != nil {
		return DriverAccount{}, err
	}
	return acc, nil
}

func (r DriverAccountRepository) Create(acc DriverAccount) (DriverAccount, error) {
	db := r.db()
	if db == nil {
		return acc, domain.InternalError{Msg: "database is not connected"}
	}
	res, err := db.Exec(`INSERT INTO driver_accounts (login, password_hash, display_name, confirmed) VALUES (?,?,?,?)`,
		acc.Login, acc.PasswordHash, acc.DisplayName, acc.Confirmed)
	if err != nil {
		return acc, err
	}
	acc.ID, err = res.LastInsertId()
	return acc, err
}

// SetConfirmed flips the confirmation flag that gates booking scanners.
func (r DriverAccountRepository) SetConfirmed(login string, confirmed bool) error {
	db := r.db()
	if db == nil {
		return domain.InternalError{Msg: "database is not connected"}
	}
	res, err := db.Exec(`UPDATE driver_accounts SET confirmed=? WHERE login=?`, confirmed, login)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Resource: "driver account"}
	}
	return nil
}
