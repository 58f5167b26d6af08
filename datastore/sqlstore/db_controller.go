// Package sqlstore persists harness records to a SQL database. Production
// deployments run it against Postgres; tests run the same code against an
// in-memory engine.
package sqlstore

import (
	"database/sql"
	"fmt"
)

// DB is the query surface shared by the base connection and an open
// transaction.
type DB interface {
	Query(q string, args ...any) (*sql.Rows, error)
	Exec(q string, args ...any) (sql.Result, error)
}

var _ DB = &dbController{}

func newDbController(db *sql.DB) *dbController {
	return &dbController{base: db}
}

// dbController routes queries through the open transaction when one exists,
// and directly to the base connection otherwise.
type dbController struct {
	tx   *sql.Tx
	base *sql.DB
}

func (d *dbController) Query(q string, args ...any) (*sql.Rows, error) {
	if d.tx != nil {
		return d.tx.Query(q, args...)
	}

	return d.base.Query(q, args...)
}

func (d *dbController) Exec(q string, args ...any) (sql.Result, error) {
	if d.tx != nil {
		return d.tx.Exec(q, args...)
	}

	return d.base.Exec(q, args...)
}

// Fixture performs an Exec but ignores the result, and is intended for schema
// and test setup.
func (d *dbController) Fixture(q string, args ...any) error {
	_, err := d.Exec(q, args...)

	return err
}

func (d *dbController) Begin() error {
	if d.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	tx, err := d.base.Begin()
	if err != nil {
		return err
	}
	d.tx = tx

	return nil
}

func (d *dbController) Commit() error {
	if d.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	defer func() {
		d.tx = nil
	}()

	return d.tx.Commit()
}

func (d *dbController) Rollback() error {
	if d.tx == nil {
		return fmt.Errorf("no transaction to roll back")
	}
	defer func() {
		d.tx = nil
	}()

	return d.tx.Rollback()
}
