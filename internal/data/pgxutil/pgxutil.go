// Package pgxutil runs transactions over a database/sql pool, either through
// database/sql itself or through the pgx connection underneath it.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// ReadCommitted is the isolation used by claim and chain transactions.
var ReadCommitted = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

var isoLevels = map[sql.IsolationLevel]pgx.TxIsoLevel{
	sql.LevelReadUncommitted: pgx.ReadUncommitted,
	sql.LevelReadCommitted:   pgx.ReadCommitted,
	sql.LevelWriteCommitted:  pgx.ReadCommitted,
	sql.LevelRepeatableRead:  pgx.RepeatableRead,
	sql.LevelSnapshot:        pgx.RepeatableRead,
	sql.LevelSerializable:    pgx.Serializable,
	sql.LevelLinearizable:    pgx.Serializable,
}

// TxOptions maps database/sql options onto pgx. Nil and sql.LevelDefault
// leave the isolation to the server.
func TxOptions(opts *sql.TxOptions) pgx.TxOptions {
	if opts == nil {
		return pgx.TxOptions{}
	}
	out := pgx.TxOptions{IsoLevel: isoLevels[opts.Isolation], AccessMode: pgx.ReadWrite}
	if opts.ReadOnly {
		out.AccessMode = pgx.ReadOnly
	}
	return out
}

// SQLTx runs fn in a database/sql transaction, committing when it returns nil.
func SQLTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Conn hands fn the pgx connection behind one pooled database/sql connection.
func Conn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("driver conn is %T, want *stdlib.Conn", driverConn)
		}
		return fn(c.Conn())
	})
}

// InTx runs fn in a pgx transaction and returns its value once committed.
func InTx[T any](ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(pgx.Tx) (T, error)) (T, error) {
	var out T
	err := Conn(ctx, db, func(c *pgx.Conn) error {
		return pgx.BeginTxFunc(ctx, c, TxOptions(opts), func(tx pgx.Tx) error {
			v, err := fn(tx)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
	})
	return out, err
}
