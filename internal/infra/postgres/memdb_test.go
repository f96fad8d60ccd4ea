package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"time"
)

// memDB is an in-memory database/sql driver implementing just enough
// of the ledger and findings SQL to exercise the repositories' query
// contracts without a live postgres.
type memDB struct {
	sessions    map[string]bool
	redemptions map[string]bool
	balances    map[string]int
	inserts     [][]driver.NamedValue
}

func newMemDB() *memDB {
	return &memDB{
		sessions:    make(map[string]bool),
		redemptions: make(map[string]bool),
		balances:    make(map[string]int),
	}
}

func (m *memDB) open() *DB {
	return &DB{DB: sql.OpenDB(memConnector{m: m})}
}

func (m *memDB) exec(query string, args []driver.NamedValue) (driver.Result, error) {
	switch {
	case strings.Contains(query, "stripe_credited_sessions"):
		session := args[0].Value.(string)
		if m.sessions[session] {
			return driver.RowsAffected(0), nil
		}
		m.sessions[session] = true
		return driver.RowsAffected(1), nil

	case strings.Contains(query, "coupon_redemptions"):
		key := args[0].Value.(string) + "/" + args[1].Value.(string)
		if m.redemptions[key] {
			return driver.RowsAffected(0), nil
		}
		m.redemptions[key] = true
		return driver.RowsAffected(1), nil

	case strings.Contains(query, "INSERT INTO scan_credits"):
		m.balances[args[0].Value.(string)]++
		return driver.RowsAffected(1), nil

	case strings.Contains(query, "UPDATE scan_credits"):
		user := args[0].Value.(string)
		if m.balances[user] <= 0 {
			return driver.RowsAffected(0), nil
		}
		m.balances[user]--
		return driver.RowsAffected(1), nil

	case strings.Contains(query, "INSERT INTO findings"):
		m.inserts = append(m.inserts, args)
		return driver.RowsAffected(1), nil
	}
	return nil, errors.New("memdb: unexpected exec: " + query)
}

func (m *memDB) query(query string, args []driver.NamedValue) (driver.Rows, error) {
	if strings.Contains(query, "FROM scan_credits") {
		user := args[0].Value.(string)
		rows := &memRows{cols: []string{"credits_remaining", "updated_at"}}
		if balance, ok := m.balances[user]; ok {
			rows.rows = [][]driver.Value{{int64(balance), time.Now().UTC()}}
		}
		return rows, nil
	}
	return nil, errors.New("memdb: unexpected query: " + query)
}

type memConnector struct{ m *memDB }

func (c memConnector) Connect(context.Context) (driver.Conn, error) {
	return &memConn{m: c.m}, nil
}
func (c memConnector) Driver() driver.Driver { return memDriver{} }

type memDriver struct{}

func (memDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("memdb: open via sql.OpenDB")
}

type memConn struct{ m *memDB }

func (c *memConn) Prepare(query string) (driver.Stmt, error) {
	return &memStmt{m: c.m, query: query}, nil
}
func (c *memConn) Close() error              { return nil }
func (c *memConn) Begin() (driver.Tx, error) { return memTx{}, nil }

func (c *memConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.m.exec(query, args)
}

func (c *memConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.m.query(query, args)
}

type memTx struct{}

func (memTx) Commit() error   { return nil }
func (memTx) Rollback() error { return nil }

type memStmt struct {
	m     *memDB
	query string
}

func (s *memStmt) Close() error  { return nil }
func (s *memStmt) NumInput() int { return -1 }

func (s *memStmt) Exec(args []driver.Value) (driver.Result, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return s.m.exec(s.query, named)
}

func (s *memStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("memdb: stmt query unsupported")
}

type memRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *memRows) Columns() []string { return r.cols }
func (r *memRows) Close() error      { return nil }

func (r *memRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
