// Package sqlitecas stores chain blocks in a single SQLite database and
// supports native transactions, so a chain commit is all-or-nothing.
package sqlitecas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/ipfs/go-cid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	cid  TEXT PRIMARY KEY,
	data BLOB NOT NULL
) WITHOUT ROWID;
`

// Options configure Open.
type Options struct {
	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int
	Logger   *slog.Logger
}

// CAS is a SQLite-backed block store.
type CAS struct {
	pool   *sqlitex.Pool
	path   string
	logger *slog.Logger
}

var _ storage.Transactional = (*CAS)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string, opts Options) (*CAS, error) {
	if path == "" {
		return nil, errors.New("sqlitecas: path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := opts.PoolSize
	if size <= 0 {
		size = max(runtime.NumCPU(), 4)
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepare,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitecas: opening %s: %w", path, err)
	}
	logger.Info("sqlite cas opened", "path", path, "pool_size", size)
	return &CAS{pool: pool, path: path, logger: logger}, nil
}

func prepare(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitecas: %s: %w", pragma, err)
		}
	}
	return sqlitex.ExecuteScript(conn, schema, nil)
}

// Close closes the pool. Outstanding transactions must be finished first.
func (c *CAS) Close() error {
	if err := c.pool.Close(); err != nil {
		return fmt.Errorf("sqlitecas: closing %s: %w", c.path, err)
	}
	c.logger.Info("sqlite cas closed", "path", c.path)
	return nil
}

func (c *CAS) Put(data []byte) (_ cid.Cid, err error) {
	id, err := cidutil.BlockCID(data)
	if err != nil {
		return cid.Undef, err
	}
	conn, err := c.pool.Take(context.Background())
	if err != nil {
		return cid.Undef, err
	}
	defer c.pool.Put(conn)

	end, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return cid.Undef, err
	}
	defer end(&err)
	if err := insert(conn, id, data); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	conn, err := c.pool.Take(context.Background())
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	data, found, err := lookup(conn, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	got, err := cidutil.BlockCID(data)
	if err != nil || !got.Equals(id) {
		c.logger.Error("sqlite cas: stored block does not match its cid", "cid", id.String())
		return nil, storage.ErrCIDMismatch
	}
	return data, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	conn, err := c.pool.Take(context.Background())
	if err != nil {
		return false
	}
	defer c.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn, "SELECT 1 FROM blocks WHERE cid = ?", &sqlitex.ExecOptions{
		Args: []any{id.String()},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	return err == nil && found
}

// Begin starts an immediate write transaction holding one pooled connection
// until Commit or Rollback.
func (c *CAS) Begin(ctx context.Context) (storage.Txn, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	if err := sqlitex.ExecuteTransient(conn, "BEGIN IMMEDIATE;", nil); err != nil {
		c.pool.Put(conn)
		return nil, fmt.Errorf("sqlitecas: begin: %w", err)
	}
	return &txn{cas: c, conn: conn}, nil
}

type txn struct {
	cas  *CAS
	mu   sync.Mutex
	conn *sqlite.Conn
}

func (t *txn) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.BlockCID(data)
	if err != nil {
		return cid.Undef, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return cid.Undef, storage.ErrClosed
	}
	if err := insert(t.conn, id, data); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (t *txn) Commit() error {
	return t.finish("COMMIT;")
}

func (t *txn) Rollback() error {
	t.mu.Lock()
	closed := t.conn == nil
	t.mu.Unlock()
	if closed {
		return nil
	}
	return t.finish("ROLLBACK;")
}

func (t *txn) finish(stmt string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return storage.ErrClosed
	}
	conn := t.conn
	t.conn = nil
	defer t.cas.pool.Put(conn)

	if err := sqlitex.ExecuteTransient(conn, stmt, nil); err != nil {
		if stmt != "ROLLBACK;" {
			_ = sqlitex.ExecuteTransient(conn, "ROLLBACK;", nil)
		}
		return fmt.Errorf("sqlitecas: %s %w", stmt, err)
	}
	return nil
}

func lookup(conn *sqlite.Conn, id cid.Cid) (data []byte, found bool, err error) {
	err = sqlitex.Execute(conn, "SELECT data FROM blocks WHERE cid = ?", &sqlitex.ExecOptions{
		Args: []any{id.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	return data, found, err
}

func insert(conn *sqlite.Conn, id cid.Cid, data []byte) error {
	existing, found, err := lookup(conn, id)
	if err != nil {
		return err
	}
	if found {
		if !bytes.Equal(existing, data) {
			return storage.ErrImmutable
		}
		return nil
	}
	return sqlitex.Execute(conn, "INSERT INTO blocks (cid, data) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{id.String(), data},
	})
}
