package audit

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDriver struct {
	mu    sync.Mutex
	execs []recordedExec
	fail  bool
}

type recordedExec struct {
	query string
	args  []driver.Value
}

func (d *recordingDriver) Open(string) (driver.Conn, error) {
	return &recordingConn{driver: d}, nil
}

func (d *recordingDriver) snapshot() []recordedExec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedExec(nil), d.execs...)
}

type recordingConn struct {
	driver *recordingDriver
}

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *recordingConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	if c.driver.fail {
		return nil, errors.New("disk full")
	}
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg.Value
	}
	c.driver.execs = append(c.driver.execs, recordedExec{query: query, args: values})
	return driver.RowsAffected(1), nil
}

var (
	fakeDriver     = &recordingDriver{}
	registerDriver sync.Once
)

func openFakeDB(t *testing.T) (*sql.DB, *recordingDriver) {
	t.Helper()
	registerDriver.Do(func() { sql.Register("audit-recording", fakeDriver) })
	fakeDriver.mu.Lock()
	fakeDriver.execs = nil
	fakeDriver.fail = false
	fakeDriver.mu.Unlock()

	db, err := sql.Open("audit-recording", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, fakeDriver
}

func TestMySQLSinkCreatesSchemaAndInserts(t *testing.T) {
	db, drv := openFakeDB(t)

	sink, err := newMySQLSink(context.Background(), db)
	require.NoError(t, err)

	started := time.Now()
	event := NewEvent("transfer_funds", nil, 250*time.Millisecond, started)
	require.NoError(t, sink.Record(context.Background(), event))

	execs := drv.snapshot()
	require.Len(t, execs, 2)
	assert.True(t, strings.HasPrefix(execs[0].query, "CREATE TABLE IF NOT EXISTS tool_calls"))
	assert.True(t, strings.HasPrefix(execs[1].query, "INSERT INTO tool_calls"))
	require.Len(t, execs[1].args, 7)
	assert.Equal(t, event.ID, execs[1].args[0])
	assert.Equal(t, "transfer_funds", execs[1].args[1])
	assert.Equal(t, "success", execs[1].args[2])
	assert.Equal(t, int64(250), execs[1].args[5])
}

func TestMySQLSinkRecordFailure(t *testing.T) {
	db, drv := openFakeDB(t)
	sink, err := newMySQLSink(context.Background(), db)
	require.NoError(t, err)

	drv.mu.Lock()
	drv.fail = true
	drv.mu.Unlock()

	assert.Error(t, sink.Record(context.Background(), Event{Tool: "create_wallet"}))
}

func TestNewMySQLSinkValidatesDSN(t *testing.T) {
	_, err := NewMySQLSink(context.Background(), MySQLConfig{})
	assert.Error(t, err)

	_, err = NewMySQLSink(context.Background(), MySQLConfig{DSN: "this is not a dsn"})
	assert.Error(t, err)
}

func TestLoadMigrationFilesOrdersByVersion(t *testing.T) {
	files := fstest.MapFS{
		"0002_index.sql":  {Data: []byte("CREATE INDEX a ON t (x);\n")},
		"0001_tables.sql": {Data: []byte("CREATE TABLE t (x INT);\n\nCREATE TABLE u (y INT);")},
		"0003_empty.sql":  {Data: []byte(" ;\n")},
		"README.md":       {Data: []byte("not sql")},
	}

	migrations, err := loadMigrationFiles(files)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "0001", migrations[0].version)
	assert.Equal(t, []string{"CREATE TABLE t (x INT)", "CREATE TABLE u (y INT)"}, migrations[0].statements)
	assert.Equal(t, "0002", migrations[1].version)
}
