package storage_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weather-advisory/internal/property"
	"github.com/neexbeast/weather-advisory/internal/storage"
)

// ---- mock Querier ----

type mockQuerier struct {
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.queryRowFn(ctx, sql, args...)
}
func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.queryFn(ctx, sql, args...)
}
func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.execFn(ctx, sql, args...)
}

// ---- mock pgx.Row / pgx.Rows ----

type fakeRow struct {
	values []any
	err    error
}

func (f *fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	return assign(f.values, dest)
}

type fakeRows struct {
	rows    [][]any
	idx     int
	rowErr  error
	scanErr error
}

func (f *fakeRows) Next() bool                                   { f.idx++; return f.idx <= len(f.rows) }
func (f *fakeRows) Err() error                                   { return f.rowErr }
func (f *fakeRows) Close()                                       {}
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	return assign(f.rows[f.idx-1], dest)
}

// assign copies row values into scan destinations the way pgx would,
// treating nil as SQL NULL for pointer destinations.
func assign(row []any, dest []any) error {
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		switch v := d.(type) {
		case *int64:
			*v = row[i].(int64)
		case *string:
			*v = row[i].(string)
		case **string:
			if row[i] == nil {
				*v = nil
			} else {
				s := row[i].(string)
				*v = &s
			}
		case **float64:
			if row[i] == nil {
				*v = nil
			} else {
				f := row[i].(float64)
				*v = &f
			}
		default:
			return fmt.Errorf("unsupported scan destination %T", d)
		}
	}
	return nil
}

// ---- mock MigrationPool ----

type mockMigrationPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockMigrationPool) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.beginFn(ctx)
}

// mockTx is a minimal pgx.Tx implementation for testing migrations.
type mockTx struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (t *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.execFn(ctx, sql, args...)
}
func (t *mockTx) Commit(ctx context.Context) error   { return t.commitFn(ctx) }
func (t *mockTx) Rollback(ctx context.Context) error { return t.rollbackFn(ctx) }

func (t *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (t *mockTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *mockTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *mockTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *mockTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *mockTx) Conn() *pgx.Conn { return nil }

func okTx(exec func(sql string)) *mockTx {
	return &mockTx{
		execFn: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			if exec != nil {
				exec(sql)
			}
			return pgconn.CommandTag{}, nil
		},
		commitFn:   func(_ context.Context) error { return nil },
		rollbackFn: func(_ context.Context) error { return nil },
	}
}

// ---- ListWithCoordinates ----

func isBoarderQuery(sql string) bool { return strings.Contains(sql, "FROM boarders") }

func TestListWithCoordinates_AttachesOccupants(t *testing.T) {
	var boarderArgs []any
	q := &mockQuerier{
		queryFn: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
			if isBoarderQuery(sql) {
				boarderArgs = args
				return &fakeRows{rows: [][]any{
					{int64(1), "Ana", "ana@example.com", "active"},
					{int64(1), "Ben", nil, "active"},
					{int64(2), "Cy", "cy@example.com", "pending"},
				}}, nil
			}
			assert.Contains(t, sql, "latitude IS NOT NULL")
			return &fakeRows{rows: [][]any{
				{int64(1), "Sunrise Dorm", "Davao City", 8.15, 125.12, "Lina", "lina@example.com"},
				{int64(2), "Harbor Flats", "Cebu", 10.3, 123.9, "Marco", nil},
			}}, nil
		},
	}

	props, err := storage.NewRepositoryWithQuerier(q).ListWithCoordinates(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 2)

	assert.Equal(t, "Sunrise Dorm", props[0].Name)
	require.NotNil(t, props[0].Location)
	assert.Equal(t, 8.15, props[0].Location.Latitude)
	assert.Equal(t, "lina@example.com", props[0].Owner.Email)
	require.Len(t, props[0].Occupants, 2)
	assert.Equal(t, "ana@example.com", props[0].Occupants[0].Email)
	assert.Empty(t, props[0].Occupants[1].Email)

	assert.Empty(t, props[1].Owner.Email, "NULL owner email scans as empty")
	assert.Equal(t, []property.Occupant{{Contact: property.Contact{Name: "Cy", Email: "cy@example.com"}, Status: "pending"}}, props[1].Occupants)

	require.Len(t, boarderArgs, 1)
	assert.Equal(t, []int64{1, 2}, boarderArgs[0])
}

func TestListWithCoordinates_Empty(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
			if isBoarderQuery(sql) {
				t.Fatal("boarders should not be queried when there are no properties")
			}
			return &fakeRows{}, nil
		},
	}

	props, err := storage.NewRepositoryWithQuerier(q).ListWithCoordinates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestListWithCoordinates_QueryError(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}

	_, err := storage.NewRepositoryWithQuerier(q).ListWithCoordinates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying located properties")
}

func TestListWithCoordinates_ScanError(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &fakeRows{rows: [][]any{{int64(1)}}, scanErr: fmt.Errorf("scan failed")}, nil
		},
	}

	_, err := storage.NewRepositoryWithQuerier(q).ListWithCoordinates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning")
}

func TestListWithCoordinates_RowsErr(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &fakeRows{rowErr: fmt.Errorf("rows iteration error")}, nil
		},
	}

	_, err := storage.NewRepositoryWithQuerier(q).ListWithCoordinates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterating")
}

func TestListWithCoordinates_BoarderQueryError(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
			if isBoarderQuery(sql) {
				return nil, fmt.Errorf("timeout")
			}
			return &fakeRows{rows: [][]any{{int64(1), "Sunrise Dorm", "", 8.15, 125.12, "Lina", "lina@example.com"}}}, nil
		},
	}

	_, err := storage.NewRepositoryWithQuerier(q).ListWithCoordinates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying boarders")
}

// ---- Get ----

func TestGet_Found(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, args ...any) pgx.Row {
			assert.Equal(t, []any{int64(7)}, args)
			return &fakeRow{values: []any{int64(7), "Hillside", "Baguio", 16.4, 120.6, "Rosa", "rosa@example.com"}}
		},
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &fakeRows{rows: [][]any{{int64(7), "Tom", "tom@example.com", "active"}}}, nil
		},
	}

	p, err := storage.NewRepositoryWithQuerier(q).Get(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, 16.4, p.Location.Latitude)
	require.Len(t, p.Occupants, 1)
	assert.True(t, p.Occupants[0].Active())
}

func TestGet_WithoutCoordinates(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{values: []any{int64(3), "Unmapped", "", nil, nil, "Rosa", "rosa@example.com"}}
		},
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return &fakeRows{}, nil },
	}

	p, err := storage.NewRepositoryWithQuerier(q).Get(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.Location)
}

func TestGet_NotFound(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{err: pgx.ErrNoRows}
		},
	}

	p, err := storage.NewRepositoryWithQuerier(q).Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGet_DBError(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{err: fmt.Errorf("connection reset")}
		},
	}

	_, err := storage.NewRepositoryWithQuerier(q).Get(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying property 1")
}

func TestNewRepository_NotNil(t *testing.T) {
	assert.NotNil(t, storage.NewRepository(nil))
}

// ---- RunMigrations ----

func TestRunMigrations_Empty(t *testing.T) {
	require.NoError(t, storage.RunMigrations(context.Background(), nil, fstest.MapFS{}))
}

func TestRunMigrations_SortsFilesLexicographically(t *testing.T) {
	fsys := fstest.MapFS{
		"003_c.sql":  {Data: []byte("SELECT 3;")},
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"002_b.sql":  {Data: []byte("SELECT 2;")},
		"README.txt": {Data: []byte("ignored")},
	}

	var order []string
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) {
			return okTx(func(sql string) { order = append(order, sql) }), nil
		},
	}

	require.NoError(t, storage.RunMigrations(context.Background(), pool, fsys))
	assert.Equal(t, []string{"SELECT 1;", "SELECT 2;", "SELECT 3;"}, order)
}

func TestRunMigrations_BeginError(t *testing.T) {
	fsys := fstest.MapFS{"001_test.sql": {Data: []byte("SELECT 1;")}}
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return nil, fmt.Errorf("cannot begin") },
	}

	err := storage.RunMigrations(context.Background(), pool, fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing migration 001_test.sql")
}

func TestRunMigrations_ExecErrorRollsBack(t *testing.T) {
	fsys := fstest.MapFS{"001_test.sql": {Data: []byte("INVALID SQL;")}}

	rolledBack := false
	tx := &mockTx{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, fmt.Errorf("syntax error")
		},
		commitFn: func(_ context.Context) error {
			t.Fatal("commit must not run after a failed exec")
			return nil
		},
		rollbackFn: func(_ context.Context) error {
			rolledBack = true
			return nil
		},
	}
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}

	require.Error(t, storage.RunMigrations(context.Background(), pool, fsys))
	assert.True(t, rolledBack)
}

func TestRunMigrations_CommitError(t *testing.T) {
	fsys := fstest.MapFS{"001_test.sql": {Data: []byte("SELECT 1;")}}
	tx := okTx(nil)
	tx.commitFn = func(_ context.Context) error { return fmt.Errorf("commit failed") }
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}

	require.Error(t, storage.RunMigrations(context.Background(), pool, fsys))
}

func TestMigrationFiles_Embedded(t *testing.T) {
	var applied []string
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) {
			return okTx(func(sql string) { applied = append(applied, sql) }), nil
		},
	}

	require.NoError(t, storage.RunMigrations(context.Background(), pool, storage.MigrationFiles()))
	require.NotEmpty(t, applied)
	assert.Contains(t, applied[0], "CREATE TABLE IF NOT EXISTS properties")
}

// ---- Connect ----

func TestConnect_BadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := storage.Connect(ctx, "postgres://invalid-host-xyz:5432/db?sslmode=disable", 4)
	require.Error(t, err)
}

func TestConnect_UnparseableURL(t *testing.T) {
	_, err := storage.Connect(context.Background(), "postgres://localhost:notaport/db", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing database URL")
}
