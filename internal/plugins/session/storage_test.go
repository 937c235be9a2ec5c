package session

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/switchboard/internal/database"
)

// exerciseStorage runs the contract every backend must honor.
func exerciseStorage(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()
	s := backend.ForBrowser("browser-1")
	other := backend.ForBrowser("browser-2")

	// Empty storage loads as zero.
	p, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Persisted{}, p)

	// Save writes both keys together.
	require.NoError(t, s.Save(ctx, Persisted{Token: "tok-1", Principal: testPrincipal("u1")}))
	p, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", p.Token)
	require.NotNil(t, p.Principal, "snapshot did not round trip")
	assert.Equal(t, "u1", p.Principal.ID)
	assert.NotNil(t, p.Principal.Company)

	// Overwrite replaces.
	require.NoError(t, s.Save(ctx, Persisted{Token: "tok-2", Principal: testPrincipal("u2")}))
	p, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", p.Token)
	require.NotNil(t, p.Principal)
	assert.Equal(t, "u2", p.Principal.ID)

	// Browsers are isolated.
	assert.Empty(t, mustLoad(t, other).Token, "browser-2 sees browser-1's token")

	// Clear removes both; clearing twice is fine.
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, Persisted{}, mustLoad(t, s))
}

func TestMemoryBackend(t *testing.T) {
	exerciseStorage(t, NewMemoryBackend())
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisBackend(t *testing.T) {
	_, rdb := newMiniredis(t)
	exerciseStorage(t, NewRedisBackend(rdb, time.Hour))
}

func TestRedisBackend_SingleHashWithTTL(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisBackend(rdb, 30*time.Minute).ForBrowser("abc")

	seed(t, s, Persisted{Token: "tok", Principal: testPrincipal("u1")})

	key := browserKeyPrefix + "abc"
	assert.Equal(t, "tok", mr.HGet(key, KeyToken))
	assert.NotEmpty(t, mr.HGet(key, KeyUser), "expected user field")
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	// Both fields expire together.
	mr.FastForward(31 * time.Minute)
	assert.Equal(t, Persisted{}, mustLoad(t, s), "expected expired storage")
}

func TestRedisBackend_CorruptSnapshotReported(t *testing.T) {
	mr, rdb := newMiniredis(t)
	mr.HSet(browserKeyPrefix+"abc", KeyToken, "tok", KeyUser, "{not json")

	_, err := NewRedisBackend(rdb, 0).ForBrowser("abc").Load(context.Background())
	assert.Error(t, err, "expected error for corrupt snapshot")
}

// TestSQLBackend runs against a real MariaDB when MARIADB_TEST_DSN is set,
// e.g. "root:pw@tcp(localhost:3306)/switchboard_test?parseTime=true&multiStatements=true".
func TestSQLBackend(t *testing.T) {
	dsn := os.Getenv("MARIADB_TEST_DSN")
	if dsn == "" {
		t.Skip("MARIADB_TEST_DSN not set")
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.RunMigrations(db, migrationsDir(t)))
	_, err = db.Exec(`DELETE FROM browser_storage`)
	require.NoError(t, err)

	exerciseStorage(t, NewSQLBackend(db))
}

// migrationsDir returns db/migrations relative to this file.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok, "cannot determine test file path")
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "db", "migrations")
}
