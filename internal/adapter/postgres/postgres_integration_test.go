package postgres

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/felle787/LocalRadar2/internal/adapter/metrics"
)

var (
	testPool        *pgxpool.Pool
	testDatabaseURL string
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	os.Exit(runWithContainer(m))
}

func runWithContainer(m *testing.M) int {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("localradar"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	testDatabaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		return 1
	}

	testPool, err = Connect(ctx, testDatabaseURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		return 1
	}
	defer testPool.Close()

	if err := RunMigrationsWithLock(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		return 1
	}

	return m.Run()
}

// setupTestDB returns the shared pool and truncates all tables after the test.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Cleanup(func() {
		if _, err := testPool.Exec(context.Background(), "TRUNCATE accounts, venues, events CASCADE"); err != nil {
			t.Logf("Failed to truncate tables: %v", err)
		}
	})
	return testPool
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(t.Context(), "postgres://%zz", nil)
	require.Error(t, err)
}

func TestExtractSSLMode(t *testing.T) {
	assert.Equal(t, "disable", extractSSLMode("postgres://u:p@localhost/db?sslmode=disable"))
	assert.Equal(t, "require", extractSSLMode("postgres://u:p@localhost/db?sslmode=REQUIRE"))
	assert.Equal(t, "prefer (default)", extractSSLMode("postgres://u:p@localhost/db"))
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "select", queryName("SELECT id FROM venues"))
	assert.Equal(t, "insert", queryName("\n\t\tINSERT INTO venues"))
	assert.Equal(t, "other", queryName("TRUNCATE accounts"))
	assert.Equal(t, "unknown", queryName("  "))
}

func TestRunMigrationsWithLock_Idempotent(t *testing.T) {
	pool := setupTestDB(t)

	require.NoError(t, RunMigrationsWithLock(t.Context(), pool))

	var version int
	require.NoError(t, pool.QueryRow(t.Context(), "SELECT version FROM public.schema_version").Scan(&version))
	assert.Equal(t, 3, version)
}

func TestMetricsTracer_RecordsQueries(t *testing.T) {
	setupTestDB(t)

	m := metrics.NewDBMetrics(prometheus.NewRegistry())
	pool, err := Connect(t.Context(), testDatabaseURL, NewMetricsTracer(m))
	require.NoError(t, err)
	defer pool.Close()

	repo := NewVenueRepo(pool)
	_, err = repo.Count(t.Context())
	require.NoError(t, err)

	_, err = pool.Exec(t.Context(), "SELECT * FROM missing_table")
	require.Error(t, err)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(m.QueryDuration), 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("select")), 0)
}
