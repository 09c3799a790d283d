//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/tripcart/internal/domain/cart"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tripcart",
				"POSTGRES_PASSWORD": "tripcart",
				"POSTGRES_DB":       "tripcart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ctr.Terminate(context.Background())
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://tripcart:tripcart@%s:%s/tripcart?sslmode=disable", host, port.Port())
}

func TestCartSlots_Postgres(t *testing.T) {
	ctx := context.Background()

	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	slots := NewCartSlots(pool)
	store, err := cart.Open(ctx, slots.Slot("session-a"), zaptest.NewLogger(t))
	require.NoError(t, err)
	store.Add(ctx, cart.Input{
		TripID:        "bali",
		Title:         "Bali Escape",
		UnitPrice:     100000,
		TravelerCount: 2,
		StartDate:     "2026-05-01",
		ContactInfo:   cart.ContactInfo{FullName: "Ada", Email: "ada@example.com"},
	})
	store.Add(ctx, cart.Input{TripID: "kyoto", UnitPrice: 5, TravelerCount: 1})

	reloaded, err := cart.Open(ctx, slots.Slot("session-a"), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), reloaded.Snapshot())

	var count int
	var total string
	err = pool.QueryRow(ctx, `SELECT item_count, total::text FROM cart_slots WHERE slot = $1`, "session-a").
		Scan(&count, &total)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "220006", total)

	other, err := cart.Open(ctx, slots.Slot("session-b"), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 0, other.Count())

	n, err := slots.DeleteStale(ctx, 3600)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
