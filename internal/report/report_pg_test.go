package report

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/canteen-orders-go/internal/order/domain"
)

// These tests run the real aggregation SQL and need a Postgres with
// db/schema.sql applied. They skip when DATABASE_URL is unset.

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres-backed tests")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	cleanupTestData(t, pool)
	t.Cleanup(func() { cleanupTestData(t, pool) })
	return pool
}

func cleanupTestData(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`TRUNCATE order_idempotency, order_items, orders, menu_items RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func seedMenuItem(t *testing.T, pool *pgxpool.Pool, name string, priceCents int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO menu_items(name, price_cents) VALUES($1, $2) RETURNING id`,
		name, priceCents).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedOrder(t *testing.T, pool *pgxpool.Pool, shortCode string, status domain.OrderStatus, itemID int64, quantity int) int64 {
	t.Helper()
	ctx := context.Background()
	var orderID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO orders(short_code, student_id, status) VALUES($1, $2, $3) RETURNING id`,
		shortCode, "S-1001", string(status)).Scan(&orderID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO order_items(order_id, menu_item_id, quantity) VALUES($1, $2, $3)`,
		orderID, itemID, quantity)
	require.NoError(t, err)
	return orderID
}

func TestSalesByPeriod_Day_SumsOrdersAndRevenue(t *testing.T) {
	pool := setupTestDB(t)
	agg := NewAggregator(pool)

	itemID := seedMenuItem(t, pool, "Veg Thali", 50)
	seedOrder(t, pool, "9001", domain.StatusCompleted, itemID, 1)
	seedOrder(t, pool, "9002", domain.StatusCompleted, itemID, 1)
	seedOrder(t, pool, "9003", domain.StatusCompleted, itemID, 1)

	sales, err := agg.SalesByPeriod(context.Background(), RangeDay)
	require.NoError(t, err)
	require.NotEmpty(t, sales)

	var orders, revenue int64
	for _, p := range sales {
		orders += p.OrderCount
		revenue += p.RevenueCents
	}
	assert.Equal(t, int64(3), orders)
	assert.Equal(t, int64(150), revenue)
}

func TestSalesByPeriod_Day_CountsMultiItemOrderOnce(t *testing.T) {
	pool := setupTestDB(t)
	agg := NewAggregator(pool)

	thali := seedMenuItem(t, pool, "Veg Thali", 50)
	chai := seedMenuItem(t, pool, "Chai", 10)
	orderID := seedOrder(t, pool, "9004", domain.StatusCompleted, thali, 2)
	_, err := pool.Exec(context.Background(),
		`INSERT INTO order_items(order_id, menu_item_id, quantity) VALUES($1, $2, $3)`,
		orderID, chai, 3)
	require.NoError(t, err)

	sales, err := agg.SalesByPeriod(context.Background(), RangeDay)
	require.NoError(t, err)

	var orders, revenue int64
	for _, p := range sales {
		orders += p.OrderCount
		revenue += p.RevenueCents
	}
	assert.Equal(t, int64(1), orders)
	assert.Equal(t, int64(2*50+3*10), revenue)
}

func TestPopularItems_RanksByQuantityNotRevenue(t *testing.T) {
	pool := setupTestDB(t)
	agg := NewAggregator(pool)

	chai := seedMenuItem(t, pool, "Chai", 50)
	thali := seedMenuItem(t, pool, "Veg Thali", 50)
	seedOrder(t, pool, "9005", domain.StatusCompleted, chai, 10)
	seedOrder(t, pool, "9006", domain.StatusCompleted, thali, 3)

	popular, err := agg.PopularItems(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, popular, 2)

	assert.Equal(t, "Chai", popular[0].Name)
	assert.Equal(t, int64(10), popular[0].Quantity)
	assert.Equal(t, "Veg Thali", popular[1].Name)
	assert.Equal(t, int64(3), popular[1].Quantity)
}

func TestPopularItems_IgnoresNonCompletedOrders(t *testing.T) {
	pool := setupTestDB(t)
	agg := NewAggregator(pool)

	chai := seedMenuItem(t, pool, "Chai", 10)
	seedOrder(t, pool, "9007", domain.StatusCompleted, chai, 2)
	seedOrder(t, pool, "9008", domain.StatusPending, chai, 100)
	seedOrder(t, pool, "9009", domain.StatusCancelled, chai, 100)

	popular, err := agg.PopularItems(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, int64(2), popular[0].Quantity)
}
