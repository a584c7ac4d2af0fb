// Package report derives sales aggregates from completed orders. Read-only
// and non-transactional; every operation either returns the full aggregate or
// an error, never a partial result.
package report

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nazeru/canteen-orders-go/internal/order/domain"
)

type Range string

const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange validates the requested range before any query runs.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case RangeDay, RangeWeek, RangeMonth:
		return Range(s), nil
	}
	return "", &domain.ValidationError{Reason: "range must be one of day, week, month"}
}

type PeriodSales struct {
	Period       string `json:"period"`
	OrderCount   int64  `json:"order_count"`
	RevenueCents int64  `json:"revenue_cents"`
}

type DailyRevenue struct {
	Date         string `json:"date"`
	RevenueCents int64  `json:"revenue_cents"`
}

type ItemSales struct {
	Name         string `json:"name"`
	Quantity     int64  `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
}

// SalesReport is the combined document served to the staff dashboard.
type SalesReport struct {
	SalesData    []PeriodSales  `json:"sales_data"`
	RevenueTrend []DailyRevenue `json:"revenue_trend"`
	PopularItems []ItemSales    `json:"popular_items"`
}

type Aggregator struct {
	pool *pgxpool.Pool

	// now is injectable so bucketing is deterministic under test.
	now func() time.Time
}

func NewAggregator(pool *pgxpool.Pool) *Aggregator {
	return &Aggregator{pool: pool, now: time.Now}
}

// Bucketed sales per calendar period. Inner joins mean only orders with at
// least one line item are counted; revenue is quantity times the current
// catalog price.
var salesQueries = map[Range]string{
	RangeDay: `
		SELECT to_char(o.created_at, 'HH24:00') AS period,
		       COUNT(DISTINCT o.id) AS sales,
		       COALESCE(SUM(oi.quantity * mi.price_cents), 0) AS revenue
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		JOIN menu_items mi ON oi.menu_item_id = mi.id
		WHERE o.created_at::date = $1::date
		GROUP BY period
		ORDER BY period`,
	RangeWeek: `
		SELECT to_char(o.created_at, 'Dy') AS period,
		       COUNT(DISTINCT o.id) AS sales,
		       COALESCE(SUM(oi.quantity * mi.price_cents), 0) AS revenue
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		JOIN menu_items mi ON oi.menu_item_id = mi.id
		WHERE date_trunc('week', o.created_at) = date_trunc('week', $1::timestamptz)
		GROUP BY period, extract(isodow FROM o.created_at)
		ORDER BY extract(isodow FROM o.created_at)`,
	RangeMonth: `
		SELECT to_char(o.created_at, 'Mon FMDD') AS period,
		       COUNT(DISTINCT o.id) AS sales,
		       COALESCE(SUM(oi.quantity * mi.price_cents), 0) AS revenue
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		JOIN menu_items mi ON oi.menu_item_id = mi.id
		WHERE date_trunc('month', o.created_at) = date_trunc('month', $1::timestamptz)
		GROUP BY period, extract(day FROM o.created_at)
		ORDER BY extract(day FROM o.created_at)`,
}

// SalesByPeriod buckets orders within the selected range: hourly for day,
// per weekday for week, per day of month for month.
func (a *Aggregator) SalesByPeriod(ctx context.Context, r Range) ([]PeriodSales, error) {
	query, ok := salesQueries[r]
	if !ok {
		return nil, &domain.ValidationError{Reason: "range must be one of day, week, month"}
	}

	rows, err := a.pool.Query(ctx, query, a.now())
	if err != nil {
		return nil, &domain.ReportError{Query: "sales by period", Err: err}
	}
	defer rows.Close()

	out := []PeriodSales{}
	for rows.Next() {
		var p PeriodSales
		if err := rows.Scan(&p.Period, &p.OrderCount, &p.RevenueCents); err != nil {
			return nil, &domain.ReportError{Query: "sales by period", Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ReportError{Query: "sales by period", Err: err}
	}
	return out, nil
}

// RevenueTrend returns completed-order revenue for the most recent limit
// calendar days, ascending for chart display.
func (a *Aggregator) RevenueTrend(ctx context.Context, limit int) ([]DailyRevenue, error) {
	if limit < 1 {
		limit = 7
	}
	rows, err := a.pool.Query(ctx, `
		SELECT to_char(o.created_at, 'YYYY-MM-DD') AS period,
		       COALESCE(SUM(oi.quantity * mi.price_cents), 0) AS revenue
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		JOIN menu_items mi ON oi.menu_item_id = mi.id
		WHERE o.status = $1
		GROUP BY period
		ORDER BY period DESC
		LIMIT $2`, string(domain.StatusCompleted), limit)
	if err != nil {
		return nil, &domain.ReportError{Query: "revenue trend", Err: err}
	}
	defer rows.Close()

	out := []DailyRevenue{}
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Date, &d.RevenueCents); err != nil {
			return nil, &domain.ReportError{Query: "revenue trend", Err: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ReportError{Query: "revenue trend", Err: err}
	}
	return ascending(out), nil
}

// PopularItems ranks items of completed orders by total quantity sold,
// regardless of revenue.
func (a *Aggregator) PopularItems(ctx context.Context, limit int) ([]ItemSales, error) {
	if limit < 1 {
		limit = 5
	}
	rows, err := a.pool.Query(ctx, `
		SELECT mi.name,
		       SUM(oi.quantity) AS quantity,
		       COALESCE(SUM(oi.quantity * mi.price_cents), 0) AS revenue
		FROM order_items oi
		JOIN menu_items mi ON oi.menu_item_id = mi.id
		JOIN orders o ON oi.order_id = o.id
		WHERE o.status = $1
		GROUP BY mi.name
		ORDER BY quantity DESC
		LIMIT $2`, string(domain.StatusCompleted), limit)
	if err != nil {
		return nil, &domain.ReportError{Query: "popular items", Err: err}
	}
	defer rows.Close()

	out := []ItemSales{}
	for rows.Next() {
		var i ItemSales
		if err := rows.Scan(&i.Name, &i.Quantity, &i.RevenueCents); err != nil {
			return nil, &domain.ReportError{Query: "popular items", Err: err}
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ReportError{Query: "popular items", Err: err}
	}
	return out, nil
}

// Generate assembles the full dashboard document. Any failing query fails
// the whole report.
func (a *Aggregator) Generate(ctx context.Context, r Range) (*SalesReport, error) {
	sales, err := a.SalesByPeriod(ctx, r)
	if err != nil {
		return nil, err
	}
	trend, err := a.RevenueTrend(ctx, 7)
	if err != nil {
		return nil, err
	}
	popular, err := a.PopularItems(ctx, 5)
	if err != nil {
		return nil, err
	}
	return &SalesReport{SalesData: sales, RevenueTrend: trend, PopularItems: popular}, nil
}

// ascending reverses the descending query order so charts read left to right.
func ascending(in []DailyRevenue) []DailyRevenue {
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	return in
}
