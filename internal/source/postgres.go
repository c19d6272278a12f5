package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// PostgresSource fetches transactions from a PostgreSQL payments table.
type PostgresSource struct {
	conn  *pgx.Conn
	table string
}

// NewPostgresSource connects to the database identified by dsn.
func NewPostgresSource(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresSource{conn: conn, table: table}, nil
}

func (s *PostgresSource) Close() error {
	return s.conn.Close(context.Background())
}

// FetchTransactions returns all success/failure payments in [from, to].
func (s *PostgresSource) FetchTransactions(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	query := fmt.Sprintf(`
		SELECT id, station_id, customer_id, source, fuel_type,
		       liter, unit_price, amount, payment_status,
		       payment_method_id, created_at, updated_at
		FROM %s
		WHERE payment_status IN ($1, $2)
		  AND created_at >= $3 AND created_at <= $4
		ORDER BY created_at`, s.table)

	rows, err := s.conn.Query(ctx, query, StatusSuccess, StatusFailure, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(
			&tx.ID, &tx.StationID, &tx.CustomerID, &tx.Channel, &tx.FuelType,
			&tx.Liters, &tx.UnitPrice, &tx.Amount, &tx.Status,
			&tx.PaymentMethodID, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return txs, nil
}
