package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLSource fetches transactions from a MySQL payments table.
type MySQLSource struct {
	db    *sql.DB
	table string
}

// NewMySQLSource opens a connection pool against the database
// identified by dsn. The DSN must include parseTime=true so created_at
// scans into time.Time.
func NewMySQLSource(dsn, table string) (*MySQLSource, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return &MySQLSource{db: db, table: table}, nil
}

func (s *MySQLSource) Close() error {
	return s.db.Close()
}

// FetchTransactions returns all success/failure payments in [from, to].
func (s *MySQLSource) FetchTransactions(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	query := fmt.Sprintf(`
		SELECT id, station_id, customer_id, source, fuel_type,
		       liter, unit_price, amount, payment_status,
		       payment_method_id, created_at, updated_at
		FROM %s
		WHERE payment_status IN (?, ?)
		  AND created_at >= ? AND created_at <= ?
		ORDER BY created_at`, s.table)

	rows, err := s.db.QueryContext(ctx, query, StatusSuccess, StatusFailure, from, to)
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
