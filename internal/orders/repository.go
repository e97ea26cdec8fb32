package orders

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mfreiras/menuflow/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (session_id, customer_phone, customer_name, delivery_address, total_price, status, final_confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, order.SessionID, order.CustomerPhone, order.CustomerName, order.DeliveryAddress,
		order.TotalPrice, order.Status, order.FinalConfirmed, order.CreatedAt).Scan(&order.ID)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), order.ID, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresStore) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order := &domain.Order{}

	var (
		prepTime    sql.NullInt32
		deliveryFee decimal.NullDecimal
		serviceFee  decimal.NullDecimal
		taxValue    decimal.NullDecimal
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, customer_phone, customer_name, delivery_address, total_price,
		       prep_time_minutes, delivery_fee, service_fee, tax_value,
		       status, final_confirmed, cancel_reason, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.SessionID, &order.CustomerPhone, &order.CustomerName,
		&order.DeliveryAddress, &order.TotalPrice,
		&prepTime, &deliveryFee, &serviceFee, &taxValue,
		&order.Status, &order.FinalConfirmed, &order.CancelReason, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if prepTime.Valid {
		v := int(prepTime.Int32)
		order.PrepTimeMinutes = &v
	}
	if deliveryFee.Valid {
		order.DeliveryFee = &deliveryFee.Decimal
	}
	if serviceFee.Valid {
		order.ServiceFee = &serviceFee.Decimal
	}
	if taxValue.Valid {
		order.TaxValue = &taxValue.Decimal
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// List returns orders newest first, items batched in a single second query.
// Pass sessionID 0 for all sessions.
func (r *PostgresStore) List(ctx context.Context, sessionID int64) ([]domain.Order, error) {
	query := `
		SELECT id, session_id, customer_phone, customer_name, total_price, status, final_confirmed, created_at
		FROM orders
		ORDER BY created_at DESC
	`
	args := []any{}
	if sessionID != 0 {
		query = `
			SELECT id, session_id, customer_phone, customer_name, total_price, status, final_confirmed, created_at
			FROM orders
			WHERE session_id = $1
			ORDER BY created_at DESC
		`
		args = append(args, sessionID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[int64]*domain.Order)
	var orderIDs []int64

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.SessionID, &order.CustomerPhone, &order.CustomerName,
			&order.TotalPrice, &order.Status, &order.FinalConfirmed, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// Confirm applies new → confirmed with a status-guarded update, so two
// concurrent confirms on one order yield exactly one success.
func (r *PostgresStore) Confirm(ctx context.Context, id int64, d domain.ConfirmationDetails) (*domain.Order, error) {
	var serviceFee decimal.NullDecimal
	if d.ServiceFee != nil {
		serviceFee = decimal.NullDecimal{Decimal: *d.ServiceFee, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, final_confirmed = TRUE,
		    prep_time_minutes = $3, delivery_fee = $4, service_fee = $5, tax_value = $6
		WHERE id = $1 AND status = $7
	`, id, domain.OrderStatusConfirmed, d.PrepTimeMinutes, d.DeliveryFee, serviceFee, d.TaxValue, domain.OrderStatusNew)
	if err != nil {
		return nil, err
	}

	if err := r.checkTransition(ctx, id, result); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Cancel applies new → cancelled with the same status guard.
func (r *PostgresStore) Cancel(ctx context.Context, id int64, reason string) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, cancel_reason = $3
		WHERE id = $1 AND status = $4
	`, id, domain.OrderStatusCancelled, reason, domain.OrderStatusNew)
	if err != nil {
		return nil, err
	}

	if err := r.checkTransition(ctx, id, result); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// checkTransition distinguishes a lost race from a missing row after a
// guarded update touched no rows.
func (r *PostgresStore) checkTransition(ctx context.Context, id int64, result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var status domain.OrderStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("order %d is %s: %w", id, status, domain.ErrInvalidState)
}

// Delete removes an order and its items. Admin cleanup only; the order
// lifecycle itself never hard-deletes.
func (r *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
