package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"onlinestore/internal/model"
)

const (
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresRepository struct {
	db   *sql.DB
	q    querier
	inTx bool
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&PostgresRepository{db: r.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// mapErr translates driver errors into the package sentinels. Malformed ids
// are reported as not found so that callers never see a syntax error for a
// record that simply cannot exist.
func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrForeignKey, pgErr.ConstraintName)
		case pgInvalidTextRepr:
			return ErrNotFound
		}
	}
	return err
}

// Basket

const basketLineColumns = `l.id, l.user_id, l.product_id, p.name, p.price, l.quantity, l.created_at`

func scanBasketLine(row interface{ Scan(...any) error }, l *model.BasketLine) error {
	if err := row.Scan(&l.ID, &l.OwnerID, &l.ProductID, &l.Product.Name, &l.Product.Price, &l.Quantity, &l.CreatedAt); err != nil {
		return err
	}
	l.Product.ID = l.ProductID
	return nil
}

func (r *PostgresRepository) UpsertBasketLine(ctx context.Context, ownerID, productID string, quantity int) (*model.BasketLine, bool, error) {
	row := r.q.QueryRowContext(ctx, `
		WITH l AS (
			INSERT INTO basket_lines (user_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id)
			DO UPDATE SET quantity = basket_lines.quantity + EXCLUDED.quantity
			RETURNING id, user_id, product_id, quantity, created_at, (xmax = 0) AS inserted
		)
		SELECT `+basketLineColumns+`, l.inserted
		FROM l JOIN products p ON p.id = l.product_id
	`, ownerID, productID, quantity)

	var (
		l       model.BasketLine
		created bool
	)
	err := row.Scan(&l.ID, &l.OwnerID, &l.ProductID, &l.Product.Name, &l.Product.Price, &l.Quantity, &l.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("upsert basket line: %w", mapErr(err))
	}
	l.Product.ID = l.ProductID

	return &l, created, nil
}

func (r *PostgresRepository) UpdateBasketLine(ctx context.Context, ownerID, lineID string, quantity int) (*model.BasketLine, error) {
	row := r.q.QueryRowContext(ctx, `
		WITH l AS (
			UPDATE basket_lines SET quantity = $3
			WHERE id = $1 AND user_id = $2
			RETURNING id, user_id, product_id, quantity, created_at
		)
		SELECT `+basketLineColumns+`
		FROM l JOIN products p ON p.id = l.product_id
	`, lineID, ownerID, quantity)

	var l model.BasketLine
	if err := scanBasketLine(row, &l); err != nil {
		return nil, fmt.Errorf("update basket line: %w", mapErr(err))
	}
	return &l, nil
}

func (r *PostgresRepository) ListBasketLines(ctx context.Context, ownerID string, forUpdate bool) ([]model.BasketLine, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE OF l"
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+basketLineColumns+`
		FROM basket_lines l JOIN products p ON p.id = l.product_id
		WHERE l.user_id = $1
		ORDER BY l.created_at, l.id`+lock, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query basket lines: %w", mapErr(err))
	}
	defer rows.Close()

	var lines []model.BasketLine
	for rows.Next() {
		var l model.BasketLine
		if err := scanBasketLine(rows, &l); err != nil {
			return nil, fmt.Errorf("scan basket line: %w", err)
		}
		lines = append(lines, l)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return lines, nil
}

func (r *PostgresRepository) DeleteBasketLines(ctx context.Context, ownerID string, lineIDs []string) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM basket_lines WHERE user_id = $1 AND id::text = ANY($2)`,
		ownerID, lineIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("delete basket lines: %w", mapErr(err))
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) RecipientOwner(ctx context.Context, recipientID string) (string, error) {
	var ownerID string
	err := r.q.QueryRowContext(ctx, `SELECT user_id FROM recipients WHERE id = $1`, recipientID).Scan(&ownerID)
	if err != nil {
		return "", fmt.Errorf("get recipient: %w", mapErr(err))
	}
	return ownerID, nil
}

// Orders

const orderColumns = `id, user_id, recipient_id, payment_method_id, delivery_method_id, total_amount, paid, status, created_at`

func scanOrder(row interface{ Scan(...any) error }, o *model.Order) error {
	return row.Scan(&o.ID, &o.OwnerID, &o.RecipientID, &o.PaymentMethodID, &o.DeliveryMethodID,
		&o.TotalAmount, &o.Paid, &o.Status, &o.CreatedAt)
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, recipient_id, payment_method_id, delivery_method_id, total_amount, paid, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, o.OwnerID, o.RecipientID, o.PaymentMethodID, o.DeliveryMethodID, o.TotalAmount, o.Paid, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapErr(err))
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		err = r.q.QueryRowContext(ctx,
			`INSERT INTO order_lines (order_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
			o.ID, line.ProductID, line.Quantity,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("insert order line: %w", mapErr(err))
		}
	}

	return nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string, forUpdate bool) (*model.Order, error) {
	var o model.Order
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+lockClause(forUpdate), orderID)
	if err := scanOrder(row, &o); err != nil {
		return nil, fmt.Errorf("get order: %w", mapErr(err))
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &o, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context, ownerID string) ([]model.Order, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", mapErr(err))
	}
	defer rows.Close()

	var orders []model.Order
	index := make(map[string]int)
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	lineRows, err := r.q.QueryContext(ctx, `
		SELECT ol.id, ol.order_id, ol.product_id, ol.quantity
		FROM order_lines ol JOIN orders o ON o.id = ol.order_id
		WHERE o.user_id = $1
		ORDER BY ol.id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l model.OrderLine
		if err := lineRows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if i, ok := index[l.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, l)
		}
	}
	if err = lineRows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, orderID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET paid = TRUE,
		    status = CASE WHEN status = $2 THEN $3 ELSE status END
		WHERE id = $1
	`, orderID, string(model.OrderStatusCreated), string(model.OrderStatusPaid))
	if err != nil {
		return fmt.Errorf("mark order paid: %w", mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark order paid: %w", ErrNotFound)
	}
	return nil
}

// Payment attempts

const attemptColumns = `a.id, a.order_id, a.status, a.amount, a.provider_payment_id, a.provider_reference, a.created_at, a.updated_at`

func scanAttempt(row interface{ Scan(...any) error }, a *model.PaymentAttempt) error {
	var ref []byte
	if err := row.Scan(&a.ID, &a.OrderID, &a.Status, &a.Amount, &a.ProviderPaymentID, &ref, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return err
	}
	a.ProviderReference = ref
	return nil
}

func referenceJSON(a *model.PaymentAttempt) string {
	if len(a.ProviderReference) == 0 {
		return "{}"
	}
	return string(a.ProviderReference)
}

func (r *PostgresRepository) CreatePaymentAttempt(ctx context.Context, a *model.PaymentAttempt) (bool, error) {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO payment_attempts (order_id, status, amount, provider_payment_id, provider_reference)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_payment_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`, a.OrderID, string(a.Status), a.Amount, a.ProviderPaymentID, referenceJSON(a),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("insert payment attempt: %w", mapErr(err))
	}

	existing, err := r.GetPaymentAttemptByProviderID(ctx, a.ProviderPaymentID, false)
	if err != nil {
		return false, err
	}
	*a = *existing
	return false, nil
}

func (r *PostgresRepository) GetPaymentAttemptByProviderID(ctx context.Context, providerPaymentID string, forUpdate bool) (*model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	row := r.q.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts a WHERE a.provider_payment_id = $1`+lockClause(forUpdate),
		providerPaymentID,
	)
	if err := scanAttempt(row, &a); err != nil {
		return nil, fmt.Errorf("get payment attempt: %w", mapErr(err))
	}
	return &a, nil
}

func (r *PostgresRepository) UpdatePaymentAttempt(ctx context.Context, a *model.PaymentAttempt) error {
	err := r.q.QueryRowContext(ctx, `
		UPDATE payment_attempts
		SET status = $2, provider_reference = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, string(a.Status), referenceJSON(a)).Scan(&a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment attempt: %w", mapErr(err))
	}
	return nil
}

func (r *PostgresRepository) ListPaymentAttempts(ctx context.Context, ownerID string) ([]model.PaymentAttempt, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+attemptColumns+`
		FROM payment_attempts a JOIN orders o ON o.id = a.order_id
		WHERE o.user_id = $1
		ORDER BY a.created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query payment attempts: %w", mapErr(err))
	}
	defer rows.Close()

	var attempts []model.PaymentAttempt
	for rows.Next() {
		var a model.PaymentAttempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return attempts, nil
}
