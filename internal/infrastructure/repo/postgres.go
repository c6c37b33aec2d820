package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"storefront-backend/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "storefront_schema_migrations"

type PostgresRepo struct {
	db  *sql.DB
	dsn string
}

func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepo{db: db, dsn: dsn}, nil
}

func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

// Migrate applies the embedded schema migrations.
func (r *PostgresRepo) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(r.dsn))
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("database migrations applied")
	return nil
}

func migrationURL(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&x-migrations-table=" + migrationsTable
	}
	return dsn + "?x-migrations-table=" + migrationsTable
}

const orderColumns = `id,user_id,email,amount_cents,currency,status,stripe_session_id,stripe_payment_intent_id,stripe_invoice_id,created_at`

func (r *PostgresRepo) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE stripe_session_id=$1`, sessionID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, false, err
	}
	o.Items = items
	return o, true, nil
}

func (r *PostgresRepo) CreateOrder(ctx context.Context, o *domain.Order) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (stripe_session_id) DO NOTHING`,
		o.ID, nullString(o.UserID), nullString(o.Email), o.AmountCents, o.Currency, string(o.Status),
		o.StripeSessionID, nullString(o.StripePaymentIntentID), nullString(o.StripeInvoiceID), o.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) PutOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO order_items (order_id,title,detail,unit_amount_cents,quantity)
		VALUES ($1,$2,$3,$4,$5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, orderID, it.Title, nullString(it.Detail), it.UnitAmountCents, it.Quantity); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) BackfillOrderIdentity(ctx context.Context, orderID string, id domain.Identity) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE orders
		SET user_id = COALESCE(user_id, $2), email = COALESCE(email, $3)
		WHERE id=$1
		RETURNING `+orderColumns,
		orderID, nullString(id.UserID), nullString(id.Email))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errOrderMissing(orderID)
	}
	if err != nil {
		return nil, err
	}
	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *PostgresRepo) ListOrders(ctx context.Context, id domain.Identity, page, pageSize int) ([]domain.Order, int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE `+identityFilter+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		id.UserID, id.Email, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]domain.Order, 0, pageSize)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		items, err := r.orderItems(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Items = items
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE `+identityFilter, id.UserID, id.Email).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT title,detail,unit_amount_cents,quantity FROM order_items WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.OrderItem
	for rows.Next() {
		it := domain.OrderItem{OrderID: orderID}
		var detail sql.NullString
		if err := rows.Scan(&it.Title, &detail, &it.UnitAmountCents, &it.Quantity); err != nil {
			return nil, err
		}
		it.Detail = detail.String
		out = append(out, it)
	}
	return out, rows.Err()
}

// identityFilter matches rows by user id OR email; $1 is the user id, $2 the
// email, and a blank parameter never matches.
const identityFilter = `(($1 <> '' AND user_id = $1) OR ($2 <> '' AND email = $2))`

func (r *PostgresRepo) AppendLedger(ctx context.Context, e *domain.LedgerEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO rewards_ledger (id,user_id,email,order_id,points,source,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (order_id) DO NOTHING`,
		e.ID, nullString(e.UserID), nullString(e.Email), e.OrderID, e.Points, string(e.Source), e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) CountLedger(ctx context.Context, id domain.Identity) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(points),0) FROM rewards_ledger WHERE `+identityFilter, id.UserID, id.Email).Scan(&n)
	return n, err
}

const awardColumns = `id,identity_key,user_id,email,tier,stripe_coupon_id,stripe_promotion_code_id,code,issued_at`

func (r *PostgresRepo) FindAward(ctx context.Context, id domain.Identity, tier int) (*domain.Award, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+awardColumns+` FROM rewards_awards
		WHERE tier=$3 AND `+identityFilter+`
		ORDER BY issued_at ASC LIMIT 1`, id.UserID, id.Email, tier)
	a, err := scanAward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func (r *PostgresRepo) InsertAward(ctx context.Context, a *domain.Award) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO rewards_awards (`+awardColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (identity_key, tier) DO NOTHING`,
		a.ID, a.IdentityKey, nullString(a.UserID), nullString(a.Email), a.Tier,
		a.StripeCouponID, a.StripePromotionCodeID, a.Code, a.IssuedAt)
	if err != nil {
		return false, fmt.Errorf("insert award: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) ListAwards(ctx context.Context, id domain.Identity) ([]domain.Award, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+awardColumns+` FROM rewards_awards
		WHERE `+identityFilter+` ORDER BY issued_at ASC`, id.UserID, id.Email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Award, 0)
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	var userID, email, pi, inv sql.NullString
	err := s.Scan(&o.ID, &userID, &email, &o.AmountCents, &o.Currency, (*string)(&o.Status),
		&o.StripeSessionID, &pi, &inv, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.UserID = userID.String
	o.Email = email.String
	o.StripePaymentIntentID = pi.String
	o.StripeInvoiceID = inv.String
	return &o, nil
}

func scanAward(s scanner) (*domain.Award, error) {
	var a domain.Award
	var userID, email sql.NullString
	err := s.Scan(&a.ID, &a.IdentityKey, &userID, &email, &a.Tier,
		&a.StripeCouponID, &a.StripePromotionCodeID, &a.Code, &a.IssuedAt)
	if err != nil {
		return nil, err
	}
	a.UserID = userID.String
	a.Email = email.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func errOrderMissing(orderID string) error {
	return fmt.Errorf("order %s does not exist", orderID)
}
