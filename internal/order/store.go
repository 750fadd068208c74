package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aperture-prints/backend-prints/internal/pricing"
)

const orderColumns = `id, order_number, status, subtotal, tax, shipping, total,
	payment_authorization_id, email, customer_name, shipping_address,
	tracking_number, notes, created_at, updated_at`

// Store is the order ledger over Postgres. The unique index on
// payment_authorization_id is what makes concurrent settlement safe: the
// reconciler's read-then-write check alone is not atomic.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore wraps the connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Create persists order, items and the stock decrement in one transaction.
// When an order already exists for the payment authorization the conflict is
// success: the existing order is returned with created=false and nothing is
// written.
func (s *Store) Create(ctx context.Context, params CreateParams) (Order, []Item, bool, error) {
	if len(params.Items) == 0 {
		return Order{}, nil, false, fmt.Errorf("order: create requires at least one item")
	}
	if strings.TrimSpace(params.PaymentAuthorizationID) == "" {
		return Order{}, nil, false, fmt.Errorf("order: create requires a payment authorization id")
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return Order{}, nil, false, fmt.Errorf("order: allocate number: %w", err)
	}
	number := fmt.Sprintf("AP-%06d", seq)

	addr, err := encodeAddress(params.ShippingAddress)
	if err != nil {
		return Order{}, nil, false, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, status, subtotal, tax, shipping, total,
			payment_authorization_id, email, customer_name, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (payment_authorization_id) DO NOTHING
		RETURNING `+orderColumns,
		number, params.Status, int64(params.Subtotal), int64(params.Tax),
		int64(params.Shipping), int64(params.Total), params.PaymentAuthorizationID,
		params.Email, params.CustomerName, addr)

	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, lookupErr := s.GetByPaymentAuthorization(ctx, params.PaymentAuthorizationID)
			if lookupErr != nil {
				return Order{}, nil, false, lookupErr
			}
			return existing, nil, false, nil
		}
		return Order{}, nil, false, fmt.Errorf("order: insert: %w", err)
	}

	items := make([]Item, 0, len(params.Items))
	for _, item := range params.Items {
		snapshot, err := json.Marshal(item.Snapshot)
		if err != nil {
			return Order{}, nil, false, fmt.Errorf("order: encode snapshot: %w", err)
		}
		var it Item
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, print_option_id, quantity,
				unit_price, total_price, product_snapshot)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			ord.ID, item.ProductID, item.PrintOptionID, item.Quantity,
			int64(item.UnitPrice), int64(item.TotalPrice), snapshot).Scan(&it.ID)
		if err != nil {
			return Order{}, nil, false, fmt.Errorf("order: insert item: %w", err)
		}
		it.OrderID = ord.ID
		it.ProductID = item.ProductID
		it.PrintOptionID = item.PrintOptionID
		it.Quantity = item.Quantity
		it.UnitPrice = item.UnitPrice
		it.TotalPrice = item.TotalPrice
		it.Snapshot = item.Snapshot
		items = append(items, it)

		// Stock is reserved at confirmation time, inside the same transaction
		// as the order rows.
		if item.PrintOptionID != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE print_options
				SET stock = GREATEST(stock - $1, 0)
				WHERE id = $2 AND track_stock`,
				item.Quantity, *item.PrintOptionID); err != nil {
				return Order{}, nil, false, fmt.Errorf("order: decrement stock: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		// A concurrent settlement can still beat us to the commit; a unique
		// violation on the authorization id means the order exists.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, lookupErr := s.GetByPaymentAuthorization(ctx, params.PaymentAuthorizationID)
			if lookupErr != nil {
				return Order{}, nil, false, lookupErr
			}
			return existing, nil, false, nil
		}
		return Order{}, nil, false, err
	}
	return ord, items, true, nil
}

// GetByID looks an order up by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (Order, error) {
	return s.getWhere(ctx, "id = $1", id)
}

// GetByNumber looks an order up by its human-readable number.
func (s *Store) GetByNumber(ctx context.Context, number string) (Order, error) {
	return s.getWhere(ctx, "order_number = $1", strings.TrimSpace(number))
}

// GetByPaymentAuthorization looks an order up by the authorization that paid
// for it.
func (s *Store) GetByPaymentAuthorization(ctx context.Context, authorizationID string) (Order, error) {
	return s.getWhere(ctx, "payment_authorization_id = $1", strings.TrimSpace(authorizationID))
}

func (s *Store) getWhere(ctx context.Context, clause string, arg any) (Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+clause, arg)
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: lookup: %w", err)
	}
	return ord, nil
}

// Items returns the line items of an order.
func (s *Store) Items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, order_id, product_id, print_option_id, quantity,
			unit_price, total_price, product_snapshot
		FROM order_items WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order: list items: %w", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		var unit, total int64
		var snapshot []byte
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.PrintOptionID,
			&it.Quantity, &unit, &total, &snapshot); err != nil {
			return nil, fmt.Errorf("order: scan item: %w", err)
		}
		it.UnitPrice = pricing.Money(unit)
		it.TotalPrice = pricing.Money(total)
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &it.Snapshot); err != nil {
				return nil, fmt.Errorf("order: decode snapshot: %w", err)
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus sets the order status with an optional note appended. Unknown
// status values are rejected before touching the database.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, note string) (Order, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Order{}, err
	}
	var row pgx.Row
	if strings.TrimSpace(note) != "" {
		row = s.Pool.QueryRow(ctx, `
			UPDATE orders
			SET status = $2,
				notes = CONCAT_WS(E'\n', NULLIF(notes, ''), $3::text),
				updated_at = now()
			WHERE id = $1
			RETURNING `+orderColumns, id, status, note)
	} else {
		row = s.Pool.QueryRow(ctx, `
			UPDATE orders SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+orderColumns, id, status)
	}
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: update status: %w", err)
	}
	return ord, nil
}

// AddTracking records a shipment tracking number.
func (s *Store) AddTracking(ctx context.Context, id, tracking string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE orders SET tracking_number = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, strings.TrimSpace(tracking))
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: add tracking: %w", err)
	}
	return ord, nil
}

// SetNotes replaces the free-form notes field.
func (s *Store) SetNotes(ctx context.Context, id, notes string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE orders SET notes = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, notes)
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: set notes: %w", err)
	}
	return ord, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var ord Order
	var subtotal, tax, shipping, total int64
	var addr []byte
	if err := row.Scan(&ord.ID, &ord.Number, &ord.Status, &subtotal, &tax, &shipping,
		&total, &ord.PaymentAuthorizationID, &ord.Email, &ord.CustomerName, &addr,
		&ord.TrackingNumber, &ord.Notes, &ord.CreatedAt, &ord.UpdatedAt); err != nil {
		return Order{}, err
	}
	ord.Subtotal = pricing.Money(subtotal)
	ord.Tax = pricing.Money(tax)
	ord.Shipping = pricing.Money(shipping)
	ord.Total = pricing.Money(total)
	if len(addr) > 0 {
		var decoded pricing.Address
		if err := json.Unmarshal(addr, &decoded); err != nil {
			return Order{}, fmt.Errorf("order: decode shipping address: %w", err)
		}
		ord.ShippingAddress = &decoded
	}
	return ord, nil
}

func encodeAddress(addr *pricing.Address) ([]byte, error) {
	if addr == nil {
		return nil, nil
	}
	data, err := json.Marshal(addr)
	if err != nil {
		return nil, fmt.Errorf("order: encode shipping address: %w", err)
	}
	return data, nil
}
