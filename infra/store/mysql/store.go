package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/store"
)

// Store implements store.Store on a MySQL database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. The schema must exist, see Migrate.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects with cfg and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// orderRow holds the indexed columns derived from an order.
type orderRow struct {
	status       string
	assigned     string
	sentDeadline sql.NullTime
	doc          []byte
}

func toRow(o model.Order) (orderRow, error) {
	doc, err := json.Marshal(o)
	if err != nil {
		return orderRow{}, fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	r := orderRow{status: string(o.Status), assigned: o.AssignedCarrierID, doc: doc}
	if idx := model.SentIndex(o.DispatchChain); idx >= 0 {
		r.sentDeadline = sql.NullTime{Time: o.DispatchChain[idx].Timeout.UTC(), Valid: true}
	}
	return r, nil
}

// PutOrder inserts or replaces an order. A zero version is set to 1.
func (s *Store) PutOrder(ctx context.Context, o model.Order) error {
	if o.Version == 0 {
		o.Version = 1
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = s.now().UTC()
	}
	r, err := toRow(o)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, status, assigned_carrier_id, sent_deadline, version, doc, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), assigned_carrier_id = VALUES(assigned_carrier_id),
			sent_deadline = VALUES(sent_deadline), version = VALUES(version), doc = VALUES(doc), updated_at = VALUES(updated_at)`,
		o.ID, r.status, r.assigned, r.sentDeadline, o.Version, r.doc, o.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("put order %s: %w", o.ID, err)
	}
	return nil
}

// FindOrder implements store.OrderStore.
func (s *Store) FindOrder(ctx context.Context, id string) (model.Order, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM orders WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("find order %s: %w", id, err)
	}
	return decodeOrder(doc)
}

func decodeOrder(doc []byte) (model.Order, error) {
	var o model.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return model.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return o, nil
}

// UpdateOrder implements store.OrderStore. The row is rewritten only while
// its version still equals pre.Version.
func (s *Store) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch, pre store.Precondition) (model.Order, error) {
	o, err := s.FindOrder(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.Version != pre.Version {
		return model.Order{}, fmt.Errorf("order %s at version %d, expected %d: %w", id, o.Version, pre.Version, store.ErrPreconditionFailed)
	}
	patch.Apply(&o)
	o.Version = pre.Version + 1
	o.UpdatedAt = s.now().UTC()
	r, err := toRow(o)
	if err != nil {
		return model.Order{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, assigned_carrier_id = ?, sent_deadline = ?, version = ?, doc = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		r.status, r.assigned, r.sentDeadline, o.Version, r.doc, o.UpdatedAt, id, pre.Version)
	if err != nil {
		return model.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}
	if n == 0 {
		return model.Order{}, fmt.Errorf("order %s changed concurrently: %w", id, store.ErrPreconditionFailed)
	}
	return o, nil
}

// where translates the filter into a SQL predicate over the indexed columns.
func where(f store.OrderFilter) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.AssignedCarrierID != "" {
		clauses = append(clauses, "assigned_carrier_id = ?")
		args = append(args, f.AssignedCarrierID)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if len(f.ExcludeStatuses) > 0 {
		clauses = append(clauses, "status NOT IN ("+placeholders(len(f.ExcludeStatuses))+")")
		for _, st := range f.ExcludeStatuses {
			args = append(args, string(st))
		}
	}
	if !f.SentDeadlineBefore.IsZero() {
		clauses = append(clauses, "sent_deadline IS NOT NULL AND sent_deadline < ?")
		args = append(args, f.SentDeadlineBefore.UTC())
	}
	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// FindOrders implements store.OrderStore. Results are sorted by id.
func (s *Store) FindOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	pred, args := where(f)
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM orders WHERE `+pred+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Order
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		o, err := decodeOrder(doc)
		if err != nil {
			return nil, err
		}
		if f.DocumentOnly() && !f.Match(o) {
			continue
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOrders implements store.OrderStore.
func (s *Store) CountOrders(ctx context.Context, f store.OrderFilter) (int, error) {
	if f.DocumentOnly() {
		orders, err := s.FindOrders(ctx, f)
		return len(orders), err
	}
	pred, args := where(f)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE `+pred, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// PutCarrier inserts or replaces a carrier. Carriers keep their first
// insertion rank.
func (s *Store) PutCarrier(ctx context.Context, c model.Carrier) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO carriers (id, status, doc) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), doc = VALUES(doc)`,
		c.ID, string(c.Status), doc)
	if err != nil {
		return fmt.Errorf("put carrier %s: %w", c.ID, err)
	}
	return nil
}

// FindCarriers implements store.CarrierStore.
func (s *Store) FindCarriers(ctx context.Context, f store.CarrierFilter) ([]model.Carrier, error) {
	query := `SELECT doc FROM carriers`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("find carriers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []model.Carrier{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c model.Carrier
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("decode carrier: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PutLane inserts or replaces a lane.
func (s *Store) PutLane(ctx context.Context, l model.Lane) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO lanes (id, doc) VALUES (?, ?) ON DUPLICATE KEY UPDATE doc = VALUES(doc)`, l.LaneID, doc)
	if err != nil {
		return fmt.Errorf("put lane %s: %w", l.LaneID, err)
	}
	return nil
}

// FindLane implements store.LaneStore.
func (s *Store) FindLane(ctx context.Context, laneID string) (model.Lane, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM lanes WHERE id = ?`, laneID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lane{}, fmt.Errorf("lane %s: %w", laneID, store.ErrNotFound)
	}
	if err != nil {
		return model.Lane{}, fmt.Errorf("find lane %s: %w", laneID, err)
	}
	var l model.Lane
	if err := json.Unmarshal(doc, &l); err != nil {
		return model.Lane{}, fmt.Errorf("decode lane: %w", err)
	}
	return l, nil
}

// PutPricingGrid inserts or replaces a pricing grid.
func (s *Store) PutPricingGrid(ctx context.Context, g model.PricingGrid) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pricing_grids (carrier_id, lane_id, doc) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE doc = VALUES(doc)`, g.CarrierID, g.LaneID, doc)
	if err != nil {
		return fmt.Errorf("put pricing grid %s/%s: %w", g.CarrierID, g.LaneID, err)
	}
	return nil
}

// FindPricingGrid implements store.PricingStore.
func (s *Store) FindPricingGrid(ctx context.Context, carrierID, laneID string) (model.PricingGrid, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM pricing_grids WHERE carrier_id = ? AND lane_id = ?`, carrierID, laneID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PricingGrid{}, fmt.Errorf("pricing grid %s/%s: %w", carrierID, laneID, store.ErrNotFound)
	}
	if err != nil {
		return model.PricingGrid{}, fmt.Errorf("find pricing grid %s/%s: %w", carrierID, laneID, err)
	}
	var g model.PricingGrid
	if err := json.Unmarshal(doc, &g); err != nil {
		return model.PricingGrid{}, fmt.Errorf("decode pricing grid: %w", err)
	}
	return g, nil
}

// Seed writes every record of f.
func (s *Store) Seed(ctx context.Context, f store.Fixtures) error {
	for _, c := range f.Carriers {
		if err := s.PutCarrier(ctx, c); err != nil {
			return err
		}
	}
	for _, l := range f.Lanes {
		if err := s.PutLane(ctx, l); err != nil {
			return err
		}
	}
	for _, g := range f.PricingGrids {
		if err := s.PutPricingGrid(ctx, g); err != nil {
			return err
		}
	}
	for _, o := range f.Orders {
		if err := s.PutOrder(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return s.db.Close() }
