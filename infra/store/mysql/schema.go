package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []struct {
	name  string
	query string
}{
	{"orders", `
	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		status VARCHAR(40) NOT NULL,
		assigned_carrier_id VARCHAR(64) NOT NULL DEFAULT '',
		sent_deadline DATETIME(6) NULL,
		version BIGINT NOT NULL,
		doc JSON NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_orders_assigned (assigned_carrier_id, status),
		INDEX idx_orders_sent_deadline (sent_deadline)
	)`},
	{"carriers", `
	CREATE TABLE IF NOT EXISTS carriers (
		seq BIGINT NOT NULL AUTO_INCREMENT,
		id VARCHAR(64) NOT NULL,
		status VARCHAR(20) NOT NULL,
		doc JSON NOT NULL,
		PRIMARY KEY (seq),
		UNIQUE KEY uq_carriers_id (id)
	)`},
	{"lanes", `
	CREATE TABLE IF NOT EXISTS lanes (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		doc JSON NOT NULL
	)`},
	{"pricing_grids", `
	CREATE TABLE IF NOT EXISTS pricing_grids (
		carrier_id VARCHAR(64) NOT NULL,
		lane_id VARCHAR(64) NOT NULL,
		doc JSON NOT NULL,
		PRIMARY KEY (carrier_id, lane_id)
	)`},
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, tbl := range schema {
		if _, err := db.ExecContext(ctx, tbl.query); err != nil {
			return fmt.Errorf("create table %s: %w", tbl.name, err)
		}
	}
	return nil
}
