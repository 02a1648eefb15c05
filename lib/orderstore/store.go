// Package orderstore persists scraped order snapshots so the history can
// be inspected without hitting the storefront again. It runs on a local
// sqlite file by default, the libsql driver works as well.
package orderstore

import (
	"context"
	"database/sql"
	"time"

	"amazonorders/lib/orderstore/db"
	"amazonorders/lib/scrapers/amazon/orders"
)

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens a database on the given driver ("sqlite" or "libsql") and
// applies the schema.
func Open(driver, path string) (*sql.DB, error) {
	database, err := sql.Open(driver, path)
	if err != nil {
		return nil, err
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Push replaces the snapshot of every given order. Orders the storefront
// no longer lists stay untouched.
func (s Store) Push(ctx context.Context, scrapedAt time.Time, records []orders.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, record := range records {
		_, err = tx.ExecContext(
			ctx,
			`DELETE FROM order_items WHERE order_number = ?`,
			record.Number,
		)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO orders (number, link, total, recipient, placed, scraped)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			record.Number,
			record.Link,
			record.Total,
			record.Recipient,
			record.PlacedDate.Unix(),
			scrapedAt.Unix(),
		)
		if err != nil {
			return err
		}

		for idx, item := range record.Items {
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO order_items (order_number, idx, title, link, price, condition, seller)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				record.Number,
				idx,
				item.Title,
				item.Link,
				item.Price,
				item.Condition,
				item.Seller.Name,
			)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Pull returns every stored order, newest placed first.
func (s Store) Pull(ctx context.Context) ([]orders.Order, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT number, link, total, recipient, placed FROM orders ORDER BY placed DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []orders.Order
	for rows.Next() {
		var record orders.Order
		var placed int64
		err = rows.Scan(&record.Number, &record.Link, &record.Total, &record.Recipient, &placed)
		if err != nil {
			return nil, err
		}
		record.PlacedDate = time.Unix(placed, 0).UTC()
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Items, err = s.pullItems(ctx, result[i].Number)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s Store) pullItems(ctx context.Context, number string) ([]orders.Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT title, link, price, condition, seller FROM order_items
		 WHERE order_number = ? ORDER BY idx ASC`,
		number,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []orders.Item
	for rows.Next() {
		var item orders.Item
		err = rows.Scan(&item.Title, &item.Link, &item.Price, &item.Condition, &item.Seller.Name)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
