package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// Catalog is the SQLite-backed source record provider. It exposes the
// products and skin_conditions tables read-only to ingestion, plus seed and
// import helpers used by the sync CLI.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at the given path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) ensureSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			key_benefits   TEXT NOT NULL DEFAULT '',
			active_content TEXT NOT NULL DEFAULT '',
			how_to_use     TEXT NOT NULL DEFAULT '',
			price          REAL NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS skin_conditions (
			id          TEXT PRIMARY KEY,
			name        TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Products returns every product row as a source record.
func (c *Catalog) Products(ctx context.Context) ([]SourceRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, description, key_benefits, active_content, how_to_use, price
		FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var records []SourceRecord
	for rows.Next() {
		var (
			id, name, description    string
			benefits, actives, usage string
			price                    float64
		)
		if err := rows.Scan(&id, &name, &description, &benefits, &actives, &usage, &price); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}

		extra := map[string]string{
			"Key Benefits":           benefits,
			"Key Active Ingredients": actives,
			"How to Use":             usage,
		}
		if price > 0 {
			extra["Price"] = fmt.Sprintf("$%.2f", price)
		}

		records = append(records, SourceRecord{
			Kind:        KindProduct,
			ID:          id,
			DisplayName: name,
			Description: description,
			Extra:       extra,
		})
	}

	return records, rows.Err()
}

// Conditions returns every skin condition row as a source record.
func (c *Catalog) Conditions(ctx context.Context) ([]SourceRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, description FROM skin_conditions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying skin conditions: %w", err)
	}
	defer rows.Close()

	var records []SourceRecord
	for rows.Next() {
		var id, name, description string
		if err := rows.Scan(&id, &name, &description); err != nil {
			return nil, fmt.Errorf("scanning skin condition row: %w", err)
		}

		records = append(records, SourceRecord{
			Kind:        KindCondition,
			ID:          id,
			DisplayName: name,
			Description: description,
		})
	}

	return records, rows.Err()
}

// productJSON mirrors the product feed format consumed by ImportProducts.
type productJSON struct {
	ID            json.Number `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	KeyBenefits   string      `json:"keyBenefits"`
	ActiveContent string      `json:"activeContent"`
	HowToUse      string      `json:"howToUse"`
	Price         float64     `json:"price"`
}

// ImportProducts loads products from a JSON feed ({"products": [...]}) into
// the products table, replacing rows with matching ids.
func (c *Catalog) ImportProducts(ctx context.Context, r io.Reader) (int, error) {
	var feed struct {
		Products []productJSON `json:"products"`
	}
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return 0, fmt.Errorf("decoding product feed: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	count := 0
	for _, p := range feed.Products {
		if p.ID.String() == "" || p.Name == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, description, key_benefits, active_content, how_to_use, price)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				key_benefits = excluded.key_benefits,
				active_content = excluded.active_content,
				how_to_use = excluded.how_to_use,
				price = excluded.price`,
			p.ID.String(), p.Name, p.Description, p.KeyBenefits, p.ActiveContent, p.HowToUse, p.Price)
		if err != nil {
			return 0, fmt.Errorf("importing product %s: %w", p.ID.String(), err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}

	return count, nil
}

// SeedConditions inserts the built-in skin condition profiles, updating
// descriptions for conditions that already exist.
func (c *Catalog) SeedConditions(ctx context.Context) (int, error) {
	count := 0
	for name, description := range ConditionProfiles {
		id := conditionID(name)
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO skin_conditions (id, name, description)
			VALUES (?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET description = excluded.description`,
			id, name, strings.TrimSpace(description))
		if err != nil {
			return count, fmt.Errorf("seeding skin condition %q: %w", name, err)
		}
		count++
	}
	return count, nil
}

// conditionID derives a stable identifier from a condition name.
func conditionID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
