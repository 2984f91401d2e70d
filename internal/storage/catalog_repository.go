package storage

import (
	"context"
	"fmt"

	"github.com/buildkeeb/engine/internal/catalog"
)

// CatalogRepository implements catalog.Reader over SQL tables and provides the
// upserts used when importing seed data.
type CatalogRepository struct {
	db DB
}

var _ catalog.Reader = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListSwitches returns every switch.
func (r *CatalogRepository) ListSwitches(ctx context.Context) ([]catalog.Switch, error) {
	query := `
		SELECT id, name, brand, price, switch_type, sound, feel, actuation_force,
			in_stock, rating, image_url, product_url
		FROM switches ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list switches: %w", err)
	}
	defer rows.Close()

	var out []catalog.Switch
	for rows.Next() {
		var s catalog.Switch
		var typ string
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Brand, &s.Price, &typ, &s.Sound, &s.Feel, &s.ActuationForce,
			&s.InStock, &s.Rating, &s.ImageURL, &s.ProductURL,
		); err != nil {
			return nil, fmt.Errorf("scan switch: %w", err)
		}
		s.Type = catalog.SwitchType(typ)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListBoards returns every board.
func (r *CatalogRepository) ListBoards(ctx context.Context) ([]catalog.Board, error) {
	query := `
		SELECT id, name, brand, price, size, wireless, hot_swap, mount, case_material,
			sound, in_stock, rating, image_url, product_url
		FROM boards ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var out []catalog.Board
	for rows.Next() {
		var b catalog.Board
		if err := rows.Scan(
			&b.ID, &b.Name, &b.Brand, &b.Price, &b.Size, &b.Wireless, &b.HotSwap, &b.Mount,
			&b.CaseMaterial, &b.Sound, &b.InStock, &b.Rating, &b.ImageURL, &b.ProductURL,
		); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListKeycapSets returns every keycap set.
func (r *CatalogRepository) ListKeycapSets(ctx context.Context) ([]catalog.KeycapSet, error) {
	query := `
		SELECT id, name, brand, price, material, profile, sound, in_stock, rating,
			image_url, product_url
		FROM keycap_sets ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list keycap sets: %w", err)
	}
	defer rows.Close()

	var out []catalog.KeycapSet
	for rows.Next() {
		var k catalog.KeycapSet
		if err := rows.Scan(
			&k.ID, &k.Name, &k.Brand, &k.Price, &k.Material, &k.Profile, &k.Sound,
			&k.InStock, &k.Rating, &k.ImageURL, &k.ProductURL,
		); err != nil {
			return nil, fmt.Errorf("scan keycap set: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ListAccessories returns every accessory.
func (r *CatalogRepository) ListAccessories(ctx context.Context) ([]catalog.Accessory, error) {
	query := `
		SELECT id, name, brand, price, category, effect, difficulty, in_stock, rating
		FROM accessories ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accessories: %w", err)
	}
	defer rows.Close()

	var out []catalog.Accessory
	for rows.Next() {
		var a catalog.Accessory
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Brand, &a.Price, &a.Category, &a.Effect, &a.Difficulty,
			&a.InStock, &a.Rating,
		); err != nil {
			return nil, fmt.Errorf("scan accessory: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActiveSponsorships returns the sponsorships currently flagged active.
func (r *CatalogRepository) ActiveSponsorships(ctx context.Context) ([]catalog.Sponsorship, error) {
	query := `
		SELECT product_name, vendor_name
		FROM sponsorships WHERE active = $1 ORDER BY product_name
	`
	rows, err := r.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("list sponsorships: %w", err)
	}
	defer rows.Close()

	var out []catalog.Sponsorship
	for rows.Next() {
		var s catalog.Sponsorship
		if err := rows.Scan(&s.ProductName, &s.VendorName); err != nil {
			return nil, fmt.Errorf("scan sponsorship: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSwitch inserts or replaces a switch.
func (r *CatalogRepository) UpsertSwitch(ctx context.Context, s catalog.Switch) error {
	query := `
		INSERT INTO switches (id, name, brand, price, switch_type, sound, feel, actuation_force,
			in_stock, rating, image_url, product_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, price = excluded.price,
			switch_type = excluded.switch_type, sound = excluded.sound, feel = excluded.feel,
			actuation_force = excluded.actuation_force, in_stock = excluded.in_stock,
			rating = excluded.rating, image_url = excluded.image_url, product_url = excluded.product_url
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Name, s.Brand, s.Price, string(s.Type), s.Sound, s.Feel, s.ActuationForce,
		s.InStock, s.Rating, s.ImageURL, s.ProductURL,
	)
	if err != nil {
		return fmt.Errorf("upsert switch %s: %w", s.ID, err)
	}
	return nil
}

// UpsertBoard inserts or replaces a board.
func (r *CatalogRepository) UpsertBoard(ctx context.Context, b catalog.Board) error {
	query := `
		INSERT INTO boards (id, name, brand, price, size, wireless, hot_swap, mount, case_material,
			sound, in_stock, rating, image_url, product_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, price = excluded.price,
			size = excluded.size, wireless = excluded.wireless, hot_swap = excluded.hot_swap,
			mount = excluded.mount, case_material = excluded.case_material, sound = excluded.sound,
			in_stock = excluded.in_stock, rating = excluded.rating,
			image_url = excluded.image_url, product_url = excluded.product_url
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Brand, b.Price, b.Size, b.Wireless, b.HotSwap, b.Mount, b.CaseMaterial,
		b.Sound, b.InStock, b.Rating, b.ImageURL, b.ProductURL,
	)
	if err != nil {
		return fmt.Errorf("upsert board %s: %w", b.ID, err)
	}
	return nil
}

// UpsertKeycapSet inserts or replaces a keycap set.
func (r *CatalogRepository) UpsertKeycapSet(ctx context.Context, k catalog.KeycapSet) error {
	query := `
		INSERT INTO keycap_sets (id, name, brand, price, material, profile, sound, in_stock, rating,
			image_url, product_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, price = excluded.price,
			material = excluded.material, profile = excluded.profile, sound = excluded.sound,
			in_stock = excluded.in_stock, rating = excluded.rating,
			image_url = excluded.image_url, product_url = excluded.product_url
	`
	_, err := r.db.ExecContext(ctx, query,
		k.ID, k.Name, k.Brand, k.Price, k.Material, k.Profile, k.Sound, k.InStock, k.Rating,
		k.ImageURL, k.ProductURL,
	)
	if err != nil {
		return fmt.Errorf("upsert keycap set %s: %w", k.ID, err)
	}
	return nil
}

// UpsertAccessory inserts or replaces an accessory.
func (r *CatalogRepository) UpsertAccessory(ctx context.Context, a catalog.Accessory) error {
	query := `
		INSERT INTO accessories (id, name, brand, price, category, effect, difficulty, in_stock, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, price = excluded.price,
			category = excluded.category, effect = excluded.effect, difficulty = excluded.difficulty,
			in_stock = excluded.in_stock, rating = excluded.rating
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Brand, a.Price, a.Category, a.Effect, a.Difficulty, a.InStock, a.Rating,
	)
	if err != nil {
		return fmt.Errorf("upsert accessory %s: %w", a.ID, err)
	}
	return nil
}

// UpsertSponsorship inserts or updates a sponsorship's active flag.
func (r *CatalogRepository) UpsertSponsorship(ctx context.Context, s catalog.Sponsorship, active bool) error {
	query := `
		INSERT INTO sponsorships (product_name, vendor_name, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_name, vendor_name) DO UPDATE SET active = excluded.active
	`
	if _, err := r.db.ExecContext(ctx, query, s.ProductName, s.VendorName, active); err != nil {
		return fmt.Errorf("upsert sponsorship %s: %w", s.ProductName, err)
	}
	return nil
}

// ImportProgress is called after each imported record.
type ImportProgress func(done, total int)

// ImportSnapshot upserts every entry of snap. Sponsorships in snap are marked active.
func (r *CatalogRepository) ImportSnapshot(ctx context.Context, snap catalog.Snapshot, progress ImportProgress) error {
	total := len(snap.Switches) + len(snap.Boards) + len(snap.KeycapSets) +
		len(snap.Accessories) + len(snap.Sponsorships)
	done := 0
	step := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	for _, s := range snap.Switches {
		if err := r.UpsertSwitch(ctx, s); err != nil {
			return err
		}
		step()
	}
	for _, b := range snap.Boards {
		if err := r.UpsertBoard(ctx, b); err != nil {
			return err
		}
		step()
	}
	for _, k := range snap.KeycapSets {
		if err := r.UpsertKeycapSet(ctx, k); err != nil {
			return err
		}
		step()
	}
	for _, a := range snap.Accessories {
		if err := r.UpsertAccessory(ctx, a); err != nil {
			return err
		}
		step()
	}
	for _, s := range snap.Sponsorships {
		if err := r.UpsertSponsorship(ctx, s, true); err != nil {
			return err
		}
		step()
	}
	return nil
}

// Counts returns the row count of each catalog partition.
func (r *CatalogRepository) Counts(ctx context.Context) (map[catalog.Partition]int, error) {
	counts := make(map[catalog.Partition]int, len(catalog.Partitions))
	for _, p := range catalog.Partitions {
		var n int
		// Partition names come from a closed set, never from input.
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+string(p)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", p, err)
		}
		counts[p] = n
	}
	return counts, nil
}
