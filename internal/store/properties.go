package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"realty-engine/internal/domain"
)

// Save inserts a validated property once. A second save of the same id
// reports duplicate and leaves the first record untouched.
func (d *DB) Save(ctx context.Context, p domain.Property) (domain.SaveOutcome, error) {
	switch {
	case p.ID == "":
		return domain.SaveOutcome{Status: domain.SaveRejected, Reason: "missing id"}, nil
	case p.Address.Full == "":
		return domain.SaveOutcome{Status: domain.SaveRejected, Reason: "missing address"}, nil
	case !p.Validated:
		return domain.SaveOutcome{Status: domain.SaveRejected, Reason: "not validated"}, nil
	}

	cols, err := encode(p)
	if err != nil {
		return domain.SaveOutcome{}, fmt.Errorf("encode %s: %w", p.ID, err)
	}

	res, err := d.Pool.ExecContext(ctx, d.rebind(`
INSERT INTO properties (id, source, listing_url, location_key, location_name, property_type, price, city,
  address, financial, physical, metadata, issues, first_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING;`),
		p.ID, p.Source, p.ListingURL, p.Location.Key(), p.Location.Value, string(p.PropertyType), p.Price, p.Address.City,
		cols.address, cols.financial, cols.physical, cols.metadata, cols.issues,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return domain.SaveOutcome{}, fmt.Errorf("insert property %s: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.SaveOutcome{}, err
	}
	if n == 0 {
		return domain.SaveOutcome{Status: domain.SaveDuplicate}, nil
	}
	return domain.SaveOutcome{Status: domain.SaveAccepted}, nil
}

type encoded struct {
	address, financial, physical, metadata, issues string
}

func encode(p domain.Property) (encoded, error) {
	var out encoded
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&out.address, p.Address},
		{&out.financial, p.Financial},
		{&out.physical, p.Physical},
		{&out.metadata, p.Metadata},
		{&out.issues, p.Issues},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return out, err
		}
		*f.dst = string(b)
	}
	if out.issues == "null" {
		out.issues = "[]"
	}
	return out, nil
}

// StoredProperty is a saved record as listed back from the store.
type StoredProperty struct {
	domain.Property
	FirstSeen time.Time `json:"first_seen"`
}

// ListProperties returns the newest records first.
func (d *DB) ListProperties(ctx context.Context, limit int) ([]StoredProperty, error) {
	if limit <= 0 || limit > 2000 {
		limit = 200
	}

	rows, err := d.Pool.QueryContext(ctx, d.rebind(`
SELECT id, source, listing_url, location_key, location_name, property_type, price,
  address, financial, physical, metadata, issues, first_seen
FROM properties
ORDER BY first_seen DESC, id ASC
LIMIT ?;`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredProperty
	for rows.Next() {
		var sp StoredProperty
		var locKey, ptype, firstSeen string
		var c encoded
		if err := rows.Scan(
			&sp.ID,
			&sp.Source,
			&sp.ListingURL,
			&locKey,
			&sp.Location.Value,
			&ptype,
			&sp.Price,
			&c.address,
			&c.financial,
			&c.physical,
			&c.metadata,
			&c.issues,
			&firstSeen,
		); err != nil {
			return nil, err
		}
		if kind, id, ok := strings.Cut(locKey, ":"); ok {
			sp.Location.Kind, sp.Location.TypeID = domain.LocationKind(kind), id
		}
		sp.PropertyType = domain.PropertyType(ptype)
		sp.Validated = true
		_ = json.Unmarshal([]byte(c.address), &sp.Address)
		_ = json.Unmarshal([]byte(c.financial), &sp.Financial)
		_ = json.Unmarshal([]byte(c.physical), &sp.Physical)
		_ = json.Unmarshal([]byte(c.metadata), &sp.Metadata)
		_ = json.Unmarshal([]byte(c.issues), &sp.Issues)
		sp.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) CountProperties(ctx context.Context) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties;`).Scan(&n)
	return n, err
}

// PruneOlderThan deletes records first seen before now-age.
func (d *DB) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format(time.RFC3339)
	res, err := d.Pool.ExecContext(ctx, d.rebind(`DELETE FROM properties WHERE first_seen < ?;`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune properties: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
