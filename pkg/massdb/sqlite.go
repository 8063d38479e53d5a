package massdb

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// SQLiteStore searches a metabolite table in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	// RequireKEGG skips metabolites without a KEGG id, which the reaction
	// network cannot place.
	RequireKEGG bool
}

const schema = `
CREATE TABLE IF NOT EXISTS metabolite (
	accession TEXT PRIMARY KEY,
	name TEXT,
	formula TEXT,
	inchikey TEXT,
	mono_mass DOUBLE NOT NULL,
	kegg_id TEXT,
	hmdb_id TEXT,
	lipidmaps_id TEXT
);
CREATE INDEX IF NOT EXISTS metabolite_mono_mass ON metabolite (mono_mass);
`

// OpenSQLite opens (or creates) the database at path and makes sure the
// metabolite table exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open metabolite database %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create metabolite table")
	}
	return &SQLiteStore{db: db, RequireKEGG: true}, nil
}

// Insert adds or replaces metabolites in a single transaction.
func (s *SQLiteStore) Insert(ctx context.Context, metabolites []core.Metabolite) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO metabolite (
			accession, name, formula, inchikey, mono_mass, kegg_id, hmdb_id, lipidmaps_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare metabolite statement")
	}
	defer stmt.Close()

	for _, m := range metabolites {
		if _, err = stmt.ExecContext(ctx,
			m.ID, m.Name, m.Formula, m.InChIKey, m.MonoMass,
			nullable(m.KEGGID), nullable(m.HMDBID), nullable(m.LipidMapsID),
		); err != nil {
			return errors.Wrapf(err, "failed to insert metabolite %s", m.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit metabolites")
}

// Search implements Matcher.
func (s *SQLiteStore) Search(ctx context.Context, mass, tolPPM float64) ([]core.Metabolite, error) {
	tol := core.ToleranceDa(mass, tolPPM)
	rows, err := s.db.QueryContext(ctx, `
		SELECT accession, name, formula, inchikey, mono_mass, kegg_id, hmdb_id, lipidmaps_id
		FROM metabolite WHERE mono_mass >= ? AND mono_mass <= ?
	`, mass-tol, mass+tol)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query metabolites")
	}
	defer rows.Close()

	var out []core.Metabolite
	for rows.Next() {
		var (
			m                     core.Metabolite
			name, formula, inchi  sql.NullString
			kegg, hmdb, lipidmaps sql.NullString
		)
		if err := rows.Scan(&m.ID, &name, &formula, &inchi, &m.MonoMass, &kegg, &hmdb, &lipidmaps); err != nil {
			return nil, errors.Wrap(err, "failed to scan metabolite")
		}
		if s.RequireKEGG && kegg.String == "" {
			continue
		}
		m.Name, m.Formula, m.InChIKey = name.String, formula.String, inchi.String
		m.KEGGID, m.HMDBID, m.LipidMapsID = kegg.String, hmdb.String, lipidmaps.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read metabolites")
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := math.Abs(out[i].MonoMass-mass), math.Abs(out[j].MonoMass-mass)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close metabolite database")
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
