// Package sqlite provides SQLite database writing for annotation reports
package sqlite

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// Writer handles writing annotated peaks to SQLite database files. All rows
// are written in one transaction committed by Finalize.
type Writer struct {
	db         *sql.DB
	tx         *sql.Tx
	outputPath string
	runID      uuid.UUID
	peaks      int

	peakStmt        *sql.Stmt
	attributionStmt *sql.Stmt
	annotationStmt  *sql.Stmt

	// Description is stored in HeaderTable.
	Description string
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		runID:      uuid.New(),
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// RunID identifies this report in every table.
func (w *Writer) RunID() uuid.UUID {
	return w.runID
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PeakTable (
		RunId TEXT NOT NULL,
		PeakId INTEGER NOT NULL,
		MZ DOUBLE,
		MZMin DOUBLE,
		MZMax DOUBLE,
		RetentionTime DOUBLE,
		RetentionTimeMin DOUBLE,
		RetentionTimeMax DOUBLE,
		Area DOUBLE,
		Charge INTEGER,
		Polarity TEXT,
		PutativeAttribution TEXT,
		AttributionPattern TEXT,
		Alternatives TEXT,
		PRIMARY KEY (RunId, PeakId)
	);

	CREATE TABLE IF NOT EXISTS AttributionTable (
		RunId TEXT NOT NULL,
		PeakId INTEGER NOT NULL,
		Label TEXT,
		ParentId INTEGER,
		Charge INTEGER,
		IsMain BOOL
	);

	CREATE TABLE IF NOT EXISTS AnnotationTable (
		RunId TEXT NOT NULL,
		PeakId INTEGER NOT NULL,
		Accession TEXT,
		Name TEXT,
		Formula TEXT,
		InChiKey TEXT,
		KEGGId TEXT,
		HMDBId TEXT,
		LipidMapsId TEXT,
		Adduct TEXT,
		ObservedMass DOUBLE,
		IsotopeScore DOUBLE,
		Probability DOUBLE
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		RunId TEXT PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Description TEXT,
		NoofPeaks INTEGER
	);
	`

	if _, err := w.db.Exec(schema); err != nil {
		return errors.Wrap(err, "failed to create tables")
	}
	return nil
}

// prepareStatements opens the write transaction and prepares the insert
// statements on it
func (w *Writer) prepareStatements() error {
	var err error

	w.tx, err = w.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	w.peakStmt, err = w.tx.Prepare(`
		INSERT INTO PeakTable (
			RunId, PeakId, MZ, MZMin, MZMax, RetentionTime, RetentionTimeMin,
			RetentionTimeMax, Area, Charge, Polarity, PutativeAttribution,
			AttributionPattern, Alternatives
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare peak statement")
	}

	w.attributionStmt, err = w.tx.Prepare(`
		INSERT INTO AttributionTable (RunId, PeakId, Label, ParentId, Charge, IsMain)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare attribution statement")
	}

	w.annotationStmt, err = w.tx.Prepare(`
		INSERT INTO AnnotationTable (
			RunId, PeakId, Accession, Name, Formula, InChiKey, KEGGId, HMDBId,
			LipidMapsId, Adduct, ObservedMass, IsotopeScore, Probability
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare annotation statement")
	}

	return nil
}

// WritePeak writes one peak with its attributions and annotations
func (w *Writer) WritePeak(g *core.Graph, id core.PeakID) error {
	p := g.Peak(id)
	if p == nil {
		return errors.Newf("unknown peak %d", id)
	}
	run := w.runID.String()

	_, err := w.peakStmt.Exec(
		run,                       // RunId
		int(id),                   // PeakId
		p.MZ,                      // MZ
		p.MZMin,                   // MZMin
		p.MZMax,                   // MZMax
		p.RT,                      // RetentionTime
		p.RTMin,                   // RetentionTimeMin
		p.RTMax,                   // RetentionTimeMax
		p.Area,                    // Area
		p.Charge,                  // Charge
		p.Polarity.String(),       // Polarity
		g.PutativeAttribution(id), // PutativeAttribution
		g.PatternComposition(id),  // AttributionPattern
		g.AlternativeTrees(id),    // Alternatives
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert peak %d", id)
	}

	main, hasMain := g.MainAttribution(id)
	for _, a := range g.Attributions(id) {
		if _, err := w.attributionStmt.Exec(
			run, int(id), a.Label, int(a.Parent), a.Charge, hasMain && a == main,
		); err != nil {
			return errors.Wrapf(err, "failed to insert attribution of peak %d", id)
		}
	}

	for _, a := range p.Annotations {
		m := a.Metabolite
		if _, err := w.annotationStmt.Exec(
			run, int(id), m.ID, m.Name, m.Formula, m.InChIKey,
			m.KEGGID, m.HMDBID, m.LipidMapsID,
			a.Adduct, a.ObservedMass, a.IsotopeScore, a.NetworkScore,
		); err != nil {
			return errors.Wrapf(err, "failed to insert annotation of peak %d", id)
		}
	}

	w.peaks++
	return nil
}

// WriteGraph writes every peak of g in id order
func (w *Writer) WriteGraph(g *core.Graph) error {
	for _, id := range g.IDs() {
		if err := w.WritePeak(g, id); err != nil {
			return err
		}
	}
	return nil
}

// Finalize writes the header table, commits and closes the database
func (w *Writer) Finalize() error {
	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (RunId, version, CreationDate, Description, NoofPeaks)
		VALUES (?, ?, ?, ?, ?)
	`, w.runID.String(), schemaVersion, time.Now().Format(headerDateFormat), w.Description, w.peaks)
	if err != nil {
		w.tx.Rollback()
		w.db.Close()
		return errors.Wrap(err, "failed to insert header")
	}

	w.closeStatements()

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return errors.Wrap(err, "failed to commit report")
	}

	if err := w.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}

// Abort rolls back every row written by this writer and closes the database.
// No header is written, so the run leaves no trace.
func (w *Writer) Abort() error {
	w.closeStatements()
	if err := w.tx.Rollback(); err != nil {
		w.db.Close()
		return errors.Wrap(err, "failed to roll back report")
	}
	if err := w.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	return nil
}

func (w *Writer) closeStatements() {
	for _, stmt := range []*sql.Stmt{w.peakStmt, w.attributionStmt, w.annotationStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
}
