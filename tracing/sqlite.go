package tracing

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/controllers/logging"
)

// SQLiteTraceWriter stores records into a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB
	statement *sql.Stmt

	dbName           string
	recordsToWriteDB []Record
	batchSize        int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. The ".sqlite3"
// extension is appended to path. An empty path picks a unique name in the
// working directory.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	return &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 100000,
	}
}

// Path returns the database file name, once Init has run.
func (t *SQLiteTraceWriter) Path() string {
	return t.dbName + ".sqlite3"
}

// Init creates the database and the lifecycle table.
func (t *SQLiteTraceWriter) Init() {
	t.createDatabase()
	t.createTable()
	t.prepareStatement()

	atexit.Register(func() {
		if err := t.Close(); err != nil {
			panic(err)
		}
	})
}

// Write buffers a record.
func (t *SQLiteTraceWriter) Write(r Record) {
	t.recordsToWriteDB = append(t.recordsToWriteDB, r)
	if len(t.recordsToWriteDB) >= t.batchSize {
		t.Flush()
	}
}

// Flush writes all the buffered records to the database in one transaction.
func (t *SQLiteTraceWriter) Flush() {
	if len(t.recordsToWriteDB) == 0 || t.DB == nil {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, r := range t.recordsToWriteDB {
		_, err := t.statement.Exec(
			r.Frame,
			r.Entity,
			r.Component,
			r.Event,
			r.Detail,
		)
		if err != nil {
			panic(err)
		}
	}

	t.recordsToWriteDB = nil
}

// Close flushes the buffer and closes the database. Calling it twice is
// harmless.
func (t *SQLiteTraceWriter) Close() error {
	if t.DB == nil {
		return nil
	}

	t.Flush()

	if err := t.statement.Close(); err != nil {
		return err
	}

	err := t.DB.Close()
	t.DB = nil

	return err
}

func (t *SQLiteTraceWriter) createDatabase() {
	if t.dbName == "" {
		t.dbName = "bindsim_trace_" + xid.New().String()
	}

	filename := t.Path()
	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	logging.Log.WithField("file", filename).Info("lifecycle trace is collected in database")

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.DB = db
}

func (t *SQLiteTraceWriter) createTable() {
	t.mustExecute(`
		create table lifecycle
		(
			frame     integer      not null,
			entity    varchar(200) default '',
			component varchar(100) default '',
			event     varchar(100) not null,
			detail    varchar(200) default ''
		);
	`)

	t.mustExecute(`
		create index lifecycle_frame_index
			on lifecycle (frame);
	`)

	t.mustExecute(`
		create index lifecycle_entity_index
			on lifecycle (entity);
	`)

	t.mustExecute(`
		create index lifecycle_event_index
			on lifecycle (event);
	`)
}

func (t *SQLiteTraceWriter) prepareStatement() {
	stmt, err := t.Prepare(`INSERT INTO lifecycle VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		panic(err)
	}

	t.statement = stmt
}

func (t *SQLiteTraceWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		panic(fmt.Errorf("failed to execute %s: %w", query, err))
	}

	return res
}

// RecordQuery selects records from a trace database.
type RecordQuery struct {
	Entity    string
	Component string
	Event     string

	EnableFrameRange bool
	FromFrame        uint64
	ToFrame          uint64
}

// SQLiteTraceReader reads records from a SQLite trace database.
type SQLiteTraceReader struct {
	*sql.DB

	filename string
}

// NewSQLiteTraceReader creates a new SQLiteTraceReader.
func NewSQLiteTraceReader(filename string) *SQLiteTraceReader {
	return &SQLiteTraceReader{filename: filename}
}

// Init establishes a connection to the database.
func (r *SQLiteTraceReader) Init() {
	db, err := sql.Open("sqlite3", r.filename)
	if err != nil {
		panic(err)
	}

	r.DB = db
}

// ListEntities returns the entity paths that appear in the trace.
func (r *SQLiteTraceReader) ListEntities() []string {
	rows, err := r.Query(
		"SELECT DISTINCT entity FROM lifecycle WHERE entity != '' ORDER BY entity")
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			panic(err)
		}
	}()

	var entities []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			panic(err)
		}
		entities = append(entities, e)
	}

	return entities
}

// ListRecords returns the records matching query, in insertion order.
func (r *SQLiteTraceReader) ListRecords(query RecordQuery) []Record {
	sqlStr, args := r.prepareRecordQuery(query)

	rows, err := r.Query(sqlStr, args...)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			panic(err)
		}
	}()

	records := []Record{}
	for rows.Next() {
		rec := Record{}
		err := rows.Scan(
			&rec.Frame,
			&rec.Entity,
			&rec.Component,
			&rec.Event,
			&rec.Detail,
		)
		if err != nil {
			panic(err)
		}

		records = append(records, rec)
	}

	return records
}

func (*SQLiteTraceReader) prepareRecordQuery(query RecordQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if query.Entity != "" {
		conds = append(conds, "entity = ?")
		args = append(args, query.Entity)
	}

	if query.Component != "" {
		conds = append(conds, "component = ?")
		args = append(args, query.Component)
	}

	if query.Event != "" {
		conds = append(conds, "event = ?")
		args = append(args, query.Event)
	}

	if query.EnableFrameRange {
		conds = append(conds, "frame BETWEEN ? AND ?")
		args = append(args, query.FromFrame, query.ToFrame)
	}

	sqlStr := `
		SELECT frame, entity, component, event, detail
		FROM lifecycle
	`

	if len(conds) > 0 {
		sqlStr += " WHERE " + strings.Join(conds, " AND ")
	}

	sqlStr += " ORDER BY rowid"

	return sqlStr, args
}
