package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/MimeLyc/video-uploader/internal/config"
	"github.com/MimeLyc/video-uploader/internal/errs"
	"github.com/MimeLyc/video-uploader/internal/subtitle"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql migrations/mysql/*.sql
var migrationFiles embed.FS

// Store persists catalog records and their subtitle cues in a relational database.
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect string
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseDSN())
		if err != nil {
			return nil, errs.Wrap(err, errs.KindPersistence, "connect postgres")
		}
		store, err := newStore(ctx, config.DriverPostgres, stdlib.OpenDBFromPool(pool))
		if err != nil {
			pool.Close()
			return nil, err
		}
		store.pool = pool
		return store, nil
	case config.DriverMySQL:
		mc, err := mysql.ParseDSN(cfg.DatabaseDSN())
		if err != nil {
			return nil, errs.Wrap(err, errs.KindConfig, "invalid mysql dsn")
		}
		connector, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindPersistence, "connect mysql")
		}
		return newStore(ctx, config.DriverMySQL, sql.OpenDB(connector))
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			return nil, errs.Wrap(err, errs.KindPersistence, "create db directory")
		}
		db, err := sql.Open("sqlite", cfg.DatabaseDSN())
		if err != nil {
			return nil, errs.Wrap(err, errs.KindPersistence, "open sqlite")
		}
		return newStore(ctx, config.DriverSQLite, db)
	default:
		return nil, errs.Newf(errs.KindConfig, "unsupported database driver %q", cfg.DB.Driver)
	}
}

func newStore(ctx context.Context, dialect string, db *sql.DB) (*Store, error) {
	store := &Store{db: db, dialect: dialect}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if dialect == config.DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			_ = db.Close()
			return nil, errs.Wrap(err, errs.KindPersistence, "set WAL mode")
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func (s *Store) migrate(ctx context.Context) error {
	gooseDialect := goose.DialectSQLite3
	switch s.dialect {
	case config.DriverPostgres:
		gooseDialect = goose.DialectPostgres
	case config.DriverMySQL:
		gooseDialect = goose.DialectMySQL
	}

	fsys, err := fs.Sub(migrationFiles, "migrations/"+s.dialect)
	if err != nil {
		return errs.Wrap(err, errs.KindPersistence, "read migrations")
	}
	provider, err := goose.NewProvider(gooseDialect, s.db, fsys)
	if err != nil {
		return errs.Wrap(err, errs.KindPersistence, "init migrations")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return errs.Wrap(err, errs.KindPersistence, "apply migrations")
	}
	for _, r := range results {
		log.Info("Applied migration %s in %v", r.Source.Path, r.Duration)
	}
	return nil
}

// WriteTransaction inserts the record and all of its cues in one transaction.
// Either every row is committed or none is.
func (s *Store) WriteTransaction(ctx context.Context, record Record, cues []subtitle.Cue) (err error) {
	failed := func(cause error, msg string) *errs.Error {
		return errs.Wrap(cause, errs.KindPersistence, msg).With("item_id", record.ItemID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return failed(err, "begin catalog transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO table_hot_feeds (
			item_id, create_time, item_type, sub_category, video_url, sub_url, source_lang, target_lang
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		record.ItemID,
		record.CreatedAt,
		record.CategoryID,
		record.SubCategoryID,
		record.VideoURL,
		record.SubtitleURL,
		languageOrUnd(record.SourceLanguage),
		languageOrUnd(record.TargetLanguage),
	); err != nil {
		return failed(err, "insert catalog record")
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO table_subtitle (
			subtitle_id, content_eng, content_ch, begin_time, end_time, item_id
		) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return failed(err, "prepare cue insert")
	}
	defer stmt.Close()

	for i, cue := range cues {
		if _, err = stmt.ExecContext(ctx,
			i+1,
			cue.Source,
			cue.Target,
			cue.BeginTimestamp(),
			cue.EndTimestamp(),
			record.ItemID,
		); err != nil {
			return failed(err, "insert cue").With("cue", i+1)
		}
	}

	if err = tx.Commit(); err != nil {
		return failed(err, "commit catalog transaction")
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, itemID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM table_hot_feeds WHERE item_id = ?`), itemID).Scan(&n)
	if err != nil {
		return false, errs.Wrap(err, errs.KindPersistence, "query catalog record").With("item_id", itemID)
	}
	return n > 0, nil
}

func (s *Store) Record(ctx context.Context, itemID int64) (Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT item_id, create_time, item_type, sub_category, video_url, sub_url, source_lang, target_lang
		 FROM table_hot_feeds
		 WHERE item_id = ?`), itemID).Scan(
		&r.ItemID,
		&r.CreatedAt,
		&r.CategoryID,
		&r.SubCategoryID,
		&r.VideoURL,
		&r.SubtitleURL,
		&r.SourceLanguage,
		&r.TargetLanguage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errs.New(errs.KindNotFound, "catalog record not found").With("item_id", itemID)
	}
	if err != nil {
		return Record{}, errs.Wrap(err, errs.KindPersistence, "query catalog record").With("item_id", itemID)
	}
	return r, nil
}

func (s *Store) CueCount(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM table_subtitle WHERE item_id = ?`), itemID).Scan(&n)
	if err != nil {
		return 0, errs.Wrap(err, errs.KindPersistence, "count cues").With("item_id", itemID)
	}
	return n, nil
}

// Cues returns the stored cues of an item ordered by sequence number.
func (s *Store) Cues(ctx context.Context, itemID int64) ([]StoredCue, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT subtitle_id, content_eng, content_ch, begin_time, end_time
		 FROM table_subtitle
		 WHERE item_id = ?
		 ORDER BY subtitle_id ASC`), itemID)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindPersistence, "query cues").With("item_id", itemID)
	}
	defer rows.Close()

	ret := make([]StoredCue, 0)
	for rows.Next() {
		var c StoredCue
		if err := rows.Scan(&c.Sequence, &c.Source, &c.Target, &c.BeginTime, &c.EndTime); err != nil {
			return nil, errs.Wrap(err, errs.KindPersistence, "scan cue").With("item_id", itemID)
		}
		ret = append(ret, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindPersistence, "query cues").With("item_id", itemID)
	}
	return ret, nil
}

// DeleteCategoryCascade removes a category together with every sub-category whose
// parent it is.
func (s *Store) DeleteCategoryCascade(ctx context.Context, categoryID int) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, errs.KindPersistence, "begin category delete")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM table_subcategory WHERE parent_id = ?`), categoryID); err != nil {
		return errs.Wrap(err, errs.KindPersistence, "delete sub-categories").With("category_id", categoryID)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM table_category WHERE category_id = ?`), categoryID)
	if err != nil {
		return errs.Wrap(err, errs.KindPersistence, "delete category").With("category_id", categoryID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(err, errs.KindPersistence, "delete category").With("category_id", categoryID)
	}
	if n == 0 {
		return errs.New(errs.KindNotFound, "category not found").With("category_id", categoryID)
	}

	if err = tx.Commit(); err != nil {
		return errs.Wrap(err, errs.KindPersistence, "commit category delete").With("category_id", categoryID)
	}
	return nil
}

// rebind converts ? placeholders to $n for PostgreSQL. SQLite and MySQL take ? as is.
func (s *Store) rebind(query string) string {
	if s.dialect != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func languageOrUnd(tag string) string {
	if tag == "" {
		return "und"
	}
	return tag
}
