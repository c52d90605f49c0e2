package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/predefine/core/locale"
	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/domain/predefine"
	"github.com/artpar/predefine/ports"
)

// fixedColumns are stored for every document, in scan order.
var fixedColumns = []string{
	"id", "namespace", "bucket", "code", "symbol", "weight", "color", "icon",
	"geometry", "properties", "relations", "created_at", "updated_at", "deleted_at",
}

// sortColumns maps query sort fields to columns.
var sortColumns = map[string]string{
	"weight":    "weight",
	"code":      "code",
	"namespace": "namespace",
	"bucket":    "bucket",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// PredefineStore implements ports.PredefineStore using SQLite.
//
// Documents live in one table named after the descriptor's collection.
// Localized values get one column per locale ("name.en", "name.sw"), which
// lets the unique index cover every localized name. A second unique index
// over schema.IdentityFields keeps one live document per code in a bucket.
type PredefineStore struct {
	db        *DB
	desc      *schema.Descriptor
	table     string
	localized []string
	selectSQL string
}

// NewPredefineStore creates the store and brings the table, the unique index
// and the relation indexes in line with the descriptor.
func NewPredefineStore(ctx context.Context, db *DB, desc *schema.Descriptor) (*PredefineStore, error) {
	s := &PredefineStore{
		db:        db,
		desc:      desc,
		table:     quoteIdent(desc.Collection()),
		localized: desc.AllLocalizedFields(),
	}

	cols := make([]string, 0, len(fixedColumns)+len(s.localized))
	for _, c := range append(append([]string{}, fixedColumns...), s.localized...) {
		cols = append(cols, quoteIdent(c))
	}
	s.selectSQL = "SELECT " + strings.Join(cols, ", ") + " FROM " + s.table

	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PredefineStore) ensureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	columns := []string{
		`id TEXT PRIMARY KEY`,
		`namespace TEXT NOT NULL`,
		`bucket TEXT NOT NULL`,
		`code TEXT NOT NULL`,
		`symbol TEXT`,
		`weight REAL NOT NULL DEFAULT 0`,
		`color TEXT`,
		`icon TEXT`,
		`geometry TEXT`,
		`properties TEXT`,
		`relations TEXT`,
		`created_at TEXT NOT NULL`,
		`updated_at TEXT NOT NULL`,
		`deleted_at TEXT`,
	}
	for _, f := range s.localized {
		columns = append(columns, quoteIdent(f)+" TEXT")
	}
	create := "CREATE TABLE IF NOT EXISTS " + s.table + " (\n\t" + strings.Join(columns, ",\n\t") + "\n)"
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	// Locales added since the table was created become new columns.
	existing, err := tableColumns(ctx, tx, s.desc.Collection())
	if err != nil {
		return err
	}
	for _, f := range s.localized {
		if existing[f] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "ALTER TABLE "+s.table+" ADD COLUMN "+quoteIdent(f)+" TEXT"); err != nil {
			return fmt.Errorf("add column %s: %w", f, err)
		}
	}

	// The unique index follows the locale set, so it is rebuilt on start.
	uniqueName := quoteIdent(s.desc.Collection() + "_unique")
	index := s.desc.UniqueIndex()
	fields := make([]string, 0, len(index))
	for _, f := range index {
		dir := "ASC"
		if f.Order == schema.Descending {
			dir = "DESC"
		}
		fields = append(fields, quoteIdent(f.Field)+" "+dir)
	}
	identity := make([]string, 0, len(schema.IdentityFields))
	for _, f := range schema.IdentityFields {
		identity = append(identity, quoteIdent(f))
	}
	stmts := []string{
		"DROP INDEX IF EXISTS " + uniqueName,
		"CREATE UNIQUE INDEX " + uniqueName + " ON " + s.table +
			" (" + strings.Join(fields, ", ") + ") WHERE deleted_at IS NULL",
		"CREATE UNIQUE INDEX IF NOT EXISTS " + quoteIdent(s.desc.Collection()+"_identity") + " ON " + s.table +
			" (" + strings.Join(identity, ", ") + ") WHERE deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS " + quoteIdent(s.desc.Collection()+"_bucket") + " ON " + s.table +
			" (bucket, weight)",
	}
	for _, name := range s.desc.RelationNames() {
		r, _ := s.desc.Relation(name)
		if !r.Indexed {
			continue
		}
		stmts = append(stmts, "CREATE INDEX IF NOT EXISTS "+quoteIdent(s.desc.Collection()+"_rel_"+name)+
			" ON "+s.table+" (json_extract(relations, '$."+name+"'))")
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Create stores a new document.
func (s *PredefineStore) Create(ctx context.Context, doc predefine.Document) error {
	cols, args, err := s.values(doc)
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := "INSERT INTO " + s.table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return predefine.ErrDuplicate
		}
		return fmt.Errorf("insert predefine: %w", err)
	}
	return nil
}

// Get retrieves a live document by id.
func (s *PredefineStore) Get(ctx context.Context, id string) (predefine.Document, error) {
	row := s.db.QueryRowContext(ctx, s.selectSQL+" WHERE id = ? AND deleted_at IS NULL", id)
	doc, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return predefine.Document{}, predefine.ErrNotFound
	}
	if err != nil {
		return predefine.Document{}, fmt.Errorf("get predefine: %w", err)
	}
	return doc, nil
}

// GetMany retrieves live documents by id.
func (s *PredefineStore) GetMany(ctx context.Context, ids []string) (map[string]predefine.Document, error) {
	out := make(map[string]predefine.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	rows, err := s.db.QueryContext(ctx, s.selectSQL+" WHERE deleted_at IS NULL AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("get predefines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan predefine: %w", err)
		}
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

// List returns one page of live documents matching q.
// q must already be normalized.
func (s *PredefineStore) List(ctx context.Context, q predefine.Query) (predefine.Page, error) {
	where, args := s.where(q)

	var total int
	var lastModified sql.NullString
	countSQL := "SELECT COUNT(*), MAX(updated_at) FROM " + s.table + where
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total, &lastModified); err != nil {
		return predefine.Page{}, fmt.Errorf("count predefines: %w", err)
	}

	field, desc := q.SortField()
	column, ok := sortColumns[field]
	if !ok {
		return predefine.Page{}, predefine.NewValidationError("sort", "unsupported sort field "+field)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	listSQL := s.selectSQL + where + " ORDER BY " + column + " " + dir + ", code ASC, id ASC LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, listSQL, append(args, q.Limit, q.Skip)...)
	if err != nil {
		return predefine.Page{}, fmt.Errorf("list predefines: %w", err)
	}
	defer rows.Close()

	var docs []predefine.Document
	for rows.Next() {
		doc, err := s.scan(rows)
		if err != nil {
			return predefine.Page{}, fmt.Errorf("scan predefine: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return predefine.Page{}, fmt.Errorf("list predefines: %w", err)
	}

	var modified *time.Time
	if lastModified.Valid {
		t, err := parseTime(lastModified.String)
		if err != nil {
			return predefine.Page{}, fmt.Errorf("parse updated_at: %w", err)
		}
		modified = &t
	}
	return predefine.NewPage(q, docs, total, modified), nil
}

func (s *PredefineStore) where(q predefine.Query) (string, []any) {
	conds := []string{"deleted_at IS NULL"}
	var args []any

	if q.Bucket != "" {
		conds = append(conds, "bucket = ?")
		args = append(args, q.Bucket)
	}
	if q.Namespace != "" {
		conds = append(conds, "namespace = ?")
		args = append(args, q.Namespace)
	}
	if q.Code != "" {
		conds = append(conds, "code = ?")
		args = append(args, q.Code)
	}
	if q.Q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Q)) + "%"
		name := quoteIdent("name." + s.desc.DefaultLocale())
		conds = append(conds, "(LOWER(code) LIKE ? ESCAPE '\\' OR LOWER("+name+") LIKE ? ESCAPE '\\')")
		args = append(args, pattern, pattern)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Update replaces a live document.
func (s *PredefineStore) Update(ctx context.Context, doc predefine.Document) error {
	cols, args, err := s.values(doc)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(cols))
	for _, c := range cols[1:] {
		sets = append(sets, c+" = ?")
	}
	query := "UPDATE " + s.table + " SET " + strings.Join(sets, ", ") + " WHERE id = ? AND deleted_at IS NULL"
	args = append(args[1:], doc.ID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return predefine.ErrDuplicate
		}
		return fmt.Errorf("update predefine: %w", err)
	}
	return expectRow(result)
}

// SoftDelete marks a live document as deleted.
func (s *PredefineStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table+" SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		formatTime(at), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete predefine: %w", err)
	}
	return expectRow(result)
}

// Delete removes a document permanently.
func (s *PredefineStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete predefine: %w", err)
	}
	return expectRow(result)
}

// values returns quoted column names and their values for doc, id first.
func (s *PredefineStore) values(doc predefine.Document) ([]string, []any, error) {
	geometry, err := encodeJSON(doc.Geometry)
	if err != nil {
		return nil, nil, fmt.Errorf("encode geometry: %w", err)
	}
	properties, err := encodeJSON(doc.Properties)
	if err != nil {
		return nil, nil, fmt.Errorf("encode properties: %w", err)
	}
	relations, err := encodeRelations(doc.Relations)
	if err != nil {
		return nil, nil, fmt.Errorf("encode relations: %w", err)
	}

	var deleted any
	if doc.DeletedAt != nil {
		deleted = formatTime(*doc.DeletedAt)
	}

	args := []any{
		doc.ID, doc.Namespace, doc.Bucket, doc.Code,
		nullString(doc.Symbol), doc.Weight, nullString(doc.Color), nullString(doc.Icon),
		geometry, properties, relations,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt), deleted,
	}
	cols := make([]string, 0, len(args)+len(s.localized))
	for _, c := range fixedColumns {
		cols = append(cols, quoteIdent(c))
	}
	for _, f := range s.localized {
		base, loc, _ := strings.Cut(f, ".")
		cols = append(cols, quoteIdent(f))
		args = append(args, localizedValue(doc, base, loc))
	}
	return cols, args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *PredefineStore) scan(row scanner) (predefine.Document, error) {
	var (
		doc                                      predefine.Document
		symbol, color, icon                      sql.NullString
		geometry, properties, relations, deleted sql.NullString
		created, updated                         string
	)
	localized := make([]sql.NullString, len(s.localized))

	dest := []any{
		&doc.ID, &doc.Namespace, &doc.Bucket, &doc.Code,
		&symbol, &doc.Weight, &color, &icon,
		&geometry, &properties, &relations,
		&created, &updated, &deleted,
	}
	for i := range localized {
		dest = append(dest, &localized[i])
	}
	if err := row.Scan(dest...); err != nil {
		return predefine.Document{}, err
	}

	doc.Symbol = symbol.String
	doc.Color = color.String
	doc.Icon = icon.String

	if err := decodeJSON(geometry, &doc.Geometry); err != nil {
		return predefine.Document{}, fmt.Errorf("decode geometry: %w", err)
	}
	if err := decodeJSON(properties, &doc.Properties); err != nil {
		return predefine.Document{}, fmt.Errorf("decode properties: %w", err)
	}
	if relations.Valid {
		var ids map[string]string
		if err := json.Unmarshal([]byte(relations.String), &ids); err != nil {
			return predefine.Document{}, fmt.Errorf("decode relations: %w", err)
		}
		if len(ids) > 0 {
			doc.Relations = make(map[string]predefine.Ref, len(ids))
			for name, id := range ids {
				doc.Relations[name] = predefine.Ref{ID: id}
			}
		}
	}

	var err error
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return predefine.Document{}, fmt.Errorf("parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = parseTime(updated); err != nil {
		return predefine.Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if deleted.Valid {
		t, err := parseTime(deleted.String)
		if err != nil {
			return predefine.Document{}, fmt.Errorf("parse deleted_at: %w", err)
		}
		doc.DeletedAt = &t
	}

	for i, f := range s.localized {
		if !localized[i].Valid {
			continue
		}
		base, loc, _ := strings.Cut(f, ".")
		setLocalized(&doc, base, loc, localized[i].String)
	}
	return doc, nil
}

func localizedValue(doc predefine.Document, base, loc string) any {
	var v locale.Value
	switch base {
	case "name":
		v = doc.Name
	case "abbreviation":
		v = doc.Abbreviation
	case "description":
		v = doc.Description
	}
	if s, ok := v[loc]; ok {
		return s
	}
	return nil
}

func setLocalized(doc *predefine.Document, base, loc, value string) {
	var target *locale.Value
	switch base {
	case "name":
		target = &doc.Name
	case "abbreviation":
		target = &doc.Abbreviation
	case "description":
		target = &doc.Description
	default:
		return
	}
	if *target == nil {
		*target = locale.Value{}
	}
	(*target)[loc] = value
}

func encodeJSON(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func encodeRelations(rels map[string]predefine.Ref) (any, error) {
	if len(rels) == 0 {
		return nil, nil
	}
	ids := make(map[string]string, len(rels))
	for name, ref := range rels {
		ids[name] = ref.ID
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeJSON(s sql.NullString, v *map[string]any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return predefine.ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.PredefineStore = (*PredefineStore)(nil)
