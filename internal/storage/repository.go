package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"conti/internal/core"
	"conti/internal/ports"
)

// SQLRepository implements ports.Store over database/sql for SQLite and PostgreSQL.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ ports.Store = (*SQLRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps busy errors out of the hot path.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: SQLiteDialect, now: time.Now}, nil
}

func NewPostgresRepository(dsn string) (*SQLRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: PostgresDialect, now: time.Now}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// stamp is the creation time written to created_at, at the microsecond
// precision PostgreSQL keeps.
func (r *SQLRepository) stamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *SQLRepository) q(query string) string {
	return r.dialect.Rebind(query)
}

type scanner interface {
	Scan(dest ...any) error
}

const expenseColumns = `id, amount_cents, currency, description, date, category_id, wallet_id,
	created_by, group_id, status, recurring_expense_id, created_at`

func (r *SQLRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = r.stamp()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.q(`INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Amount.Cents, e.Currency, e.Description, e.Date.String(),
		nullString(e.CategoryID), nullString(e.WalletID), e.CreatedBy, nullString(e.GroupID),
		string(e.Status), nullString(e.RecurringExpenseID), e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Expense{}, fmt.Errorf("expense for rule %s on %s: %w", e.RecurringExpenseID, e.Date, ports.ErrConflict)
		}
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	if err := r.insertExpenseTags(ctx, tx, []string{e.ID}, e.TagIDs); err != nil {
		return core.Expense{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved",
		"id", e.ID,
		"date", e.Date.String(),
		"amount_cents", e.Amount.Cents,
		"currency", e.Currency,
		"recurring_expense_id", e.RecurringExpenseID)

	return e, nil
}

func (r *SQLRepository) insertExpenseTags(ctx context.Context, tx *sql.Tx, expenseIDs, tagIDs []string) error {
	if len(expenseIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, r.q(`INSERT INTO expense_tags (expense_id, tag_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING`))
	if err != nil {
		return fmt.Errorf("prepare expense tags: %w", err)
	}
	defer stmt.Close()

	for _, expenseID := range expenseIDs {
		for _, tagID := range tagIDs {
			if _, err := stmt.ExecContext(ctx, expenseID, tagID); err != nil {
				return fmt.Errorf("tag expense %s with %s: %w", expenseID, tagID, err)
			}
		}
	}
	return nil
}

func (r *SQLRepository) DeletePendingExpenses(ctx context.Context, ruleID string) (int, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM expenses WHERE recurring_expense_id = ? AND status = ?`),
		ruleID, string(core.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("delete pending expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete pending expenses: %w", err)
	}
	return int(n), nil
}

func (r *SQLRepository) AttachTags(ctx context.Context, expenseIDs, tagIDs []string) error {
	if len(expenseIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertExpenseTags(ctx, tx, expenseIDs, tagIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense tags: %w", err)
	}
	return nil
}

func expenseWhere(f ports.ExpenseFilter) (string, []any) {
	var conds []string
	var args []any
	if f.OwnerID != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, f.OwnerID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.RecurringExpenseID != "" {
		conds = append(conds, "recurring_expense_id = ?")
		args = append(args, f.RecurringExpenseID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *SQLRepository) ListExpenses(ctx context.Context, f ports.ExpenseFilter) ([]core.Expense, error) {
	where, args := expenseWhere(f)

	expenses, err := r.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM expenses`+where+
		` ORDER BY date DESC, created_at DESC, id`, args)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	// Rows are fully drained before the tag query: SQLite runs on one connection.
	tags, err := r.queryExpenseTags(ctx, `SELECT expense_tags.expense_id, expense_tags.tag_id
		FROM expense_tags JOIN expenses ON expenses.id = expense_tags.expense_id`+where+
		` ORDER BY expense_tags.tag_id`, args)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].TagIDs = tags[expenses[i].ID]
	}
	return expenses, nil
}

func (r *SQLRepository) queryExpenses(ctx context.Context, query string, args []any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) queryExpenseTags(ctx context.Context, query string, args []any) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list expense tags: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var expenseID, tagID string
		if err := rows.Scan(&expenseID, &tagID); err != nil {
			return nil, fmt.Errorf("scan expense tag: %w", err)
		}
		out[expenseID] = append(out[expenseID], tagID)
	}
	return out, rows.Err()
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                                   core.Expense
		date, status                        string
		categoryID, walletID, groupID, rule sql.NullString
	)
	err := s.Scan(&e.ID, &e.Amount.Cents, &e.Currency, &e.Description, &date,
		&categoryID, &walletID, &e.CreatedBy, &groupID, &status, &rule, timestamp{&e.CreatedAt})
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, err
	}
	e.Status = core.ExpenseStatus(status)
	e.CategoryID = categoryID.String
	e.WalletID = walletID.String
	e.GroupID = groupID.String
	e.RecurringExpenseID = rule.String
	return e, nil
}

func (r *SQLRepository) SettlePendingExpenses(ctx context.Context, ruleID string, through core.Date) (int, error) {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE expenses SET status = ?
		WHERE recurring_expense_id = ? AND status = ? AND date <= ?`),
		string(core.StatusCompleted), ruleID, string(core.StatusPending), through.String())
	if err != nil {
		return 0, fmt.Errorf("settle pending expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("settle pending expenses: %w", err)
	}
	return int(n), nil
}

const ruleColumns = `id, amount_cents, currency, description, frequency, interval_count,
	start_date, end_date, last_processed, category_id, wallet_id, created_by, group_id, created_at`

func (r *SQLRepository) CreateRule(ctx context.Context, rule core.RecurrenceRule) (core.RecurrenceRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = r.stamp()
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO recurring_expenses (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rule.ID, rule.Amount.Cents, rule.Currency, rule.Description, string(rule.Frequency), rule.Interval,
		rule.StartDate.String(), nullDate(rule.EndDate), nullDate(rule.LastProcessed),
		nullString(rule.CategoryID), nullString(rule.WalletID), rule.CreatedBy, nullString(rule.GroupID),
		rule.CreatedAt)
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("insert recurring expense: %w", err)
	}

	slog.InfoContext(ctx, "Recurring expense saved",
		"id", rule.ID,
		"frequency", rule.Frequency,
		"interval", rule.Interval,
		"start_date", rule.StartDate.String())

	return rule, nil
}

func (r *SQLRepository) GetRule(ctx context.Context, id string) (core.RecurrenceRule, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+ruleColumns+` FROM recurring_expenses WHERE id = ?`), id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurrenceRule{}, fmt.Errorf("rule %s: %w", id, ports.ErrNotFound)
	}
	return rule, err
}

func (r *SQLRepository) ListRules(ctx context.Context, ownerID string) ([]core.RecurrenceRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_expenses`
	var args []any
	if ownerID != "" {
		query += ` WHERE created_by = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	var out []core.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring expenses: %w", err)
	}
	return out, nil
}

func scanRule(s scanner) (core.RecurrenceRule, error) {
	var (
		rule                                    core.RecurrenceRule
		frequency, start                        string
		end, last, categoryID, walletID, groupID sql.NullString
	)
	err := s.Scan(&rule.ID, &rule.Amount.Cents, &rule.Currency, &rule.Description, &frequency, &rule.Interval,
		&start, &end, &last, &categoryID, &walletID, &rule.CreatedBy, &groupID, timestamp{&rule.CreatedAt})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.RecurrenceRule{}, err
		}
		return core.RecurrenceRule{}, fmt.Errorf("scan recurring expense: %w", err)
	}
	rule.Frequency = core.RepetitionTypes(frequency)
	if rule.StartDate, err = core.ParseDate(start); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.EndDate, err = parseNullDate(end); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.LastProcessed, err = parseNullDate(last); err != nil {
		return core.RecurrenceRule{}, err
	}
	rule.CategoryID = categoryID.String
	rule.WalletID = walletID.String
	rule.GroupID = groupID.String
	return rule, nil
}

func (r *SQLRepository) UpdateLastProcessed(ctx context.Context, id string, d core.Date) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE recurring_expenses SET last_processed = ? WHERE id = ?`),
		nullDate(d), id)
	if err != nil {
		return fmt.Errorf("update last processed: %w", err)
	}
	return expectOne(res, "rule "+id)
}

func (r *SQLRepository) UpdateRule(ctx context.Context, rule core.RecurrenceRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE recurring_expenses SET
		amount_cents = ?, currency = ?, description = ?, end_date = ?, last_processed = ?,
		category_id = ?, wallet_id = ?
		WHERE id = ?`),
		rule.Amount.Cents, rule.Currency, rule.Description, nullDate(rule.EndDate), nullDate(rule.LastProcessed),
		nullString(rule.CategoryID), nullString(rule.WalletID), rule.ID)
	if err != nil {
		return fmt.Errorf("update recurring expense: %w", err)
	}
	return expectOne(res, "rule "+rule.ID)
}

func (r *SQLRepository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM recurring_expenses WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete recurring expense: %w", err)
	}
	return expectOne(res, "rule "+id)
}

func (r *SQLRepository) CreateCategories(ctx context.Context, cats []core.Category) ([]core.Category, error) {
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	out := make([]core.Category, len(cats))
	for i, c := range cats {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, r.q(`INSERT INTO categories (id, name, type, icon, color, created_by, group_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			c.ID, c.Name, string(c.Type), c.Icon, c.Color, c.CreatedBy, nullString(c.GroupID))
		if err != nil {
			return nil, fmt.Errorf("insert category %q: %w", c.Name, err)
		}
		out[i] = c
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit categories: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT id, name, type, icon, color, created_by, group_id
		FROM categories WHERE created_by = ? ORDER BY name, type`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c       core.Category
			typ     string
			groupID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Icon, &c.Color, &c.CreatedBy, &groupID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(typ)
		c.GroupID = groupID.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE categories SET name = ?, type = ?, icon = ?, color = ?
		WHERE id = ? AND created_by = ?`),
		c.Name, string(c.Type), c.Icon, c.Color, c.ID, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectOne(res, "category "+c.ID)
}

func (r *SQLRepository) DeleteCategory(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM categories WHERE id = ? AND created_by = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOne(res, "category "+id)
}

func (r *SQLRepository) CreateTags(ctx context.Context, tags []core.Tag) ([]core.Tag, error) {
	for _, t := range tags {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	out := make([]core.Tag, len(tags))
	for i, t := range tags {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, r.q(`INSERT INTO tags (id, name, color, created_by, group_id)
			VALUES (?, ?, ?, ?, ?)`),
			t.ID, t.Name, t.Color, t.CreatedBy, nullString(t.GroupID))
		if err != nil {
			return nil, fmt.Errorf("insert tag %q: %w", t.Name, err)
		}
		out[i] = t
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tags: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) ListTags(ctx context.Context, ownerID string) ([]core.Tag, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT id, name, color, created_by, group_id
		FROM tags WHERE created_by = ? ORDER BY name`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []core.Tag
	for rows.Next() {
		var (
			t       core.Tag
			groupID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedBy, &groupID); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		t.GroupID = groupID.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTag removes the tag and unlinks it from every expense.
func (r *SQLRepository) UpdateTag(ctx context.Context, t core.Tag) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE tags SET name = ?, color = ? WHERE id = ? AND created_by = ?`),
		t.Name, t.Color, t.ID, t.CreatedBy)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return expectOne(res, "tag "+t.ID)
}

func (r *SQLRepository) DeleteTag(ctx context.Context, ownerID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM tags WHERE id = ? AND created_by = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := expectOne(res, "tag "+id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM expense_tags WHERE tag_id = ?`), id); err != nil {
		return fmt.Errorf("unlink tag: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tag delete: %w", err)
	}
	return nil
}

func (r *SQLRepository) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if err := core.ValidateCurrency(w.Currency); err != nil {
		return core.Wallet{}, err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Type == "" {
		w.Type = core.WalletCash
	}
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO wallets
		(id, name, type, balance_cents, currency, color, icon, created_by, group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.Name, w.Type, w.Balance.Cents, w.Currency, w.Color, w.Icon, w.CreatedBy, nullString(w.GroupID))
	if err != nil {
		return core.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	return w, nil
}

func (r *SQLRepository) ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT id, name, type, balance_cents, currency, color, icon,
		created_by, group_id FROM wallets WHERE created_by = ? ORDER BY name`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		var (
			w       core.Wallet
			groupID sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.Type, &w.Balance.Cents, &w.Currency, &w.Color, &w.Icon,
			&w.CreatedBy, &groupID); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		w.GroupID = groupID.String
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *SQLRepository) UpdateWallet(ctx context.Context, w core.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE wallets SET
		name = ?, type = ?, balance_cents = ?, currency = ?, color = ?, icon = ?
		WHERE id = ? AND created_by = ?`),
		w.Name, w.Type, w.Balance.Cents, w.Currency, w.Color, w.Icon, w.ID, w.CreatedBy)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return expectOne(res, "wallet "+w.ID)
}

func (r *SQLRepository) DeleteWallet(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM wallets WHERE id = ? AND created_by = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return expectOne(res, "wallet "+id)
}

func (r *SQLRepository) GetSnapshot(ctx context.Context, date core.Date) (core.ExchangeRateSnapshot, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, r.q(`SELECT rates FROM daily_exchange_rates WHERE date = ?`),
		date.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("snapshot %s: %w", date, ports.ErrNotFound)
	}
	if err != nil {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("get snapshot %s: %w", date, err)
	}

	snap := core.ExchangeRateSnapshot{Date: date}
	if err := json.Unmarshal(raw, &snap.Rates); err != nil {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("decode snapshot %s: %w", date, err)
	}
	return snap, nil
}

func (r *SQLRepository) SaveSnapshot(ctx context.Context, snap core.ExchangeRateSnapshot) error {
	raw, err := json.Marshal(snap.Rates)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.q(`INSERT INTO daily_exchange_rates (date, rates) VALUES (?, ?)`),
		snap.Date.String(), string(raw))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("snapshot %s: %w", snap.Date, ports.ErrConflict)
		}
		return fmt.Errorf("insert snapshot %s: %w", snap.Date, err)
	}

	slog.InfoContext(ctx, "Exchange rate snapshot cached", "date", snap.Date.String(), "currencies", len(snap.Rates))
	return nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ports.ErrNotFound)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDate(s sql.NullString) (core.Date, error) {
	if !s.Valid || s.String == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s.String)
}
