package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/librakeeper/lending/internal/errs"
	"github.com/Astemirdum/librakeeper/lending/internal/model"
)

// Repository is the persistence gateway of the lending engine. Every method is
// atomic on its own; InTx groups several calls into one all-or-nothing unit.
// The Lock* methods only hold their row lock for the lifetime of a transaction.
type Repository interface {
	InTx(ctx context.Context, fn func(tx Repository) error) error

	UpsertUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	ListAdminEmails(ctx context.Context) ([]string, error)

	CreateItem(ctx context.Context, it model.Item) (model.Item, error)
	GetItem(ctx context.Context, id string) (model.Item, error)
	LockItem(ctx context.Context, id string) (model.Item, error)
	ListItems(ctx context.Context, f model.ItemFilter) (model.ListItems, error)
	UpdateItem(ctx context.Context, it model.Item) (model.Item, error)
	// UpdateItemStatus sets the status only while the current one is in from.
	UpdateItemStatus(ctx context.Context, id string, to model.ItemStatus, from ...model.ItemStatus) error
	DeleteItem(ctx context.Context, id string) error

	CreateLoan(ctx context.Context, l model.Loan) (model.Loan, error)
	GetLoan(ctx context.Context, id string) (model.Loan, error)
	LockLoan(ctx context.Context, id string) (model.Loan, error)
	UpdateLoan(ctx context.Context, l model.Loan) (model.Loan, error)
	ListLoans(ctx context.Context, f model.LoanFilter) ([]model.Loan, error)
	ListActiveLoansForItem(ctx context.Context, itemID string) ([]model.Loan, error)
	HasPendingLoan(ctx context.Context, itemID, userID string) (bool, error)

	CreateWaitlistEntry(ctx context.Context, e model.WaitlistEntry) (model.WaitlistEntry, error)
	GetWaitlistEntry(ctx context.Context, itemID, userID string) (model.WaitlistEntry, error)
	DeleteWaitlistEntry(ctx context.Context, itemID, userID string) error
	ListWaitlist(ctx context.Context, itemID string) ([]model.WaitlistEntry, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db  *pgxpool.Pool
	q   querier
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		q:   db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName    = `users`
	itemsTableName    = `items`
	loansTableName    = `loans`
	waitlistTableName = `waitlist_entries`

	approvedPerItemIndex = `loans_one_approved_per_item`
	pendingPerUserIndex  = `loans_one_pending_per_user_item`
	waitlistUnique       = `waitlist_entries_item_user`
)

var (
	qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	itemColumns = []string{"id", "title", "description", "type", "author", "isbn", "publisher", "cover_image", "status", "created_at", "updated_at"}
	loanColumns = []string{"id", "item_id", "user_id", "status", "created_at", "approved_at", "due_at", "returned_at", "updated_at"}
)

func (r *repository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if _, nested := r.q.(pgx.Tx); nested {
		return fn(r)
	}
	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&repository{db: r.db, q: tx, log: r.log})
	})
}

func (r *repository) UpsertUser(ctx context.Context, u model.User) error {
	q := fmt.Sprintf(`insert into %s (id, name, email, role) values (@id, @name, @email, @role)
	on conflict (id) do update set
	    name = coalesce(nullif(excluded.name, ''), %[1]s.name),
	    email = coalesce(nullif(excluded.email, ''), %[1]s.email),
	    role = excluded.role`, usersTableName)
	_, err := r.q.Exec(ctx, q, pgx.NamedArgs{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	})
	return err
}

func (r *repository) GetUser(ctx context.Context, id string) (model.User, error) {
	query, args, err := qb.Select("id", "name", "email", "role").
		From(usersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	return collectOne[model.User](ctx, r.q, errs.ErrUserNotFound, query, args...)
}

func (r *repository) ListAdminEmails(ctx context.Context) ([]string, error) {
	query, args, err := qb.Select("email").
		From(usersTableName).
		Where(sq.Eq{"role": model.RoleAdmin}).
		Where(sq.NotEq{"email": ""}).
		OrderBy("email").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *repository) CreateItem(ctx context.Context, it model.Item) (model.Item, error) {
	query, args, err := qb.Insert(itemsTableName).
		Columns(itemColumns...).
		Values(it.ID, it.Title, it.Description, it.Type, it.Author, it.ISBN, it.Publisher, it.CoverImage, it.Status, it.CreatedAt, it.UpdatedAt).
		Suffix("returning " + strings.Join(itemColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Item{}, err
	}
	item, err := collectOne[model.Item](ctx, r.q, errs.ErrItemNotFound, query, args...)
	if err != nil {
		r.log.Error("CreateItem", zap.String("q", query), zap.Error(err))
	}
	return item, err
}

func (r *repository) GetItem(ctx context.Context, id string) (model.Item, error) {
	return r.getItem(ctx, id, "")
}

func (r *repository) LockItem(ctx context.Context, id string) (model.Item, error) {
	return r.getItem(ctx, id, "for update")
}

func (r *repository) getItem(ctx context.Context, id, suffix string) (model.Item, error) {
	b := qb.Select(itemColumns...).
		From(itemsTableName).
		Where(sq.Eq{"id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return model.Item{}, err
	}
	return collectOne[model.Item](ctx, r.q, errs.ErrItemNotFound, query, args...)
}

func (r *repository) ListItems(ctx context.Context, f model.ItemFilter) (model.ListItems, error) {
	q := qb.Select(itemColumns...).
		From(itemsTableName).
		OrderBy("created_at desc")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.Page > 0 && f.Size > 0 {
		q = q.Limit(uint64(f.Size)).Offset(uint64((f.Page - 1) * f.Size))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return model.ListItems{}, err
	}
	r.log.Debug("ListItems", zap.String("query", query), zap.Any("args", args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return model.ListItems{}, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Item])
	if err != nil {
		return model.ListItems{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return model.ListItems{
		Paging: model.Paging{
			Page:          f.Page,
			PageSize:      f.Size,
			TotalElements: len(items),
		},
		Items: items,
	}, nil
}

func (r *repository) UpdateItem(ctx context.Context, it model.Item) (model.Item, error) {
	query, args, err := qb.Update(itemsTableName).
		SetMap(map[string]interface{}{
			"title":       it.Title,
			"description": it.Description,
			"type":        it.Type,
			"author":      it.Author,
			"isbn":        it.ISBN,
			"publisher":   it.Publisher,
			"cover_image": it.CoverImage,
			"status":      it.Status,
			"updated_at":  it.UpdatedAt,
		}).
		Where(sq.Eq{"id": it.ID}).
		Suffix("returning " + strings.Join(itemColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Item{}, err
	}
	return collectOne[model.Item](ctx, r.q, errs.ErrItemNotFound, query, args...)
}

func (r *repository) UpdateItemStatus(ctx context.Context, id string, to model.ItemStatus, from ...model.ItemStatus) error {
	b := qb.Update(itemsTableName).
		Set("status", to).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})
	if len(from) > 0 {
		b = b.Where(sq.Eq{"status": from})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrStatusChanged
	}
	return nil
}

func (r *repository) DeleteItem(ctx context.Context, id string) error {
	query, args, err := qb.Delete(itemsTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrItemNotFound
	}
	return nil
}

func (r *repository) CreateLoan(ctx context.Context, l model.Loan) (model.Loan, error) {
	query, args, err := qb.Insert(loansTableName).
		Columns(loanColumns...).
		Values(l.ID, l.ItemID, l.UserID, l.Status, l.CreatedAt, l.ApprovedAt, l.DueAt, l.ReturnedAt, l.UpdatedAt).
		Suffix("returning " + strings.Join(loanColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	loan, err := collectOne[model.Loan](ctx, r.q, errs.ErrLoanNotFound, query, args...)
	return loan, mapConstraint(err)
}

func (r *repository) GetLoan(ctx context.Context, id string) (model.Loan, error) {
	return r.getLoan(ctx, id, "")
}

func (r *repository) LockLoan(ctx context.Context, id string) (model.Loan, error) {
	return r.getLoan(ctx, id, "for update")
}

func (r *repository) getLoan(ctx context.Context, id, suffix string) (model.Loan, error) {
	b := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	return collectOne[model.Loan](ctx, r.q, errs.ErrLoanNotFound, query, args...)
}

func (r *repository) UpdateLoan(ctx context.Context, l model.Loan) (model.Loan, error) {
	query, args, err := qb.Update(loansTableName).
		SetMap(map[string]interface{}{
			"status":      l.Status,
			"approved_at": l.ApprovedAt,
			"due_at":      l.DueAt,
			"returned_at": l.ReturnedAt,
			"updated_at":  l.UpdatedAt,
		}).
		Where(sq.Eq{"id": l.ID}).
		Suffix("returning " + strings.Join(loanColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	loan, err := collectOne[model.Loan](ctx, r.q, errs.ErrLoanNotFound, query, args...)
	return loan, mapConstraint(err)
}

func (r *repository) ListLoans(ctx context.Context, f model.LoanFilter) ([]model.Loan, error) {
	q := qb.Select(loanColumns...).
		From(loansTableName).
		OrderBy("created_at desc")
	if f.UserID != "" {
		q = q.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.ItemID != "" {
		q = q.Where(sq.Eq{"item_id": f.ItemID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Loan])
}

func (r *repository) ListActiveLoansForItem(ctx context.Context, itemID string) ([]model.Loan, error) {
	return r.ListLoans(ctx, model.LoanFilter{ItemID: itemID, Status: model.LoanApproved})
}

func (r *repository) HasPendingLoan(ctx context.Context, itemID, userID string) (bool, error) {
	q := fmt.Sprintf(`select exists(select 1 from %s where item_id = @item_id and user_id = @user_id and status = @status)`, loansTableName)
	var exists bool
	err := r.q.QueryRow(ctx, q, pgx.NamedArgs{
		"item_id": itemID,
		"user_id": userID,
		"status":  model.LoanPending,
	}).Scan(&exists)
	return exists, err
}

func (r *repository) CreateWaitlistEntry(ctx context.Context, e model.WaitlistEntry) (model.WaitlistEntry, error) {
	query, args, err := qb.Insert(waitlistTableName).
		Columns("id", "item_id", "user_id", "created_at").
		Values(e.ID, e.ItemID, e.UserID, e.CreatedAt).
		ToSql()
	if err != nil {
		return model.WaitlistEntry{}, err
	}
	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return model.WaitlistEntry{}, mapConstraint(err)
	}
	return e, nil
}

func (r *repository) GetWaitlistEntry(ctx context.Context, itemID, userID string) (model.WaitlistEntry, error) {
	query, args, err := qb.Select("w.id", "w.item_id", "w.user_id", "u.name as user_name", "w.created_at").
		From(waitlistTableName + " w").
		Join(usersTableName + " u on u.id = w.user_id").
		Where(sq.Eq{"w.item_id": itemID, "w.user_id": userID}).
		ToSql()
	if err != nil {
		return model.WaitlistEntry{}, err
	}
	return collectOne[model.WaitlistEntry](ctx, r.q, errs.New(errs.ErrNotFound, "waitlist entry not found"), query, args...)
}

func (r *repository) DeleteWaitlistEntry(ctx context.Context, itemID, userID string) error {
	query, args, err := qb.Delete(waitlistTableName).
		Where(sq.Eq{"item_id": itemID, "user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, query, args...)
	return err
}

func (r *repository) ListWaitlist(ctx context.Context, itemID string) ([]model.WaitlistEntry, error) {
	query, args, err := qb.Select("w.id", "w.item_id", "w.user_id", "u.name as user_name", "w.created_at").
		From(waitlistTableName + " w").
		Join(usersTableName + " u on u.id = w.user_id").
		Where(sq.Eq{"w.item_id": itemID}).
		OrderBy("w.created_at asc").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.WaitlistEntry])
}

func collectOne[T any](ctx context.Context, q querier, notFound error, query string, args ...any) (T, error) {
	var zero T
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return zero, err
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, notFound
		}
		return zero, err
	}
	return v, nil
}

// mapConstraint turns unique violations of the lending invariants into conflicts.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case approvedPerItemIndex:
		return errs.ErrActiveLoanExists
	case pendingPerUserIndex:
		return errs.ErrLoanAlreadyPending
	case waitlistUnique:
		return errs.ErrAlreadyInWaitlist
	}
	return errs.New(errs.ErrConflict, pgErr.Message)
}
