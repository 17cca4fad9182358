package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Astemirdum/librakeeper/lending/internal/errs"
	"github.com/Astemirdum/librakeeper/lending/internal/model"
)

type memoryState struct {
	users    map[string]model.User
	items    map[string]model.Item
	loans    map[string]model.Loan
	waitlist map[string]model.WaitlistEntry // key: itemID/userID
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		users:    make(map[string]model.User, len(s.users)),
		items:    make(map[string]model.Item, len(s.items)),
		loans:    make(map[string]model.Loan, len(s.loans)),
		waitlist: make(map[string]model.WaitlistEntry, len(s.waitlist)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.waitlist {
		c.waitlist[k] = v
	}
	return c
}

// memoryRepository keeps everything in process. Transactions are serialized
// on a single mutex and roll back to a snapshot when fn fails.
type memoryRepository struct {
	mu   *sync.Mutex
	st   **memoryState
	inTx bool
}

func NewMemoryRepository() *memoryRepository {
	st := &memoryState{
		users:    map[string]model.User{},
		items:    map[string]model.Item{},
		loans:    map[string]model.Loan{},
		waitlist: map[string]model.WaitlistEntry{},
	}
	return &memoryRepository{mu: &sync.Mutex{}, st: &st}
}

func (r *memoryRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memoryRepository) state() *memoryState { return *r.st }

func (r *memoryRepository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state().clone()
	if err := fn(&memoryRepository{mu: r.mu, st: r.st, inTx: true}); err != nil {
		*r.st = snapshot
		return err
	}
	return ctx.Err()
}

func (r *memoryRepository) UpsertUser(_ context.Context, u model.User) error {
	defer r.lock()()
	if old, ok := r.state().users[u.ID]; ok {
		if u.Name == "" {
			u.Name = old.Name
		}
		if u.Email == "" {
			u.Email = old.Email
		}
	}
	r.state().users[u.ID] = u
	return nil
}

func (r *memoryRepository) GetUser(_ context.Context, id string) (model.User, error) {
	defer r.lock()()
	u, ok := r.state().users[id]
	if !ok {
		return model.User{}, errs.ErrUserNotFound
	}
	return u, nil
}

func (r *memoryRepository) ListAdminEmails(_ context.Context) ([]string, error) {
	defer r.lock()()
	emails := make([]string, 0)
	for _, u := range r.state().users {
		if u.Role == model.RoleAdmin && u.Email != "" {
			emails = append(emails, u.Email)
		}
	}
	sort.Strings(emails)
	return emails, nil
}

func (r *memoryRepository) CreateItem(_ context.Context, it model.Item) (model.Item, error) {
	defer r.lock()()
	if _, ok := r.state().items[it.ID]; ok {
		return model.Item{}, errs.New(errs.ErrConflict, "item already exists")
	}
	r.state().items[it.ID] = it
	return it, nil
}

func (r *memoryRepository) GetItem(_ context.Context, id string) (model.Item, error) {
	defer r.lock()()
	it, ok := r.state().items[id]
	if !ok {
		return model.Item{}, errs.ErrItemNotFound
	}
	return it, nil
}

func (r *memoryRepository) LockItem(ctx context.Context, id string) (model.Item, error) {
	return r.GetItem(ctx, id)
}

func (r *memoryRepository) ListItems(_ context.Context, f model.ItemFilter) (model.ListItems, error) {
	defer r.lock()()
	items := make([]model.Item, 0)
	for _, it := range r.state().items {
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if f.Page > 0 && f.Size > 0 {
		from := (f.Page - 1) * f.Size
		if from > len(items) {
			from = len(items)
		}
		to := from + f.Size
		if to > len(items) {
			to = len(items)
		}
		items = items[from:to]
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

func (r *memoryRepository) UpdateItem(_ context.Context, it model.Item) (model.Item, error) {
	defer r.lock()()
	old, ok := r.state().items[it.ID]
	if !ok {
		return model.Item{}, errs.ErrItemNotFound
	}
	it.CreatedAt = old.CreatedAt
	r.state().items[it.ID] = it
	return it, nil
}

func (r *memoryRepository) UpdateItemStatus(_ context.Context, id string, to model.ItemStatus, from ...model.ItemStatus) error {
	defer r.lock()()
	it, ok := r.state().items[id]
	if !ok {
		return errs.ErrStatusChanged
	}
	if len(from) > 0 && !containsStatus(from, it.Status) {
		return errs.ErrStatusChanged
	}
	it.Status = to
	r.state().items[id] = it
	return nil
}

func (r *memoryRepository) DeleteItem(_ context.Context, id string) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.items[id]; !ok {
		return errs.ErrItemNotFound
	}
	delete(st.items, id)
	for k, l := range st.loans {
		if l.ItemID == id {
			delete(st.loans, k)
		}
	}
	for k, e := range st.waitlist {
		if e.ItemID == id {
			delete(st.waitlist, k)
		}
	}
	return nil
}

func (r *memoryRepository) CreateLoan(_ context.Context, l model.Loan) (model.Loan, error) {
	defer r.lock()()
	st := r.state()
	if _, ok := st.items[l.ItemID]; !ok {
		return model.Loan{}, errs.ErrItemNotFound
	}
	if err := st.checkLoanConstraints(l); err != nil {
		return model.Loan{}, err
	}
	st.loans[l.ID] = l
	return l, nil
}

func (r *memoryRepository) GetLoan(_ context.Context, id string) (model.Loan, error) {
	defer r.lock()()
	l, ok := r.state().loans[id]
	if !ok {
		return model.Loan{}, errs.ErrLoanNotFound
	}
	return l, nil
}

func (r *memoryRepository) LockLoan(ctx context.Context, id string) (model.Loan, error) {
	return r.GetLoan(ctx, id)
}

func (r *memoryRepository) UpdateLoan(_ context.Context, l model.Loan) (model.Loan, error) {
	defer r.lock()()
	st := r.state()
	old, ok := st.loans[l.ID]
	if !ok {
		return model.Loan{}, errs.ErrLoanNotFound
	}
	l.ItemID, l.UserID, l.CreatedAt = old.ItemID, old.UserID, old.CreatedAt
	if err := st.checkLoanConstraints(l); err != nil {
		return model.Loan{}, err
	}
	st.loans[l.ID] = l
	return l, nil
}

// checkLoanConstraints mirrors the partial unique indexes on loans.
func (s *memoryState) checkLoanConstraints(l model.Loan) error {
	for _, other := range s.loans {
		if other.ID == l.ID || other.ItemID != l.ItemID || other.Status != l.Status {
			continue
		}
		switch {
		case l.Status == model.LoanApproved:
			return errs.ErrActiveLoanExists
		case l.Status == model.LoanPending && other.UserID == l.UserID:
			return errs.ErrLoanAlreadyPending
		}
	}
	return nil
}

func (r *memoryRepository) ListLoans(_ context.Context, f model.LoanFilter) ([]model.Loan, error) {
	defer r.lock()()
	loans := make([]model.Loan, 0)
	for _, l := range r.state().loans {
		if f.UserID != "" && l.UserID != f.UserID {
			continue
		}
		if f.ItemID != "" && l.ItemID != f.ItemID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		loans = append(loans, l)
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].ID < loans[j].ID
		}
		return loans[i].CreatedAt.After(loans[j].CreatedAt)
	})
	return loans, nil
}

func (r *memoryRepository) ListActiveLoansForItem(ctx context.Context, itemID string) ([]model.Loan, error) {
	return r.ListLoans(ctx, model.LoanFilter{ItemID: itemID, Status: model.LoanApproved})
}

func (r *memoryRepository) HasPendingLoan(_ context.Context, itemID, userID string) (bool, error) {
	defer r.lock()()
	for _, l := range r.state().loans {
		if l.ItemID == itemID && l.UserID == userID && l.Status == model.LoanPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) CreateWaitlistEntry(_ context.Context, e model.WaitlistEntry) (model.WaitlistEntry, error) {
	defer r.lock()()
	st := r.state()
	if _, ok := st.items[e.ItemID]; !ok {
		return model.WaitlistEntry{}, errs.ErrItemNotFound
	}
	key := waitlistKey(e.ItemID, e.UserID)
	if _, ok := st.waitlist[key]; ok {
		return model.WaitlistEntry{}, errs.ErrAlreadyInWaitlist
	}
	st.waitlist[key] = e
	return e, nil
}

func (r *memoryRepository) GetWaitlistEntry(_ context.Context, itemID, userID string) (model.WaitlistEntry, error) {
	defer r.lock()()
	st := r.state()
	e, ok := st.waitlist[waitlistKey(itemID, userID)]
	if !ok {
		return model.WaitlistEntry{}, errs.New(errs.ErrNotFound, "waitlist entry not found")
	}
	e.UserName = st.users[e.UserID].Name
	return e, nil
}

func (r *memoryRepository) DeleteWaitlistEntry(_ context.Context, itemID, userID string) error {
	defer r.lock()()
	delete(r.state().waitlist, waitlistKey(itemID, userID))
	return nil
}

func (r *memoryRepository) ListWaitlist(_ context.Context, itemID string) ([]model.WaitlistEntry, error) {
	defer r.lock()()
	st := r.state()
	entries := make([]model.WaitlistEntry, 0)
	for _, e := range st.waitlist {
		if e.ItemID != itemID {
			continue
		}
		e.UserName = st.users[e.UserID].Name
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func waitlistKey(itemID, userID string) string {
	return itemID + "/" + userID
}

func containsStatus(set []model.ItemStatus, s model.ItemStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
