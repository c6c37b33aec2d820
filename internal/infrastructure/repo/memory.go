package repo

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"storefront-backend/internal/domain"
)

// MemoryRepo keeps orders and rewards in process memory. It enforces the same
// uniqueness rules as the Postgres schema.
type MemoryRepo struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	bySession map[string]string
	items     map[string][]domain.OrderItem
	ledger    []domain.LedgerEntry
	ledgerBy  map[string]struct{}
	awards    map[string]domain.Award
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders:    make(map[string]*domain.Order),
		bySession: make(map[string]string),
		items:     make(map[string][]domain.OrderItem),
		ledgerBy:  make(map[string]struct{}),
		awards:    make(map[string]domain.Award),
	}
}

func (r *MemoryRepo) GetOrderBySession(_ context.Context, sessionID string) (*domain.Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySession[sessionID]
	if !ok {
		return nil, false, nil
	}
	return r.copyOrder(id), true, nil
}

func (r *MemoryRepo) CreateOrder(_ context.Context, o *domain.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySession[o.StripeSessionID]; ok {
		return false, nil
	}
	cp := *o
	cp.Items = nil
	r.orders[o.ID] = &cp
	r.bySession[o.StripeSessionID] = o.ID
	return true, nil
}

func (r *MemoryRepo) PutOrderItems(_ context.Context, orderID string, items []domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[orderID]; !ok {
		return errOrderMissing(orderID)
	}
	if _, ok := r.items[orderID]; ok {
		return nil
	}
	r.items[orderID] = append([]domain.OrderItem(nil), items...)
	return nil
}

func (r *MemoryRepo) BackfillOrderIdentity(_ context.Context, orderID string, id domain.Identity) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, errOrderMissing(orderID)
	}
	if o.UserID == "" {
		o.UserID = id.UserID
	}
	if o.Email == "" {
		o.Email = id.Email
	}
	return r.copyOrder(orderID), nil
}

func (r *MemoryRepo) ListOrders(_ context.Context, id domain.Identity, page, pageSize int) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.Order, 0)
	for oid, o := range r.orders {
		if matches(id, o.UserID, o.Email) {
			all = append(all, *r.copyOrder(oid))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryRepo) AppendLedger(_ context.Context, e *domain.LedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ledgerBy[e.OrderID]; ok {
		return false, nil
	}
	r.ledgerBy[e.OrderID] = struct{}{}
	r.ledger = append(r.ledger, *e)
	return true, nil
}

func (r *MemoryRepo) CountLedger(_ context.Context, id domain.Identity) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.ledger {
		if matches(id, e.UserID, e.Email) {
			n += e.Points
		}
	}
	return n, nil
}

func (r *MemoryRepo) FindAward(_ context.Context, id domain.Identity, tier int) (*domain.Award, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *domain.Award
	for _, a := range r.awards {
		if a.Tier != tier || !matches(id, a.UserID, a.Email) {
			continue
		}
		if found == nil || a.IssuedAt.Before(found.IssuedAt) {
			cp := a
			found = &cp
		}
	}
	return found, found != nil, nil
}

func (r *MemoryRepo) InsertAward(_ context.Context, a *domain.Award) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := awardKey(a.IdentityKey, a.Tier)
	if _, ok := r.awards[k]; ok {
		return false, nil
	}
	r.awards[k] = *a
	return true, nil
}

func (r *MemoryRepo) ListAwards(_ context.Context, id domain.Identity) ([]domain.Award, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Award, 0)
	for _, a := range r.awards {
		if matches(id, a.UserID, a.Email) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// LedgerEntries returns a snapshot of every ledger entry.
func (r *MemoryRepo) LedgerEntries() []domain.LedgerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.LedgerEntry(nil), r.ledger...)
}

func (r *MemoryRepo) OrderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func (r *MemoryRepo) copyOrder(id string) *domain.Order {
	o := *r.orders[id]
	if items, ok := r.items[id]; ok {
		o.Items = append([]domain.OrderItem(nil), items...)
	}
	return &o
}

// matches applies the identity filter: user id OR email.
func matches(id domain.Identity, userID, email string) bool {
	if id.UserID != "" && userID == id.UserID {
		return true
	}
	return id.Email != "" && email == id.Email
}

func awardKey(identityKey string, tier int) string {
	return identityKey + "#" + strconv.Itoa(tier)
}
