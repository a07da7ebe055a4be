package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
)

// MemoryRideStore is an in-memory ride.Repository. It backs tests and local
// runs without Postgres, and implements the same conditional-update semantics
// under a mutex: the accept race still resolves to a single winner.
type MemoryRideStore struct {
	mu       sync.RWMutex
	rides    map[uuid.UUID]*ride.Ride
	watchers map[int]*memoryWatcher
	nextID   int
}

type memoryWatcher struct {
	notify chan struct{}
}

// NewMemoryRideStore creates an empty in-memory ride store
func NewMemoryRideStore() *MemoryRideStore {
	return &MemoryRideStore{
		rides:    make(map[uuid.UUID]*ride.Ride),
		watchers: make(map[int]*memoryWatcher),
	}
}

func (m *MemoryRideStore) Create(ctx context.Context, r *ride.Ride) error {
	m.mu.Lock()
	cp := *r
	m.rides[r.ID] = &cp
	m.mu.Unlock()
	m.notifyAll()
	return nil
}

func (m *MemoryRideStore) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ride.ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRideStore) AcceptIfPending(ctx context.Context, rideID, driverID uuid.UUID, driverName string, at time.Time) (*ride.Ride, error) {
	m.mu.Lock()
	r, ok := m.rides[rideID]
	if !ok {
		m.mu.Unlock()
		return nil, ride.ErrRideNotFound
	}
	if !r.VisibleTo(driverID) {
		m.mu.Unlock()
		return nil, ride.ErrNotEligible
	}
	if r.Status != ride.StatusPending {
		m.mu.Unlock()
		return nil, ride.ErrStaleState
	}
	d := driverID
	r.Status = ride.StatusAccepted
	r.DriverID = &d
	r.DriverName = driverName
	r.AcceptedAt = &at
	cp := *r
	m.mu.Unlock()
	m.notifyAll()
	return &cp, nil
}

func (m *MemoryRideStore) CompleteIfAccepted(ctx context.Context, rideID, driverID uuid.UUID, at time.Time) (*ride.Ride, error) {
	m.mu.Lock()
	r, ok := m.rides[rideID]
	if !ok {
		m.mu.Unlock()
		return nil, ride.ErrRideNotFound
	}
	if r.Status != ride.StatusAccepted || r.DriverID == nil || *r.DriverID != driverID {
		m.mu.Unlock()
		return nil, ride.ErrStaleState
	}
	r.Status = ride.StatusCompleted
	r.CompletedAt = &at
	cp := *r
	m.mu.Unlock()
	m.notifyAll()
	return &cp, nil
}

func (m *MemoryRideStore) CancelIfActive(ctx context.Context, rideID uuid.UUID, at time.Time) (*ride.Ride, error) {
	m.mu.Lock()
	r, ok := m.rides[rideID]
	if !ok {
		m.mu.Unlock()
		return nil, ride.ErrRideNotFound
	}
	if !r.CanCancel() {
		m.mu.Unlock()
		return nil, ride.ErrStaleState
	}
	r.Status = ride.StatusCancelled
	r.CancelledAt = &at
	cp := *r
	m.mu.Unlock()
	m.notifyAll()
	return &cp, nil
}

func (m *MemoryRideStore) ListByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]*ride.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ride.Ride, 0)
	for _, r := range m.rides {
		if r.RiderID == riderID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRideStore) WatchPendingFor(ctx context.Context, driverID uuid.UUID) (<-chan []*ride.Ride, error) {
	out := make(chan []*ride.Ride, 1)
	notify := m.addWatcher()

	snapshot := func() []*ride.Ride {
		m.mu.RLock()
		defer m.mu.RUnlock()
		var rs []*ride.Ride
		for _, r := range m.rides {
			if r.Status == ride.StatusPending && r.VisibleTo(driverID) {
				cp := *r
				rs = append(rs, &cp)
			}
		}
		sort.Slice(rs, func(i, j int) bool { return rs[i].CreatedAt.Before(rs[j].CreatedAt) })
		return rs
	}

	go func() {
		defer close(out)
		defer m.removeWatcher(notify)

		deliver := func() bool {
			select {
			case out <- snapshot():
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !deliver() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify.notify:
				if !deliver() {
					return
				}
			}
		}
	}()

	return out, nil
}

func (m *MemoryRideStore) WatchRide(ctx context.Context, rideID uuid.UUID) (<-chan *ride.Ride, error) {
	if _, err := m.GetByID(ctx, rideID); err != nil {
		return nil, err
	}

	out := make(chan *ride.Ride, 1)
	notify := m.addWatcher()

	go func() {
		defer close(out)
		defer m.removeWatcher(notify)

		var last ride.Status
		deliver := func() bool {
			r, err := m.GetByID(ctx, rideID)
			if err != nil {
				return false
			}
			if r.Status == last {
				return true
			}
			last = r.Status
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !deliver() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify.notify:
				if !deliver() {
					return
				}
			}
		}
	}()

	return out, nil
}

func (m *MemoryRideStore) addWatcher() *memoryWatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := &memoryWatcher{notify: make(chan struct{}, 1)}
	m.nextID++
	m.watchers[m.nextID] = w
	return w
}

func (m *MemoryRideStore) removeWatcher(w *memoryWatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cand := range m.watchers {
		if cand == w {
			delete(m.watchers, id)
			return
		}
	}
}

func (m *MemoryRideStore) notifyAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.watchers {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// MemoryUserStore is an in-memory user.Repository
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*user.User
	txns  map[uuid.UUID][]user.Transaction
}

// NewMemoryUserStore creates an empty in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[uuid.UUID]*user.User),
		txns:  make(map[uuid.UUID][]user.Transaction),
	}
}

func (m *MemoryUserStore) Create(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryUserStore) Update(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return user.ErrUserNotFound
	}
	cp := *u
	cp.UpdatedAt = time.Now()
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return user.ErrUserNotFound
	}
	delete(m.users, id)
	delete(m.txns, id)
	return nil
}

func (m *MemoryUserStore) ApplyWalletDelta(ctx context.Context, userID uuid.UUID, delta float64, txn user.Transaction) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, user.ErrUserNotFound
	}
	if u.Wallet+delta < 0 {
		return u.Wallet, user.ErrInsufficientFunds
	}
	u.Wallet += delta
	u.UpdatedAt = time.Now()
	m.txns[userID] = append(m.txns[userID], txn)
	return u.Wallet, nil
}

func (m *MemoryUserStore) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]user.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txns := m.txns[userID]
	out := make([]user.Transaction, len(txns))
	copy(out, txns)
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
