package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

// mockStockStore implements the real compare-and-swap semantics in memory so
// concurrency tests exercise the same contention behavior as the MySQL
// adapter.
type mockStockStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product

	adjustErrFor   map[string]error // injected infrastructure faults
	alwaysConflict bool
	conflictBudget int // UpdateDerived conflicts to inject before succeeding

	adjustCalls        []string
	updateDerivedCalls int
}

func newMockStockStore() *mockStockStore {
	return &mockStockStore{
		products:     make(map[string]*domain.Product),
		adjustErrFor: make(map[string]error),
	}
}

func (m *mockStockStore) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.products[p.ID] = &cp
}

func (m *mockStockStore) quantity(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *mockStockStore) product(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id]
}

func (m *mockStockStore) setAdjustErr(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.adjustErrFor, id)
		return
	}
	m.adjustErrFor[id] = err
}

func (m *mockStockStore) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.adjustCalls))
	copy(calls, m.adjustCalls)
	return calls
}

func (m *mockStockStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStockStore) CreateProduct(ctx context.Context, p domain.Product) error {
	m.addProduct(p)
	return nil
}

func (m *mockStockStore) ListProductIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockStockStore) TryAdjustQuantity(ctx context.Context, id string, delta, expectedVersion int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adjustCalls = append(m.adjustCalls, id)

	if err := m.adjustErrFor[id]; err != nil {
		return 0, err
	}
	if m.alwaysConflict {
		return 0, domain.ErrVersionConflict
	}

	p, ok := m.products[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if p.Version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}
	if p.Quantity+delta < 0 {
		return 0, domain.ErrInsufficientStock
	}

	p.Quantity += delta
	p.Version++
	return p.Version, nil
}

func (m *mockStockStore) UpdateDerived(ctx context.Context, id string, effectivePrice float64, lowStock bool, expectedVersion int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictBudget > 0 {
		m.conflictBudget--
		return 0, domain.ErrVersionConflict
	}

	p, ok := m.products[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if p.Version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}

	now := time.Now()
	p.EffectivePrice = effectivePrice
	p.LowStock = lowStock
	p.DerivedAt = &now
	p.Version++
	m.updateDerivedCalls++
	return p.Version, nil
}

type mockLedger struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	claimed map[string]bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		orders:  make(map[string]*domain.Order),
		claimed: make(map[string]bool),
	}
}

func (m *mockLedger) status(id string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *mockLedger) reason(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Reason
}

func (m *mockLedger) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockLedger) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockLedger) ClaimOrder(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != domain.OrderStatusPending || m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func (m *mockLedger) ReleaseOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if ok && o.Status == domain.OrderStatusPending {
		delete(m.claimed, id)
	}
	return nil
}

func (m *mockLedger) ListPendingUnclaimed(ctx context.Context, olderThan time.Time) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []domain.Order
	for id, o := range m.orders {
		if o.Status == domain.OrderStatusPending && !m.claimed[id] && o.CreatedAt.Before(olderThan) {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (m *mockLedger) isClaimed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimed[id]
}

func (m *mockLedger) CancelOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending || m.claimed[id] {
		return domain.ErrOrderNotCancellable
	}
	o.Status = domain.OrderStatusCancelled
	o.Reason = "cancelled-by-client"
	return nil
}

func (m *mockLedger) MarkCommitted(ctx context.Context, id string, items []domain.LineItem, settledAt time.Time) error {
	return m.settle(id, domain.OrderStatusCommitted, "", items, settledAt)
}

func (m *mockLedger) MarkRejected(ctx context.Context, id, reason string, settledAt time.Time) error {
	return m.settle(id, domain.OrderStatusRejected, reason, nil, settledAt)
}

func (m *mockLedger) settle(id string, status domain.OrderStatus, reason string, items []domain.LineItem, settledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return domain.ErrDoubleSettlement
	}
	o.Status = status
	o.Reason = reason
	if items != nil {
		o.LineItems = items
	}
	o.SettledAt = &settledAt
	return nil
}

type inflightEntry struct {
	job domain.RecalculationJob
	at  time.Time
}

type mockJobQueue struct {
	mu         sync.Mutex
	pending    []domain.RecalculationJob
	failed     []domain.RecalculationJob
	inflight   map[string]inflightEntry
	enqueueErr error
}

func newMockJobQueue() *mockJobQueue {
	return &mockJobQueue{inflight: make(map[string]inflightEntry)}
}

func (m *mockJobQueue) pendingJobs() []domain.RecalculationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]domain.RecalculationJob, len(m.pending))
	copy(jobs, m.pending)
	return jobs
}

func (m *mockJobQueue) failedJobs() []domain.RecalculationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]domain.RecalculationJob, len(m.failed))
	copy(jobs, m.failed)
	return jobs
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job domain.RecalculationJob) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return false, m.enqueueErr
	}
	for i := range m.pending {
		if m.pending[i].ProductID == job.ProductID {
			m.pending[i] = job
			return true, nil
		}
	}
	m.pending = append(m.pending, job)
	return false, nil
}

func (m *mockJobQueue) Dequeue(ctx context.Context) (*domain.RecalculationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, nil
	}
	job := m.pending[0]
	m.pending = m.pending[1:]
	m.inflight[job.ProductID] = inflightEntry{job: job, at: time.Now()}
	return &job, nil
}

func (m *mockJobQueue) Ack(ctx context.Context, job domain.RecalculationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, job.ProductID)
	return nil
}

func (m *mockJobQueue) TakeAbandoned(ctx context.Context, olderThan time.Time) ([]domain.RecalculationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []domain.RecalculationJob
	for id, entry := range m.inflight {
		if entry.at.Before(olderThan) {
			jobs = append(jobs, entry.job)
			delete(m.inflight, id)
		}
	}
	return jobs, nil
}

func (m *mockJobQueue) inflightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

func (m *mockJobQueue) RecordFailure(ctx context.Context, job domain.RecalculationJob, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, job)
	return nil
}

func (m *mockJobQueue) TakeFailed(ctx context.Context) ([]domain.RecalculationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := m.failed
	m.failed = nil
	return jobs, nil
}

type mockNotifier struct {
	mu       sync.Mutex
	settled  []domain.Order
	lowStock []domain.Product
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{}
}

func (m *mockNotifier) settledOrders() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]domain.Order, len(m.settled))
	copy(orders, m.settled)
	return orders
}

func (m *mockNotifier) lowStockEvents() []domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := make([]domain.Product, len(m.lowStock))
	copy(products, m.lowStock)
	return products
}

func (m *mockNotifier) OrderSettled(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = append(m.settled, order)
	return nil
}

func (m *mockNotifier) LowStock(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lowStock = append(m.lowStock, product)
	return nil
}
