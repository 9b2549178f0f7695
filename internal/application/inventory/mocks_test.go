package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, len(m.events))
	copy(result, m.events)
	return result
}

// MockVariantRepository is a mock implementation of catalog.VariantRepository
type MockVariantRepository struct {
	mock.Mock
}

func (m *MockVariantRepository) SKUsWithPrefix(ctx context.Context, prefix string, excludeID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, prefix, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVariantRepository) SKUExists(ctx context.Context, sku string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, sku, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockVariantRepository) variant(args mock.Arguments) (*catalog.ProductVariant, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ProductVariant), args.Error(1)
}

func (m *MockVariantRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.ProductVariant, error) {
	return m.variant(m.Called(ctx, id))
}

func (m *MockVariantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*catalog.ProductVariant, error) {
	return m.variant(m.Called(ctx, id))
}

func (m *MockVariantRepository) FindByIDIncludingArchived(ctx context.Context, id uuid.UUID) (*catalog.ProductVariant, error) {
	return m.variant(m.Called(ctx, id))
}

func (m *MockVariantRepository) FindBySKU(ctx context.Context, sku string) (*catalog.ProductVariant, error) {
	return m.variant(m.Called(ctx, sku))
}

func (m *MockVariantRepository) FindByProductAndName(ctx context.Context, productID uuid.UUID, name string) (*catalog.ProductVariant, error) {
	return m.variant(m.Called(ctx, productID, name))
}

func (m *MockVariantRepository) FindFirstByProduct(ctx context.Context, productID uuid.UUID) (*catalog.ProductVariant, error) {
	return m.variant(m.Called(ctx, productID))
}

func (m *MockVariantRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.ProductVariant, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]catalog.ProductVariant), args.Error(1)
}

func (m *MockVariantRepository) FindAll(ctx context.Context, filter catalog.VariantFilter) ([]catalog.ProductVariant, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.ProductVariant), args.Get(1).(int64), args.Error(2)
}

func (m *MockVariantRepository) Create(ctx context.Context, variant *catalog.ProductVariant) error {
	return m.Called(ctx, variant).Error(0)
}

func (m *MockVariantRepository) SaveWithLock(ctx context.Context, variant *catalog.ProductVariant) error {
	return m.Called(ctx, variant).Error(0)
}

func (m *MockVariantRepository) CountByStockStatus(ctx context.Context) (map[catalog.StockStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[catalog.StockStatus]int64), args.Error(1)
}

// MockProductRepository is a mock implementation of catalog.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) product(args mock.Arguments) (*catalog.Product, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return m.product(m.Called(ctx, id))
}

func (m *MockProductRepository) FindByIDIncludingArchived(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return m.product(m.Called(ctx, id))
}

func (m *MockProductRepository) FindByName(ctx context.Context, name string) (*catalog.Product, error) {
	return m.product(m.Called(ctx, name))
}

func (m *MockProductRepository) FindAll(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) SaveWithLock(ctx context.Context, product *catalog.Product) error {
	return m.Called(ctx, product).Error(0)
}

// MockMovementRepository is a mock implementation of inventory.MovementRepository
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Append(ctx context.Context, movement *inventory.StockMovement) error {
	return m.Called(ctx, movement).Error(0)
}

func (m *MockMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockMovement), args.Error(1)
}

func (m *MockMovementRepository) FindAll(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]inventory.StockMovement), args.Get(1).(int64), args.Error(2)
}

func (m *MockMovementRepository) CountByVariant(ctx context.Context, variantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, variantID)
	return args.Get(0).(int64), args.Error(1)
}

// MockDocumentRepository is a mock implementation of inventory.StockDocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) CreateStockIn(ctx context.Context, doc *inventory.StockIn) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentRepository) CreateStockOut(ctx context.Context, doc *inventory.StockOut) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentRepository) FindStockInByID(ctx context.Context, id uuid.UUID) (*inventory.StockIn, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockIn), args.Error(1)
}

func (m *MockDocumentRepository) FindStockOutByID(ctx context.Context, id uuid.UUID) (*inventory.StockOut, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockOut), args.Error(1)
}

func (m *MockDocumentRepository) NextDocumentNumber(ctx context.Context, stem string) (string, error) {
	args := m.Called(ctx, stem)
	return args.String(0), args.Error(1)
}

// fakeIdempotencyStore keeps claimed keys in a map
type fakeIdempotencyStore struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: make(map[string]bool)}
}

func (f *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

func (f *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	f.released = append(f.released, key)
	return nil
}

func (f *fakeIdempotencyStore) Close() error { return nil }

// fakeLedgerMetrics records calls for assertions
type fakeLedgerMetrics struct {
	mu          sync.Mutex
	adjustments []int
	conflicts   int
	failures    []string
}

func (f *fakeLedgerMetrics) RecordAdjustment(_ context.Context, _ string, change int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjustments = append(f.adjustments, change)
}

func (f *fakeLedgerMetrics) RecordConflict(_ context.Context, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts++
}

func (f *fakeLedgerMetrics) RecordFailure(_ context.Context, _ string, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, code)
}

var (
	_ catalog.VariantRepository         = (*MockVariantRepository)(nil)
	_ catalog.ProductRepository         = (*MockProductRepository)(nil)
	_ inventory.MovementRepository      = (*MockMovementRepository)(nil)
	_ inventory.StockDocumentRepository = (*MockDocumentRepository)(nil)
	_ shared.IdempotencyStore           = (*fakeIdempotencyStore)(nil)
	_ LedgerMetrics                     = (*fakeLedgerMetrics)(nil)
)
