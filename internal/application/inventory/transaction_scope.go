package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
//
// A ledger write touches VariantRepo (row lock + versioned save) and
// MovementRepo (append) in the same transaction; that pairing is what keeps
// quantity, status and the audit trail consistent.
type TransactionalRepositories interface {
	VariantRepo() catalog.VariantRepository
	ProductRepo() catalog.ProductRepository
	CategoryRepo() catalog.CategoryRepository
	MovementRepo() inventory.MovementRepository
	DocumentRepo() inventory.StockDocumentRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing with mocked repositories.
type NoOpTransactionScope struct {
	variantRepo  catalog.VariantRepository
	productRepo  catalog.ProductRepository
	categoryRepo catalog.CategoryRepository
	movementRepo inventory.MovementRepository
	documentRepo inventory.StockDocumentRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
// Any of them may be nil when the code under test does not reach it.
func NewNoOpTransactionScope(
	variantRepo catalog.VariantRepository,
	productRepo catalog.ProductRepository,
	categoryRepo catalog.CategoryRepository,
	movementRepo inventory.MovementRepository,
	documentRepo inventory.StockDocumentRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		variantRepo:  variantRepo,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		movementRepo: movementRepo,
		documentRepo: documentRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) VariantRepo() catalog.VariantRepository { return s.variantRepo }
func (s *NoOpTransactionScope) ProductRepo() catalog.ProductRepository { return s.productRepo }
func (s *NoOpTransactionScope) CategoryRepo() catalog.CategoryRepository { return s.categoryRepo }
func (s *NoOpTransactionScope) MovementRepo() inventory.MovementRepository { return s.movementRepo }
func (s *NoOpTransactionScope) DocumentRepo() inventory.StockDocumentRepository { return s.documentRepo }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
