package conversion

import (
	"context"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of document.Repository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByNumber(ctx context.Context, scope document.Scope, kind document.Kind, number int64) (*document.Document, error) {
	args := m.Called(ctx, scope, kind, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByNumberForUpdate(ctx context.Context, scope document.Scope, kind document.Kind, number int64) (*document.Document, error) {
	args := m.Called(ctx, scope, kind, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkConverted(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// MockSequenceAllocator is a mock implementation of document.SequenceAllocator
type MockSequenceAllocator struct {
	mock.Mock
}

func (m *MockSequenceAllocator) Allocate(ctx context.Context, scope document.Scope, kind document.Kind) (int64, error) {
	args := m.Called(ctx, scope, kind)
	return args.Get(0).(int64), args.Error(1)
}

// MockCatalogReader is a mock implementation of packaging.CatalogReader
type MockCatalogReader struct {
	mock.Mock
}

func (m *MockCatalogReader) FindPackaging(ctx context.Context, companyID int64, productCode string) (packaging.Packaging, bool, error) {
	args := m.Called(ctx, companyID, productCode)
	return args.Get(0).(packaging.Packaging), args.Bool(1), args.Error(2)
}

func (m *MockCatalogReader) FindPrice(ctx context.Context, companyID int64, productCode string, clientID int64) (packaging.PriceEntry, bool, error) {
	args := m.Called(ctx, companyID, productCode, clientID)
	return args.Get(0).(packaging.PriceEntry), args.Bool(1), args.Error(2)
}

// MockLocker is a mock implementation of Locker
type MockLocker struct {
	mock.Mock
	released int
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}
