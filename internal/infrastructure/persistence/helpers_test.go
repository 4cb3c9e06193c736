package persistence

import (
	"testing"
	"time"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testScope = document.Scope{CompanyID: 1, BranchID: 1}

// newSQLiteDB opens a migrated in-memory database private to the test
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := NewDatabase(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   ":memory:",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, AutoMigrate(database.DB))
	return database.DB
}

// newTestDocument builds a numbered draft with n items priced 10 each
func newTestDocument(t *testing.T, scope document.Scope, kind document.Kind, number int64, n int) *document.Document {
	t.Helper()

	doc, err := document.NewDocument(scope, kind, document.Header{
		ClientID:  42,
		SellerID:  7,
		IssueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		area := decimal.NewFromInt(int64(i + 1))
		_, err := doc.AddItem(document.ItemInput{
			ProductCode: "FLOOR-OAK",
			Area:        &area,
			Quantity:    decimal.NewFromInt(int64(i + 1)),
			UnitPrice:   decimal.NewFromInt(10),
			Note:        "room",
		})
		require.NoError(t, err)
	}
	require.NoError(t, doc.AssignNumber(number))
	return doc
}
