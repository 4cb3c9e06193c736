package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/docengine/internal/application/conversion"
	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/interfaces/http/dto"
	"github.com/erp/docengine/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testScope = document.Scope{CompanyID: 1, BranchID: 2}

// MockDocumentService implements DocumentService for testing
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, scope document.Scope, kindName string, req conversion.CreateDocumentRequest) (*conversion.DocumentResponse, error) {
	args := m.Called(ctx, scope, kindName, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversion.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, scope document.Scope, kindName string, number int64) (*conversion.DocumentResponse, error) {
	args := m.Called(ctx, scope, kindName, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversion.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Convert(ctx context.Context, scope document.Scope, req conversion.ConvertRequest) (*conversion.DocumentResponse, error) {
	args := m.Called(ctx, scope, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversion.DocumentResponse), args.Error(1)
}

// MockQuantityPreviewer implements QuantityPreviewer for testing
type MockQuantityPreviewer struct {
	mock.Mock
}

func (m *MockQuantityPreviewer) Preview(ctx context.Context, scope document.Scope, req conversion.QuantityPreviewRequest) (*conversion.QuantityPreviewResponse, error) {
	args := m.Called(ctx, scope, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversion.QuantityPreviewResponse), args.Error(1)
}

type routeRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

func newTestEngine(registrars ...routeRegistrar) *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	engine := gin.New()
	api := engine.Group("/api/v1", middleware.Scope())
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CompanyHeaderKey, "1")
	req.Header.Set(middleware.BranchHeaderKey, "2")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func doRequestWithoutScope(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}
