package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"garmentshop-be/internal/auth"
	"garmentshop-be/internal/cache"
	"garmentshop-be/internal/middleware"
	"garmentshop-be/internal/notification"
	"garmentshop-be/internal/order"
	"garmentshop-be/internal/product"
	"garmentshop-be/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("transport-test-secret")

// --- Service mocks ---

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Create(ctx context.Context, input order.CreateOrderInput) (*order.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) List(ctx context.Context, status *order.Status, limit, page int32) ([]*order.Order, error) {
	args := m.Called(ctx, status, limit, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, input order.UpdateStatusInput) (*order.Order, error) {
	args := m.Called(ctx, orderID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) List(ctx context.Context, opts product.ListOptions) ([]*product.Product, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*product.Product), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, name string, description *string, price int64, stock int, imageURL *string) (*product.Product, error) {
	args := m.Called(ctx, name, description, price, stock, imageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) SetStock(ctx context.Context, id uuid.UUID, stock int) (*product.Product, error) {
	args := m.Called(ctx, id, stock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*notification.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

// --- Harness ---

type routerFixture struct {
	handler       http.Handler
	orders        *MockOrderService
	products      *MockProductService
	notifications *MockNotificationService
	store         *cache.Memory
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		orders:        new(MockOrderService),
		products:      new(MockProductService),
		notifications: new(MockNotificationService),
		store:         cache.NewMemory(),
	}
	f.handler = NewRouter(RouterConfig{
		Auth:          middleware.NewAuthenticator(testSecret),
		Cache:         cache.NewHTTPCache(f.store, time.Minute, nil),
		Orders:        f.orders,
		Products:      f.products,
		Notifications: f.notifications,
	})
	return f
}

func bearerFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.SignToken(userID, "user@example.com", role, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(f *routerFixture, method, target, authz string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) utils.Envelope {
	t.Helper()
	var env utils.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// --- Auth gating ---

func TestRouter_AuthGating(t *testing.T) {
	f := newRouterFixture(t)
	user := bearerFor(t, uuid.New(), utils.RoleUser)

	t.Run("AnonymousOrderRejected", func(t *testing.T) {
		w := doRequest(f, http.MethodGet, "/api/orders", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Message)
	})

	t.Run("UserCannotUpdateStatus", func(t *testing.T) {
		w := doRequest(f, http.MethodPut, "/api/orders/"+uuid.NewString()+"/status", user,
			map[string]string{"status": "PROCESSING"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, decodeEnvelope(t, w).Success)
	})

	t.Run("UserCannotCreateProduct", func(t *testing.T) {
		w := doRequest(f, http.MethodPost, "/api/products", user,
			map[string]any{"name": "Shirt", "price": 1000, "stock": 5})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("AnonymousCatalogAllowed", func(t *testing.T) {
		f.products.On("List", mock.Anything, mock.Anything).
			Return([]*product.Product{}, nil).Once()

		w := doRequest(f, http.MethodGet, "/api/products", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeEnvelope(t, w).Success)
	})
}

// --- Orders ---

func TestRouter_CreateOrder(t *testing.T) {
	f := newRouterFixture(t)
	userID := uuid.New()
	token := bearerFor(t, userID, utils.RoleUser)

	productID := uuid.New()
	body := map[string]any{
		"items": []map[string]any{
			{"product_id": productID.String(), "quantity": 2},
		},
		"shipping_address": map[string]string{
			"name":    "Jane Doe",
			"phone":   "+628123456789",
			"address": "1 Batik Lane",
		},
		"payment_method": "COD",
	}

	t.Run("Created", func(t *testing.T) {
		created := &order.Order{ID: uuid.New(), UserID: userID, Status: order.StatusPending, TotalAmount: 5000}
		f.orders.On("Create", mock.Anything, mock.MatchedBy(func(in order.CreateOrderInput) bool {
			return len(in.Items) == 1 && in.Items[0].ProductID == productID && in.Items[0].Quantity == 2
		})).Return(created, nil).Once()

		w := doRequest(f, http.MethodPost, "/api/orders", token, body)
		assert.Equal(t, http.StatusCreated, w.Code)

		env := decodeEnvelope(t, w)
		assert.True(t, env.Success)
		assert.NotNil(t, env.Data)
	})

	t.Run("InsufficientStockIsConflict", func(t *testing.T) {
		f.orders.On("Create", mock.Anything, mock.Anything).
			Return(nil, &order.InsufficientStockError{ProductID: productID, Requested: 2, Available: 1}).Once()

		w := doRequest(f, http.MethodPost, "/api/orders", bearerFor(t, uuid.New(), utils.RoleUser), body)
		assert.Equal(t, http.StatusConflict, w.Code)

		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.Contains(t, env.Message, "insufficient stock")
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{not json"))
		req.Header.Set("Authorization", bearerFor(t, uuid.New(), utils.RoleUser))
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("EmptyOrderIsBadRequest", func(t *testing.T) {
		f.orders.On("Create", mock.Anything, mock.Anything).
			Return(nil, order.ErrEmptyOrder).Once()

		w := doRequest(f, http.MethodPost, "/api/orders", bearerFor(t, uuid.New(), utils.RoleUser),
			map[string]any{"items": []any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	f.orders.AssertExpectations(t)
}

func TestRouter_GetOrder(t *testing.T) {
	f := newRouterFixture(t)
	userID := uuid.New()
	token := bearerFor(t, userID, utils.RoleUser)
	orderID := uuid.New()

	t.Run("Found", func(t *testing.T) {
		f.orders.On("GetByID", mock.Anything, orderID).
			Return(&order.Order{ID: orderID, UserID: userID}, nil).Once()

		w := doRequest(f, http.MethodGet, "/api/orders/"+orderID.String(), token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		f.orders.On("GetByID", mock.Anything, orderID).
			Return(nil, order.ErrOrderNotFound).Once()

		w := doRequest(f, http.MethodGet, "/api/orders/"+orderID.String(), token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ForeignOrderIsForbidden", func(t *testing.T) {
		f.orders.On("GetByID", mock.Anything, orderID).
			Return(nil, order.ErrNotAuthorized).Once()

		w := doRequest(f, http.MethodGet, "/api/orders/"+orderID.String(), token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("BadID", func(t *testing.T) {
		w := doRequest(f, http.MethodGet, "/api/orders/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	f.orders.AssertExpectations(t)
}

func TestRouter_ListOrders(t *testing.T) {
	f := newRouterFixture(t)
	token := bearerFor(t, uuid.New(), utils.RoleUser)

	t.Run("StatusFilterAndPagination", func(t *testing.T) {
		pending := order.StatusPending
		f.orders.On("List", mock.Anything, &pending, int32(5), int32(3)).
			Return([]*order.Order{}, nil).Once()

		w := doRequest(f, http.MethodGet, "/api/orders?status=PENDING&limit=5&page=3", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("InvalidStatusFilter", func(t *testing.T) {
		w := doRequest(f, http.MethodGet, "/api/orders?status=BOGUS", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	f.orders.AssertExpectations(t)
}

func TestRouter_UpdateStatusAndCancel(t *testing.T) {
	f := newRouterFixture(t)
	admin := bearerFor(t, uuid.New(), utils.RoleAdmin)
	user := bearerFor(t, uuid.New(), utils.RoleUser)
	orderID := uuid.New()

	t.Run("AdminUpdatesStatus", func(t *testing.T) {
		processing := order.StatusProcessing
		f.orders.On("UpdateStatus", mock.Anything, orderID, mock.MatchedBy(func(in order.UpdateStatusInput) bool {
			return in.Status != nil && *in.Status == processing
		})).Return(&order.Order{ID: orderID, Status: processing}, nil).Once()

		w := doRequest(f, http.MethodPut, "/api/orders/"+orderID.String()+"/status", admin,
			map[string]string{"status": "PROCESSING"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("IllegalTransitionIsConflict", func(t *testing.T) {
		f.orders.On("UpdateStatus", mock.Anything, orderID, mock.Anything).
			Return(nil, order.ErrInvalidTransition).Once()

		w := doRequest(f, http.MethodPut, "/api/orders/"+orderID.String()+"/status", admin,
			map[string]string{"status": "DELIVERED"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("UserCancels", func(t *testing.T) {
		f.orders.On("Cancel", mock.Anything, orderID).
			Return(&order.Order{ID: orderID, Status: order.StatusCancelled}, nil).Once()

		w := doRequest(f, http.MethodPut, "/api/orders/"+orderID.String()+"/cancel", user, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("CancelAfterShipmentIsConflict", func(t *testing.T) {
		f.orders.On("Cancel", mock.Anything, orderID).
			Return(nil, order.ErrInvalidTransition).Once()

		w := doRequest(f, http.MethodPut, "/api/orders/"+orderID.String()+"/cancel", user, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	f.orders.AssertExpectations(t)
}

// --- Products & caching ---

func TestRouter_ProductListIsCached(t *testing.T) {
	f := newRouterFixture(t)

	f.products.On("List", mock.Anything, mock.Anything).
		Return([]*product.Product{{ID: uuid.New(), Name: "Shirt", Price: 1000}}, nil).Once()

	first := doRequest(f, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("X-Cache"))

	// Second read is served from cache; the service is not called again.
	second := doRequest(f, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	f.products.AssertExpectations(t)
}

func TestRouter_ProductQueryVariantsCachedSeparately(t *testing.T) {
	f := newRouterFixture(t)

	f.products.On("List", mock.Anything, mock.MatchedBy(func(opts product.ListOptions) bool {
		return opts.Page == 1
	})).Return([]*product.Product{}, nil).Once()
	f.products.On("List", mock.Anything, mock.MatchedBy(func(opts product.ListOptions) bool {
		return opts.Page == 2
	})).Return([]*product.Product{}, nil).Once()

	doRequest(f, http.MethodGet, "/api/products?page=1", "", nil)
	doRequest(f, http.MethodGet, "/api/products?page=2", "", nil)

	f.products.AssertExpectations(t)
}

func TestRouter_AdminStockUpdate(t *testing.T) {
	f := newRouterFixture(t)
	admin := bearerFor(t, uuid.New(), utils.RoleAdmin)
	productID := uuid.New()

	t.Run("OK", func(t *testing.T) {
		f.products.On("SetStock", mock.Anything, productID, 42).
			Return(&product.Product{ID: productID, Stock: 42}, nil).Once()

		w := doRequest(f, http.MethodPut, "/api/products/"+productID.String()+"/stock", admin,
			map[string]int{"stock": 42})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("NegativeStock", func(t *testing.T) {
		f.products.On("SetStock", mock.Anything, productID, -1).
			Return(nil, product.ErrInvalidInput).Once()

		w := doRequest(f, http.MethodPut, "/api/products/"+productID.String()+"/stock", admin,
			map[string]int{"stock": -1})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	f.products.AssertExpectations(t)
}

// --- Notifications ---

func TestRouter_Notifications(t *testing.T) {
	f := newRouterFixture(t)
	userID := uuid.New()
	token := bearerFor(t, userID, utils.RoleUser)

	t.Run("ListScopedToUser", func(t *testing.T) {
		f.notifications.On("ListByUser", mock.Anything, userID).
			Return([]*notification.Notification{}, nil).Once()

		w := doRequest(f, http.MethodGet, "/api/notifications", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ListCachedPerUser", func(t *testing.T) {
		// Previous subtest populated the cache for userID; a second read hits it.
		w := doRequest(f, http.MethodGet, "/api/notifications", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

		// A different user misses.
		otherID := uuid.New()
		f.notifications.On("ListByUser", mock.Anything, otherID).
			Return([]*notification.Notification{}, nil).Once()

		other := doRequest(f, http.MethodGet, "/api/notifications", bearerFor(t, otherID, utils.RoleUser), nil)
		assert.Equal(t, http.StatusOK, other.Code)
		assert.Empty(t, other.Header().Get("X-Cache"))
	})

	t.Run("MarkRead", func(t *testing.T) {
		id := uuid.New()
		f.notifications.On("MarkRead", mock.Anything, id, userID).Return(nil).Once()

		w := doRequest(f, http.MethodPut, "/api/notifications/"+id.String()+"/read", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("MarkReadForeign", func(t *testing.T) {
		id := uuid.New()
		f.notifications.On("MarkRead", mock.Anything, id, userID).
			Return(notification.ErrNotFound).Once()

		w := doRequest(f, http.MethodPut, "/api/notifications/"+id.String()+"/read", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	f.notifications.AssertExpectations(t)
}

// --- Rate limiting ---

func TestRouter_RateLimitBucketsAuthenticatedUsers(t *testing.T) {
	f := newRouterFixture(t)
	orderID := uuid.New()

	f.orders.On("Cancel", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, Status: order.StatusCancelled}, nil)

	cancel := func(token string) int {
		w := doRequest(f, http.MethodPut, "/api/orders/"+orderID.String()+"/cancel", token, nil)
		return w.Code
	}

	// Alice exhausts the strict write bucket. Every httptest request shares
	// one RemoteAddr, so this only holds if the principal is resolved before
	// the limiter picks a bucket.
	alice := bearerFor(t, uuid.New(), utils.RoleUser)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, cancel(alice))
	}
	assert.Equal(t, http.StatusTooManyRequests, cancel(alice))

	// Bob, same ip, still gets through.
	bob := bearerFor(t, uuid.New(), utils.RoleUser)
	assert.Equal(t, http.StatusOK, cancel(bob))
}

// --- Error masking ---

func TestRouter_UnknownErrorsMasked(t *testing.T) {
	f := newRouterFixture(t)
	token := bearerFor(t, uuid.New(), utils.RoleUser)
	orderID := uuid.New()

	f.orders.On("GetByID", mock.Anything, orderID).
		Return(nil, errors.New("pq: connection reset")).Once()

	w := doRequest(f, http.MethodGet, "/api/orders/"+orderID.String(), token, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "internal server error", env.Message)

	f.orders.AssertExpectations(t)
}
