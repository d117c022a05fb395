package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authhandler "github.com/jwalitptl/booking-api/internal/handler/auth"
	bookinghandler "github.com/jwalitptl/booking-api/internal/handler/booking"
	cataloghandler "github.com/jwalitptl/booking-api/internal/handler/catalog"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	promhandler "github.com/jwalitptl/booking-api/internal/handler/prometheus"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/repotest"
	"github.com/jwalitptl/booking-api/internal/scheduler"
	"github.com/jwalitptl/booking-api/internal/scheduler/schedulertest"
	authservice "github.com/jwalitptl/booking-api/internal/service/auth"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/internal/service/catalog"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/security"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	store  *repotest.Store
	tasks  *schedulertest.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := logger.Nop()
	m := metrics.New("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	store := repotest.NewStore()
	tasks := schedulertest.NewStore()

	jwtSvc, err := auth.NewJWTService("test-secret", 0)
	require.NoError(t, err)
	authSvc := authservice.NewService(store.Users(), security.NewBcryptHasher(bcrypt.MinCost), jwtSvc, l)
	catalogSvc := catalog.NewService(store.Services(), store.Users(), 0, l)
	bookingSvc := booking.NewService(
		store.Bookings(), store.Services(), store.Users(),
		notification.NewService(store.Outbox(), "noreply@station.test", l),
		scheduler.New(tasks, l, m),
		booking.Config{StrictTransitions: true},
		l, m,
	)

	r, err := NewRouter(l, authSvc,
		health.NewHandler(nil),
		promhandler.New(reg, m),
		Config{CORS: middleware.DefaultCORSConfig(), Security: middleware.DefaultSecurityConfig()},
		authhandler.NewHandler(authSvc, nil),
		cataloghandler.NewHandler(catalogSvc),
		bookinghandler.NewHandler(bookingSvc),
	)
	require.NoError(t, err)
	r.Setup()

	return &testAPI{t: t, engine: r.Engine(), store: store, tasks: tasks}
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func (a *testAPI) register(name, email string, role model.Role, shop string) {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":         name,
		"email":        email,
		"mobileNumber": "555-0100",
		"password":     "hunter2hunter2",
		"role":         string(role),
		"shopName":     shop,
	})
	require.Equal(a.t, http.StatusCreated, code, env.Message)
}

func (a *testAPI) login(email string) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "hunter2hunter2",
	})
	require.Equal(a.t, http.StatusOK, code, env.Message)

	var tok model.TokenResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(a.t, tok.Token)
	return tok.Token
}

func TestWelcomeAndHealthChecks(t *testing.T) {
	api := newTestAPI(t)

	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome to the Bike Service Station API", w.Body.String())

	w = httptest.NewRecorder()
	api.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	api.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestRegistrationRules(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Olga", "email": "owner@station.test", "mobileNumber": "1",
		"password": "hunter2hunter2", "role": "owner",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Shop name is required for owners", env.Message)

	code, env = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Olga", "email": "owner@station.test", "mobileNumber": "1",
		"password": "hunter2hunter2", "role": "owner", "shopName": "Spokes",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Olga registered successfully as owner", env.Message)
	assert.NotContains(t, string(env.Data), "hunter2")
	assert.NotContains(t, string(env.Data), "passwordHash")

	code, env = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "OWNER@station.test", "mobileNumber": "1",
		"password": "hunter2hunter2", "role": "customer",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "User already exists", env.Message)

	code, _ = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Bad", "email": "bad@station.test", "mobileNumber": "1",
		"password": "hunter2hunter2", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t)
	api.register("Carl", "cust@station.test", model.RoleCustomer, "")

	code, wrongPw := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "cust@station.test", "password": "wrong-password"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, unknown := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@station.test", "password": "wrong-password"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, wrongPw, unknown)
	assert.Equal(t, "Invalid credentials", unknown.Message)

	token := api.login("cust@station.test")

	code, env := api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var me model.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "Carl", me.Name)
	assert.Equal(t, model.RoleCustomer, me.Role)

	code, env = api.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Please authenticate.", env.Message)

	code, _ = api.do(http.MethodGet, "/api/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func (a *testAPI) assertBookingUnchanged(t *testing.T, token string, want model.Booking) {
	t.Helper()
	code, env := a.do(http.MethodGet, "/api/bookings/"+want.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var got model.BookingDetails
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, want.Date.Equal(got.Date))
	assert.Equal(t, want.ServiceID, got.ServiceID)
	assert.Equal(t, want.Status, got.Status)
}

func TestServiceAndBookingFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register("Olga", "owner@station.test", model.RoleOwner, "Spokes")
	api.register("Carl", "cust@station.test", model.RoleCustomer, "")
	api.register("Dana", "other@station.test", model.RoleCustomer, "")
	ownerTok := api.login("owner@station.test")
	custTok := api.login("cust@station.test")
	otherTok := api.login("other@station.test")

	// services
	code, env := api.do(http.MethodPost, "/api/services", custTok, map[string]interface{}{"name": "Tune-up", "description": "Gears", "price": 25})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied", env.Message)

	code, env = api.do(http.MethodPost, "/api/services", ownerTok, map[string]interface{}{"name": "Tune-up", "description": "Gears", "price": 25})
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.Equal(t, "Service created successfully for shop: Spokes", env.Message)
	var svc model.Service
	require.NoError(t, json.Unmarshal(env.Data, &svc))

	code, env = api.do(http.MethodGet, "/api/services", custTok, nil)
	require.Equal(t, http.StatusOK, code)
	var services []model.Service
	require.NoError(t, json.Unmarshal(env.Data, &services))
	assert.Len(t, services, 1)

	// bookings
	code, env = api.do(http.MethodPost, "/api/bookings", custTok, map[string]interface{}{
		"serviceId": svc.ID, "date": time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var b model.Booking
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, svc.OwnerID, b.OwnerID)
	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Len(t, api.store.OutboxEvents(notification.EventTypeEmail), 1)

	code, env = api.do(http.MethodGet, "/api/bookings/owner", ownerTok, nil)
	require.Equal(t, http.StatusOK, code)
	var owned []model.BookingDetails
	require.NoError(t, json.Unmarshal(env.Data, &owned))
	require.Len(t, owned, 1)
	require.NotNil(t, owned[0].Customer)
	assert.Equal(t, "Carl", owned[0].Customer.Name)

	code, _ = api.do(http.MethodPut, "/api/bookings/"+b.ID.String(), otherTok, map[string]interface{}{"date": "2024-06-01T08:00:00Z", "status": "completed"})
	assert.Equal(t, http.StatusForbidden, code)
	api.assertBookingUnchanged(t, custTok, b)

	code, env = api.do(http.MethodPut, "/api/bookings/status/"+b.ID.String(), ownerTok, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, `Invalid booking status: "shipped"`, env.Message)

	code, env = api.do(http.MethodPut, "/api/bookings/status/"+b.ID.String(), custTok, map[string]string{"status": "ready for delivery"})
	assert.Equal(t, http.StatusForbidden, code)
	api.assertBookingUnchanged(t, custTok, b)

	code, env = api.do(http.MethodPut, "/api/bookings/status/"+b.ID.String(), ownerTok, map[string]string{"status": "ready for delivery"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Len(t, api.store.OutboxEvents(notification.EventTypeEmail), 2)
	require.Len(t, api.tasks.Tasks(b.ID), 1)
	assert.Equal(t, booking.CompletionTaskKind, api.tasks.Tasks(b.ID)[0].Kind)

	code, _ = api.do(http.MethodDelete, "/api/bookings/"+b.ID.String(), ownerTok, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodDelete, "/api/bookings/"+b.ID.String(), custTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Booking removed", env.Message)

	code, env = api.do(http.MethodDelete, "/api/bookings/"+b.ID.String(), custTok, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Booking not found", env.Message)

	code, _ = api.do(http.MethodGet, "/api/bookings/not-a-uuid", custTok, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(http.MethodDelete, "/api/services/"+svc.ID.String(), ownerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Service removed", env.Message)
}

func TestBookingUnknownService(t *testing.T) {
	api := newTestAPI(t)
	api.register("Carl", "cust@station.test", model.RoleCustomer, "")
	token := api.login("cust@station.test")

	code, env := api.do(http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"serviceId": "7d1f1b4e-8c43-4c1e-9a51-3f5e2d7a9b10", "date": "2024-05-03T10:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Service not found", env.Message)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	code, env := api.do(http.MethodGet, "/api/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", env.Status)
}
