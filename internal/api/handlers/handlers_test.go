package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridelink/ride-coordinator/internal/api/handlers"
	"github.com/ridelink/ride-coordinator/internal/api/routes"
	"github.com/ridelink/ride-coordinator/internal/config"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/service/geo"
	"github.com/ridelink/ride-coordinator/internal/service/matching"
	"github.com/ridelink/ride-coordinator/internal/service/pricing"
	"github.com/ridelink/ride-coordinator/internal/service/session"
	"github.com/ridelink/ride-coordinator/internal/service/wallet"
	"github.com/ridelink/ride-coordinator/internal/storage"
	"github.com/ridelink/ride-coordinator/pkg/logger"
	"github.com/ridelink/ride-coordinator/pkg/monitoring"
	"github.com/ridelink/ride-coordinator/pkg/websocket"
)

const testSecret = "test-secret"

var testPickup = ride.Coord{Latitude: 22.5726, Longitude: 88.3639}

// fakeLocations serves a fixed set of driver positions and accepts writes
type fakeLocations struct {
	positions []geo.DriverPosition
}

func (f *fakeLocations) Near(ctx context.Context, origin ride.Coord) ([]geo.DriverPosition, error) {
	return f.positions, nil
}

func (f *fakeLocations) Update(ctx context.Context, driverID uuid.UUID, coord ride.Coord) error {
	for i := range f.positions {
		if f.positions[i].DriverID == driverID {
			f.positions[i].Coord = coord
			return nil
		}
	}
	f.positions = append(f.positions, geo.DriverPosition{DriverID: driverID, Coord: coord})
	return nil
}

func (f *fakeLocations) Remove(ctx context.Context, driverID uuid.UUID) error {
	for i := range f.positions {
		if f.positions[i].DriverID == driverID {
			f.positions = append(f.positions[:i], f.positions[i+1:]...)
			return nil
		}
	}
	return nil
}

type env struct {
	router *gin.Engine
	rides  *storage.MemoryRideStore
	users  *storage.MemoryUserStore
}

func newEnv(t *testing.T) *env {
	return newEnvWithMatching(t, matching.Config{})
}

func newEnvWithMatching(t *testing.T, cfg matching.Config) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	rides := storage.NewMemoryRideStore()
	users := storage.NewMemoryUserStore()
	locations := &fakeLocations{}

	hub := websocket.NewHub(log)
	go hub.Run()
	notifier := websocket.NewRideNotifier(hub)

	coordinator := matching.NewCoordinator(rides, users, locations,
		pricing.NewService(pricing.DefaultConfig()), matching.NewMemoryRejections(),
		notifier, log, cfg)
	tracker := session.NewTracker(rides, log)
	ledger := wallet.NewLedger(users, log)

	nrApp, err := monitoring.New(monitoring.Config{})
	require.NoError(t, err)

	jwtCfg := config.JWTConfig{Secret: testSecret, Expiry: time.Hour}
	h := handlers.NewHandlers(rides, users, coordinator, tracker, ledger, locations,
		hub, notifier, log, nrApp, jwtCfg)

	router := gin.New()
	routes.SetupRoutes(router, h, nil, testSecret)

	return &env{router: router, rides: rides, users: users}
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

// registerAndLogin creates an account and returns its ID and API token
func (e *env) registerAndLogin(t *testing.T, role, name string) (uuid.UUID, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/users", "", gin.H{
		"role":  role,
		"name":  name,
		"email": name + "@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, w, &created)

	w = e.do(t, http.MethodPost, "/v1/auth/token", "", gin.H{"user_id": created.ID.String()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tok struct {
		Token string `json:"token"`
	}
	decode(t, w, &tok)
	require.NotEmpty(t, tok.Token)

	return created.ID, tok.Token
}

func TestRideFlow_RequestAcceptVerifyComplete(t *testing.T) {
	e := newEnv(t)
	_, riderToken := e.registerAndLogin(t, "rider", "asha")
	_, driverToken := e.registerAndLogin(t, "driver", "ravi")

	// Driver reports a position near the pickup point
	w := e.do(t, http.MethodPost, "/v1/drivers/location", driverToken, gin.H{
		"latitude":  testPickup.Latitude,
		"longitude": testPickup.Longitude,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Rider requests a ride
	w = e.do(t, http.MethodPost, "/v1/rides", riderToken, gin.H{
		"pickup_latitude":  testPickup.Latitude,
		"pickup_longitude": testPickup.Longitude,
		"drop_latitude":    22.6,
		"drop_longitude":   88.4,
		"ride_type":        "cab_ac",
		"payment_method":   "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
		Pin    string    `json:"pin"`
		Price  float64   `json:"price"`
	}
	decode(t, w, &created)
	assert.Equal(t, "pending", created.Status)
	assert.Len(t, created.Pin, 4)
	assert.Greater(t, created.Price, 0.0)

	// The driver's view of the same ride must not carry the PIN
	w = e.do(t, http.MethodGet, "/v1/rides/"+created.ID.String(), driverToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var driverView struct {
		Pin string `json:"pin"`
	}
	decode(t, w, &driverView)
	assert.Empty(t, driverView.Pin)

	// Driver accepts
	w = e.do(t, http.MethodPost, "/v1/drivers/accept", driverToken, gin.H{
		"ride_id": created.ID.String(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var accepted struct {
		Status   string     `json:"status"`
		DriverID *uuid.UUID `json:"driver_id"`
	}
	decode(t, w, &accepted)
	assert.Equal(t, "accepted", accepted.Status)
	require.NotNil(t, accepted.DriverID)

	// Completion before PIN verification is refused
	w = e.do(t, http.MethodPost, "/v1/rides/"+created.ID.String()+"/complete", driverToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Wrong PIN is refused and leaks nothing
	w = e.do(t, http.MethodPost, "/v1/rides/"+created.ID.String()+"/verify-pin", driverToken, gin.H{
		"pin": "0000",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var failure struct {
		Message string `json:"message"`
	}
	decode(t, w, &failure)
	assert.NotContains(t, failure.Message, created.Pin)

	// Correct PIN verifies
	w = e.do(t, http.MethodPost, "/v1/rides/"+created.ID.String()+"/verify-pin", driverToken, gin.H{
		"pin": created.Pin,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Completion now succeeds
	w = e.do(t, http.MethodPost, "/v1/rides/"+created.ID.String()+"/complete", driverToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var completed struct {
		Status string `json:"status"`
	}
	decode(t, w, &completed)
	assert.Equal(t, "completed", completed.Status)
}

func TestAcceptRide_SecondDriverGetsConflict(t *testing.T) {
	e := newEnv(t)
	_, riderToken := e.registerAndLogin(t, "rider", "asha")
	_, firstToken := e.registerAndLogin(t, "driver", "ravi")
	_, secondToken := e.registerAndLogin(t, "driver", "meera")

	for _, tok := range []string{firstToken, secondToken} {
		w := e.do(t, http.MethodPost, "/v1/drivers/location", tok, gin.H{
			"latitude":  testPickup.Latitude,
			"longitude": testPickup.Longitude,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := e.do(t, http.MethodPost, "/v1/rides", riderToken, gin.H{
		"pickup_latitude":  testPickup.Latitude,
		"pickup_longitude": testPickup.Longitude,
		"drop_latitude":    22.6,
		"drop_longitude":   88.4,
		"ride_type":        "bike",
		"payment_method":   "upi",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, w, &created)

	body := gin.H{"ride_id": created.ID.String()}
	w = e.do(t, http.MethodPost, "/v1/drivers/accept", firstToken, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/v1/drivers/accept", secondToken, body)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestAuth_MissingAndWrongRole(t *testing.T) {
	e := newEnv(t)
	_, riderToken := e.registerAndLogin(t, "rider", "asha")

	// No token at all
	w := e.do(t, http.MethodGet, "/v1/rides", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A rider may not use driver endpoints
	w = e.do(t, http.MethodPost, "/v1/drivers/location", riderToken, gin.H{
		"latitude":  testPickup.Latitude,
		"longitude": testPickup.Longitude,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Garbage token
	w = e.do(t, http.MethodGet, "/v1/rides", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWallet_RechargeWithdrawAndHistory(t *testing.T) {
	e := newEnv(t)
	_, riderToken := e.registerAndLogin(t, "rider", "asha")

	w := e.do(t, http.MethodPost, "/v1/wallet/recharge", riderToken, gin.H{"amount": 100.0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var balance struct {
		Balance float64 `json:"balance"`
	}
	decode(t, w, &balance)
	assert.Equal(t, 100.0, balance.Balance)

	// Overdraft is refused
	w = e.do(t, http.MethodPost, "/v1/wallet/withdraw", riderToken, gin.H{"amount": 150.0})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/v1/wallet/withdraw", riderToken, gin.H{"amount": 40.0})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &balance)
	assert.Equal(t, 60.0, balance.Balance)

	w = e.do(t, http.MethodGet, "/v1/wallet/transactions", riderToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var history struct {
		Transactions []struct {
			Kind   string  `json:"kind"`
			Amount float64 `json:"amount"`
		} `json:"transactions"`
	}
	decode(t, w, &history)
	assert.Len(t, history.Transactions, 2)
}

func TestAwaitAssignment_OutlivesServerWriteTimeout(t *testing.T) {
	e := newEnvWithMatching(t, matching.Config{MatchWindow: 2 * time.Second})
	_, riderToken := e.registerAndLogin(t, "rider", "asha")

	// no drivers anywhere near the pickup: the wait runs the full window
	w := e.do(t, http.MethodPost, "/v1/rides", riderToken, gin.H{
		"pickup_latitude":  testPickup.Latitude,
		"pickup_longitude": testPickup.Longitude,
		"drop_latitude":    22.6,
		"drop_longitude":   88.4,
		"ride_type":        "bike",
		"payment_method":   "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, w, &created)

	// a real server whose write timeout expires long before the match window
	srv := httptest.NewUnstartedServer(e.router)
	srv.Config.ReadTimeout = 15 * time.Second
	srv.Config.WriteTimeout = 200 * time.Millisecond
	srv.Start()
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/rides/"+created.ID.String()+"/assignment", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+riderToken)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err, "connection must stay alive past the server write timeout")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "NOT_FOUND", envelope.Code)
	assert.Contains(t, envelope.Message, "No driver found")
}

func TestCoordinateBinding_ZeroIsValid(t *testing.T) {
	e := newEnv(t)
	_, riderToken := e.registerAndLogin(t, "rider", "asha")
	_, driverToken := e.registerAndLogin(t, "driver", "ravi")

	// the equator/prime-meridian intersection is a legitimate position
	w := e.do(t, http.MethodPost, "/v1/drivers/location", driverToken, gin.H{
		"latitude":  0.0,
		"longitude": 0.0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a missing coordinate is still rejected
	w = e.do(t, http.MethodPost, "/v1/drivers/location", driverToken, gin.H{
		"longitude": 10.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// so is one outside the valid range
	w = e.do(t, http.MethodPost, "/v1/drivers/location", driverToken, gin.H{
		"latitude":  91.0,
		"longitude": 0.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// a ride crossing the origin binds and matches the driver parked there
	w = e.do(t, http.MethodPost, "/v1/rides", riderToken, gin.H{
		"pickup_latitude":  0.0,
		"pickup_longitude": 0.0,
		"drop_latitude":    0.01,
		"drop_longitude":   0.01,
		"ride_type":        "bike",
		"payment_method":   "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Status string `json:"status"`
		Pickup struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"pickup"`
	}
	decode(t, w, &created)
	assert.Equal(t, "pending", created.Status)
	assert.Zero(t, created.Pickup.Latitude)
	assert.Zero(t, created.Pickup.Longitude)
}

func TestCancelRide_RiderCancelsPending(t *testing.T) {
	e := newEnv(t)
	riderID, riderToken := e.registerAndLogin(t, "rider", "asha")

	w := e.do(t, http.MethodPost, "/v1/rides", riderToken, gin.H{
		"pickup_latitude":  testPickup.Latitude,
		"pickup_longitude": testPickup.Longitude,
		"drop_latitude":    22.6,
		"drop_longitude":   88.4,
		"ride_type":        "parcel",
		"payment_method":   "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID      uuid.UUID `json:"id"`
		RiderID uuid.UUID `json:"rider_id"`
	}
	decode(t, w, &created)
	assert.Equal(t, riderID, created.RiderID)

	w = e.do(t, http.MethodPost, fmt.Sprintf("/v1/rides/%s/cancel", created.ID), riderToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cancelled struct {
		Status string `json:"status"`
	}
	decode(t, w, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Status)

	// Cancelling again hits a terminal state
	w = e.do(t, http.MethodPost, fmt.Sprintf("/v1/rides/%s/cancel", created.ID), riderToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}
