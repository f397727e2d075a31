package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorchak/groundlink/internal/auth"
	"github.com/akorchak/groundlink/internal/drone"
	"github.com/akorchak/groundlink/internal/link"
	"github.com/akorchak/groundlink/internal/middleware"
	"github.com/akorchak/groundlink/internal/models"
)

// mockCommander is a function-field test double for DroneCommander.
type mockCommander struct {
	RegisterFunc            func(ctx context.Context, userID int64, name, uin, connString string) (*models.Drone, error)
	ResolveByOwnerFunc      func(userID int64) (int64, bool)
	FirstOwnedFunc          func(userID int64) (int64, bool)
	ConnectWithEndpointFunc func(droneID int64, connString string) error
	DisconnectFunc          func(droneID int64) error
	ArmFunc                 func(droneID int64) error
	DisarmFunc              func(droneID int64) error
	SetModeFunc             func(droneID int64, mode string) error
	StatusFunc              func(droneID int64) (*models.DroneStatusResponse, error)
	SendOperatorMessageFunc func(text string, importance drone.Importance, droneID int64) error
}

func newMockCommander() *mockCommander {
	return &mockCommander{
		RegisterFunc: func(_ context.Context, userID int64, name, uin, _ string) (*models.Drone, error) {
			return &models.Drone{ID: 1, UserID: userID, Name: name, UIN: uin}, nil
		},
		ResolveByOwnerFunc:      func(int64) (int64, bool) { return 1, true },
		FirstOwnedFunc:          func(int64) (int64, bool) { return 1, true },
		ConnectWithEndpointFunc: func(int64, string) error { return nil },
		DisconnectFunc:          func(int64) error { return nil },
		ArmFunc:                 func(int64) error { return nil },
		DisarmFunc:              func(int64) error { return nil },
		SetModeFunc:             func(int64, string) error { return nil },
		StatusFunc: func(droneID int64) (*models.DroneStatusResponse, error) {
			return &models.DroneStatusResponse{ID: droneID, Status: "connected"}, nil
		},
		SendOperatorMessageFunc: func(string, drone.Importance, int64) error { return nil },
	}
}

func (m *mockCommander) Register(ctx context.Context, userID int64, name, uin, connString string) (*models.Drone, error) {
	return m.RegisterFunc(ctx, userID, name, uin, connString)
}
func (m *mockCommander) ResolveByOwner(userID int64) (int64, bool) { return m.ResolveByOwnerFunc(userID) }
func (m *mockCommander) FirstOwned(userID int64) (int64, bool)     { return m.FirstOwnedFunc(userID) }
func (m *mockCommander) ConnectWithEndpoint(droneID int64, cs string) error {
	return m.ConnectWithEndpointFunc(droneID, cs)
}
func (m *mockCommander) Disconnect(droneID int64) error { return m.DisconnectFunc(droneID) }
func (m *mockCommander) Arm(droneID int64) error        { return m.ArmFunc(droneID) }
func (m *mockCommander) Disarm(droneID int64) error     { return m.DisarmFunc(droneID) }
func (m *mockCommander) SetMode(droneID int64, mode string) error {
	return m.SetModeFunc(droneID, mode)
}
func (m *mockCommander) Status(droneID int64) (*models.DroneStatusResponse, error) {
	return m.StatusFunc(droneID)
}
func (m *mockCommander) SendOperatorMessage(text string, importance drone.Importance, droneID int64) error {
	return m.SendOperatorMessageFunc(text, importance, droneID)
}

func setupDroneTest() (*DroneHandler, *mockCommander) {
	gin.SetMode(gin.TestMode)
	cmd := newMockCommander()
	return NewDroneHandler(cmd), cmd
}

// testContext builds a gin context with an authenticated principal.
func testContext(t *testing.T, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(string(middleware.PrincipalKey), auth.Principal{UserID: 7})
	return c, w
}

func TestDroneHandler_Arm_Success(t *testing.T) {
	handler, cmd := setupDroneTest()

	var armed int64
	cmd.ResolveByOwnerFunc = func(int64) (int64, bool) { return 42, true }
	cmd.ArmFunc = func(droneID int64) error { armed = droneID; return nil }

	c, w := testContext(t, http.MethodPost, "/drone/arm", nil)
	handler.Arm(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), armed)
}

func TestDroneHandler_Arm_NoConnectedDrone(t *testing.T) {
	handler, cmd := setupDroneTest()
	cmd.ResolveByOwnerFunc = func(int64) (int64, bool) { return 0, false }

	c, w := testContext(t, http.MethodPost, "/drone/arm", nil)
	handler.Arm(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDroneHandler_Arm_PeerUnknown(t *testing.T) {
	handler, cmd := setupDroneTest()
	cmd.ArmFunc = func(int64) error { return link.ErrPeerUnknown }

	c, w := testContext(t, http.MethodPost, "/drone/arm", nil)
	handler.Arm(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "peer address unknown")
}

func TestDroneHandler_SetMode_Unknown(t *testing.T) {
	handler, cmd := setupDroneTest()
	cmd.SetModeFunc = func(int64, string) error { return drone.ErrUnknownMode }

	c, w := testContext(t, http.MethodPost, "/drone/set-mode", gin.H{"mode": "WARP"})
	handler.SetMode(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDroneHandler_SetMode_MissingBody(t *testing.T) {
	handler, _ := setupDroneTest()

	c, w := testContext(t, http.MethodPost, "/drone/set-mode", gin.H{})
	handler.SetMode(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDroneHandler_Connect_InvalidConnectionString(t *testing.T) {
	handler, cmd := setupDroneTest()
	cmd.ConnectWithEndpointFunc = func(_ int64, cs string) error {
		_, err := link.ParseConnectionString(cs)
		return err
	}

	c, w := testContext(t, http.MethodPost, "/drone/connect", gin.H{"connection_string": "bogus"})
	handler.Connect(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_connection_string")
}

func TestDroneHandler_Register_Conflict(t *testing.T) {
	handler, cmd := setupDroneTest()
	cmd.RegisterFunc = func(context.Context, int64, string, string, string) (*models.Drone, error) {
		return nil, drone.ErrUinConflict
	}

	c, w := testContext(t, http.MethodPost, "/user/drone/register", gin.H{
		"name": "alpha", "uin": "UIN-001", "connection_string": "udp:0.0.0.0:14550",
	})
	handler.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDroneHandler_Status(t *testing.T) {
	handler, cmd := setupDroneTest()
	cmd.StatusFunc = func(droneID int64) (*models.DroneStatusResponse, error) {
		return &models.DroneStatusResponse{ID: droneID, UIN: "UIN-001", Status: "connected"}, nil
	}

	c, w := testContext(t, http.MethodGet, "/drone/status", nil)
	handler.Status(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UIN-001")
}

func TestAdminHandler_SendMessage_Broadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cmd := newMockCommander()

	var gotImportance drone.Importance
	var gotDroneID int64
	cmd.SendOperatorMessageFunc = func(_ string, importance drone.Importance, droneID int64) error {
		gotImportance = importance
		gotDroneID = droneID
		return nil
	}

	handler := NewAdminHandler(cmd, nil, nil)
	c, w := testContext(t, http.MethodPost, "/admin/message/send", gin.H{
		"message":    "check weather",
		"importance": "WARNING",
	})
	handler.SendMessage(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, drone.ImportanceWarning, gotImportance)
	assert.Zero(t, gotDroneID)
}
