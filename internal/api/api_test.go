package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bcnelson/hub-acl-manager/internal/accesslist"
	"github.com/bcnelson/hub-acl-manager/internal/api"
	"github.com/bcnelson/hub-acl-manager/internal/domain"
	"github.com/bcnelson/hub-acl-manager/internal/hubclient"
	"github.com/bcnelson/hub-acl-manager/internal/service"
	"github.com/bcnelson/hub-acl-manager/internal/storage/memory"
)

// testServer creates a test server with in-memory storage and a file-backed hub.
type testServer struct {
	handler http.Handler
	store   *memory.Store
	client  *hubclient.FileClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	client := hubclient.NewFileClient(filepath.Join(t.TempDir(), "hubs.yaml"))

	// Auto-sync disabled; tests push explicitly
	svc := service.NewAccessListService(store, client, 5*time.Second, false)

	return &testServer{
		handler: api.NewRouter(store, svc),
		store:   store,
		client:  client,
	}
}

func (ts *testServer) request(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) createHub(t *testing.T, name string) {
	t.Helper()
	rr := ts.request("POST", "/api/v1/hubs", domain.CreateHubRequest{
		Name:        name,
		Mode:        domain.ModeDevicesOnly,
		Gateway:     "192.168.30.1",
		GatewayMask: "255.255.255.0",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp domain.StandardErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected error body, got %q", rr.Body.String())
	}
	return resp.Error.Code
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.request("GET", "/health", nil)

	rr := ts.request("GET", "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "hubacl_api_requests_total") {
		t.Error("Expected API request counter in metrics output")
	}
}

func TestHubCRUD(t *testing.T) {
	ts := newTestServer(t)

	ts.createHub(t, "VPN")

	// Duplicate name
	rr := ts.request("POST", "/api/v1/hubs", domain.CreateHubRequest{
		Name: "VPN", Gateway: "192.168.31.1", GatewayMask: "255.255.255.0",
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}

	// Get
	rr = ts.request("GET", "/api/v1/hubs/VPN", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Error("Expected ETag header")
	}

	var hub domain.Hub
	_ = json.Unmarshal(rr.Body.Bytes(), &hub)
	if hub.Mode != domain.ModeDevicesOnly {
		t.Errorf("Expected mode %s, got %s", domain.ModeDevicesOnly, hub.Mode)
	}

	// List
	rr = ts.request("GET", "/api/v1/hubs", nil)
	var hubs []*domain.Hub
	_ = json.Unmarshal(rr.Body.Bytes(), &hubs)
	if len(hubs) != 1 {
		t.Errorf("Expected 1 hub, got %d", len(hubs))
	}

	// Update with a stale ETag
	network := "10.8.0.0"
	networkMask := "255.255.0.0"
	mode := domain.ModeNetworkOnly
	update := domain.UpdateHubRequest{Mode: &mode, Network: &network, NetworkMask: &networkMask}
	rr = ts.request("PUT", "/api/v1/hubs/VPN", update, "If-Match", `"hub-stale-0"`)
	if rr.Code != http.StatusPreconditionFailed {
		t.Errorf("Expected status 412, got %d", rr.Code)
	}

	// Update
	rr = ts.request("PUT", "/api/v1/hubs/VPN", update, "If-Match", etag)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &hub)
	if hub.Mode != domain.ModeNetworkOnly || hub.Network != network {
		t.Errorf("Expected network-only hub for %s, got %s %s", network, hub.Mode, hub.Network)
	}

	// Switching to network-only without a network is rejected
	ts.createHub(t, "LAB")
	rr = ts.request("PUT", "/api/v1/hubs/LAB", domain.UpdateHubRequest{Mode: &mode})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	// Delete
	rr = ts.request("DELETE", "/api/v1/hubs/VPN", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/hubs/VPN", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestHubValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/hubs", domain.CreateHubRequest{
		Name:        "VPN",
		Gateway:     "192.168.30.1",
		GatewayMask: "255.0.255.0",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}

	var resp domain.StandardErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Error.Code != domain.ErrCodeValidationError {
		t.Errorf("Expected code %s, got %s", domain.ErrCodeValidationError, resp.Error.Code)
	}
	if resp.Error.Field != "gatewayMask" {
		t.Errorf("Expected field gatewayMask, got %s", resp.Error.Field)
	}
}

func TestDevicesAndSync(t *testing.T) {
	ts := newTestServer(t)
	ts.createHub(t, "VPN")

	// Add device
	rr := ts.request("POST", "/api/v1/hubs/VPN/devices", domain.CreateDeviceRequest{
		Name: "laptop", Address: "192.168.30.50",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	// Same address twice
	rr = ts.request("POST", "/api/v1/hubs/VPN/devices", domain.CreateDeviceRequest{
		Name: "tv", Address: "192.168.30.50",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	// Name reserved for the gateway rule
	rr = ts.request("POST", "/api/v1/hubs/VPN/devices", domain.CreateDeviceRequest{
		Name: "NatGateway", Address: "192.168.30.70",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	// Sync
	rr = ts.request("POST", "/api/v1/hubs/VPN/access-list/sync", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var sync domain.SyncResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &sync)
	if sync.Status != domain.PushStatusSuccess || sync.VersionNumber != 1 {
		t.Errorf("Expected successful version 1, got %s version %d", sync.Status, sync.VersionNumber)
	}

	// Live access list
	rr = ts.request("GET", "/api/v1/hubs/VPN/access-list", nil)
	var live []domain.AccessRule
	_ = json.Unmarshal(rr.Body.Bytes(), &live)
	if len(live) != 6 {
		t.Errorf("Expected 6 live rules, got %d", len(live))
	}

	// Devices recovered from the live list
	rr = ts.request("GET", "/api/v1/hubs/VPN/access-list/devices/live", nil)
	var recovered struct {
		Devices []string `json:"devices"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &recovered)
	if len(recovered.Devices) != 1 || recovered.Devices[0] != "192.168.30.50" {
		t.Errorf("Expected [192.168.30.50], got %v", recovered.Devices)
	}

	// Preview is in sync
	rr = ts.request("GET", "/api/v1/hubs/VPN/access-list/preview", nil)
	var preview domain.AccessListPreview
	_ = json.Unmarshal(rr.Body.Bytes(), &preview)
	if !preview.InSync {
		t.Errorf("Expected preview in sync, got diff:\n%s", preview.Diff)
	}

	// Replace the device list
	rr = ts.request("PUT", "/api/v1/hubs/VPN/devices", domain.ReplaceDevicesRequest{
		Devices: []domain.CreateDeviceRequest{{Name: "phone", Address: "192.168.30.60"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = ts.request("GET", "/api/v1/hubs/VPN/access-list/preview", nil)
	preview = domain.AccessListPreview{}
	_ = json.Unmarshal(rr.Body.Bytes(), &preview)
	if preview.InSync {
		t.Error("Expected preview out of sync after replacing devices")
	}
	if !strings.Contains(preview.Diff, "AccessFromDevice-phone") {
		t.Errorf("Expected diff to add phone rules, got:\n%s", preview.Diff)
	}

	// Second sync, then roll back to the first
	ts.request("POST", "/api/v1/hubs/VPN/access-list/sync", nil)

	rr = ts.request("GET", "/api/v1/hubs/VPN/access-list/versions", nil)
	var versions []*domain.AccessListVersion
	_ = json.Unmarshal(rr.Body.Bytes(), &versions)
	if len(versions) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(versions))
	}

	rr = ts.request("POST", "/api/v1/hubs/VPN/access-list/rollback/"+versions[1].ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rules, err := ts.client.FetchAccessList(context.Background(), "VPN")
	if err != nil {
		t.Fatal(err)
	}
	ips := accesslist.GetDevicesOnlyIPs(rules)
	if len(ips) != 1 || ips[0] != netip.MustParseAddr("192.168.30.50") {
		t.Errorf("Expected laptop restored by rollback, got %v", ips)
	}

	// Delete device
	rr = ts.request("DELETE", "/api/v1/hubs/VPN/devices/phone", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	rr = ts.request("DELETE", "/api/v1/hubs/VPN/devices/phone", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestSyncGatewayErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.createHub(t, "VPN")
	ctx := context.Background()

	rules, err := accesslist.AllowDevicesOnly(netip.MustParseAddr("192.168.30.1"), netip.MustParseAddr("255.255.255.0"))
	if err != nil {
		t.Fatal(err)
	}

	// Two gateway rules on the hub
	if err := ts.client.SetAccessList(ctx, "VPN", append(rules, rules[2])); err != nil {
		t.Fatal(err)
	}
	rr := ts.request("POST", "/api/v1/hubs/VPN/access-list/sync", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != domain.ErrCodeGatewayRuleAmbiguous {
		t.Errorf("Expected code %s, got %s", domain.ErrCodeGatewayRuleAmbiguous, code)
	}

	// Something that is not a device rule in the device band
	junk := domain.AccessRule{Active: true, Priority: accesslist.AllowDevicesPriority, Note: "printer"}
	if err := ts.client.SetAccessList(ctx, "VPN", append(rules, junk)); err != nil {
		t.Fatal(err)
	}
	rr = ts.request("POST", "/api/v1/hubs/VPN/access-list/sync", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != domain.ErrCodeMalformedRuleSet {
		t.Errorf("Expected code %s, got %s", domain.ErrCodeMalformedRuleSet, code)
	}

	// Both aborted syncs are in the history
	rr = ts.request("GET", "/api/v1/hubs/VPN/access-list/versions", nil)
	var versions []*domain.AccessListVersion
	_ = json.Unmarshal(rr.Body.Bytes(), &versions)
	if len(versions) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(versions))
	}
	for _, v := range versions {
		if v.PushStatus != domain.PushStatusFailed {
			t.Errorf("Expected failed version %d, got %s", v.VersionNumber, v.PushStatus)
		}
	}
}

func TestInvalidRequests(t *testing.T) {
	ts := newTestServer(t)

	// Invalid JSON
	req := httptest.NewRequest("POST", "/api/v1/hubs", strings.NewReader("{invalid"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	// Unknown hub
	for _, path := range []string{
		"/api/v1/hubs/nope",
		"/api/v1/hubs/nope/devices",
		"/api/v1/hubs/nope/access-list",
		"/api/v1/hubs/nope/access-list/preview",
		"/api/v1/hubs/nope/access-list/versions",
	} {
		rr = ts.request("GET", path, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected status 404, got %d", path, rr.Code)
		}
	}

	// Unknown version
	ts.createHub(t, "VPN")
	rr = ts.request("POST", "/api/v1/hubs/VPN/access-list/rollback/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	// Invalid device list
	rr = ts.request("PUT", "/api/v1/hubs/VPN/devices", domain.ReplaceDevicesRequest{
		Devices: []domain.CreateDeviceRequest{{Name: "a", Address: "10.0.0.1"}, {Name: "a", Address: "10.0.0.2"}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}
