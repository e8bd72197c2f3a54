package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/HenriMatthijssen/ePaper/internal/config"
	"github.com/HenriMatthijssen/ePaper/internal/connectivity"
	"github.com/HenriMatthijssen/ePaper/internal/control"
	"github.com/HenriMatthijssen/ePaper/internal/device"
	"github.com/HenriMatthijssen/ePaper/internal/firmware"
	"github.com/HenriMatthijssen/ePaper/internal/flashblock"
	"github.com/HenriMatthijssen/ePaper/internal/metrics"
	"github.com/HenriMatthijssen/ePaper/internal/record"
	"github.com/HenriMatthijssen/ePaper/internal/session"
	"github.com/HenriMatthijssen/ePaper/internal/store"
)

type harness struct {
	deps      Deps
	radio     *connectivity.Sim
	blockPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.StagingDir = filepath.Join(dir, "fw")
	cfg.FirmwareMargin = 0
	blockPath := filepath.Join(dir, "cfg.blk")
	st, err := store.Open(context.Background(), flashblock.New(blockPath, 0, 512), zerolog.Nop())
	require.NoError(t, err)
	m := metrics.New()
	radio := &connectivity.Sim{}
	network := connectivity.New(radio, zerolog.Nop(), m)
	display, err := device.OpenDisplay("", nil, zerolog.Nop())
	require.NoError(t, err)
	return &harness{
		radio:     radio,
		blockPath: blockPath,
		deps: Deps{
			Config:     cfg,
			Store:      st,
			Sessions:   session.New(st),
			Dispatcher: control.New(st, display, network, zerolog.Nop(), m),
			Network:    network,
			Firmware:   firmware.New(cfg.StagingDir, cfg.FirmwareMargin, zerolog.Nop(), m),
			Restarter:  device.NewRestarter(0, nil, zerolog.Nop(), m),
			Metrics:    m,
			Logger:     zerolog.Nop(),
		},
	}
}

func (h *harness) restarted() (bool, string) { return h.deps.Restarter.Pending() }

// reloaded opens the block again, as the next boot would.
func (h *harness) reloaded(t *testing.T) record.Record {
	t.Helper()
	st, err := store.Open(context.Background(), flashblock.New(h.blockPath, 0, 512), zerolog.Nop())
	require.NoError(t, err)
	return st.Snapshot()
}

func postJSON(path, body string) *http.Request {
	req := authed(httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, v url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: session.Token(record.DefaultWebPassword)})
	return req
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)
	for _, path := range []string{"/", "/settings", "/upgradefw"} {
		rr := do(t, r, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusFound, rr.Code, path)
		require.Equal(t, "/login", rr.Header().Get("Location"), path)
		require.Contains(t, rr.Header().Get("Set-Cookie"), session.CookieName+"=0", path)
	}

	rr := do(t, r, httptest.NewRequest(http.MethodPost, "/erase", nil))
	require.Equal(t, http.StatusFound, rr.Code)
	ok, _ := h.restarted()
	require.False(t, ok)
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)

	rr := do(t, r, postForm("/login", url.Values{"user": {"admin"}, "password": {"wrong"}}))
	require.Equal(t, "/login", rr.Header().Get("Location"))

	rr = do(t, r, postForm("/login", url.Values{"user": {"admin"}, "password": {"admin"}}))
	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "/", rr.Header().Get("Location"))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, session.Token("admin"), cookies[0].Value)
	require.Equal(t, session.MaxAge, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rr = do(t, r, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), record.DefaultHostname)

	rr = do(t, r, postForm("/login_ajax", url.Values{"user": {"admin"}, "password": {"nope"}}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"error"`)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)
	rr := do(t, r, authed(httptest.NewRequest(http.MethodGet, "/?logout=1", nil)))
	require.Equal(t, "/login", rr.Header().Get("Location"))
	require.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAPIRepliesAndRestarts(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)

	rr := do(t, r, httptest.NewRequest(http.MethodGet, "/api?action=set_host&value=kitchen&api=wrong", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"error"`)
	require.Equal(t, record.DefaultHostname, h.deps.Store.Snapshot().Hostname)

	rr = do(t, r, postForm("/api", url.Values{"action": {"set_api"}, "value": {"newkey123"}, "api": {record.DefaultAPIKey}}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"status":"success"`)

	rr = do(t, r, postForm("/api", url.Values{"action": {"set_host"}, "value": {"kitchen"}, "api": {"newkey123"}}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "kitchen", h.radio.Hostname())
	ok, _ := h.restarted()
	require.False(t, ok)

	rr = do(t, r, postForm("/api", url.Values{"action": {"reboot"}, "value": {"true"}, "api": {"newkey123"}}))
	require.Equal(t, http.StatusOK, rr.Code)
	ok, reason := h.restarted()
	require.True(t, ok)
	require.Equal(t, "reboot", reason)
}

func TestAPICORS(t *testing.T) {
	h := newHarness(t)
	h.deps.Config.CORSOrigins = []string{"http://dashboard.local"}
	r := NewStationRouter(h.deps)
	req := httptest.NewRequest(http.MethodGet, "/api?action=reboot&value=false&api=x", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rr := do(t, r, req)
	require.Equal(t, "http://dashboard.local", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSettingsAjax(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)

	post := func(body string) *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest(http.MethodPost, "/settings_ajax", strings.NewReader(body)))
		req.Header.Set("Content-Type", "application/json")
		return do(t, r, req)
	}

	rr := post(`{"language": 2}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = post(`{"hostname": ""}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = post(`{"unknown": true}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(`{"hostname": "hall", "language": 1, "calibration_factor": 1.5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := h.deps.Store.Snapshot()
	require.Equal(t, "hall", rec.Hostname)
	require.Equal(t, record.LanguageNL, rec.Language)
	require.Equal(t, float32(1.5), rec.CalibrationFactor)
	ok, _ := h.restarted()
	require.False(t, ok)

	rr = post(`{"network_ssid": "Home", "network_password": "secret"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ok, reason := h.restarted()
	require.True(t, ok)
	require.Equal(t, "settings", reason)
}

func TestSettingsFormKeepsBlankPasswords(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)
	rr := do(t, r, authed(postForm("/settings", url.Values{
		"hostname": {"porch"}, "web_user": {"admin"}, "web_password": {""},
		"language": {"0"}, "voltage_pin": {"3"}, "calibration_factor": {"2"},
	})))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := h.deps.Store.Snapshot()
	require.Equal(t, "porch", rec.Hostname)
	require.Equal(t, record.DefaultWebPassword, rec.WebPassword)
	require.Equal(t, int32(3), rec.VoltagePin)

	rr = do(t, r, authed(postForm("/settings", url.Values{"voltage_pin": {"x"}})))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEraseRestoresDefaultsAndRestarts(t *testing.T) {
	h := newHarness(t)
	_, err := h.deps.Store.Update(context.Background(), func(r *record.Record) error {
		r.Hostname = "kitchen"
		return nil
	})
	require.NoError(t, err)
	r := NewStationRouter(h.deps)
	rr := do(t, r, authed(httptest.NewRequest(http.MethodPost, "/erase", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, record.Defaults(), h.deps.Store.Snapshot())
	ok, reason := h.restarted()
	require.True(t, ok)
	require.Equal(t, "erase", reason)
}

func multipartUpload(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("firmware", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upgradefw2", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpgradeIsUngatedAndAlwaysRestarts(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)
	img := bytes.Repeat([]byte("fw"), 5000)

	rr := do(t, r, multipartUpload(t, "fw-2.bin", img))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got, err := os.ReadFile(filepath.Join(h.deps.Config.StagingDir, firmware.ImageName))
	require.NoError(t, err)
	require.Equal(t, img, got)
	ok, reason := h.restarted()
	require.True(t, ok)
	require.Equal(t, "firmware", reason)

	// the status page shows the staged image
	rr = do(t, r, authed(httptest.NewRequest(http.MethodGet, "/", nil)))
	require.Contains(t, rr.Body.String(), "fw-2.bin")
}

func TestUpgradeFailureStillRestarts(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)
	req := multipartUpload(t, "fw.bin", []byte("abc"))
	req.URL.RawQuery = "size=999"
	rr := do(t, r, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "size mismatch")
	ok, _ := h.restarted()
	require.True(t, ok)
	_, err := os.Stat(filepath.Join(h.deps.Config.StagingDir, firmware.ImageName))
	require.True(t, os.IsNotExist(err))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)
	_ = do(t, r, httptest.NewRequest(http.MethodGet, "/api?action=nope&api=x", nil))
	rr := do(t, r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "epaper_api_actions_total")
}

func TestAPSurfaceOnly(t *testing.T) {
	h := newHarness(t)
	r := NewAPRouter(h.deps)

	for _, path := range []string{"/settings", "/api", "/login", "/metrics"} {
		rr := do(t, r, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rr.Code, path)
	}
	rr := do(t, r, httptest.NewRequest(http.MethodPost, "/upgradefw2", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `action="/wifi"`)

	rr = do(t, r, httptest.NewRequest(http.MethodGet, "/apqr.png", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))
}

func TestWifiStoresCredentialsAndRestarts(t *testing.T) {
	h := newHarness(t)
	r := NewAPRouter(h.deps)
	rr := do(t, r, postForm("/wifi", url.Values{"ssid": {"Home"}, "password": {"secret"}}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := h.deps.Store.Snapshot()
	require.Equal(t, "Home", rec.NetworkSSID)
	require.Equal(t, "secret", rec.NetworkPassword)
	ok, reason := h.restarted()
	require.True(t, ok)
	require.Equal(t, "credentials", reason)
}

func TestSettingsStoredCopyMatchesMemory(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)
	before := h.deps.Store.Snapshot()

	// 20 runes pass the schema's character count but need 40 bytes
	rejected := []string{
		`{"web_password": "` + strings.Repeat("é", 20) + `"}`,
		`{"hostname": "a\u0000b"}`,
		`{"network_ssid": "` + strings.Repeat("ß", 17) + `"}`,
		`{"api_key": "` + strings.Repeat("ü", 17) + `"}`,
	}
	for _, body := range rejected {
		rr := do(t, r, postJSON("/settings_ajax", body))
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
		require.Equal(t, before, h.deps.Store.Snapshot(), body)
	}

	rr := do(t, r, authed(postForm("/settings", url.Values{"web_user": {strings.Repeat("ø", 17)}})))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, before, h.deps.Store.Snapshot())

	rr = do(t, r, postJSON("/settings_ajax", `{"network_password": "`+strings.Repeat("é", 32)+`", "hostname": "küche"}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, strings.Repeat("é", 32), h.deps.Store.Snapshot().NetworkPassword)
	require.Equal(t, h.deps.Store.Snapshot(), h.reloaded(t))
}

func TestSettingsReplaceAPIKeyLeavesLatch(t *testing.T) {
	h := newHarness(t)
	r := NewStationRouter(h.deps)

	rr := do(t, r, postJSON("/settings_ajax", `{"api_key": "dashkey"}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := h.reloaded(t)
	require.Equal(t, "dashkey", rec.APIKey)
	require.False(t, rec.APIKeyLocked)

	rr = do(t, r, postForm("/api", url.Values{"action": {"set_host"}, "value": {"hall"}, "api": {"dashkey"}}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, r, postForm("/api", url.Values{"action": {"set_api"}, "value": {"newkey123"}}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, h.deps.Store.Snapshot().APIKeyLocked)

	// a locked key can still be replaced from the authenticated settings page
	rr = do(t, r, authed(postForm("/settings", url.Values{"api_key": {"rotated"}})))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec = h.reloaded(t)
	require.Equal(t, "rotated", rec.APIKey)
	require.True(t, rec.APIKeyLocked)

	rr = do(t, r, postForm("/api", url.Values{"action": {"set_api"}, "value": {"again"}}))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// blank keeps the stored key
	rr = do(t, r, authed(postForm("/settings", url.Values{"api_key": {""}, "hostname": {"porch"}})))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "rotated", h.reloaded(t).APIKey)
}
