package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/HenriMatthijssen/ePaper/internal/record"
	"github.com/HenriMatthijssen/ePaper/pkg/httpx"
)

const settingsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "network_ssid":       {"type": "string", "maxLength": 32},
    "network_password":   {"type": "string", "maxLength": 64},
    "hostname":           {"type": "string", "minLength": 1, "maxLength": 32},
    "web_user":           {"type": "string", "minLength": 1, "maxLength": 32},
    "web_password":       {"type": "string", "minLength": 1, "maxLength": 32},
    "api_key":            {"type": "string", "minLength": 1, "maxLength": 32},
    "language":           {"type": "integer", "enum": [0, 1]},
    "voltage_pin":        {"type": "integer", "minimum": 0, "maximum": 255},
    "calibration_factor": {"type": "number", "minimum": 0.001, "maximum": 1000}
  }
}`

var settingsLoader = gojsonschema.NewStringLoader(settingsSchema)

// settingsBody is a partial record; absent fields keep their stored value.
type settingsBody struct {
	NetworkSSID       *string  `json:"network_ssid,omitempty"`
	NetworkPassword   *string  `json:"network_password,omitempty"`
	Hostname          *string  `json:"hostname,omitempty"`
	WebUser           *string  `json:"web_user,omitempty"`
	WebPassword       *string  `json:"web_password,omitempty"`
	APIKey            *string  `json:"api_key,omitempty"`
	Language          *uint8   `json:"language,omitempty"`
	VoltagePin        *int32   `json:"voltage_pin,omitempty"`
	CalibrationFactor *float32 `json:"calibration_factor,omitempty"`
}

func validateSettings(doc []byte) error {
	result, err := gojsonschema.Validate(settingsLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("invalid settings document: %w", err)
	}
	if !result.Valid() {
		msgs := []string{}
		for _, e := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

// check holds every string to the byte width the block stores, which the
// schema's character counts do not guarantee.
func (b settingsBody) check() error {
	fields := []struct {
		name string
		v    *string
		max  int
	}{
		{"network_ssid", b.NetworkSSID, record.MaxSSID},
		{"network_password", b.NetworkPassword, record.MaxPassword},
		{"hostname", b.Hostname, record.MaxHostname},
		{"web_user", b.WebUser, record.MaxWebUser},
		{"web_password", b.WebPassword, record.MaxWebPassword},
		{"api_key", b.APIKey, record.MaxAPIKey},
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if err := record.CheckString(f.name, *f.v, f.max); err != nil {
			return err
		}
	}
	return nil
}

// apply copies the present fields. The api_key_locked latch is never
// touched here; only erase clears it.
func (b settingsBody) apply(r *record.Record) {
	if b.NetworkSSID != nil {
		r.NetworkSSID = *b.NetworkSSID
	}
	if b.NetworkPassword != nil {
		r.NetworkPassword = *b.NetworkPassword
	}
	if b.Hostname != nil {
		r.Hostname = *b.Hostname
	}
	if b.WebUser != nil {
		r.WebUser = *b.WebUser
	}
	if b.WebPassword != nil {
		r.WebPassword = *b.WebPassword
	}
	if b.APIKey != nil {
		r.APIKey = *b.APIKey
	}
	if b.Language != nil {
		r.Language = record.Language(*b.Language)
	}
	if b.VoltagePin != nil {
		r.VoltagePin = *b.VoltagePin
	}
	if b.CalibrationFactor != nil {
		r.CalibrationFactor = *b.CalibrationFactor
	}
}

// saveSettings validates doc, writes the whole record and reports whether
// the station credentials changed.
func (h *handlers) saveSettings(r *http.Request, doc []byte) (bool, error) {
	if err := validateSettings(doc); err != nil {
		return false, err
	}
	var body settingsBody
	if err := json.Unmarshal(doc, &body); err != nil {
		return false, err
	}
	if err := body.check(); err != nil {
		return false, err
	}
	before := h.Store.Snapshot()
	after, err := h.Store.Update(r.Context(), func(rec *record.Record) error {
		body.apply(rec)
		return nil
	})
	if err != nil {
		return false, err
	}
	if after.Hostname != before.Hostname {
		if err := h.Network.SetHostname(r.Context(), after.Hostname); err != nil {
			h.log.Warn().Err(err).Msg("apply hostname")
		}
	}
	return after.NetworkSSID != before.NetworkSSID || after.NetworkPassword != before.NetworkPassword, nil
}

func (h *handlers) settingsPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, http.StatusOK, "settings", "")
}

func (h *handlers) settingsAjax(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		httpx.WriteRejected(w, "settings: "+err.Error())
		return
	}
	relink, err := h.saveSettings(r, doc)
	if err != nil {
		httpx.WriteRejected(w, "settings: "+err.Error())
		return
	}
	if relink {
		httpx.WriteSuccess(w, "settings saved, restarting to join the new network")
		h.restartAfter(w, "settings")
		return
	}
	httpx.WriteSuccess(w, "settings saved")
}

// settingsForm maps the HTML form onto the same document the ajax endpoint
// takes. Blank passwords and a blank api key keep the stored ones.
func (h *handlers) settingsForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.page(w, http.StatusBadRequest, "settings", err.Error())
		return
	}
	doc, err := formDocument(r)
	if err != nil {
		h.page(w, http.StatusBadRequest, "settings", err.Error())
		return
	}
	relink, err := h.saveSettings(r, doc)
	if err != nil {
		h.page(w, http.StatusBadRequest, "settings", err.Error())
		return
	}
	if relink {
		h.page(w, http.StatusOK, "settings", "saved, restarting")
		h.restartAfter(w, "settings")
		return
	}
	h.page(w, http.StatusOK, "settings", "saved")
}

func formDocument(r *http.Request) ([]byte, error) {
	doc := map[string]any{}
	for _, k := range []string{"network_ssid", "hostname", "web_user"} {
		if vs, ok := r.PostForm[k]; ok {
			doc[k] = vs[0]
		}
	}
	for _, k := range []string{"network_password", "web_password", "api_key"} {
		if v := r.PostForm.Get(k); v != "" {
			doc[k] = v
		}
	}
	for _, k := range []string{"language", "voltage_pin"} {
		v := strings.TrimSpace(r.PostForm.Get(k))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", k, v)
		}
		doc[k] = n
	}
	if v := strings.TrimSpace(r.PostForm.Get("calibration_factor")); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, fmt.Errorf("calibration_factor: %q is not a number", v)
		}
		doc["calibration_factor"] = f
	}
	return json.Marshal(doc)
}
