package server

import (
	"fmt"
	"net/http"

	"github.com/skip2/go-qrcode"

	"github.com/HenriMatthijssen/ePaper/internal/connectivity"
	"github.com/HenriMatthijssen/ePaper/pkg/httpx"
)

func (h *handlers) setupPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, http.StatusOK, "setup", "")
}

// wifi stores the submitted credentials and restarts without checking them;
// the next boot either joins or falls back here again.
func (h *handlers) wifi(w http.ResponseWriter, r *http.Request) {
	ssid, password := r.FormValue("ssid"), r.FormValue("password")
	if err := h.Network.AcceptCredentials(r.Context(), h.Store, ssid, password); err != nil {
		h.log.Error().Err(err).Msg("store credentials")
		httpx.WriteRejected(w, "could not save credentials: "+err.Error())
		return
	}
	httpx.WriteSuccess(w, fmt.Sprintf("credentials for %q saved, restarting", ssid))
	h.restartAfter(w, "credentials")
}

// apQR renders a WIFI: join code for the setup network.
func (h *handlers) apQR(w http.ResponseWriter, r *http.Request) {
	payload := fmt.Sprintf("WIFI:T:WPA;S:%s;P:%s;;", connectivity.APName, connectivity.APPassphrase)
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	png, err := qr.PNG(256)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = w.Write(png)
}
