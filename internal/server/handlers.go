package server

import (
	"net/http"

	"github.com/HenriMatthijssen/ePaper/internal/control"
	"github.com/HenriMatthijssen/ePaper/internal/firmware"
	"github.com/HenriMatthijssen/ePaper/internal/session"
	"github.com/HenriMatthijssen/ePaper/pkg/httpx"
)

func (h *handlers) page(w http.ResponseWriter, status int, name, message string) {
	data := pageData{Rec: h.Store.Snapshot(), Message: message}
	if h.Network != nil {
		data.State = h.Network.State().String()
	}
	if name == "index" {
		if m, err := firmware.ReadManifest(h.Config.StagingDir); err == nil {
			data.Firmware = m
		}
	}
	if err := render(w, status, name, data); err != nil {
		h.log.Error().Err(err).Str("page", name).Msg("render")
	}
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	h.page(w, http.StatusOK, "index", "")
}

func (h *handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, http.StatusOK, "login", "")
}

func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) session.Outcome {
	out := h.Sessions.Login(w, r.FormValue("user"), r.FormValue("password"))
	h.Metrics.IncLogin(out.String())
	h.log.Info().Str("outcome", out.String()).Str("remote", r.RemoteAddr).Msg("login")
	return out
}

func (h *handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	if h.authenticate(w, r) == session.Authenticated {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *handlers) loginAjax(w http.ResponseWriter, r *http.Request) {
	if h.authenticate(w, r) == session.Authenticated {
		httpx.WriteSuccess(w, "logged in")
		return
	}
	httpx.WriteRejected(w, "invalid user or password")
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	session.Clear(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// api answers every control request with exactly one reply. A restart, if
// any, happens after the reply has been flushed.
func (h *handlers) api(w http.ResponseWriter, r *http.Request) {
	res := h.Dispatcher.Dispatch(r.Context(), control.Request{
		Action: r.FormValue("action"),
		Value:  r.FormValue("value"),
		APIKey: r.FormValue("api"),
	})
	if res.Status == control.Success {
		httpx.WriteSuccess(w, res.Message)
	} else {
		httpx.WriteRejected(w, res.Message)
	}
	if res.Restart {
		h.restartAfter(w, r.FormValue("action"))
	}
}

func (h *handlers) erase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Erase(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("erase")
		httpx.WriteRejected(w, "erase failed: "+err.Error())
		return
	}
	httpx.WriteSuccess(w, "configuration erased, restarting")
	h.restartAfter(w, "erase")
}

func (h *handlers) upgradePage(w http.ResponseWriter, r *http.Request) {
	h.page(w, http.StatusOK, "upgrade", "")
}
