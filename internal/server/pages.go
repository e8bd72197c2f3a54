package server

import (
	"html/template"
	"net/http"

	"github.com/HenriMatthijssen/ePaper/internal/record"
)

var catalog = map[record.Language]map[string]string{
	record.LanguageEN: {
		"title":       "ePaper display",
		"status":      "Status",
		"hostname":    "Hostname",
		"network":     "Network",
		"state":       "Connection",
		"language":    "Language",
		"message":     "Message",
		"apiLocked":   "API key locked",
		"firmware":    "Firmware",
		"none":        "none",
		"settings":    "Settings",
		"upgrade":     "Firmware update",
		"erase":       "Erase configuration",
		"logout":      "Log out",
		"login":       "Log in",
		"user":        "User",
		"password":    "Password",
		"save":        "Save",
		"upload":      "Upload",
		"ssid":        "Network name",
		"webPassword": "Web password",
		"apiKey":      "API key",
		"voltagePin":  "Voltage pin",
		"calibration": "Calibration factor",
		"blankKeeps":  "Leave passwords and the API key blank to keep them.",
		"setup":       "Setup",
		"setupHelp":   "Enter the network this display should join. It restarts after saving.",
		"scan":        "Scan to join the setup network",
	},
	record.LanguageNL: {
		"title":       "ePaper-scherm",
		"status":      "Status",
		"hostname":    "Hostnaam",
		"network":     "Netwerk",
		"state":       "Verbinding",
		"language":    "Taal",
		"message":     "Bericht",
		"apiLocked":   "API-sleutel vergrendeld",
		"firmware":    "Firmware",
		"none":        "geen",
		"settings":    "Instellingen",
		"upgrade":     "Firmware bijwerken",
		"erase":       "Configuratie wissen",
		"logout":      "Afmelden",
		"login":       "Aanmelden",
		"user":        "Gebruiker",
		"password":    "Wachtwoord",
		"save":        "Opslaan",
		"upload":      "Uploaden",
		"ssid":        "Netwerknaam",
		"webPassword": "Webwachtwoord",
		"apiKey":      "API-sleutel",
		"voltagePin":  "Spanningspin",
		"calibration": "Kalibratiefactor",
		"blankKeeps":  "Laat wachtwoorden en de API-sleutel leeg om ze te behouden.",
		"setup":       "Instellen",
		"setupHelp":   "Vul het netwerk in waarmee dit scherm verbindt. Het herstart na opslaan.",
		"scan":        "Scan om met het instelnetwerk te verbinden",
	},
}

const layout = `{{define "head"}}<!doctype html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width">
<title>{{.T.title}}</title></head><body>
<h1>{{.Rec.Hostname}}</h1>
{{with .Message}}<p><strong>{{.}}</strong></p>{{end}}{{end}}
{{define "foot"}}</body></html>{{end}}`

const pageSources = `
{{define "index"}}{{template "head" .}}
<h2>{{.T.status}}</h2>
<table>
<tr><td>{{.T.hostname}}</td><td>{{.Rec.Hostname}}</td></tr>
<tr><td>{{.T.network}}</td><td>{{.Rec.NetworkSSID}}</td></tr>
<tr><td>{{.T.state}}</td><td>{{.State}}</td></tr>
<tr><td>{{.T.language}}</td><td>{{.Rec.Language}}</td></tr>
<tr><td>{{.T.message}}</td><td>{{.Rec.MessageID}}</td></tr>
<tr><td>{{.T.apiLocked}}</td><td>{{.Rec.APIKeyLocked}}</td></tr>
<tr><td>{{.T.firmware}}</td><td>{{with .Firmware}}{{.Name}} {{.Size}} {{.BLAKE3}}{{else}}{{$.T.none}}{{end}}</td></tr>
</table>
<p><a href="/settings">{{.T.settings}}</a> | <a href="/upgradefw">{{.T.upgrade}}</a> | <a href="/?logout=1">{{.T.logout}}</a></p>
<form method="post" action="/erase"><button>{{.T.erase}}</button></form>
{{template "foot" .}}{{end}}

{{define "login"}}{{template "head" .}}
<h2>{{.T.login}}</h2>
<form method="post" action="/login">
<label>{{.T.user}} <input name="user"></label>
<label>{{.T.password}} <input name="password" type="password"></label>
<button>{{.T.login}}</button>
</form>
{{template "foot" .}}{{end}}

{{define "settings"}}{{template "head" .}}
<h2>{{.T.settings}}</h2>
<form method="post" action="/settings">
<label>{{.T.ssid}} <input name="network_ssid" value="{{.Rec.NetworkSSID}}" maxlength="32"></label>
<label>{{.T.password}} <input name="network_password" type="password" maxlength="64"></label>
<label>{{.T.hostname}} <input name="hostname" value="{{.Rec.Hostname}}" maxlength="32"></label>
<label>{{.T.user}} <input name="web_user" value="{{.Rec.WebUser}}" maxlength="32"></label>
<label>{{.T.webPassword}} <input name="web_password" type="password" maxlength="32"></label>
<label>{{.T.apiKey}} <input name="api_key" type="password" maxlength="32"></label>
<label>{{.T.language}} <select name="language">
<option value="0"{{if eq .Rec.Language.String "EN"}} selected{{end}}>EN</option>
<option value="1"{{if eq .Rec.Language.String "NL"}} selected{{end}}>NL</option>
</select></label>
<label>{{.T.voltagePin}} <input name="voltage_pin" value="{{.Rec.VoltagePin}}"></label>
<label>{{.T.calibration}} <input name="calibration_factor" value="{{.Rec.CalibrationFactor}}"></label>
<p>{{.T.blankKeeps}}</p>
<button>{{.T.save}}</button>
</form>
<p><a href="/">{{.T.status}}</a></p>
{{template "foot" .}}{{end}}

{{define "upgrade"}}{{template "head" .}}
<h2>{{.T.upgrade}}</h2>
<form method="post" action="/upgradefw2" enctype="multipart/form-data">
<input type="file" name="firmware">
<button>{{.T.upload}}</button>
</form>
{{template "foot" .}}{{end}}

{{define "setup"}}{{template "head" .}}
<h2>{{.T.setup}}</h2>
<p>{{.T.setupHelp}}</p>
<form method="post" action="/wifi">
<label>{{.T.ssid}} <input name="ssid" maxlength="32"></label>
<label>{{.T.password}} <input name="password" type="password" maxlength="64"></label>
<button>{{.T.save}}</button>
</form>
<p>{{.T.scan}}</p><img src="/apqr.png" alt="QR">
{{template "foot" .}}{{end}}
`

var pages = template.Must(template.Must(template.New("pages").Parse(layout)).Parse(pageSources))

type pageData struct {
	T        map[string]string
	Rec      record.Record
	State    string
	Message  string
	Firmware any
}

func render(w http.ResponseWriter, status int, name string, data pageData) error {
	if data.T == nil {
		data.T = catalog[data.Rec.Language]
		if data.T == nil {
			data.T = catalog[record.LanguageEN]
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return pages.ExecuteTemplate(w, name, data)
}
