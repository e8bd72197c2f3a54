package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/HenriMatthijssen/ePaper/pkg/httpx"
)

const uploadChunk = 4096

// upgradeUpload streams the multipart body into the firmware receiver. The
// device restarts afterwards whether or not the image was accepted.
func (h *handlers) upgradeUpload(w http.ResponseWriter, r *http.Request) {
	msg, err := h.receiveFirmware(r)
	if err != nil {
		httpx.WriteRejected(w, "firmware update failed: "+err.Error()+"; restarting")
	} else {
		httpx.WriteSuccess(w, msg+", restarting")
	}
	h.restartAfter(w, "firmware")
}

func (h *handlers) receiveFirmware(r *http.Request) (string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", err
	}
	declared := parseSize(r.URL.Query().Get("size"))
	buf := make([]byte, uploadChunk)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", errors.New("no firmware file in upload")
		}
		if err != nil {
			return "", err
		}
		if part.FileName() == "" {
			if part.FormName() == "size" {
				b, _ := io.ReadAll(io.LimitReader(part, 32))
				declared = parseSize(string(b))
			}
			continue
		}

		if _, err := h.Firmware.Begin(part.FileName()); err != nil {
			return "", err
		}
		for {
			n, rerr := part.Read(buf)
			if n > 0 {
				// the receiver keeps the first failure; End reports it
				_ = h.Firmware.Write(buf[:n])
			}
			if errors.Is(rerr, io.EOF) {
				break
			}
			if rerr != nil {
				h.Firmware.Abort()
				return "", rerr
			}
		}
		m, err := h.Firmware.End(declared)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("firmware %s (%d bytes) staged", m.Name, m.Size), nil
	}
}

func parseSize(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
