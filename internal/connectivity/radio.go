package connectivity

import (
	"errors"
	"fmt"

	"github.com/HenriMatthijssen/ePaper/pkg/shell"
)

var ErrNoRadio = errors.New("no usable radio backend")

// OpenRadio selects the radio backend by name: "nmcli" drives
// NetworkManager on iface, "sim" is the in-process radio.
func OpenRadio(backend, iface string, simJoinOK bool, run shell.Runner) (Radio, error) {
	switch backend {
	case "nmcli", "":
		if run == nil {
			run = shell.Exec{}
		}
		return NMCLI{Iface: iface, Run: run}, nil
	case "sim":
		return &Sim{JoinOK: simJoinOK}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoRadio, backend)
}
