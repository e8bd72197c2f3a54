package connectivity

import (
	"context"
	"strings"

	"github.com/HenriMatthijssen/ePaper/pkg/shell"
)

// NMCLI drives a NetworkManager-managed wifi interface.
type NMCLI struct {
	Iface string
	Run   shell.Runner
}

func (n NMCLI) Join(ctx context.Context, ssid, password string) error {
	_, err := n.Run.Run(ctx, "nmcli", "--wait", "0", "device", "wifi", "connect", ssid,
		"password", password, "ifname", n.Iface)
	return err
}

func (n NMCLI) Connected(ctx context.Context) (bool, error) {
	res, err := n.Run.Run(ctx, "nmcli", "-t", "-f", "DEVICE,STATE", "device", "status")
	if err != nil {
		return false, err
	}
	return deviceConnected(res.Text(), n.Iface), nil
}

func (n NMCLI) StartAP(ctx context.Context, ssid, passphrase string) error {
	_, err := n.Run.Run(ctx, "nmcli", "device", "wifi", "hotspot", "ifname", n.Iface,
		"ssid", ssid, "password", passphrase)
	return err
}

func (n NMCLI) SetHostname(ctx context.Context, name string) error {
	_, err := n.Run.Run(ctx, "nmcli", "general", "hostname", name)
	return err
}

// deviceConnected parses terse "DEVICE:STATE" lines.
func deviceConnected(out, iface string) bool {
	for _, line := range strings.Split(out, "\n") {
		dev, state, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && dev == iface {
			return state == "connected"
		}
	}
	return false
}
