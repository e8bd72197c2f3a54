package control

// Action is the closed set of control-plane operations.
type Action int

const (
	Reboot Action = iota + 1
	Reset
	SetHost
	SetLanguage
	SetMessageID
	SetAPI
)

var actionNames = map[Action]string{
	Reboot:       "reboot",
	Reset:        "reset",
	SetHost:      "set_host",
	SetLanguage:  "set_language",
	SetMessageID: "set_message_id",
	SetAPI:       "set_api",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, n := range actionNames {
		m[n] = a
	}
	return m
}()

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// ParseAction maps a wire name to its Action.
func ParseAction(name string) (Action, bool) {
	a, ok := actionsByName[name]
	return a, ok
}

// Actions lists every action in declaration order.
func Actions() []Action {
	return []Action{Reboot, Reset, SetHost, SetLanguage, SetMessageID, SetAPI}
}
