package link

import (
	"sort"

	"go.bug.st/serial"
)

// ListPorts returns the serial devices detected on this machine, sorted by
// name. An empty slice is returned when detection fails; the user can still
// type a device path by hand.
func ListPorts() []string {
	ports, err := serial.GetPortsList()
	if err != nil || len(ports) == 0 {
		return []string{}
	}
	sort.Strings(ports)
	return ports
}
