package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the unique ID identifying the machine.
// It falls back to the hostname when the machine ID is not available.
func MachineID() string {
	id, err := machineid.ProtectedID("mbox")
	if err == nil {
		return id
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}
