//go:build !linux

package scan

import "tinygo.org/x/bluetooth"

// Only BlueZ can pick an adapter by name.
func newAdapter(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
