// Package device holds the radio-facing types shared by the scanner and the
// sensor clients: what an advertisement looks like, what a scanning adapter
// must do, what a discovered device is, and the connection errors backends
// report. Concrete adapters live in subpackages (go-ble).
package device
