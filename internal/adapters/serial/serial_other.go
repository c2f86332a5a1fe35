//go:build !linux

package serial

import "fmt"

// Port is unavailable on this platform; the daemon still builds so the
// --stdio and --simulate paths can run anywhere.
type Port struct{}

// Open always fails off-linux.
func Open(device string, baud int) (*Port, error) {
	return nil, fmt.Errorf("serial: %s: serial devices are only supported on linux (use --stdio)", device)
}

func (p *Port) Read(b []byte) (int, error)  { return 0, fmt.Errorf("serial: not supported") }
func (p *Port) Write(b []byte) (int, error) { return 0, fmt.Errorf("serial: not supported") }
func (p *Port) Close() error                { return nil }

func (p *Port) String() string { return "unsupported" }
