// Package ports defines the interfaces that connect the application core to
// infrastructure adapters.
//
// The panel and protocol layers depend only on these interfaces; concrete
// implementations live under internal/adapters (SPI hardware, in-memory
// simulator). This keeps the state machine testable without hardware and
// lets the simulator and the real controller share every code path above
// the driver boundary.
package ports
