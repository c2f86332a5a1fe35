// Package domain contains the core value types of the panel bridge: panel
// geometry and calibration, RGB565 colors, and the transfer protocol state
// enumeration.
//
// This package represents the innermost layer of the architecture. It is
// deliberately dependency-free: everything here is plain data plus the
// bounds math shared by the panel layer and the protocol layer. Hardware
// access and wire handling live in their own packages.
package domain
