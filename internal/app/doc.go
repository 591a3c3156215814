// Package app wires application dependencies for the CLI.
//
// NewWire builds the concrete stores, relay client and identity service from
// Config. Wire.Open unlocks the identity and brings up the per-peer
// conversation table, the SMP worker pool and the message service.
package app
