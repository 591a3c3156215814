// Package commands defines the offrecord CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init         Create the local identity
//   - fingerprint  Print the identity fingerprint
//   - talk         Chat with a peer through the relay
//   - trust        List peers confirmed by a secret comparison
//   - verify       Run the AKE and a secret comparison between two local
//     identities and report the outcome
//
// # Implementation
//
// The root command builds the dependency graph (stores, identity service,
// relay client) before any subcommand runs. talk unlocks the identity and
// opens a conversation table backed by a worker pool for SMP arithmetic.
package commands
