// Package session keeps one conversation per peer.
//
// The protocol core handles a single peer instance; this table creates
// conversations on first contact, shares one SMP executor between them and
// fans their delegated results into a single channel for the message
// service.
package session
