package domain

import (
	interfaces "offrecord/internal/domain/interfaces"
	types "offrecord/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username       = types.Username
	Fingerprint    = types.Fingerprint
	InstanceTag    = types.InstanceTag
	MsgState       = types.MsgState
	Identity       = types.Identity
	Envelope       = types.Envelope
	TrustRecord    = types.TrustRecord
	AccountProfile = types.AccountProfile
	Event          = types.Event
	EventKind      = types.EventKind
	Ed25519Public  = types.Ed25519Public
	Ed25519Private = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService = interfaces.IdentityService
	RelayClient     = interfaces.RelayClient
	IdentityStore   = interfaces.IdentityStore
	TrustStore      = interfaces.TrustStore
	AccountStore    = interfaces.AccountStore
)

// Event kinds, re-exported for hosts that only import domain.
const (
	EventAKESuccess   = types.EventAKESuccess
	EventEncrypted    = types.EventEncrypted
	EventFinished     = types.EventFinished
	EventPlaintext    = types.EventPlaintext
	EventMessage      = types.EventMessage
	EventSMPQuestion  = types.EventSMPQuestion
	EventSMPSucceeded = types.EventSMPSucceeded
	EventSMPFailed    = types.EventSMPFailed
	EventSMPAborted   = types.EventSMPAborted
	EventError        = types.EventError
	EventReplay       = types.EventReplay
)
