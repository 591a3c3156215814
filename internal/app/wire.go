package app

import (
	"net/http"

	"offrecord/internal/domain"
	"offrecord/internal/relay"
	identitysvc "offrecord/internal/services/identity"
	"offrecord/internal/store"
)

// Wire bundles the stores, services and clients for the CLI.
type Wire struct {
	cfg Config

	IDs      domain.IdentityService
	Trust    *store.TrustFileStore
	Accounts domain.AccountStore
	Relay    domain.RelayClient
	HTTP     *http.Client
}

// NewWire constructs the dependency graph from cfg. Relay is nil when no
// relay URL is configured.
func NewWire(cfg Config) (*Wire, error) {
	identityStore := store.NewIdentityFileStore(cfg.Home)

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var rc domain.RelayClient
	if cfg.RelayURL != "" {
		rc = relay.NewHTTP(cfg.RelayURL, httpClient)
	}

	return &Wire{
		cfg:      cfg,
		IDs:      identitysvc.New(identityStore),
		Trust:    store.NewTrustFileStore(cfg.Home),
		Accounts: store.NewAccountFileStore(cfg.Home),
		Relay:    rc,
		HTTP:     httpClient,
	}, nil
}
