package app

import (
	"log"
	"net/http"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string       // config directory, e.g. $HOME/.offrecord
	RelayURL string       // relay base URL, e.g. http://127.0.0.1:8080
	Username string       // our mailbox name on the relay
	HTTP     *http.Client // optional; defaults to http.DefaultClient
	Workers  int          // SMP worker goroutines; 0 means one per CPU
	Logger   *log.Logger  // optional; nil discards protocol logs
}
