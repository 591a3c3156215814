package relay

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"offrecord/internal/domain"
)

// maxFrame bounds a posted envelope body.
const maxFrame = 1 << 20

// Mailbox is an in-memory queue of envelopes per recipient.
type Mailbox struct {
	mu    sync.Mutex
	boxes map[domain.Username][]domain.Envelope
	now   func() time.Time
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{boxes: make(map[domain.Username][]domain.Envelope), now: time.Now}
}

// Put queues env for env.To. A zero Timestamp is filled in.
func (m *Mailbox) Put(env domain.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env.Timestamp == 0 {
		env.Timestamp = m.now().Unix()
	}
	m.boxes[env.To] = append(m.boxes[env.To], env)
}

// Peek returns up to limit queued envelopes for u without removing them.
// limit <= 0 returns all of them.
func (m *Mailbox) Peek(u domain.Username, limit int) []domain.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	box := m.boxes[u]
	if limit > 0 && limit < len(box) {
		box = box[:limit]
	}
	return append([]domain.Envelope{}, box...)
}

// Ack drops the first n envelopes for u.
func (m *Mailbox) Ack(u domain.Username, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	box := m.boxes[u]
	if n >= len(box) {
		delete(m.boxes, u)
		return
	}
	m.boxes[u] = box[n:]
}

// Handler serves the mailbox over HTTP:
//
//	POST /msg/{user}          enqueue an Envelope for {user}
//	GET  /msg/{user}?limit=N  list up to N queued envelopes
//	POST /msg/{user}/ack      drop the first {"count": N} envelopes
func Handler(m *Mailbox, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /msg/{user}", func(w http.ResponseWriter, r *http.Request) {
		var env domain.Envelope
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrame)).Decode(&env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		to := domain.Username(r.PathValue("user"))
		if env.To != to || env.From == "" || len(env.Frame) == 0 {
			http.Error(w, "envelope does not match path", http.StatusBadRequest)
			return
		}
		m.Put(env)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /msg/{user}", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Peek(domain.Username(r.PathValue("user")), limit))
	})
	mux.HandleFunc("POST /msg/{user}/ack", func(w http.ResponseWriter, r *http.Request) {
		var req AckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Count < 0 {
			http.Error(w, "bad ack", http.StatusBadRequest)
			return
		}
		m.Ack(domain.Username(r.PathValue("user")), req.Count)
		w.WriteHeader(http.StatusNoContent)
	})
	return accessLog(mux, logger)
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func accessLog(next http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		logger.Printf("%s %s from %s -> %d (%dB) in %s",
			r.Method, r.URL.Path, r.RemoteAddr, sw.status, sw.bytes, time.Since(start))
	})
}
