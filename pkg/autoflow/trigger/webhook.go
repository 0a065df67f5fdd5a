package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// WebhookConfig configures a WebhookTrigger.
type WebhookConfig struct {
	// Path is the route the webhook listens on, e.g. "/hooks/push".
	Path string

	// Addr is the listen address for the built-in HTTP server.
	// When empty, no server is started: mount the trigger as an
	// http.Handler on an existing router, or drive it via Fire.
	Addr string

	// Logger receives callback and server errors.
	Logger *slog.Logger
}

// WebhookTrigger fires when an HTTP request arrives on its route.
// It implements http.Handler, so it can run its own server (Addr set)
// or be mounted on an existing one.
type WebhookTrigger struct {
	core
	path string
	addr string

	mu      sync.Mutex
	server  *http.Server
	started bool
}

// NewWebhookTrigger creates a webhook trigger with the given name.
func NewWebhookTrigger(name string, cfg WebhookConfig) *WebhookTrigger {
	path := cfg.Path
	if path == "" {
		path = "/hooks/" + name
	}
	return &WebhookTrigger{
		core: newCore(name, cfg.Logger),
		path: path,
		addr: cfg.Addr,
	}
}

func (t *WebhookTrigger) Type() string { return TypeWebhook }

// Path returns the route the webhook listens on.
func (t *WebhookTrigger) Path() string { return t.path }

// ServeHTTP fires the trigger from an incoming request. The request
// body, if present, is decoded as JSON and carried in the event data
// under "body". Responds 202 Accepted.
func (t *WebhookTrigger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body any
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
			return
		}
	}

	t.Fire(Event{
		Type: TypeWebhook,
		Data: map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"body":   body,
		},
		Context: map[string]any{
			"source":      "webhook",
			"remote_addr": r.RemoteAddr,
		},
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// Start launches the built-in HTTP server when an address is
// configured. Without one, Start is a no-op and the trigger is driven
// by ServeHTTP or Fire.
func (t *WebhookTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	if t.addr == "" {
		return nil
	}

	r := chi.NewRouter()
	r.Post(t.path, t.ServeHTTP)

	t.server = &http.Server{
		Addr:        t.addr,
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if t.logger != nil {
				t.logger.Error("webhook server failed",
					slog.String("trigger", t.name),
					slog.String("error", err.Error()),
				)
			}
		}
	}()
	return nil
}

// Stop shuts down the built-in server, if any.
func (t *WebhookTrigger) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false

	if t.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := t.server.Shutdown(ctx)
	t.server = nil
	return err
}
