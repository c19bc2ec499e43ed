package reactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const sessionCookieName = "reactive-session"

// Session is one visitor's live page: a private parsed Document, Store,
// and Engine. The serve layer keeps document handling single-threaded
// by serializing every message through the session.
type Session struct {
	id     string
	engine *Engine

	// mu serializes message handling, rendering, and error tracking.
	mu     sync.Mutex
	errors map[string]string
}

// ID returns the session identifier, empty for sessions that were never
// stored.
func (s *Session) ID() string {
	return s.id
}

// Engine returns the session's engine. Off the serving goroutine,
// mutate state through Update instead of the engine's store.
func (s *Session) Engine() *Engine {
	return s.engine
}

// Store returns the session's store. Off the serving goroutine, mutate
// state through Update instead.
func (s *Session) Store() *Store {
	return s.engine.Store()
}

// Update deep-merges patch into the session state and re-renders. Safe
// to call from any goroutine, typically a connect hook pushing
// server-initiated changes.
func (s *Session) Update(patch map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.UpdateState(patch)
}

// Errors returns a copy of the field errors from the last handled
// message.
func (s *Session) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorsCopy()
}

// setError, clearErrors and errorsCopy require s.mu held.
func (s *Session) setError(field, message string) {
	s.errors[field] = message
}

func (s *Session) clearErrors() {
	s.errors = make(map[string]string)
}

func (s *Session) errorsCopy() map[string]string {
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Broadcaster pushes the session's current rendered state to one
// connected client without waiting for user interaction.
type Broadcaster interface {
	Send() error
}

// ConnectHook runs when a WebSocket client connects. ctx is cancelled
// at disconnect; push sends server-initiated updates. Hooks that spawn
// goroutines mutate state via session.Update and then push.Send.
type ConnectHook func(ctx context.Context, session *Session, push Broadcaster) error

// UpdateMessage is one server-to-client update: the current markup of
// every templated element, the displayed value of every bound input,
// and the outcome of the message that triggered it.
type UpdateMessage struct {
	Type      string       `json:"type"`
	Fragments []Fragment   `json:"fragments"`
	Inputs    []BoundValue `json:"inputs,omitempty"`
	Meta      *UpdateMeta  `json:"meta,omitempty"`
}

// UpdateMeta reports whether the triggering message succeeded and any
// field errors it produced.
type UpdateMeta struct {
	Success bool              `json:"success"`
	Errors  map[string]string `json:"errors,omitempty"`
	Action  string            `json:"action,omitempty"`
}

// Handler serves a reactive page over HTTP. GET returns the rendered
// document with the embedded client script; a WebSocket upgrade enters
// the live loop, where input edits and actions come in and rendered
// updates go out. POST is the no-WebSocket fallback against the session
// store.
type Handler struct {
	page          string
	initial       map[string]any
	upgrader      *websocket.Upgrader
	sessions      SessionStore
	logger        *slog.Logger
	engineOptions []EngineOption
	connect       ConnectHook
	wsDisabled    bool
	noScript      bool

	actionsMu sync.RWMutex
	actions   map[string]ActionFunc
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler) error

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(store SessionStore) HandlerOption {
	return func(h *Handler) error {
		if store == nil {
			return fmt.Errorf("session store is required")
		}
		h.sessions = store
		return nil
	}
}

// WithUpgrader replaces the default WebSocket upgrader, for example to
// enforce an origin policy.
func WithUpgrader(u *websocket.Upgrader) HandlerOption {
	return func(h *Handler) error {
		if u == nil {
			return fmt.Errorf("upgrader is required")
		}
		h.upgrader = u
		return nil
	}
}

// WithHandlerLogger sets the logger for serve-layer diagnostics. The
// default discards everything.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) error {
		if logger == nil {
			return fmt.Errorf("logger is required")
		}
		h.logger = logger
		return nil
	}
}

// WithEngineOptions applies options to every session engine the handler
// creates.
func WithEngineOptions(options ...EngineOption) HandlerOption {
	return func(h *Handler) error {
		h.engineOptions = append(h.engineOptions, options...)
		return nil
	}
}

// WithConnectHook installs a hook that runs for each WebSocket
// connection.
func WithConnectHook(hook ConnectHook) HandlerOption {
	return func(h *Handler) error {
		h.connect = hook
		return nil
	}
}

// WithoutWebSocket turns WebSocket upgrades away, forcing clients onto
// the POST fallback.
func WithoutWebSocket() HandlerOption {
	return func(h *Handler) error {
		h.wsDisabled = true
		return nil
	}
}

// WithoutClientScript serves pages without injecting the embedded
// client script, for callers that bundle their own.
func WithoutClientScript() HandlerOption {
	return func(h *Handler) error {
		h.noScript = true
		return nil
	}
}

// NewHandler creates a Handler serving page, with each new session's
// state seeded from a deep copy of initial. The page markup is parsed
// once up front so template and binding mistakes surface here rather
// than per request.
func NewHandler(page string, initial map[string]any, options ...HandlerOption) (*Handler, error) {
	h := &Handler{
		page:    page,
		initial: initial,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  slog.New(slog.DiscardHandler),
		actions: make(map[string]ActionFunc),
	}

	for _, option := range options {
		if err := option(h); err != nil {
			return nil, fmt.Errorf("apply handler option: %w", err)
		}
	}

	if h.sessions == nil {
		h.sessions = NewMemorySessionStore(0)
	}

	probe, err := h.newSession()
	if err != nil {
		return nil, fmt.Errorf("page markup: %w", err)
	}
	probe.engine.Close()

	return h, nil
}

// HandleAction registers fn for the named action. Registering the same
// name again replaces the handler.
func (h *Handler) HandleAction(name string, fn ActionFunc) {
	h.actionsMu.Lock()
	defer h.actionsMu.Unlock()
	h.actions[name] = fn
}

// Session returns the live session the request's cookie points at.
func (h *Handler) Session(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, fmt.Errorf("%w: no session cookie", ErrSessionNotFound)
	}
	s, ok := h.sessions.Get(cookie.Value)
	if !ok {
		return nil, fmt.Errorf("%w: invalid or expired session", ErrSessionNotFound)
	}
	return s, nil
}

func (h *Handler) newSession() (*Session, error) {
	doc, err := ParseDocument(h.page)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(NewStore(h.initial), doc, h.engineOptions...)
	if err != nil {
		return nil, err
	}
	return &Session{engine: engine, errors: make(map[string]string)}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.wsDisabled {
		w.Header().Set("X-Reactive-WebSocket", "disabled")
	} else {
		w.Header().Set("X-Reactive-WebSocket", "enabled")
	}

	if websocket.IsWebSocketUpgrade(r) {
		if h.wsDisabled {
			http.Error(w, "WebSocket is disabled on this endpoint", http.StatusBadRequest)
			return
		}
		h.serveWebSocket(w, r)
		return
	}
	h.serveFallback(w, r)
}

// wsClient guards writes to one connection; updates may leave from the
// read loop and from broadcasters concurrently.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type broadcaster struct {
	client  *wsClient
	session *Session
	handler *Handler
}

func (b *broadcaster) Send() error {
	b.session.mu.Lock()
	update := b.handler.buildUpdate(b.session, "")
	b.session.mu.Unlock()
	return b.client.write(update)
}

func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reuse the visitor's page session when the cookie names one, so
	// the live loop continues the state the GET rendered. Without a
	// session the connection gets a fresh throwaway one.
	session, err := h.Session(r)
	if err != nil {
		session, err = h.newSession()
		if err != nil {
			h.logger.Error("session setup failed", "error", err)
			return
		}
		defer session.engine.Close()
	}

	h.logger.Debug("client connected", "remote", conn.RemoteAddr().String())
	client := &wsClient{conn: conn}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if h.connect != nil {
		if err := h.connect(ctx, session, &broadcaster{client: client, session: session, handler: h}); err != nil {
			h.logger.Warn("connect hook failed", "error", err)
		}
	}

	// Initial update so the client reconciles against current state.
	session.mu.Lock()
	update := h.buildUpdate(session, "")
	session.mu.Unlock()
	if err := client.write(update); err != nil {
		h.logger.Warn("initial update write failed", "error", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			break
		}

		msg, err := parseClientMessage(data)
		if err != nil {
			h.logger.Warn("bad client message", "error", err)
			continue
		}

		session.mu.Lock()
		if err := h.handleClientMessage(session, msg); err != nil {
			h.logger.Warn("client message rejected", "type", msg.Type, "error", err)
			session.setError("_general", err.Error())
		}
		update := h.buildUpdate(session, msg.Action)
		session.mu.Unlock()

		if err := client.write(update); err != nil {
			h.logger.Warn("websocket write failed", "error", err)
			break
		}
	}

	h.logger.Debug("client disconnected", "remote", conn.RemoteAddr().String())
}

func (h *Handler) serveFallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		// Capability probe, headers only.
		return

	case http.MethodGet:
		session, err := h.Session(r)
		if err != nil {
			session, err = h.newSession()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			id, err := h.sessions.Create(session)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			session.id = id
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		session.mu.Lock()
		page := session.engine.Document().Render()
		session.mu.Unlock()
		if !h.noScript {
			page = injectClientScript(page)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
		return

	case http.MethodPost:
		session, err := h.Session(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var msg clientMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, fmt.Sprintf("parse client message: %v", err), http.StatusBadRequest)
			return
		}
		if msg.Data == nil {
			msg.Data = make(map[string]any)
		}

		session.mu.Lock()
		handleErr := h.handleClientMessage(session, msg)
		update := h.buildUpdate(session, msg.Action)
		session.mu.Unlock()

		if handleErr != nil {
			status := http.StatusBadRequest
			if errors.Is(handleErr, ErrUnknownAction) {
				status = http.StatusNotFound
			}
			http.Error(w, handleErr.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(update); err != nil {
			h.logger.Warn("update encode failed", "error", err)
		}
		return

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClientMessage applies one client message to the session.
// Handler-level failures (validation, action errors) land in the
// session's field errors; the returned error covers protocol-level
// rejects only. Requires session.mu held.
func (h *Handler) handleClientMessage(session *Session, msg clientMessage) error {
	session.clearErrors()

	switch msg.Type {
	case messageInput:
		if !ValidStatePath(msg.Path) {
			return fmt.Errorf("invalid input path %q", msg.Path)
		}
		session.Store().Set(msg.Path, msg.Value)
		return nil

	case messageAction:
		h.actionsMu.RLock()
		fn, ok := h.actions[msg.Action]
		h.actionsMu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
		}

		ctx := &ActionContext{
			Action: msg.Action,
			Data:   newActionData(msg.Data),
			Store:  session.Store(),
		}
		if err := fn(ctx); err != nil {
			var multiErr MultiError
			var fieldErr FieldError
			switch {
			case errors.As(err, &multiErr):
				for _, fe := range multiErr {
					session.setError(fe.Field, fe.Message)
				}
			case errors.As(err, &fieldErr):
				session.setError(fieldErr.Field, fieldErr.Message)
			default:
				session.setError("_general", err.Error())
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// buildUpdate requires session.mu held.
func (h *Handler) buildUpdate(session *Session, action string) *UpdateMessage {
	errs := session.errorsCopy()
	return &UpdateMessage{
		Type:      "update",
		Fragments: session.engine.Fragments(),
		Inputs:    session.engine.BoundValues(),
		Meta: &UpdateMeta{
			Success: len(errs) == 0,
			Errors:  errs,
			Action:  action,
		},
	}
}
