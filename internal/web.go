package internal

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed web/index.html
var webFS embed.FS

const conversationCookie = "ytrag_conversation"

const (
	conversationIdleTimeout = 30 * time.Minute
	maxConversations        = 256
)

// ChatResponse is returned by the chat endpoints
type ChatResponse struct {
	State   ChatState  `json:"state"`
	History []ChatTurn `json:"history"`
}

type conversationEntry struct {
	conv     *Conversation
	lastUsed time.Time
}

type chatRequest struct {
	Message string `json:"message"`
}

// WebServer serves the chat page and its JSON API
type WebServer struct {
	addr          string
	newApp        AppFactory
	keyConfigured bool
	sessions      *SessionManager

	mu            sync.Mutex
	conversations map[string]*conversationEntry
	idleTimeout   time.Duration
	maxConvs      int
	now           func() time.Time

	listener net.Listener
	server   *http.Server
}

// NewWebServer creates a server for config.WebAddr; newApp builds the per-conversation App
func NewWebServer(config *Config, newApp AppFactory) *WebServer {
	s := &WebServer{
		addr:          config.WebAddr,
		newApp:        newApp,
		keyConfigured: ValidateAPIKey(config.OpenAIAPIKey),
		sessions:      NewSessionManager(config, nil),
		conversations: make(map[string]*conversationEntry),
		idleTimeout:   conversationIdleTimeout,
		maxConvs:      maxConversations,
		now:           time.Now,
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	return mux
}

// Addr returns the bound address once the server is listening
func (s *WebServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Listen binds the configured address
func (s *WebServer) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}
	s.listener = listener
	return nil
}

// Serve blocks serving requests until ctx is cancelled
func (s *WebServer) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	webLog().Info("web UI listening", zap.Stringer("addr", s.listener.Addr()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.closeConversations()
	return err
}

func (s *WebServer) closeConversations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.conversations {
		entry.conv.Close()
		delete(s.conversations, id)
	}
}

// conversation finds the caller's conversation by cookie, starting one when needed
func (s *WebServer) conversation(w http.ResponseWriter, r *http.Request) *Conversation {
	s.mu.Lock()
	now := s.now()

	if cookie, err := r.Cookie(conversationCookie); err == nil {
		if entry, ok := s.conversations[cookie.Value]; ok && now.Sub(entry.lastUsed) < s.idleTimeout {
			entry.lastUsed = now
			s.mu.Unlock()
			return entry.conv
		}
	}

	evicted := s.evictLocked(now)
	id := uuid.NewString()
	conv := NewConversation(s.newApp, s.keyConfigured)
	s.conversations[id] = &conversationEntry{conv: conv, lastUsed: now}
	s.mu.Unlock()

	// closing waits for any in-flight reply, so it happens outside the server lock
	for _, old := range evicted {
		old.Close()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     conversationCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	webLog().Debug("new conversation", zap.String("id", id))
	return conv
}

// evictLocked drops idle conversations and, at capacity, the least recently used one
func (s *WebServer) evictLocked(now time.Time) []*Conversation {
	var evicted []*Conversation
	for id, entry := range s.conversations {
		if now.Sub(entry.lastUsed) >= s.idleTimeout {
			evicted = append(evicted, entry.conv)
			delete(s.conversations, id)
		}
	}
	for s.maxConvs > 0 && len(s.conversations) >= s.maxConvs {
		var oldestID string
		var oldest time.Time
		for id, entry := range s.conversations {
			if oldestID == "" || entry.lastUsed.Before(oldest) {
				oldestID, oldest = id, entry.lastUsed
			}
		}
		evicted = append(evicted, s.conversations[oldestID].conv)
		delete(s.conversations, oldestID)
	}
	if len(evicted) > 0 {
		webLog().Info("evicted conversations", zap.Int("count", len(evicted)), zap.Int("remaining", len(s.conversations)))
	}
	return evicted
}

func (s *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *WebServer) handleChat(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, ChatResponse{State: conv.State(), History: conv.History()})
	case http.MethodPost:
		var req chatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		history := conv.Respond(r.Context(), req.Message)
		s.writeJSON(w, http.StatusOK, ChatResponse{State: conv.State(), History: history})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	conv := s.conversation(w, r)
	history := conv.Reset()
	s.writeJSON(w, http.StatusOK, ChatResponse{State: conv.State(), History: history})
}

func (s *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessions, err := s.sessions.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []SessionInfo{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *WebServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		webLog().Error("encoding response failed", zap.Error(err))
	}
}

func (s *WebServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}
