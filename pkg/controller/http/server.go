package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/usecase"
)

const defaultMaxBodyBytes = 10 << 20

type Server struct {
	router       *chi.Mux
	uc           *usecase.UseCases
	hub          *Hub
	maxBodyBytes int64
	unsubscribe  func()
}

type Options func(*Server)

// WithHub replaces the websocket hub. The hub is registered as the navigation handler.
func WithHub(hub *Hub) Options {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithMaxBodyBytes limits the size of request bodies, uploaded images included
func WithMaxBodyBytes(n int64) Options {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	if uc == nil {
		return nil, goerr.New("use cases are required")
	}

	r := chi.NewRouter()
	s := &Server{
		router:       r,
		uc:           uc,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub()
	}

	uc.Conversation.SetNavigator(s.hub)
	s.unsubscribe = uc.Store.Subscribe(s.hub.publish)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/characters", s.listCharacters)
		r.Put("/active-character", s.setActiveCharacter)
		r.Get("/characters/{id}/messages", s.listMessages)
		r.Get("/characters/{id}/memory", s.getMemory)
		r.Post("/messages", s.postMessage)
		r.Put("/view", s.setView)
		r.Get("/snapshot", s.getSnapshot)
		r.Get("/ws", s.hub.ServeHTTP)
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close detaches the server from the conversation store and unregisters the navigator
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.uc.Conversation.SetNavigator(nil)
}
