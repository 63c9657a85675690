package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"notesync/models"
	"notesync/remote"
	"notesync/sync"
	"notesync/web/api"
)

// Deps carries the explicitly constructed core components the control API
// serves. Wired once in main and passed down — no package-level state.
type Deps struct {
	Store   *models.Store
	Manager *sync.Manager
	Repo    *sync.NoteRepository
	Social  *sync.Social
	Session *remote.TokenSession
}

// NewServer creates and configures the RWeb server for the control API.
func NewServer(addr string, deps Deps) *rweb.Server {
	return NewTestServer(rweb.ServerOptions{
		Address: addr,
		Verbose: true,
	}, deps)
}

// NewTestServer builds the same server from explicit options; the
// integration tests use it with a dynamic port and a ready channel.
func NewTestServer(opts rweb.ServerOptions, deps Deps) *rweb.Server {
	s := rweb.NewServer(opts)

	s.Use(rweb.RequestInfo)
	s.Use(CorsMiddleware)
	s.Use(AuthMiddleware)

	h := api.NewHandlers(deps.Store, deps.Manager, deps.Repo, deps.Social, deps.Session)
	setupRoutes(s, h)

	return s
}

// Run starts the server.
func Run(s *rweb.Server, addr string) error {
	logger.Info("Control API starting", "address", addr)
	return s.Run()
}
