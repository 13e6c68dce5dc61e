/*
	This file contains the headless curation server that lets a web viewer or script drive
	label transfer and export over HTTP.
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/storage"
	_ "github.com/janelia-flyem/neuropil/storage/badger"
	"github.com/janelia-flyem/neuropil/workspace"

	"github.com/zenazn/goji/web"
)

// ShutdownDelay is the time given to in-flight requests when the server is stopped.
const ShutdownDelay = 5 * time.Second

// Server exposes a workspace and its curation controls through an HTTP API.
type Server struct {
	config  *Config
	ws      *workspace.Workspace
	curator *workspace.Curator
	store   storage.Store
	journal *MutationLog
	cache   *sliceCache
	auth    *authorizer
	started time.Time

	root *web.Mux
}

// New returns a server for the workspace.  The checkpoint store, mutation journal and
// kafka producer are opened according to the configuration.
func New(config *Config, ws *workspace.Workspace) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:  config,
		ws:      ws,
		cache:   newSliceCache(config.Cache.SliceCacheMB),
		started: time.Now(),
	}
	var err error
	if s.auth, err = newAuthorizer(config.Auth); err != nil {
		return nil, err
	}
	if s.journal, err = OpenMutationLog(config.Mutations.Journal); err != nil {
		return nil, err
	}
	storage.SetKafkaFailedHandler(s.journal.StoreFailedMsg)
	if err = config.Kafka.Initialize(config.Server.Host); err != nil {
		s.journal.Close()
		return nil, fmt.Errorf("unable to initialize kafka: %v", err)
	}
	if s.store, err = storage.Open(config.Checkpoint.Engine, config.Checkpoint.Path); err != nil {
		s.journal.Close()
		return nil, fmt.Errorf("unable to open checkpoint store: %v", err)
	}
	s.curator = workspace.NewCurator(ws, s.journal)
	if config.Export.Directory != "" {
		s.curator.Save.SetDirectory(config.Export.Directory)
	}
	s.initRoutes()
	return s, nil
}

// Curator returns the controls driven by the server.
func (s *Server) Curator() *workspace.Curator {
	return s.curator
}

// ServeHTTP handles a single request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.root.ServeHTTP(w, r)
}

// Serve listens on the configured address until the context is done.  Simultaneous
// connections are limited by [server].max_connections.
func (s *Server) Serve(ctx context.Context) error {
	address := s.config.Server.HTTPAddress
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	ln = netutil.LimitListener(ln, s.config.Server.MaxConnections)

	// Don't let stay-alive connections hog goroutines for more than an hour.
	srv := &http.Server{
		Handler:     s,
		ReadTimeout: 1 * time.Hour,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownDelay)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			npil.Errorf("Error shutting down web server: %v\n", err)
		}
	}()
	npil.Infof("Web server listening at %s ...\n", address)
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

// Close releases the checkpoint store, the mutation journal and the kafka producer.
func (s *Server) Close() error {
	storage.KafkaShutdown()
	storage.SetKafkaFailedHandler(nil)
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	if jerr := s.journal.Close(); jerr != nil {
		err = jerr
	}
	return err
}

// BadRequest writes an error message and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, http.StatusBadRequest, format, args...)
}

// Unauthorized writes an authorization failure and logs it.
func Unauthorized(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, http.StatusUnauthorized, format, args...)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	errorMsg := fmt.Sprintf("%s (%s).", message, r.URL.Path)
	npil.Errorf("%s\n", errorMsg)
	http.Error(w, errorMsg, status)
}
