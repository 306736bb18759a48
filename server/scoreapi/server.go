// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package scoreapi provides a read-only http server for PoC scores and the
// active weight table.
package scoreapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"sharder.org/pocscore/poc/weight"
	"sharder.org/pocscore/server/score"
)

const (
	// rpcTimeoutSeconds is the number of seconds a request may take to be
	// read or answered.
	rpcTimeoutSeconds = 10

	accountKey = "account"
)

// ScoreSource is satisfied by *score.Engine.
type ScoreSource interface {
	Score(account int64) (*score.PocScore, bool)
	Scores() []*score.PocScore
	ActiveTable() *weight.Activation
	MissCount(account int64) (int64, error)
	MissCounts() (map[int64]int64, error)
}

var _ ScoreSource = (*score.Engine)(nil)

// Config holds variables needed to create a new Server.
type Config struct {
	Source ScoreSource
	Addr   string
}

// Server is a read-only http server.
type Server struct {
	src  ScoreSource
	addr string
	srv  *http.Server
}

// NewServer is the constructor for a new Server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Source == nil {
		return nil, errors.New("no score source")
	}
	if cfg.Addr == "" {
		return nil, errors.New("no listen address")
	}

	mux := chi.NewRouter()
	s := &Server{
		src:  cfg.Source,
		addr: cfg.Addr,
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  rpcTimeoutSeconds * time.Second,
			WriteTimeout: rpcTimeoutSeconds * time.Second,
		},
	}

	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RealIP)
	mux.Route("/api", func(r chi.Router) {
		r.Get("/ping", apiPing)
		r.Get("/weights", s.apiWeights)
		r.Get("/scores", s.apiScores)
		r.Get("/score/{"+accountKey+"}", s.apiScore)
		r.Get("/misses", s.apiAllMisses)
		r.Get("/misses/{"+accountKey+"}", s.apiMisses)
	})

	return s, nil
}

// Handler is the server's router.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run starts the server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		log.Errorf("can't listen on %s. score api quitting: %v", s.addr, err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		if err := s.srv.Shutdown(context.Background()); err != nil {
			log.Errorf("HTTP server Shutdown: %v", err)
		}
	}()
	log.Infof("score api listening on %s", listener.Addr())
	if err := s.srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Warnf("unexpected (http.Server).Serve error: %v", err)
	}

	wg.Wait()
	log.Infof("score api off")
}
