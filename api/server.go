package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/productsync/feedbatch"
	"github.com/productsync/feedbatch/feed"
	"github.com/productsync/feedbatch/internal/logs"
)

// Server serves live feed artifacts and accepts regenerate triggers. The
// feed endpoints are the HTTP boundary in front of the file handler; they
// only ever read the live path, never the temporary one.
type Server struct {
	driver *feedbatch.Driver
	secret string
	feeds  map[string]*feed.Handler
	logger logs.Logger
}

// NewServer server over a run driver. An empty secret disables the token gate.
func NewServer(driver *feedbatch.Driver, secret string, logger logs.Logger) *Server {
	return &Server{
		driver: driver,
		secret: secret,
		feeds:  make(map[string]*feed.Handler),
		logger: logger,
	}
}

// RegisterFeed expose a feed artifact under /feeds/{plugin}/{job}
func (s *Server) RegisterFeed(plugin, jobName string, handler *feed.Handler) {
	s.feeds[plugin+":"+jobName] = handler
}

// Routes build the router
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	r.HandleFunc("/feeds/{plugin}/{job}", s.serveFeed).Methods("GET")
	r.HandleFunc("/feeds/{plugin}/{job}/regenerate", s.regenerate).Methods("POST")
	return r
}

func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	given := r.URL.Query().Get("secret")
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.secret)) == 1
}

func (s *Server) feedKey(r *http.Request) string {
	vars := mux.Vars(r)
	return vars["plugin"] + ":" + vars["job"]
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	handler, ok := s.feeds[s.feedKey(r)]
	if !ok {
		http.NotFound(w, r)
		return
	}
	file, err := os.Open(handler.LivePath())
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error(r.Context(), "open feed file:%v err:%v", handler.LivePath(), err)
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.logger.Error(r.Context(), "stat feed file:%v err:%v", handler.LivePath(), err)
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", handler.FileName()))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	if _, err = io.Copy(w, file); err != nil {
		// headers are gone; the broken stream is all we can report
		s.logger.Error(r.Context(), "stream feed file:%v err:%v", handler.LivePath(), err)
	}
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	jobKey := s.feedKey(r)
	execution, _, err := s.driver.StartAsync(context.Background(), jobKey, feedbatch.Args{})
	if err != nil {
		if be, ok := err.(feedbatch.BatchError); ok && be.Code() == feedbatch.ErrCodeConcurrency {
			http.Error(w, "run already in flight", http.StatusConflict)
			return
		}
		s.logger.Error(r.Context(), "start run for job:%v err:%v", jobKey, err)
		http.Error(w, "could not start run", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"run_id": execution.RunId})
}
