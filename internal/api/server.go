package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rechain/rechain/internal/cas"
	"github.com/rechain/rechain/internal/consensus"
	"github.com/rechain/rechain/internal/gossip"
	"github.com/rechain/rechain/internal/security"
)

// Server exposes the reactor's state and the supporting CAS/gossip
// surfaces over REST, for operators and block-body relays rather than for
// consensus participation itself (votes and notifications travel over the
// Moderator, never through this HTTP surface).
type Server struct {
	reactor  *consensus.Reactor
	cas      *cas.CAS
	gossip   *gossip.GossipProtocol
	security *security.KeyManager

	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new API server.
func NewServer(reactor *consensus.Reactor, cas *cas.CAS, gossip *gossip.GossipProtocol, security *security.KeyManager) *Server {
	srv := &Server{
		reactor:  reactor,
		cas:      cas,
		gossip:   gossip,
		security: security,
		router:   mux.NewRouter(),
	}

	srv.routes()

	return srv
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("API server starting on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// routes defines all API routes.
func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealthCheck).Methods("GET")

	// CAS operations, for resolving BlockAuthorized/BlockProposeAuthorized
	// block bodies.
	s.router.HandleFunc("/cas/objects", s.handleStoreObject).Methods("POST")
	s.router.HandleFunc("/cas/objects/{cid}", s.handleGetObject).Methods("GET")
	s.router.HandleFunc("/cas/objects/{cid}", s.handleDeleteObject).Methods("DELETE")
	s.router.HandleFunc("/cas/objects", s.handleListObjects).Methods("GET")

	// Gossip operations, for inspecting the CRDT-backed stake/membership
	// state that rides alongside vote traffic.
	s.router.HandleFunc("/gossip/state", s.handleGetGossipState).Methods("GET")
	s.router.HandleFunc("/gossip/state", s.handleUpdateGossipState).Methods("POST")
	s.router.HandleFunc("/gossip/query", s.handleQueryGossip).Methods("POST")

	// Node/reactor introspection.
	s.router.HandleFunc("/node/info", s.handleNodeInfo).Methods("GET")
	s.router.HandleFunc("/consensus/state", s.handleGetConsensusState).Methods("GET")
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding response: %v", err)
		}
	}
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, err error, status int) {
	s.respond(w, r, map[string]string{"error": err.Error()}, status)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}, http.StatusOK)
}

func (s *Server) handleStoreObject(w http.ResponseWriter, r *http.Request) {
	metadata := make(map[string]string)
	for key, values := range r.Header {
		if len(values) > 0 && key != "Content-Type" {
			metadata[key] = values[0]
		}
	}

	objInfo, err := s.cas.Store(context.Background(), r.Body, metadata)
	if err != nil {
		s.error(w, r, fmt.Errorf("failed to store object: %w", err), http.StatusInternalServerError)
		return
	}

	s.respond(w, r, map[string]interface{}{
		"cid":         objInfo.CID,
		"size":        objInfo.Size,
		"chunks":      len(objInfo.Chunks),
		"merkle_root": objInfo.MerkleRoot,
		"uploaded":    objInfo.Uploaded.Format(time.RFC3339),
	}, http.StatusCreated)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cid := vars["cid"]

	reader, err := s.cas.Retrieve(context.Background(), cid)
	if err != nil {
		s.error(w, r, fmt.Errorf("failed to retrieve object: %w", err), http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Content-ID", cid)
	io.Copy(w, reader)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cid := vars["cid"]

	if err := s.cas.Delete(context.Background(), cid); err != nil {
		s.error(w, r, fmt.Errorf("failed to delete object: %w", err), http.StatusInternalServerError)
		return
	}

	s.respond(w, r, map[string]string{"message": "Object deleted"}, http.StatusOK)
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	objects, err := s.cas.List(context.Background(), prefix)
	if err != nil {
		s.error(w, r, fmt.Errorf("failed to list objects: %w", err), http.StatusInternalServerError)
		return
	}

	s.respond(w, r, map[string]interface{}{
		"objects": objects,
		"count":   len(objects),
	}, http.StatusOK)
}

func (s *Server) handleGetGossipState(w http.ResponseWriter, r *http.Request) {
	state := make(map[string]interface{})

	if value, exists := s.gossip.GetCRDT("stake-pool"); exists {
		state["stake-pool"] = value
	}

	s.respond(w, r, map[string]interface{}{"state": state}, http.StatusOK)
}

func (s *Server) handleUpdateGossipState(w http.ResponseWriter, r *http.Request) {
	var updateReq struct {
		Key   string      `json:"key"`
		Value interface{} `json:"value"`
	}

	if err := json.NewDecoder(r.Body).Decode(&updateReq); err != nil {
		s.error(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.gossip.UpdateCRDT(updateReq.Key, updateReq.Value); err != nil {
		s.error(w, r, err, http.StatusInternalServerError)
		return
	}

	s.respond(w, r, map[string]string{"message": "State updated"}, http.StatusOK)
}

func (s *Server) handleQueryGossip(w http.ResponseWriter, r *http.Request) {
	var queryReq struct {
		Key string `json:"key"`
	}

	if err := json.NewDecoder(r.Body).Decode(&queryReq); err != nil {
		s.error(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.gossip.QueryCRDT(queryReq.Key); err != nil {
		s.error(w, r, err, http.StatusInternalServerError)
		return
	}

	s.respond(w, r, map[string]string{"message": "Query sent"}, http.StatusOK)
}

func (s *Server) handleNodeInfo(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, map[string]interface{}{
		"version":   "0.1.0",
		"network":   "rechain-consensus",
		"consensus": "bft",
		"height":    s.reactor.Height(),
	}, http.StatusOK)
}

func (s *Server) handleGetConsensusState(w http.ResponseWriter, r *http.Request) {
	height := s.reactor.Height()
	round := s.reactor.Round(time.Now().UTC())

	state := map[string]interface{}{
		"height": height,
		"round":  round,
	}

	if leader, err := s.reactor.Leader(round); err == nil {
		state["leader"] = leader.Hex()
	} else {
		state["leader_error"] = err.Error()
	}

	s.respond(w, r, state, http.StatusOK)
}
