// fiscal-producer is a stand-in for an external fiscal service during local
// development. It accepts the producer wire protocol and hands out
// deterministic external references; state lives in memory and resets on
// restart.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

type createRequest struct {
	DocType        string  `json:"doc_type"`
	DocID          string  `json:"doc_id"`
	RegistryNumber string  `json:"registry_number"`
	TaxpayerID     string  `json:"taxpayer_id,omitempty"`
	Counterparty   string  `json:"counterparty,omitempty"`
	Amount         float64 `json:"amount"`
}

type createResponse struct {
	Ref    string  `json:"ref"`
	Amount float64 `json:"amount"`
}

type server struct {
	prefix  string
	latency time.Duration

	mu       sync.Mutex
	sequence int
	issued   map[string]createRequest
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocType == "" || req.DocID == "" || req.RegistryNumber == "" {
		http.Error(w, "doc_type, doc_id and registry_number are required", http.StatusUnprocessableEntity)
		return
	}

	time.Sleep(s.latency)

	s.mu.Lock()
	s.sequence++
	ref := fmt.Sprintf("%s-%06d", s.prefix, s.sequence)
	s.issued[ref] = req
	s.mu.Unlock()

	log.Printf("issued %s for %s/%s amount %.2f", ref, req.DocType, req.DocID, req.Amount)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createResponse{Ref: ref, Amount: req.Amount})
}

func (s *server) reverse(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, "/artifacts/")

	s.mu.Lock()
	_, ok := s.issued[ref]
	delete(s.issued, ref)
	s.mu.Unlock()

	if !ok {
		http.Error(w, "unknown reference", http.StatusNotFound)
		return
	}
	log.Printf("reversed %s", ref)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/artifacts":
		s.create(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/artifacts/"):
		s.reverse(w, r)
	default:
		http.NotFound(w, r)
	}
}

func main() {
	addr := flag.String("addr", ":9102", "listen address")
	prefix := flag.String("prefix", "DDTD", "external reference prefix")
	latency := flag.Duration("latency", 50*time.Millisecond, "artificial call latency")
	flag.Parse()

	s := &server{
		prefix:  *prefix,
		latency: *latency,
		issued:  make(map[string]createRequest),
	}

	log.Printf("fiscal-producer listening on %s (prefix %s)", *addr, *prefix)
	log.Fatal(http.ListenAndServe(*addr, http.HandlerFunc(s.route)))
}
