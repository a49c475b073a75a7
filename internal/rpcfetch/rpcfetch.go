// Package rpcfetch provides the multi-host transport for VertexFetcher's
// FetcherGlobalFetcher mode (spec §4.8): a Server exposes one host's
// VertexState.Current over HTTP, and a Client lets another host's
// EdgeProcessors resolve source-vertex values against it, satisfying
// tilegraph.RemoteFetcher the same way an in-process GlobalFetcher does.
//
// The wire format is JSON over a single POST endpoint rather than a
// generated gRPC service: this repo has no protoc toolchain available to
// produce service stubs, and a hand-rolled grpc.ServiceDesc without one is
// fragile to maintain by hand. The request/response shape below mirrors
// spec §4.8's batched {vertex_ids[]} -> {values[]} slot contract directly.
package rpcfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const fetchPath = "/rpcfetch/v1/batch"

type fetchRequest struct {
	IDs []uint64 `json:"ids"`
}

type fetchResponse struct {
	Values []uint64 `json:"values"`
}

// Source answers FetchBatch requests on behalf of a Server; tilegraph's
// GlobalFetcher implements it directly.
type Source interface {
	FetchBatch(ctx context.Context, ids []uint64) []uint64
}

// Server exposes a Source over HTTP for a remote EdgeProcessor's
// VertexFetcher to dial into.
type Server struct {
	source Source
	srv    *http.Server
}

// NewServer constructs a Server backed by source, listening on addr once
// Start is called.
func NewServer(addr string, source Source) *Server {
	s := &Server{source: source}
	mux := http.NewServeMux()
	mux.HandleFunc(fetchPath, s.handleBatch)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start runs the HTTP listener; it blocks until Shutdown is called, mirroring
// net/http.Server.ListenAndServe's contract.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("rpcfetch: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}
	values := s.source.FetchBatch(r.Context(), req.IDs)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(fetchResponse{Values: values}); err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
	}
}

// Client is a tilegraph.RemoteFetcher that resolves vertex values from a
// remote Server instead of a local VertexState.
type Client struct {
	addr string
	http *http.Client
}

// NewClient constructs a Client dialing addr (host:port, no scheme).
func NewClient(addr string) *Client {
	return &Client{addr: addr, http: &http.Client{Timeout: 5 * time.Second}}
}

// Fetch resolves a single vertex id via FetchBatch, matching
// tilegraph.GlobalFetcher's single-id convenience wrapper.
func (c *Client) Fetch(ctx context.Context, globalID uint64) uint64 {
	values := c.FetchBatch(ctx, []uint64{globalID})
	if len(values) == 0 {
		return 0
	}
	return values[0]
}

// FetchBatch resolves many vertex ids in one round trip, the shape spec
// §4.8 describes for a request ring-buffer slot.
func (c *Client) FetchBatch(ctx context.Context, ids []uint64) []uint64 {
	body, err := json.Marshal(fetchRequest{IDs: ids})
	if err != nil {
		return make([]uint64, len(ids))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+c.addr+fetchPath, bytes.NewReader(body))
	if err != nil {
		return make([]uint64, len(ids))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return make([]uint64, len(ids))
	}
	defer resp.Body.Close()

	var out fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return make([]uint64, len(ids))
	}
	return out.Values
}
