package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/gpiolog/pkg/httpx"
)

// maxRequestBytes bounds an RPC request body.
const maxRequestBytes = 1 << 20

// Request is the RPC request body.
type Request struct {
	Params []json.RawMessage `json:"params"`
}

// Response is the RPC reply body.
type Response struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Routes mounts the bridge on router.
func (b *Bridge) Routes(router *mux.Router) {
	router.HandleFunc("/rpc/{method}", b.HandleCall).Methods("POST")
	router.HandleFunc("/rpc", b.HandleMethods).Methods("GET")
}

// HandleCall handles POST /rpc/{method}
func (b *Bridge) HandleCall(w http.ResponseWriter, r *http.Request) {
	method := mux.Vars(r)["method"]

	var req Request
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("read body: %v", err)})
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.RespondJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("invalid JSON: %v", err)})
			return
		}
	}

	result, err := b.Call(r.Context(), method, req.Params)
	if errors.Is(err, ErrUnknownMethod) {
		httpx.RespondJSON(w, http.StatusNotFound, Response{Error: err.Error()})
		return
	}
	if err != nil {
		log.Printf("Bridge call %s failed: %v", method, err)
		httpx.RespondJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}

	httpx.RespondJSON(w, http.StatusOK, Response{Result: result})
}

// HandleMethods handles GET /rpc and lists the provided operations.
func (b *Bridge) HandleMethods(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"methods": b.Methods()})
}

// RemoteError is an error reported by the far side of a call.
type RemoteError struct {
	Method  string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge %s: %s (status %d)", e.Method, e.Message, e.Status)
}

// Client calls operations on a remote bridge over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the bridge at baseURL, e.g. http://localhost:8090.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Call invokes method with params and decodes the result into result, which
// may be nil when the caller does not need it.
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	raw := make([]json.RawMessage, 0, len(params))
	for i, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal parameter %d: %w", i, err)
		}
		raw = append(raw, data)
	}

	payload, err := json.Marshal(Request{Params: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBytes)).Decode(&reply); err != nil {
		return &RemoteError{Method: method, Status: resp.StatusCode, Message: fmt.Sprintf("undecodable reply: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || reply.Error != "" {
		msg := reply.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RemoteError{Method: method, Status: resp.StatusCode, Message: msg}
	}

	if result == nil || len(reply.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
