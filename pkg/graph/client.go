package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
)

// Error codes the graph store places in error extensions.
const (
	CodeConflict = "CONFLICT"
	CodeNotFound = "NOT_FOUND"
)

// Request is a graph query or mutation.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// Response is the graph store's reply. Data is left raw until decoded into
// the caller's shape.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []Error         `json:"errors,omitempty"`
}

// Error is one entry of a response's error list.
type Error struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func (e Error) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// Executor runs a request and decodes its data into out.
type Executor interface {
	Execute(ctx context.Context, req Request, out interface{}) error
}

// Mutator is an Executor bound to a signing identity. Writes to the graph
// store require one.
type Mutator interface {
	Executor
	Identity() string
}

// RequestSigner signs request bodies on behalf of a resource identity.
type RequestSigner interface {
	DID() string
	SignRequest(body []byte) (string, error)
}

// Client talks to the graph store over HTTP. A Client without a signer only
// reads; WithSigner returns an independent copy bound to an identity.
type Client struct {
	endpoint   string
	httpClient *http.Client
	signer     RequestSigner
}

// NewClient creates a Client for endpoint. Every request is bounded by timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithSigner returns a copy of c that signs every request with s.
func (c *Client) WithSigner(s RequestSigner) *Client {
	cp := *c
	cp.signer = s
	return &cp
}

// Identity is the DID of the bound signer, or "" for a read-only client.
func (c *Client) Identity() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.DID()
}

func (c *Client) Execute(ctx context.Context, req Request, out interface{}) error {
	return c.do(ctx, req, out, c.signer)
}

func (c *Client) do(ctx context.Context, req Request, out interface{}, signer RequestSigner) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode graph request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create graph request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if signer != nil {
		token, err := signer.SignRequest(body)
		if err != nil {
			return errs.Credential(err, "failed to sign graph request")
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errs.Upstream(err, "graph request %s failed", req.OperationName)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Upstream(err, "failed to read graph response")
	}

	var gr Response
	if err := json.Unmarshal(raw, &gr); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return errs.Upstream(nil, "graph store returned %s", resp.Status)
		}
		return errs.Upstream(err, "malformed graph response")
	}

	if len(gr.Errors) > 0 {
		return responseError(gr.Errors)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.Upstream(nil, "graph store returned %s", resp.Status)
	}

	if out == nil || len(gr.Data) == 0 || string(gr.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return errs.Upstream(err, "failed to decode %s response", req.OperationName)
	}
	return nil
}

// responseError maps the error list to a typed error. A list made only of
// conflicts or only of not-found entries keeps that meaning; anything else is
// an aggregated upstream error.
func responseError(list []Error) error {
	msgs := make([]string, 0, len(list))
	code := list[0].Code()
	for _, e := range list {
		msgs = append(msgs, e.Message)
		if e.Code() != code {
			code = ""
		}
	}

	switch code {
	case CodeConflict:
		return errs.Conflict("%s", strings.Join(msgs, "; "))
	case CodeNotFound:
		return errs.NotFound("%s", strings.Join(msgs, "; "))
	}
	return errs.UpstreamMessages(msgs)
}
