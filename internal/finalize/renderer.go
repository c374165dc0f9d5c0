package finalize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RenderRequest struct {
	JobID       string         `json:"job_id"`
	DocumentID  string         `json:"document_id"`
	TenantID    string         `json:"tenant_id"`
	Revision    int            `json:"revision"`
	Title       string         `json:"title"`
	Content     []byte         `json:"content"`
	Attachments []RenderFile   `json:"attachments,omitempty"`
	Signatures  []RenderSigner `json:"signatures,omitempty"`
}

type RenderFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	SHA256    string `json:"sha256"`
	Pages     int    `json:"pages"`
	Data      []byte `json:"data"`
}

// RenderSigner feeds the signature manifest page.
type RenderSigner struct {
	Group       string    `json:"group"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	SignedAt    time.Time `json:"signed_at"`
	Method      string    `json:"method"`
	Notation    string    `json:"notation,omitempty"`
}

type Artifact struct {
	Ref   string `json:"artifact_ref"`
	Pages int    `json:"pages"`
}

type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (Artifact, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req RenderRequest) (Artifact, error)

func (f RendererFunc) Render(ctx context.Context, req RenderRequest) (Artifact, error) {
	return f(ctx, req)
}

// HTTPRenderer posts the request as JSON to the rendering service. The job
// id travels as the idempotency key so retried attempts do not produce
// duplicate artifacts.
type HTTPRenderer struct {
	url    string
	client *http.Client
}

func NewHTTPRenderer(url string, client *http.Client) *HTTPRenderer {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPRenderer{url: url, client: client}
}

func (r *HTTPRenderer) Render(ctx context.Context, req RenderRequest) (Artifact, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to encode render request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.JobID)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Artifact{}, fmt.Errorf("renderer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Artifact{}, fmt.Errorf("renderer returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var art Artifact
	if err := json.NewDecoder(resp.Body).Decode(&art); err != nil {
		return Artifact{}, fmt.Errorf("failed to decode render response: %w", err)
	}
	if art.Ref == "" {
		return Artifact{}, errors.New("renderer returned no artifact reference")
	}
	if art.Pages < 0 {
		return Artifact{}, fmt.Errorf("renderer returned negative page count %d", art.Pages)
	}
	return art, nil
}
