package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// HTTPClient talks to a document-store file API: file bytes are POSTed to
// fs-content/<path>, folders are created via fs/<path>, and requests carry
// a bearer token.
type HTTPClient struct {
	baseURL *url.URL
	token   string
	hc      *http.Client
}

// HTTPOptions configures the HTTP backend.
type HTTPOptions struct {
	Endpoint string
	Token    string
}

// NewHTTP builds an HTTP remote client. Per-call deadlines come from the
// caller's context, so no client-level timeout is set.
func NewHTTP(opt HTTPOptions) (*HTTPClient, error) {
	if opt.Endpoint == "" {
		return nil, errors.New("remote endpoint is required")
	}
	u, err := url.Parse(opt.Endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote endpoint %q", opt.Endpoint)
	}
	return &HTTPClient{
		baseURL: u,
		token:   opt.Token,
		hc:      &http.Client{Transport: &http.Transport{}},
	}, nil
}

// Upload pushes the file at localPath to remotePath.
func (c *HTTPClient) Upload(ctx context.Context, localPath, remotePath string) (Metadata, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Metadata{}, &UploadError{Kind: KindUnknown, Path: remotePath, Err: err}
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Metadata{}, &UploadError{Kind: KindUnknown, Path: remotePath, Err: err}
	}

	u := c.baseURL.JoinPath("fs-content", strings.TrimPrefix(remotePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), f)
	if err != nil {
		return Metadata{}, &UploadError{Kind: KindUnknown, Path: remotePath, Err: err}
	}
	req.ContentLength = st.Size()
	req.Header.Set("content-type", "application/octet-stream")
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return Metadata{}, &UploadError{Kind: transportKind(ctx, err), Path: remotePath, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Metadata{}, &UploadError{
			Kind: statusKind(resp.StatusCode),
			Path: remotePath,
			Err:  fmt.Errorf("%s: %s", resp.Status, apiError(resp)),
		}
	}

	var body struct {
		EntryID  string `json:"entry_id"`
		Checksum string `json:"checksum"`
	}
	// Some deployments return an empty body on success; ignore decode errors.
	_ = json.NewDecoder(resp.Body).Decode(&body)

	return Metadata{Path: remotePath, Size: st.Size(), ID: body.EntryID}, nil
}

// EnsureDir creates the remote directory. A 403 "already exists" style
// response is common and callers downgrade any error here to a warning.
func (c *HTTPClient) EnsureDir(ctx context.Context, remoteDir string) error {
	payload, err := json.Marshal(map[string]string{"action": "add_folder"})
	if err != nil {
		return err
	}
	u := c.baseURL.JoinPath("fs", strings.TrimPrefix(remoteDir, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("create folder %s: %s: %s", remoteDir, resp.Status, apiError(resp))
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("authorization", "Bearer "+c.token)
	}
}

// statusKind maps an HTTP status to a failure kind.
func statusKind(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}

// transportKind distinguishes deadline expiry from other transport errors.
func transportKind(ctx context.Context, err error) Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// apiError pulls the error message out of a JSON error body, if any.
func apiError(resp *http.Response) string {
	var er struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&er)
	if er.Error != "" {
		return er.Error
	}
	return er.Message
}

var _ Client = (*HTTPClient)(nil)
