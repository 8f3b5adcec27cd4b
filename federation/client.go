package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/fqid"
	"github.com/deemkeen/nodeweave/util"
)

const maxPeerResponse = 4 << 20

// RemoteRejectedError is a peer answering with a status we do not accept.
type RemoteRejectedError struct {
	Code int
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("peer: rejected with status %d", e.Code)
}

// PeerClient speaks to other nodes. Every request is cleared by the trust
// gate first and carries this node's Basic credentials.
type PeerClient struct {
	http    *http.Client
	gate    *TrustGate
	timeout time.Duration
}

func NewPeerClient(gate *TrustGate, timeout time.Duration) *PeerClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PeerClient{
		http:    &http.Client{Timeout: timeout},
		gate:    gate,
		timeout: timeout,
	}
}

func (c *PeerClient) do(ctx context.Context, method, target string, payload interface{}) (int, []byte, error) {
	host, err := fqid.NormalizeHost(target)
	if err != nil {
		return 0, nil, err
	}
	creds, err := c.gate.AuthorizeOutbound(ctx, host)
	if err != nil {
		return 0, nil, err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(buf)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrInvalidIdentifier, err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", util.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxPeerResponse))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return resp.StatusCode, respBody, nil
}

// Get fetches target and decodes a 200 response into out.
func (c *PeerClient) Get(ctx context.Context, target string, out interface{}) error {
	code, body, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return &RemoteRejectedError{Code: code}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// Check reports whether target exists: true on 200, false on 404. A 403 is
// ErrForbidden, any other status a RemoteRejectedError.
func (c *PeerClient) Check(ctx context.Context, target string) (bool, error) {
	code, _, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	switch code {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	case http.StatusForbidden:
		return false, fmt.Errorf("%w: %s refused", domain.ErrForbidden, target)
	default:
		return false, &RemoteRejectedError{Code: code}
	}
}

// Push sends payload to target. A 403 is ErrForbidden, any other non-2xx
// status is a RemoteRejectedError.
func (c *PeerClient) Push(ctx context.Context, method, target string, payload interface{}) error {
	code, _, err := c.do(ctx, method, target, payload)
	if err != nil {
		return err
	}
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: %s refused", domain.ErrForbidden, target)
	default:
		return &RemoteRejectedError{Code: code}
	}
}
