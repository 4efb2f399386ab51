package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
)

// DefaultHTTPTimeout caps every outbound explorer call.
const DefaultHTTPTimeout = 10 * time.Second

// errNotFound marks a 404 so adapters can map it to "no result"
// instead of a transport failure.
var errNotFound = errors.New("not found")

// restClient is the shared HTTP plumbing of all adapters:
// one timeout-bearing http.Client, quota gate, uniform logging.
type restClient struct {
	name    string
	baseURL string
	client  *http.Client
	limiter Limiter
}

func newRestClient(name, baseURL string, timeout time.Duration, limiter Limiter) *restClient {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	if limiter == nil {
		limiter = unlimited{}
	}
	return &restClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// get performs one quota-gated GET and returns the raw body.
func (rc *restClient) get(ctx context.Context, path string) ([]byte, error) {
	if !rc.limiter.TryConsume(rc.name) {
		logger.WithField("source", rc.name).Debug("skipping call, quota exhausted")
		return nil, ErrQuotaExhausted
	}

	url := rc.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v", err)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		logger.WithFields(logger.Fields{
			"source": rc.name,
			"path":   path,
		}).Warnf("explorer request failed: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		logger.WithFields(logger.Fields{
			"source": rc.name,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("explorer request returned non-200")
		return nil, fmt.Errorf("%s returned status %d", rc.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return body, nil
}

// getJSON performs a GET and decodes the body into out.
func (rc *restClient) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := rc.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		logger.WithFields(logger.Fields{
			"source": rc.name,
			"path":   path,
		}).Warnf("malformed explorer response: %v", err)
		return fmt.Errorf("malformed response from %s: %v", rc.name, err)
	}
	return nil
}
