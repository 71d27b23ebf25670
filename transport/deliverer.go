package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/core"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultDeliveryTimeout       = 30 * time.Second
	maxErrorDetailBytes    int64 = 512

	credentialsPath       = "/credentials"
	credentialMessageType = "CredentialMessage"
	dcpContext            = "https://w3id.org/dspace-dcp/v1.0/dcp.jsonld"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource mints the bearer token presented to the holder.
type TokenSource interface {
	Token(ctx context.Context, audience string) (string, error)
}

type credentialContainerPayload struct {
	CredentialType string `json:"credentialType"`
	Format         string `json:"format"`
	Payload        string `json:"payload"`
}

type credentialMessagePayload struct {
	Context     []string                     `json:"@context"`
	Type        string                       `json:"type"`
	IssuerPID   string                       `json:"issuerPid"`
	HolderPID   string                       `json:"holderPid"`
	Credentials []credentialContainerPayload `json:"credentials"`
}

type DelivererConfig struct {
	HTTPClient HTTPDoer
	Tokens     TokenSource
	Timeout    time.Duration
	Headers    map[string]string
}

// HTTPDeliverer posts CredentialMessages to <endpoint>/credentials.
type HTTPDeliverer struct {
	client  HTTPDoer
	tokens  TokenSource
	timeout time.Duration
	headers map[string]string
}

// NewHTTPClient returns a client whose outbound calls are traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func NewHTTPDeliverer(cfg DelivererConfig) *HTTPDeliverer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = NewHTTPClient(timeout)
	}
	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return &HTTPDeliverer{
		client:  client,
		tokens:  cfg.Tokens,
		timeout: timeout,
		headers: headers,
	}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, endpoint string, msg core.CredentialMessage) error {
	if d == nil || d.client == nil {
		return transportError(
			"transport: deliverer requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	target, err := credentialsURL(endpoint)
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Cause: err}
	}
	body, err := json.Marshal(toPayload(msg))
	if err != nil {
		return &DeliveryError{Endpoint: target, Cause: err}
	}

	requestCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Endpoint: target, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range d.headers {
		req.Header.Set(key, value)
	}
	if d.tokens != nil {
		token, err := d.tokens.Token(ctx, target)
		if err != nil {
			return &DeliveryError{Endpoint: target, Cause: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := d.client.Do(req)
	if err != nil {
		return &DeliveryError{Endpoint: target, Cause: err, retryable: !errors.Is(err, context.Canceled)}
	}
	defer res.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorDetailBytes))

	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	return &DeliveryError{
		Endpoint:   target,
		StatusCode: res.StatusCode,
		Detail:     strings.TrimSpace(string(detail)),
		retryable:  retryableStatus(res.StatusCode),
	}
}

func credentialsURL(endpoint string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("transport: endpoint must be an http(s) url")
	}
	if parsed.Host == "" {
		return "", errors.New("transport: endpoint host is required")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + credentialsPath
	return parsed.String(), nil
}

func toPayload(msg core.CredentialMessage) credentialMessagePayload {
	containers := make([]credentialContainerPayload, 0, len(msg.Credentials))
	for _, container := range msg.Credentials {
		containers = append(containers, credentialContainerPayload{
			CredentialType: container.CredentialType,
			Format:         container.Format,
			Payload:        container.Payload,
		})
	}
	return credentialMessagePayload{
		Context:     []string{dcpContext},
		Type:        credentialMessageType,
		IssuerPID:   msg.IssuerPID,
		HolderPID:   msg.HolderPID,
		Credentials: containers,
	}
}

var _ core.CredentialDeliverer = (*HTTPDeliverer)(nil)
