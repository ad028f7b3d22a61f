package commercetools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	domain "github.com/orderfield/ordersync/internal/domain"
	"github.com/orderfield/ordersync/internal/repositories"
)

// Config carries the connection and credential settings of one project.
type Config struct {
	// BaseURL is the API host, e.g. https://api.example-commerce.com.
	BaseURL string
	// AuthURL is the OAuth host used for the client-credentials flow.
	AuthURL    string
	ProjectKey string

	ClientID     string
	ClientSecret string
	Scopes       []string

	// AccessToken bypasses the client-credentials flow when a token has
	// already been obtained elsewhere.
	AccessToken string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the remote commerce HTTP API. It exposes the typed
// repository views the import services consume.
type Client struct {
	httpClient *http.Client
	baseURL    string
	projectKey string
}

// NewClient validates the configuration and builds an authenticated client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("commercetools: base url is required")
	}
	if strings.TrimSpace(cfg.ProjectKey) == "" {
		return nil, errors.New("commercetools: project key is required")
	}

	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	var httpClient *http.Client
	switch {
	case strings.TrimSpace(cfg.AccessToken) != "":
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(cfg.AccessToken)})
		httpClient = oauth2.NewClient(ctx, source)
	case strings.TrimSpace(cfg.ClientID) != "":
		if strings.TrimSpace(cfg.AuthURL) == "" {
			return nil, errors.New("commercetools: auth url is required for client credentials")
		}
		credentials := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     strings.TrimRight(cfg.AuthURL, "/") + "/oauth/token",
			Scopes:       cfg.Scopes,
		}
		httpClient = credentials.Client(ctx)
	default:
		return nil, errors.New("commercetools: an access token or client credentials are required")
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		projectKey: cfg.ProjectKey,
	}, nil
}

// Orders returns the order endpoint bound to this client.
func (c *Client) Orders() repositories.OrderRepository {
	return &orderEndpoint{client: c}
}

// States returns the workflow-state lookup bound to this client.
func (c *Client) States() repositories.StateRepository {
	return &keyEndpoint{client: c, path: "states", typeID: "state"}
}

// Channels returns the channel lookup bound to this client.
func (c *Client) Channels() repositories.ChannelRepository {
	return &keyEndpoint{client: c, path: "channels", typeID: "channel"}
}

type orderEndpoint struct {
	client *Client
}

func (e *orderEndpoint) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var result struct {
		Total   int64          `json:"total"`
		Results []domain.Order `json:"results"`
	}

	query := url.Values{}
	query.Set("where", fmt.Sprintf("orderNumber=%q", orderNumber))
	if err := e.client.do(ctx, http.MethodGet, "orders", query, nil, &result); err != nil {
		return domain.Order{}, err
	}

	if result.Total != 1 || len(result.Results) != 1 {
		return domain.Order{}, notFoundError("orders.query",
			fmt.Errorf("expected exactly one order for orderNumber %q, got %d", orderNumber, result.Total))
	}
	return result.Results[0], nil
}

func (e *orderEndpoint) Update(ctx context.Context, orderID string, version int64, actions []domain.UpdateAction) (domain.Order, error) {
	payload := struct {
		Version int64                 `json:"version"`
		Actions []domain.UpdateAction `json:"actions"`
	}{Version: version, Actions: actions}

	var updated domain.Order
	if err := e.client.do(ctx, http.MethodPost, "orders/"+url.PathEscape(orderID), nil, payload, &updated); err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func (e *orderEndpoint) Import(ctx context.Context, order domain.Order) (domain.Order, error) {
	var created domain.Order
	if err := e.client.do(ctx, http.MethodPost, "orders/import", nil, order, &created); err != nil {
		return domain.Order{}, err
	}
	return created, nil
}

// keyEndpoint serves unique-key lookups against one collection.
type keyEndpoint struct {
	client *Client
	path   string
	typeID string
}

func (e *keyEndpoint) FindByKey(ctx context.Context, key string) (domain.Reference, error) {
	var result struct {
		Total   int64 `json:"total"`
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}

	query := url.Values{}
	query.Set("where", fmt.Sprintf("key=%q", key))
	if err := e.client.do(ctx, http.MethodGet, e.path, query, nil, &result); err != nil {
		return domain.Reference{}, err
	}

	if result.Total != 1 || len(result.Results) != 1 {
		return domain.Reference{}, notFoundError(e.path+".query",
			fmt.Errorf("expected exactly one %s for key %q, got %d", e.typeID, key, result.Total))
	}
	return domain.Reference{TypeID: e.typeID, ID: result.Results[0].ID}, nil
}

// apiError is the JSON error envelope the remote API answers with.
type apiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + "/" + url.PathEscape(c.projectKey) + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("commercetools: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("commercetools: build %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{op: method + " " + path, err: err, unavailable: true}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return newStatusError(method+" "+path, resp.StatusCode, decodeAPIError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("commercetools: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	var envelope apiError
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, envelope.Message)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
