// Package client is a typed REST client of the credit transfer API, used by the role dashboards.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/user"
)

const contentTypeJSON = "application/json"

// APIError is a non-2xx response of the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string // validation errors, by field
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionStore restores the stored session and keeps it up to date on login, refresh & logout.
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) { c.store = store }
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore

	mu      sync.RWMutex
	session *Session
}

func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store != nil {
		sess, err := c.store.Load()
		if err != nil {
			return nil, errors.Wrap(err, "loading session")
		}
		c.session = sess
	}
	return c, nil
}

// Session returns a copy of the current session, nil when logged out.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	sess := *c.session
	return &sess
}

func (c *Client) setSession(sess *Session) error {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if sess == nil {
		return c.store.Clear()
	}
	return c.store.Save(*sess)
}

func (c *Client) tokens() (token, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return "", ""
	}
	return c.session.Token, c.session.RefreshToken
}

// --- Auth ---

type LoginResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	Role         string    `json:"role"`
	User         user.User `json:"user"`
}

type MeResponse struct {
	User    user.User     `json:"user"`
	Role    string        `json:"role"`
	Student *user.Student `json:"student,omitempty"`
}

// Login authenticates and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return LoginResponse{}, err
	}
	sess := &Session{Email: resp.User.Email, Role: resp.Role, Token: resp.Token, RefreshToken: resp.RefreshToken}
	if err := c.setSession(sess); err != nil {
		return resp, errors.Wrap(err, "saving session")
	}
	return resp, nil
}

// Logout forgets the session.
func (c *Client) Logout() error {
	return c.setSession(nil)
}

// Refresh exchanges the refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return &APIError{Status: http.StatusUnauthorized, Message: "not logged in"}
	}
	body, err := json.Marshal(map[string]string{"refreshToken": refresh})
	if err != nil {
		return errors.Wrap(err, "marshaling request body")
	}
	var resp LoginResponse
	if err = c.send(ctx, http.MethodPost, "/token-refresh", contentTypeJSON, body, &resp, false); err != nil {
		return err
	}
	sess := &Session{Email: resp.User.Email, Role: resp.Role, Token: resp.Token, RefreshToken: resp.RefreshToken}
	return errors.Wrap(c.setSession(sess), "saving session")
}

func (c *Client) Signup(ctx context.Context, data user.Signup) (user.User, error) {
	var usr user.User
	err := c.doJSON(ctx, http.MethodPost, "/signup", data, &usr)
	return usr, err
}

// RequestPasswordReset always succeeds for well formed emails.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/password-reset", map[string]string{"email": email}, nil)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, data user.ResetUserPassword) error {
	return c.doJSON(ctx, http.MethodPost, "/password-reset-confirm", data, nil)
}

// StaticData lists campuses, programs (of campusID when not 0) & previous institutions.
func (c *Client) StaticData(ctx context.Context, campusID int) (program.StaticData, error) {
	path := "/staticdata"
	if campusID > 0 {
		path += "?campus_id=" + fmt.Sprint(campusID)
	}
	var data program.StaticData
	err := c.doJSON(ctx, http.MethodGet, path, nil, &data)
	return data, err
}

func (c *Client) Me(ctx context.Context) (MeResponse, error) {
	var resp MeResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, &resp)
	return resp, err
}

// Coordinators lists the active coordinators.
func (c *Client) Coordinators(ctx context.Context) ([]user.User, error) {
	var resp struct {
		Data []user.User `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/coordinators", nil, &resp)
	return resp.Data, err
}

// --- Transport ---

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	var data []byte
	contentType := ""
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "marshaling request body")
		}
		contentType = contentTypeJSON
	}
	return c.send(ctx, method, path, contentType, data, result, true)
}

// send performs the request, refreshing the session & retrying once on 401 when `retry`.
func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte, result interface{}, retry bool) error {
	token, refresh := c.tokens()
	err := c.do(ctx, method, path, contentType, body, token, result)
	if !retry || refresh == "" || !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	if rerr := c.Refresh(ctx); rerr != nil {
		if IsStatus(rerr, http.StatusUnauthorized) {
			_ = c.Logout()
		}
		return err
	}
	token, _ = c.tokens()
	return c.do(ctx, method, path, contentType, body, token, result)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, token string, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "performing request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, respBody)
	}
	if result != nil {
		if err = json.Unmarshal(respBody, result); err != nil {
			return errors.Wrap(err, "decoding response")
		}
	}
	return nil
}

// newAPIError reads {"error": "..."} bodies and {"field": "message"} validation bodies.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var obj map[string]interface{}
	if json.Unmarshal(body, &obj) != nil || len(obj) == 0 {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}
	if msg, ok := obj["error"].(string); ok {
		apiErr.Message = msg
		return apiErr
	}
	if msg, ok := obj["message"].(string); ok {
		apiErr.Message = msg // echo errors
		return apiErr
	}

	apiErr.Fields = make(map[string]string, len(obj))
	msgs := make([]string, 0, len(obj))
	for field, v := range obj {
		msg := fmt.Sprint(v)
		apiErr.Fields[field] = msg
		msgs = append(msgs, field+": "+msg)
	}
	sort.Strings(msgs)
	apiErr.Message = strings.Join(msgs, "; ")
	return apiErr
}

func idPath(format string, id int) string {
	return fmt.Sprintf(format, id)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
