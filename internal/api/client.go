package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Parameter and operation names of the TTRSS JSON protocol.
const (
	opLogin            = "login"
	opGetCategories    = "getCategories"
	opGetFeeds         = "getFeeds"
	opGetHeadlines     = "getHeadlines"
	opGetArticle       = "getArticle"
	opUpdateArticle    = "updateArticle"
	opCatchupFeed      = "catchupFeed"
	opSetArticleLabel  = "setArticleLabel"
	opUnsubscribeFeed  = "unsubscribeFeed"
	opShareToPublished = "shareToPublished"

	errNotLoggedIn = "NOT_LOGGED_IN"
	errLoginError  = "LOGIN_ERROR"
	errAPIDisabled = "API_DISABLED"
)

// Article fields accepted by updateArticle.
const (
	FieldStarred   = 0
	FieldPublished = 1
	FieldUnread    = 2
	FieldNote      = 3
)

// View modes for getHeadlines.
const (
	ViewAll    = "all_articles"
	ViewUnread = "unread"
)

// HeadlineLimit is the most articles the server returns per getHeadlines
// call; larger requests are batched via the skip parameter.
const HeadlineLimit = 200

const (
	connectTimeout = 8 * time.Second
	fastTimeout    = 10 * time.Second
	slowTimeout    = 60 * time.Second
	lazyTimeout    = 15 * time.Minute
)

// Config holds the connection settings the client needs.
type Config struct {
	// BaseURL is the TTRSS installation root, e.g. https://host/tt-rss.
	BaseURL  string
	Username string
	Password string

	// Optional HTTP basic auth in front of the API.
	HTTPUser     string
	HTTPPassword string

	// LazyServer extends the read timeout for headline/content calls on
	// slow installations.
	LazyServer bool

	// HTTPClient overrides the default transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to a TTRSS server. It owns the session token: on a
// NOT_LOGGED_IN response it re-authenticates once (serialized, so concurrent
// expiries trigger a single login) and retries the original call once.
type Client struct {
	endpoint   string
	username   string
	password   string
	basicAuth  string
	lazyServer bool

	fast *http.Client
	slow *http.Client

	mu        sync.Mutex
	sessionID string
	apiLevel  int
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")

	fast := cfg.HTTPClient
	slow := cfg.HTTPClient
	if fast == nil {
		transport := &http.Transport{
			DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
		}
		fast = &http.Client{Transport: transport, Timeout: fastTimeout}
		st := slowTimeout
		if cfg.LazyServer {
			st = lazyTimeout
		}
		slow = &http.Client{Transport: transport, Timeout: st}
	}

	c := &Client{
		endpoint:   base + "/api/",
		username:   cfg.Username,
		password:   cfg.Password,
		lazyServer: cfg.LazyServer,
		fast:       fast,
		slow:       slow,
		apiLevel:   -1,
	}
	if cfg.HTTPUser != "" {
		creds := cfg.HTTPUser + ":" + cfg.HTTPPassword
		c.basicAuth = base64.StdEncoding.EncodeToString([]byte(creds))
	}
	return c
}

type envelope struct {
	Seq     int             `json:"seq"`
	Status  int             `json:"status"`
	Content json.RawMessage `json:"content"`
}

type apiError struct {
	Error string `json:"error"`
}

// call performs one API request and decodes content into out. It retries
// exactly once after a transparent re-login when the session has expired.
func (c *Client) call(ctx context.Context, op string, params map[string]interface{}, out interface{}, slow bool) error {
	return c.callRetry(ctx, op, params, out, slow, true)
}

func (c *Client) callRetry(ctx context.Context, op string, params map[string]interface{}, out interface{}, slow, retry bool) error {
	if op != opLogin {
		sid, err := c.session(ctx)
		if err != nil {
			return err
		}
		params["sid"] = sid
	}
	params["op"] = op

	content, err := c.doRequest(ctx, op, params, slow)
	if err != nil {
		return err
	}

	// An object with an "error" member is the protocol's failure shape.
	var ae apiError
	if json.Unmarshal(content, &ae) == nil && ae.Error != "" {
		switch ae.Error {
		case errNotLoggedIn, errLoginError:
			if retry && op != opLogin {
				c.invalidateSession()
				return c.callRetry(ctx, op, params, out, slow, false)
			}
			return newError(KindAuth, op, "session rejected: "+ae.Error, nil)
		case errAPIDisabled:
			return newError(KindServer, op, "API disabled for user "+c.username, nil)
		default:
			return newError(KindServer, op, "server error: "+ae.Error, nil)
		}
	}

	if out != nil {
		if err := json.Unmarshal(content, out); err != nil {
			return newError(KindMalformed, op, "unexpected payload shape", err)
		}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, op string, params map[string]interface{}, slow bool) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, newError(KindMalformed, op, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindServer, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.basicAuth != "" {
		req.Header.Set("Authorization", "Basic "+c.basicAuth)
	}

	client := c.fast
	if slow {
		client = c.slow
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newError(KindServer, op,
			fmt.Sprintf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, newError(KindMalformed, op, "decode response", err)
	}
	if env.Content == nil {
		return nil, newError(KindMalformed, op, "response has no content", nil)
	}
	return env.Content, nil
}

// session returns the current session id, logging in if necessary.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return c.sessionID, nil
	}
	return c.loginLocked(ctx)
}

func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()
}

// Login authenticates eagerly. Callers normally rely on the lazy login
// inside call instead.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return nil
	}
	_, err := c.loginLocked(ctx)
	return err
}

func (c *Client) loginLocked(ctx context.Context) (string, error) {
	params := map[string]interface{}{
		"op":       opLogin,
		"user":     c.username,
		"password": c.password,
	}
	content, err := c.doRequest(ctx, opLogin, params, false)
	if err != nil {
		return "", err
	}

	var ae apiError
	if json.Unmarshal(content, &ae) == nil && ae.Error != "" {
		return "", newError(KindAuth, opLogin, "login failed: "+ae.Error, nil)
	}

	var result struct {
		SessionID string `json:"session_id"`
		APILevel  int    `json:"api_level"`
	}
	if err := json.Unmarshal(content, &result); err != nil {
		return "", newError(KindMalformed, opLogin, "unexpected payload shape", err)
	}
	if result.SessionID == "" {
		return "", newError(KindAuth, opLogin, "login returned no session id", nil)
	}
	c.sessionID = result.SessionID
	if result.APILevel > 0 {
		c.apiLevel = result.APILevel
	}
	return c.sessionID, nil
}

// statusResult is the {"status":"OK"} shape returned by mutation calls.
type statusResult struct {
	Status  string `json:"status"`
	Updated int    `json:"updated"`
}

func (c *Client) callNoAnswer(ctx context.Context, op string, params map[string]interface{}) error {
	var res statusResult
	if err := c.call(ctx, op, params, &res, false); err != nil {
		return err
	}
	if res.Status != "OK" && res.Updated == 0 {
		return newError(KindServer, op, "server did not acknowledge update", nil)
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
