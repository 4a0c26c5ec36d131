package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotReady is returned by REST calls made before the node sent ready.
var ErrNotReady = errors.New("lavalink node not ready")

// Config configures a connection to one node.
type Config struct {
	Name        string
	URI         string // ws://host:port or wss://host:port
	RestURI     string // defaults to URI with an http(s) scheme
	Password    string
	UserID      string
	ClientName  string
	EventBuffer int
	HTTPClient  *http.Client
}

// Client is a connection to one Lavalink node.
type Client struct {
	cfg      Config
	http     *http.Client
	wsURL    string
	restBase string

	mu        sync.RWMutex
	sessionID string
	conn      *websocket.Conn
	links     map[string]*Link

	ready     chan struct{}
	readyOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewClient creates a client for the node described by cfg. Call Connect
// before issuing directives.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid node uri %q", cfg.URI)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, errors.Newf("unsupported node uri scheme %q", u.Scheme)
	}

	restBase := cfg.RestURI
	if restBase == "" {
		r := *u
		r.Scheme = strings.Replace(u.Scheme, "ws", "http", 1)
		restBase = r.String()
	}

	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "guildbox"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		cfg:      cfg,
		http:     httpClient,
		wsURL:    strings.TrimRight(u.String(), "/") + "/v4/websocket",
		restBase: strings.TrimRight(restBase, "/"),
		links:    make(map[string]*Link),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Name returns the configured node name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Connect dials the event websocket and blocks until the node reports ready
// or ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	h := http.Header{}
	h.Set("Authorization", c.cfg.Password)
	h.Set("User-Id", c.cfg.UserID)
	h.Set("Client-Name", c.cfg.ClientName)

	conn, _, err := websocket.Dial(ctx, c.wsURL, &websocket.DialOptions{HTTPHeader: h})
	if err != nil {
		return errors.Wrapf(err, "lavalink %s: dial", c.cfg.Name)
	}
	conn.SetReadLimit(1 << 20)

	readCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	go c.readLoop(readCtx, conn)

	select {
	case <-c.ready:
		zlog.Info().Msgf("lavalink: connected node=%s session=%s", c.cfg.Name, c.SessionID())
		return nil
	case <-c.done:
		return errors.Newf("lavalink %s: connection closed before ready", c.cfg.Name)
	case <-ctx.Done():
		_ = c.Close()
		return errors.Wrapf(ctx.Err(), "lavalink %s: waiting for ready", c.cfg.Name)
	}
}

// Ready reports whether the node has sent its ready frame and the
// websocket is still open.
func (c *Client) Ready() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// SessionID returns the session ID assigned by the node.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Close closes the websocket. Links stay registered but stop receiving
// events.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "")
	}
	return nil
}

// Link returns the player link for guildID, creating it on first use.
func (c *Client) Link(guildID string) *Link {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.links[guildID]; ok {
		return l
	}
	l := newLink(c, guildID, c.cfg.EventBuffer)
	c.links[guildID] = l
	return l
}

// lookupLink returns the existing link for guildID.
func (c *Client) lookupLink(guildID string) (*Link, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.links[guildID]
	return l, ok
}

func (c *Client) removeLink(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, guildID)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				zlog.Error().Err(err).Msgf("lavalink: read failed node=%s", c.cfg.Name)
			}
			return
		}

		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			zlog.Warn().Err(err).Msgf("lavalink: undecodable frame node=%s", c.cfg.Name)
			continue
		}
		c.handle(m)
	}
}

func (c *Client) handle(m message) {
	switch m.Op {
	case opReady:
		c.mu.Lock()
		c.sessionID = m.SessionID
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })

	case opPlayerUpdate:
		if l, ok := c.lookupLink(m.GuildID); ok && m.State != nil {
			l.updateState(*m.State)
		}

	case opEvent:
		if m.Type == eventWebSocketClosed {
			zlog.Warn().Msgf("lavalink: voice websocket closed node=%s guild=%s code=%d remote=%t reason=%s", c.cfg.Name, m.GuildID, m.Code, m.ByRemote, m.Reason)
			return
		}
		ev, ok := toEvent(m)
		if !ok {
			zlog.Warn().Msgf("lavalink: unknown event node=%s type=%s", c.cfg.Name, m.Type)
			return
		}
		l, ok := c.lookupLink(m.GuildID)
		if !ok {
			zlog.Debug().Msgf("lavalink: event for unknown guild node=%s guild=%s type=%s", c.cfg.Name, m.GuildID, m.Type)
			return
		}
		l.emit(ev)

	case opStats:
	default:
		zlog.Debug().Msgf("lavalink: unknown op node=%s op=%s", c.cfg.Name, m.Op)
	}
}

// updatePlayer sends PATCH /v4/sessions/{sessionId}/players/{guildId}.
func (c *Client) updatePlayer(ctx context.Context, guildID string, body playerUpdate) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// destroyPlayer sends DELETE /v4/sessions/{sessionId}/players/{guildId}.
func (c *Client) destroyPlayer(ctx context.Context, guildID string) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) playerPath(guildID string) (string, error) {
	sid := c.SessionID()
	if sid == "" {
		return "", ErrNotReady
	}
	return "/v4/sessions/" + url.PathEscape(sid) + "/players/" + url.PathEscape(guildID), nil
}

// do performs one REST call. Non-2xx responses become errors carrying the
// node's message.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.restBase+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", c.cfg.Password)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "lavalink %s: %s %s", c.cfg.Name, method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var re restError
		_ = json.NewDecoder(resp.Body).Decode(&re)
		msg := re.Message
		if msg == "" {
			msg = resp.Status
		}
		return errors.Newf("lavalink %s: %s %s: %d %s", c.cfg.Name, method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
