package ultravox

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Client identity advertised in the join URL's clientVersion parameter.
const (
	clientPlatform = "go"
	sdkVersion     = "0.1.0"
	apiVersion     = "1"
)

// HandshakeCredentials are the transport credentials produced by the
// signaling handshake. They are consumed exactly once per join attempt and
// never persisted.
type HandshakeCredentials struct {
	RoomURL string
	Token   string
}

// handshakeClient owns the signaling WebSocket. After the handshake it is
// kept open in two roles: as the fallback outbound path for payloads that
// exceed the data channel's practical size limit, and as an additional
// inbound control source feeding the same dispatch path as the data channel.
type handshakeClient struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closedCh  chan struct{}
	closeOnce sync.Once
}

// buildJoinURL appends the protocol query parameters to a caller-supplied
// join URL: clientVersion, apiVersion and, when the experimental filter is
// non-empty, experimentalMessages.
func buildJoinURL(joinURL string, cfg Config) (string, error) {
	u, err := url.Parse(joinURL)
	if err != nil {
		return "", err
	}

	version := clientPlatform + "_" + sdkVersion
	if cfg.VersionSuffix != "" {
		version += ":" + cfg.VersionSuffix
	}

	q := u.Query()
	q.Set("clientVersion", version)
	q.Set("apiVersion", apiVersion)
	if len(cfg.ExperimentalMessages) > 0 {
		q.Set("experimentalMessages", strings.Join(cfg.ExperimentalMessages, ","))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dialHandshake opens the signaling channel and reads messages until a valid
// room_info arrives. Frames of any other kind received before it are ignored.
// On success the channel is returned still open; on failure it is torn down.
func dialHandshake(ctx context.Context, joinURL string, cfg Config) (*handshakeClient, HandshakeCredentials, error) {
	target, err := buildJoinURL(joinURL, cfg)
	if err != nil {
		return nil, HandshakeCredentials{}, NewConnectionError(joinURL, "join_url", err)
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{HTTPHeader: cfg.HandshakeHeaders})
	if err != nil {
		return nil, HandshakeCredentials{}, NewConnectionError(target, "handshake", err)
	}
	// room_info can exceed the library's conservative default read limit once
	// room URLs carry long-lived tokens.
	ws.SetReadLimit(1 << 20)

	h := &handshakeClient{conn: ws, closedCh: make(chan struct{})}

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			h.close()
			return nil, HandshakeCredentials{}, NewConnectionError(target, "handshake", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		decoded, err := decodeInbound(data)
		if err != nil {
			// Pre-handshake noise is not an error.
			continue
		}
		if m, ok := decoded.(roomInfoMessage); ok {
			return h, HandshakeCredentials{RoomURL: m.RoomURL, Token: m.Token}, nil
		}
	}
}

// send publishes one frame over the signaling channel.
func (h *handshakeClient) send(ctx context.Context, data []byte) error {
	select {
	case <-h.closedCh:
		return ErrClosed
	default:
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := h.conn.Write(ctx, websocket.MessageText, data); err != nil {
		if ctx.Err() != nil {
			return ErrSendTimeout
		}
		return err
	}
	return nil
}

// readLoop delivers post-handshake frames until the channel closes or the
// context is cancelled. It runs on its own goroutine.
func (h *handshakeClient) readLoop(ctx context.Context, onMessage func([]byte)) {
	defer h.close()
	for {
		typ, data, err := h.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		onMessage(data)
	}
}

// close tears the signaling channel down. Safe to call multiple times.
func (h *handshakeClient) close() {
	h.closeOnce.Do(func() {
		close(h.closedCh)
		_ = h.conn.Close(websocket.StatusNormalClosure, "leaving")
	})
}
