package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/filter"
	"github.com/kapu/spotmyartist/internal/view"
	"go.uber.org/zap"
)

// liveFields are the filter inputs a client may edit, named like the query
// parameters of /view/cards.
var liveFields = map[string]struct{}{
	"q":         {},
	"genre":     {},
	"city":      {},
	"members":   {},
	"year":      {},
	"yearFrom":  {},
	"yearTo":    {},
	"albumYear": {},
}

// liveInput is one edit of one filter field.
type liveInput struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type liveOutput struct {
	Type     string          `json:"type"`
	Field    string          `json:"field,omitempty"`
	Criteria filter.Criteria `json:"criteria"`
	Result   *view.CardList  `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// liveConn is the per-connection state: the current value of every field and a
// serialized writer.
type liveConn struct {
	conn   *websocket.Conn
	logger *zap.Logger

	stateMu sync.Mutex
	values  url.Values

	writeMu sync.Mutex
}

// set applies one edit. An edit that makes the criteria invalid is rejected and
// the previous state kept.
func (c *liveConn) set(in liveInput) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	next := url.Values{}
	for k, v := range c.values {
		next[k] = v
	}
	value := strings.TrimSpace(in.Value)
	if value == "" {
		next.Del(in.Field)
	} else {
		next.Set(in.Field, value)
	}

	if _, err := filter.ParseCriteria(next); err != nil {
		return err
	}
	c.values = next
	return nil
}

func (c *liveConn) snapshot() (filter.Criteria, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return filter.ParseCriteria(c.values)
}

func (c *liveConn) send(out liveOutput) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketConfig.WriteTimeout))
	return c.conn.WriteJSON(out)
}

// handleLiveSearch upgrades to a WebSocket. Every field edit is debounced per
// field; when the quiet period ends the filters run against the whole current
// state, not just the edited field.
func (s *Server) handleLiveSearch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc := &liveConn{
		conn:   conn,
		logger: s.logger,
		values: url.Values{},
	}
	debouncer := s.session.NewDebouncer()

	defer func() {
		cancel()
		s.session.ReleaseDebouncer(debouncer)
		_ = conn.Close()
		s.logger.Debug("Live search connection closed")
	}()

	conn.SetReadLimit(constants.WebSocketConfig.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(constants.WebSocketConfig.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(constants.WebSocketConfig.PongWait))
	})

	go s.pingLoop(ctx, conn)

	for {
		var in liveInput
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Live search read error", zap.Error(err))
			}
			return
		}

		if _, ok := liveFields[in.Field]; !ok {
			if err := lc.send(liveOutput{Type: "error", Field: in.Field, Error: "unknown field"}); err != nil {
				return
			}
			continue
		}

		if err := lc.set(in); err != nil {
			if err := lc.send(liveOutput{Type: "error", Field: in.Field, Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		field := in.Field
		debouncer.Trigger(field, func() {
			s.runLiveFilter(ctx, lc, field)
		})
	}
}

func (s *Server) runLiveFilter(ctx context.Context, lc *liveConn, field string) {
	if ctx.Err() != nil {
		return
	}

	criteria, err := lc.snapshot()
	if err != nil {
		_ = lc.send(liveOutput{Type: "error", Field: field, Error: err.Error()})
		return
	}

	cards, err := s.filteredCards(ctx, criteria)
	if err != nil {
		_, body := errorResponse(err)
		_ = lc.send(liveOutput{Type: "error", Field: field, Criteria: criteria, Error: body.Error})
		return
	}

	if err := lc.send(liveOutput{Type: "results", Field: field, Criteria: criteria, Result: &cards}); err != nil {
		lc.logger.Debug("Live search write failed", zap.Error(err))
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(constants.WebSocketConfig.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(constants.WebSocketConfig.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("Live search ping failed", zap.Error(err))
				return
			}
		}
	}
}
