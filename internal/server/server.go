// Package server exposes heads-up play against a trained policy over
// WebSocket. Each connection gets its own match: the client occupies one
// seat, the policy the other, and frames mirror the hand as it unfolds.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/internal/randutil"
	"github.com/idea-realm/one-card-limit/internal/session"
	"github.com/idea-realm/one-card-limit/sdk/solver/runtime"
)

const botName = "house"

// Options configures a play server.
type Options struct {
	Addr           string
	Hands          int
	StartingStack  int
	Seed           int64
	DecisionTime   time.Duration
	Clock          quartz.Clock
	AllowedOrigins func(r *http.Request) bool
}

// Server serves WebSocket matches against a single policy.
type Server struct {
	opts     Options
	rules    game.Rules
	policy   *runtime.Policy
	upgrader websocket.Upgrader
	logger   *log.Logger
	clock    quartz.Clock

	mu      sync.Mutex
	matchNo int64
}

// NewServer creates a play server for the policy's rule set.
func NewServer(policy *runtime.Policy, opts Options, logger *log.Logger) (*Server, error) {
	if policy == nil {
		return nil, fmt.Errorf("nil policy")
	}
	if opts.Hands < 1 {
		return nil, fmt.Errorf("hand count must be positive, got %d", opts.Hands)
	}
	rules := policy.Rules()
	if opts.StartingStack < rules.Ante {
		return nil, fmt.Errorf("starting stack %d cannot cover the ante %d", opts.StartingStack, rules.Ante)
	}
	if opts.DecisionTime <= 0 {
		opts.DecisionTime = 30 * time.Second
	}
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	checkOrigin := opts.AllowedOrigins
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Server{
		opts:   opts,
		rules:  rules,
		policy: policy,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithPrefix("server"),
		clock:  clock,
	}, nil
}

// Handler returns the HTTP handler serving /play and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/play", s.handlePlay)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", "addr", s.opts.Addr, "rules", s.rules.String())
	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// handlePlay upgrades the connection and runs one full match on it.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	playerName := r.URL.Query().Get("name")
	if playerName == "" || playerName == botName {
		playerName = "player"
	}

	s.mu.Lock()
	s.matchNo++
	seed := s.opts.Seed + s.matchNo
	s.mu.Unlock()

	logger := s.logger.With("player", playerName, "remote", r.RemoteAddr)
	logger.Info("match starting")
	if err := s.runMatch(r.Context(), ws, playerName, seed, logger); err != nil {
		logger.Error("match ended with error", "error", err)
	}
}

func (s *Server) runMatch(ctx context.Context, ws *websocket.Conn, playerName string, seed int64, logger *log.Logger) error {
	conn := &playConn{ws: ws}
	actor := newRemoteActor(playerName, conn, logger, s.opts.DecisionTime, s.clock)

	rng := randutil.New(seed)
	bot, err := session.NewPolicyActor(botName, s.policy, rng)
	if err != nil {
		return err
	}

	if err := conn.send(MessageTypeWelcome, WelcomeData{
		PlayerName:    playerName,
		OpponentName:  botName,
		Rules:         s.rules,
		Hands:         s.opts.Hands,
		StartingStack: s.opts.StartingStack,
	}); err != nil {
		return err
	}

	manager, err := session.NewManager(s.rules, actor, bot, s.opts.StartingStack, rng,
		session.WithLogger(logger),
		session.WithObserver(&connObserver{conn: conn, playerName: playerName, rules: s.rules, logger: logger}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.readPump(ctx, conn, actor, cancel)

	result, err := manager.Run(ctx, s.opts.Hands)
	if err != nil {
		_ = conn.sendError("session_failed", err.Error())
		return err
	}

	logger.Info("match finished",
		"hands", result.HandsPlayed,
		"net", result.Net[playerName])
	return conn.send(MessageTypeMatchEnd, MatchEndData{
		HandsPlayed: result.HandsPlayed,
		Stacks:      result.Stacks,
		Net:         result.Net,
	})
}

// readPump reads client frames until the connection drops, routing decisions
// to the actor.
func (s *Server) readPump(ctx context.Context, conn *playConn, actor *remoteActor, cancel context.CancelFunc) {
	defer func() {
		actor.disconnected()
		cancel()
	}()

	for {
		var msg Message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("read loop ended", "error", err)
			}
			return
		}
		switch msg.Type {
		case MessageTypePlayerDecision:
			var data PlayerDecisionData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				_ = conn.sendError("bad_frame", "malformed player_decision payload")
				continue
			}
			actor.handleDecision(data)
		default:
			_ = conn.sendError("bad_frame", fmt.Sprintf("unexpected message type %q", msg.Type))
		}
	}
}

// playConn serializes writes to a websocket connection.
type playConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *playConn) send(messageType MessageType, data interface{}) error {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *playConn) sendError(code, message string) error {
	return c.send(MessageTypeError, ErrorData{Code: code, Message: message})
}

// connObserver streams session events to the client.
type connObserver struct {
	conn       *playConn
	playerName string
	rules      game.Rules
	logger     *log.Logger
}

func (o *connObserver) HandStarted(handNo int, h *game.HandState, opName, ipName string) {
	pos := game.OutOfPosition
	if ipName == o.playerName {
		pos = game.InPosition
	}
	err := o.conn.send(MessageTypeHandStart, HandStartData{
		Hand:     handNo,
		Position: pos.String(),
		Card:     h.CardFor(pos).Glyph(o.rules),
		Pot:      h.Pot(),
	})
	if err != nil {
		o.logger.Debug("failed to send hand_start", "error", err)
	}
}

func (o *connObserver) ActionTaken(actorName string, pos game.Position, action game.Action, h *game.HandState) {
	err := o.conn.send(MessageTypePlayerAction, PlayerActionData{
		Player:   actorName,
		Position: pos.String(),
		Action:   action.String(),
		PotAfter: h.Pot(),
	})
	if err != nil {
		o.logger.Debug("failed to send player_action", "error", err)
	}
}

func (o *connObserver) HandFinished(record game.HandRecord, stacks map[string]int) {
	err := o.conn.send(MessageTypeHandEnd, HandEndData{Record: record, Stacks: stacks})
	if err != nil {
		o.logger.Debug("failed to send hand_end", "error", err)
	}
}
