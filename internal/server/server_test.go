package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/sdk/solver"
	"github.com/idea-realm/one-card-limit/sdk/solver/runtime"
)

func testPolicy(t *testing.T) *runtime.Policy {
	t.Helper()
	rules, err := game.NewRules(4, 1, 1)
	require.NoError(t, err)
	trainer, err := solver.NewTrainer(rules, solver.TrainingConfig{Iterations: 100, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background(), nil))
	policy, err := runtime.FromBlueprint(trainer.Blueprint())
	require.NoError(t, err)
	return policy
}

func startTestServer(t *testing.T, hands int) (string, func()) {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	srv, err := NewServer(testPolicy(t), Options{
		Hands:         hands,
		StartingStack: 100,
		Seed:          1,
		DecisionTime:  10 * time.Second,
	}, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/play"
	return wsURL, ts.Close
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func decode[T any](t *testing.T, msg Message) T {
	t.Helper()
	var data T
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	return data
}

func sendDecision(t *testing.T, ws *websocket.Conn, action string) {
	t.Helper()
	msg, err := NewMessage(MessageTypePlayerDecision, PlayerDecisionData{Action: action})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(msg))
}

// pickAction prefers check then call, never folding.
func pickAction(valid []string) string {
	for _, a := range valid {
		if a == "check" {
			return a
		}
	}
	for _, a := range valid {
		if a == "call" {
			return a
		}
	}
	return valid[0]
}

func TestServerPlaysFullMatch(t *testing.T) {
	const hands = 5
	wsURL, stop := startTestServer(t, hands)
	defer stop()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?name=tester", nil)
	require.NoError(t, err)
	defer ws.Close()

	welcome := decode[WelcomeData](t, readMessage(t, ws))
	assert.Equal(t, "tester", welcome.PlayerName)
	assert.Equal(t, hands, welcome.Hands)
	assert.Equal(t, 100, welcome.StartingStack)

	handsSeen := 0
	for {
		msg := readMessage(t, ws)
		switch msg.Type {
		case MessageTypeHandStart:
			data := decode[HandStartData](t, msg)
			assert.Equal(t, handsSeen+1, data.Hand)
			assert.NotEmpty(t, data.Card)

		case MessageTypeActionRequired:
			data := decode[ActionRequiredData](t, msg)
			require.NotEmpty(t, data.ValidActions)
			sendDecision(t, ws, pickAction(data.ValidActions))

		case MessageTypePlayerAction:
			// Informational, nothing to do.

		case MessageTypeHandEnd:
			data := decode[HandEndData](t, msg)
			handsSeen++
			assert.Equal(t, handsSeen, data.Record.Hand)
			assert.Equal(t, 0, data.Record.OPNet+data.Record.IPNet)
			assert.Equal(t, 200, data.Stacks["tester"]+data.Stacks[botName])

		case MessageTypeMatchEnd:
			data := decode[MatchEndData](t, msg)
			assert.Equal(t, hands, data.HandsPlayed)
			assert.Equal(t, hands, handsSeen)
			assert.Equal(t, 0, data.Net["tester"]+data.Net[botName])
			return

		case MessageTypeError:
			data := decode[ErrorData](t, msg)
			t.Fatalf("unexpected error frame: %s %s", data.Code, data.Message)

		default:
			t.Fatalf("unexpected message type %q", msg.Type)
		}
	}
}

func TestServerRejectsMalformedFramesButKeepsPlaying(t *testing.T) {
	wsURL, stop := startTestServer(t, 1)
	defer stop()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	readMessage(t, ws) // welcome

	sawError := false
	var lastValid []string
	for {
		msg := readMessage(t, ws)
		switch msg.Type {
		case MessageTypeActionRequired:
			data := decode[ActionRequiredData](t, msg)
			lastValid = data.ValidActions
			if !sawError {
				// Garbage action draws an error frame; the decision stays
				// pending until a parseable one arrives.
				sendDecision(t, ws, "jackpot")
			} else {
				sendDecision(t, ws, pickAction(lastValid))
			}

		case MessageTypeError:
			data := decode[ErrorData](t, msg)
			assert.Equal(t, "bad_action", data.Code)
			sawError = true
			sendDecision(t, ws, pickAction(lastValid))

		case MessageTypeMatchEnd:
			assert.True(t, sawError, "expected an error frame for the garbage action")
			return
		}
	}
}

func TestServerValidation(t *testing.T) {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	policy := testPolicy(t)

	_, err := NewServer(nil, Options{Hands: 1, StartingStack: 10}, logger)
	assert.Error(t, err)
	_, err = NewServer(policy, Options{Hands: 0, StartingStack: 10}, logger)
	assert.Error(t, err)
	_, err = NewServer(policy, Options{Hands: 1, StartingStack: 0}, logger)
	assert.Error(t, err)
}
