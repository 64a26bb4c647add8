package game

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// HandRecord captures one finished hand for the session log.
type HandRecord struct {
	Hand     int    `json:"hand"`
	OPName   string `json:"op"`
	IPName   string `json:"ip"`
	OPCard   string `json:"op_card"`
	IPCard   string `json:"ip_card"`
	Actions  string `json:"actions"`
	Showdown bool   `json:"showdown"`
	Winner   string `json:"winner"`
	Pot      int    `json:"pot"`
	OPNet    int    `json:"op_net"`
	IPNet    int    `json:"ip_net"`
}

// NewHandRecord summarises a terminal hand. Names are the session-level
// identities seated in each position for this hand.
func NewHandRecord(handNo int, h *HandState, opName, ipName string) (HandRecord, error) {
	if !h.IsTerminal() {
		return HandRecord{}, fmt.Errorf("hand %d is not over", handNo)
	}
	winner, err := h.Winner()
	if err != nil {
		return HandRecord{}, err
	}
	names := [2]string{opName, ipName}
	return HandRecord{
		Hand:     handNo,
		OPName:   opName,
		IPName:   ipName,
		OPCard:   h.CardFor(OutOfPosition).Glyph(h.Rules()),
		IPCard:   h.CardFor(InPosition).Glyph(h.Rules()),
		Actions:  h.HistoryString(),
		Showdown: h.Showdown(),
		Winner:   names[winner],
		Pot:      h.Pot(),
		OPNet:    h.Payoff(OutOfPosition),
		IPNet:    h.Payoff(InPosition),
	}, nil
}

// HistoryWriter appends hand records as JSON lines. Safe for use from a
// single session goroutine; the mutex only guards against interleaved writes
// when multiple sessions share one sink.
type HistoryWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewHistoryWriter wraps w in a JSONL hand-history sink.
func NewHistoryWriter(w io.Writer) *HistoryWriter {
	return &HistoryWriter{enc: json.NewEncoder(w)}
}

// Write appends one record.
func (hw *HistoryWriter) Write(rec HandRecord) error {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	return hw.enc.Encode(rec)
}
