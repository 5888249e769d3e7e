package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// doneSentinel marks the end of some event streams and carries no event.
const doneSentinel = "[DONE]"

// rawFrame is the union of every field a frame payload may carry.
type rawFrame struct {
	Type           string               `json:"type"`
	Step           string               `json:"step"`
	Label          string               `json:"label"`
	Status         string               `json:"status"`
	Detail         string               `json:"detail"`
	Data           json.RawMessage      `json:"data"`
	Response       json.RawMessage      `json:"response"`
	LockedContext  *domain.LockedUpdate `json:"locked_context"`
	TechnicalState json.RawMessage      `json:"technical_state"`
	SessionState   json.RawMessage      `json:"session_state"`
	Error          json.RawMessage      `json:"error"`
}

// Decoder classifies frame payloads into events. Decoding never returns an error;
// malformed or unrecognised frames are logged and dropped.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a decoder logging drops to logger (slog.Default when nil).
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Decode parses one frame. The boolean is false when the frame should be ignored.
func (d *Decoder) Decode(frame string) (domain.Event, bool) {
	payload, ok := PayloadOf(frame)
	if !ok {
		d.drop(frame, "no payload")
		return domain.Event{}, false
	}
	if payload == doneSentinel {
		return domain.Event{}, false
	}

	var raw rawFrame
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		d.drop(frame, "malformed payload: "+err.Error())
		return domain.Event{}, false
	}

	// Shapes are checked in priority order: progress, final, session-sync, fatal.
	switch {
	case raw.Step != "" && raw.Status != "":
		label := raw.Label
		if label == "" {
			label = raw.Step
		}
		return domain.Event{
			Kind: domain.EventProgress,
			Progress: &domain.ProgressEvent{
				StepID: raw.Step,
				Label:  label,
				Status: domain.ParseStepStatus(raw.Status),
				Detail: raw.Detail,
				Data:   presentOrNil(raw.Data),
			},
		}, true

	case present(raw.Response):
		answer, err := decodeAnswer(raw.Response)
		if err != nil {
			d.drop(frame, "malformed answer: "+err.Error())
			return domain.Event{}, false
		}
		return domain.Event{
			Kind: domain.EventFinal,
			Final: &domain.FinalEvent{
				Answer:         answer,
				Locked:         raw.LockedContext,
				TechnicalState: presentOrNil(raw.TechnicalState),
			},
		}, true

	case present(raw.SessionState) && raw.Step == "":
		return domain.Event{
			Kind:        domain.EventSessionSync,
			SessionSync: raw.SessionState,
		}, true

	case errorText(raw.Error) != "" || raw.Type == "error":
		msg := errorText(raw.Error)
		if msg == "" {
			msg = raw.Detail
		}
		if msg == "" {
			msg = "unknown error"
		}
		return domain.Event{Kind: domain.EventFatal, Fatal: msg}, true
	}

	d.drop(frame, "unrecognised shape")
	return domain.Event{}, false
}

func (d *Decoder) drop(frame, reason string) {
	d.logger.Debug("dropping stream frame",
		slog.String("reason", reason),
		slog.Int("frame_bytes", len(frame)),
	)
}

// PayloadOf extracts the data payload of an event-stream frame. Multiple data lines
// are joined with a newline; event, id and comment lines are ignored. A frame made
// of a bare JSON object is accepted as its own payload.
func PayloadOf(frame string) (string, bool) {
	var data []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "", strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "data:"):
			v := strings.TrimPrefix(line, "data:")
			data = append(data, strings.TrimPrefix(v, " "))
		}
	}
	if len(data) > 0 {
		payload := strings.TrimSpace(strings.Join(data, "\n"))
		return payload, payload != ""
	}

	trimmed := strings.TrimSpace(frame)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}
	return "", false
}

func decodeAnswer(raw json.RawMessage) (domain.Answer, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return domain.Answer{ContentText: text, Raw: raw}, nil
	}

	var answer domain.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return domain.Answer{}, err
	}
	answer.Raw = raw
	return answer, nil
}

func errorText(raw json.RawMessage) string {
	if !present(raw) || bytes.Equal(bytes.TrimSpace(raw), []byte("false")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Detail != "" {
			return obj.Detail
		}
	}
	return string(raw)
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func presentOrNil(raw json.RawMessage) json.RawMessage {
	if !present(raw) {
		return nil
	}
	return raw
}
