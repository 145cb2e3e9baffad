package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError reports a message that is not structurally valid.
// It blocks only that message; the connection stays open.
type ValidationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: missing field '%s'", e.Type, e.Field)
	case e.Type != "":
		return fmt.Sprintf("%s: %s", e.Type, e.Reason)
	default:
		return e.Reason
	}
}

// Code maps the error onto a protocol reason code.
func (e *ValidationError) Code() string {
	if e.Reason == ReasonUnknownType {
		return ReasonUnknownType
	}
	return ReasonInvalidMessage
}

// Validate checks a decoded object against the required-field set of its type.
func Validate(fields map[string]json.RawMessage) error {
	rawType, ok := fields["type"]
	if !ok {
		return &ValidationError{Reason: "missing 'type' field"}
	}
	var t string
	if err := json.Unmarshal(rawType, &t); err != nil || t == "" {
		return &ValidationError{Reason: "'type' must be a non-empty string"}
	}
	required, known := requiredFields[t]
	if !known {
		return &ValidationError{Type: t, Reason: ReasonUnknownType}
	}
	for _, f := range required {
		if _, ok := fields[f]; !ok {
			return &ValidationError{Type: t, Field: f}
		}
	}
	return nil
}

// Encode validates msg and renders it as a single JSON object (no newline).
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, &ValidationError{Reason: "nil message"}
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.MessageType(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("flatten %s: %w", msg.MessageType(), err)
	}
	fields["type"], _ = json.Marshal(msg.MessageType())

	if err := Validate(fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// Decode parses and validates one line into its concrete message variant.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, &ValidationError{Reason: "empty message"}
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, &ValidationError{Reason: "malformed json: " + err.Error()}
	}
	if err := Validate(fields); err != nil {
		return nil, err
	}

	var t string
	_ = json.Unmarshal(fields["type"], &t)

	var msg Message
	switch t {
	case TypeJoin:
		msg = &Join{}
	case TypeStart:
		msg = &Start{}
	case TypeAnswer:
		msg = &Answer{}
	case TypePing:
		msg = &Ping{}
	case TypeCurrent:
		msg = &Current{}
	case TypeWelcome:
		msg = &Welcome{}
	case TypeQuestion:
		msg = &Question{}
	case TypeAnswerAck:
		msg = &AnswerAck{}
	case TypeRoundResult:
		msg = &RoundResult{}
	case TypeGameOver:
		msg = &GameOver{}
	case TypeError:
		msg = &Error{}
	case TypePong:
		msg = &Pong{}
	}
	if err := json.Unmarshal(line, msg); err != nil {
		return nil, &ValidationError{Type: t, Reason: "bad field: " + err.Error()}
	}
	return deref(msg), nil
}

// DecodeIdentify parses the first line of a connection. A join message is
// accepted, and so is a bare name line.
func DecodeIdentify(line []byte) (Join, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		msg, err := Decode(trimmed)
		if err != nil {
			return Join{}, err
		}
		join, ok := msg.(Join)
		if !ok {
			return Join{}, &ValidationError{Type: msg.MessageType(), Reason: "expected join"}
		}
		join.Name = strings.TrimSpace(join.Name)
		join.Role = NormalizeRole(strings.ToLower(strings.TrimSpace(join.Role)))
		return join, nil
	}
	return Join{Name: string(trimmed), Role: RoleParticipant}, nil
}

func deref(msg Message) Message {
	switch m := msg.(type) {
	case *Join:
		return *m
	case *Start:
		return *m
	case *Answer:
		return *m
	case *Ping:
		return *m
	case *Current:
		return *m
	case *Welcome:
		return *m
	case *Question:
		return *m
	case *AnswerAck:
		return *m
	case *RoundResult:
		return *m
	case *GameOver:
		return *m
	case *Error:
		return *m
	case *Pong:
		return *m
	}
	return msg
}
