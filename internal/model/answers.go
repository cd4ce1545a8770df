package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Unanswered is recorded for a question that received no answer.
const Unanswered = "Not answered"

// AnswerValue is one stored answer. It decodes from a plain JSON string,
// number or boolean, or from a {"value": ..., "type": ...} wrapper.
type AnswerValue struct {
	Value   string
	Type    QuestionType
	Wrapped bool
}

// Plain returns an unwrapped answer value.
func Plain(v string) AnswerValue {
	return AnswerValue{Value: v}
}

// Wrap returns an answer value that encodes as a {value, type} object.
func Wrap(v string, t QuestionType) AnswerValue {
	return AnswerValue{Value: v, Type: t, Wrapped: true}
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if !v.Wrapped {
		return json.Marshal(v.Value)
	}
	return json.Marshal(struct {
		Value string       `json:"value"`
		Type  QuestionType `json:"type,omitempty"`
	}{v.Value, v.Type})
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var w struct {
			Value json.RawMessage `json:"value"`
			Type  QuestionType    `json:"type"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("decode wrapped answer: %w", err)
		}
		s, err := scalarString(w.Value)
		if err != nil {
			return err
		}
		*v = AnswerValue{Value: s, Type: w.Type, Wrapped: true}
		return nil
	}
	s, err := scalarString(data)
	if err != nil {
		return err
	}
	*v = AnswerValue{Value: s}
	return nil
}

func scalarString(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	switch data[0] {
	case '"':
		var s string
		err := json.Unmarshal(data, &s)
		return s, err
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	case '{', '[':
		return "", fmt.Errorf("answer value must be a scalar, got %s", data)
	default:
		var n json.Number
		err := json.Unmarshal(data, &n)
		return n.String(), err
	}
}

// AnswerMap maps alias keys to stored answers.
type AnswerMap map[string]AnswerValue

// Set stores a plain answer under key.
func (m AnswerMap) Set(key, value string) {
	m[key] = Plain(value)
}
