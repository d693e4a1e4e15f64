package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// AnswerKind tags the variant held by an Answer.
type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerIndex
	AnswerText
)

// Answer is either an option index, a free-text value, or nothing.
// The zero value is AnswerNone.
type Answer struct {
	kind  AnswerKind
	index int
	text  string
}

// IndexAnswer selects the option at i.
func IndexAnswer(i int) Answer { return Answer{kind: AnswerIndex, index: i} }

// TextAnswer carries a literal value.
func TextAnswer(s string) Answer { return Answer{kind: AnswerText, text: s} }

// NoAnswer is an absent submission.
func NoAnswer() Answer { return Answer{} }

func (a Answer) Kind() AnswerKind { return a.kind }

// Index returns the option index and whether a holds one.
func (a Answer) Index() (int, bool) { return a.index, a.kind == AnswerIndex }

// Text returns the literal value and whether a holds one.
func (a Answer) Text() (string, bool) { return a.text, a.kind == AnswerText }

func (a Answer) String() string {
	switch a.kind {
	case AnswerIndex:
		return strconv.Itoa(a.index)
	case AnswerText:
		return a.text
	default:
		return ""
	}
}

// MarshalJSON writes a number, a string or null.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AnswerIndex:
		return json.Marshal(a.index)
	case AnswerText:
		return json.Marshal(a.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a string or null. Non-integral numbers
// become text so they can still match a textual correct answer.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = NoAnswer()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			*a = IndexAnswer(int(f))
			return nil
		}
		*a = TextAnswer(string(data))
		return nil
	default:
		return fmt.Errorf("answer: unsupported JSON value %s", data)
	}
}

// IsCorrect evaluates answer against the question's correct answer.
func (q Question) IsCorrect(answer Answer) bool {
	switch answer.kind {
	case AnswerIndex:
		if c, ok := q.CorrectAnswer.Index(); ok {
			return answer.index == c
		}
		if v, ok := q.CorrectAnswer.Text(); ok {
			return answer.index >= 0 && answer.index < len(q.Options) && q.Options[answer.index] == v
		}
		return false
	case AnswerText:
		if c, ok := q.CorrectAnswer.Index(); ok {
			if c >= 0 && c < len(q.Options) && q.Options[c] == answer.text {
				return true
			}
			return answer.text == strconv.Itoa(c)
		}
		if v, ok := q.CorrectAnswer.Text(); ok {
			return answer.text == v
		}
		return false
	default:
		return false
	}
}
