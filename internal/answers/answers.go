// Package answers converts the loosely typed answer payloads submitted by
// quiz clients into a canonical per-question-type representation. Clients
// send integers, digit strings, booleans, "true"/"false" literals, arrays,
// free text, or the sentinel "undefined" for untouched questions; grading
// only ever sees the normalized form.
package answers

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/classroom-connect/quiz-service/internal/models"
)

type Kind int

const (
	Unanswered Kind = iota
	ChoiceID
	Bool
	ChoiceList
	Text
)

// Raw is the closed set of shapes a submitted answer can take after
// decoding. Exactly one of the value fields is meaningful for a given
// Kind.
type Raw struct {
	Kind    Kind
	Choice  uint
	Flag    bool
	Choices []uint
	Text    string
}

// unansweredSentinel is what the web client submits for questions the
// student never touched.
const unansweredSentinel = "undefined"

// ParseRaw decodes one submitted answer value. Anything that cannot be
// interpreted resolves to Unanswered rather than an error: a malformed
// answer must never abort grading, and must never earn points.
func ParseRaw(data json.RawMessage) Raw {
	if len(data) == 0 {
		return Raw{Kind: Unanswered}
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return Raw{Kind: Unanswered}
	}

	switch val := v.(type) {
	case nil:
		return Raw{Kind: Unanswered}
	case bool:
		return Raw{Kind: Bool, Flag: val}
	case float64:
		return parseNumber(val)
	case string:
		return parseString(val)
	case []interface{}:
		return parseList(val)
	}
	return Raw{Kind: Unanswered}
}

func parseNumber(val float64) Raw {
	if val < 0 || val != math.Trunc(val) {
		return Raw{Kind: Unanswered}
	}
	return Raw{Kind: ChoiceID, Choice: uint(val)}
}

func parseString(val string) Raw {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" || trimmed == unansweredSentinel {
		return Raw{Kind: Unanswered}
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return Raw{Kind: Bool, Flag: true}
	case "false":
		return Raw{Kind: Bool, Flag: false}
	}
	if id, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
		return Raw{Kind: ChoiceID, Choice: uint(id)}
	}
	return Raw{Kind: Text, Text: trimmed}
}

func parseList(vals []interface{}) Raw {
	ids := make([]uint, 0, len(vals))
	for _, item := range vals {
		switch elem := item.(type) {
		case float64:
			if elem >= 0 && elem == math.Trunc(elem) {
				ids = append(ids, uint(elem))
			}
		case string:
			if id, err := strconv.ParseUint(strings.TrimSpace(elem), 10, 64); err == nil {
				ids = append(ids, uint(id))
			}
		}
	}
	if len(ids) == 0 {
		return Raw{Kind: Unanswered}
	}
	return Raw{Kind: ChoiceList, Choices: ids}
}

// Normalized is the canonical answer shape the grader consumes. For
// choice-based questions ChoiceIDs holds only ids verified to belong to
// the question; Answered is false when nothing valid was selected.
type Normalized struct {
	ChoiceIDs []uint
	Text      string
	Answered  bool
}

// Normalize resolves a raw answer against its question. Invalid choice
// ids, type mismatches, and the unanswered sentinel all normalize to
// "no selection" so they grade to zero without special-casing upstream.
func Normalize(q *models.Question, raw Raw) Normalized {
	switch q.Type {
	case models.SingleChoice:
		return normalizeSingle(q, raw)
	case models.MultipleChoice:
		return normalizeMulti(q, raw)
	case models.TrueFalse:
		return normalizeBoolean(q, raw)
	case models.FreeText:
		return normalizeText(raw)
	}
	return Normalized{}
}

func normalizeSingle(q *models.Question, raw Raw) Normalized {
	switch raw.Kind {
	case ChoiceID:
		if c := q.ChoiceByID(raw.Choice); c != nil {
			return Normalized{ChoiceIDs: []uint{c.ID}, Answered: true}
		}
	case ChoiceList:
		// Some clients wrap single selections in a one-element array.
		if len(raw.Choices) == 1 {
			return normalizeSingle(q, Raw{Kind: ChoiceID, Choice: raw.Choices[0]})
		}
	}
	return Normalized{}
}

func normalizeMulti(q *models.Question, raw Raw) Normalized {
	var candidates []uint
	switch raw.Kind {
	case ChoiceList:
		candidates = raw.Choices
	case ChoiceID:
		// Scalar payload for a multi-choice question is a one-element
		// selection.
		candidates = []uint{raw.Choice}
	default:
		return Normalized{}
	}

	seen := make(map[uint]bool, len(candidates))
	var ids []uint
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c := q.ChoiceByID(id); c != nil {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return Normalized{}
	}
	return Normalized{ChoiceIDs: ids, Answered: true}
}

// normalizeBoolean resolves the answer to an actual choice row. A bare
// boolean is matched against the choices' True/False texts; a choice id is
// looked up directly. Position in the choice list never decides anything.
func normalizeBoolean(q *models.Question, raw Raw) Normalized {
	switch raw.Kind {
	case ChoiceID:
		if c := q.ChoiceByID(raw.Choice); c != nil {
			return Normalized{ChoiceIDs: []uint{c.ID}, Answered: true}
		}
	case Bool:
		for i := range q.Choices {
			if v, ok := q.Choices[i].BoolValue(); ok && v == raw.Flag {
				return Normalized{ChoiceIDs: []uint{q.Choices[i].ID}, Answered: true}
			}
		}
		// Legacy true/false questions have no choice rows; carry the
		// parsed boolean as text so the grader can fall back to the
		// reference answer.
		if len(q.Choices) == 0 {
			return Normalized{Text: strconv.FormatBool(raw.Flag), Answered: true}
		}
	case ChoiceList:
		if len(raw.Choices) == 1 {
			return normalizeBoolean(q, Raw{Kind: ChoiceID, Choice: raw.Choices[0]})
		}
	}
	return Normalized{}
}

func normalizeText(raw Raw) Normalized {
	switch raw.Kind {
	case Text:
		return Normalized{Text: raw.Text, Answered: true}
	case Bool:
		return Normalized{Text: strconv.FormatBool(raw.Flag), Answered: true}
	case ChoiceID:
		return Normalized{Text: strconv.FormatUint(uint64(raw.Choice), 10), Answered: true}
	}
	return Normalized{}
}

// Percentage computes the score percentage, zero when no points were at
// stake. Pure function of its inputs.
func Percentage(score, totalPoints float64) float64 {
	if totalPoints <= 0 {
		return 0
	}
	return score / totalPoints * 100
}

// RoundPercent rounds half-up to one decimal place. Storage keeps full
// precision; this applies only at the presentation boundary.
func RoundPercent(p float64) float64 {
	return math.Floor(p*10+0.5) / 10
}

// ScaledScore rescales an attempt score onto the remote tutorial slots'
// fixed 0-10 range. A zero point total scales to zero.
func ScaledScore(score, totalPoints float64) float64 {
	if totalPoints <= 0 {
		return 0
	}
	return score / totalPoints * 10
}
