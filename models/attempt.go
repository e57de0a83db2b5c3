package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnswerMap holds a quiz attempt's answers keyed by question ID.
// It is stored in SQLite as a JSON text column.
type AnswerMap map[string]string

// Value implements driver.Valuer so an AnswerMap can be bound directly as a
// query argument.
func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode answer map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for reading an AnswerMap back from a row.
func (m *AnswerMap) Scan(src any) error {
	if src == nil {
		*m = AnswerMap{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported answer map source type %T", src)
	}

	if len(data) == 0 {
		*m = AnswerMap{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("decode answer map: %w", err)
	}
	return nil
}

// Clone returns an independent copy of the map. A nil receiver yields an
// empty, non-nil map.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Attempt is a user's quiz attempt, the one entity class with rich conflict
// semantics. Once Submitted is true the record is immutable truth from the
// device that submitted it: no remote state may silently overwrite its score
// or answers.
type Attempt struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	SubjectID   string     `json:"subject_id"`
	Answers     AnswerMap  `json:"answers"`
	Submitted   bool       `json:"submitted"`
	Score       *int       `json:"score,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Synced      bool       `json:"synced"`
}

// EquivalentForSync reports whether two attempt versions agree on the fields
// that matter for synchronisation: update time (within tolerance), answers,
// score and the submitted flag.
func (a Attempt) EquivalentForSync(other Attempt, tolerance time.Duration) bool {
	if a.Submitted != other.Submitted {
		return false
	}
	if !timestampsWithin(a.UpdatedAt, other.UpdatedAt, tolerance) {
		return false
	}
	if !scoreEqual(a.Score, other.Score) {
		return false
	}
	if len(a.Answers) != len(other.Answers) {
		return false
	}
	for k, v := range a.Answers {
		if ov, ok := other.Answers[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func scoreEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timestampsWithin(a, b time.Time, tolerance time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
