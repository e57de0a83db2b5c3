package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OptionList holds a question's answer options. It is stored in SQLite as a
// JSON array column.
type OptionList []string

// Value implements driver.Valuer.
func (l OptionList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode option list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *OptionList) Scan(src any) error {
	if src == nil {
		*l = OptionList{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported option list source type %T", src)
	}

	if len(data) == 0 {
		*l = OptionList{}
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("decode option list: %w", err)
	}
	return nil
}

// User is a catalog record owned by the remote authority. Password hashes and
// session tokens never reach this application core.
type User struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject is a quiz subject (topic) from the remote catalog.
type Subject struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Question belongs to a subject. Options are stored as a JSON array in the
// local store; CorrectOption indexes into Options.
type Question struct {
	ID            string     `json:"id"`
	SubjectID     string     `json:"subject_id"`
	Text          string     `json:"text"`
	Options       OptionList `json:"options"`
	CorrectOption int        `json:"correct_option"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CatalogSnapshot is the bulk "pull latest" payload: all active reference
// records in one response.
type CatalogSnapshot struct {
	Users     []User     `json:"users"`
	Subjects  []Subject  `json:"subjects"`
	Questions []Question `json:"questions"`
}

// IsEmpty reports whether the snapshot carries no records at all.
func (s CatalogSnapshot) IsEmpty() bool {
	return len(s.Users) == 0 && len(s.Subjects) == 0 && len(s.Questions) == 0
}
