// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

// Package seed holds the deterministic built-in catalog used to bootstrap a
// fresh installation that cannot reach the remote server. The dataset is
// fixed: every call to Snapshot returns the same records so offline
// first-runs behave identically on every device.
package seed

import (
	"time"

	"github.com/avoronov/go-quiz-sync/models"
)

// seededAt is the fixed timestamp stamped on every built-in record. Using a
// constant keeps the dataset byte-identical across runs and devices.
var seededAt = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// Seeder produces the built-in catalog dataset.
type Seeder struct{}

// New returns a Seeder.
func New() *Seeder {
	return &Seeder{}
}

// Snapshot returns the fixed bootstrap catalog: a demo user, two subjects
// and a small question bank. Callers must treat the snapshot as read-only
// template data; it is rebuilt on every call.
func (s *Seeder) Snapshot() models.CatalogSnapshot {
	return models.CatalogSnapshot{
		Users: []models.User{
			{ID: "seed-user-demo", Login: "demo", Name: "Demo Student", Role: "student", Active: true, UpdatedAt: seededAt},
		},
		Subjects: []models.Subject{
			{ID: "seed-subject-math", Title: "Mathematics", Active: true, UpdatedAt: seededAt},
			{ID: "seed-subject-geo", Title: "Geography", Active: true, UpdatedAt: seededAt},
		},
		Questions: []models.Question{
			{
				ID:            "seed-question-math-1",
				SubjectID:     "seed-subject-math",
				Text:          "What is 7 x 8?",
				Options:       models.OptionList{"54", "56", "63", "64"},
				CorrectOption: 1,
				UpdatedAt:     seededAt,
			},
			{
				ID:            "seed-question-math-2",
				SubjectID:     "seed-subject-math",
				Text:          "What is the square root of 144?",
				Options:       models.OptionList{"10", "11", "12", "14"},
				CorrectOption: 2,
				UpdatedAt:     seededAt,
			},
			{
				ID:            "seed-question-math-3",
				SubjectID:     "seed-subject-math",
				Text:          "What is 15% of 200?",
				Options:       models.OptionList{"25", "30", "35", "40"},
				CorrectOption: 1,
				UpdatedAt:     seededAt,
			},
			{
				ID:            "seed-question-geo-1",
				SubjectID:     "seed-subject-geo",
				Text:          "Which is the longest river in the world?",
				Options:       models.OptionList{"Amazon", "Nile", "Yangtze", "Mississippi"},
				CorrectOption: 1,
				UpdatedAt:     seededAt,
			},
			{
				ID:            "seed-question-geo-2",
				SubjectID:     "seed-subject-geo",
				Text:          "What is the capital of Australia?",
				Options:       models.OptionList{"Sydney", "Melbourne", "Canberra", "Perth"},
				CorrectOption: 2,
				UpdatedAt:     seededAt,
			},
		},
	}
}
