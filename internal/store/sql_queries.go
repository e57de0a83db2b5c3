// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package store

const (
	saveAttempt = `
		INSERT INTO attempts (
			id,
			user_id,
			subject_id,
			answers,
			submitted,
			score,
			started_at,
			submitted_at,
			updated_at,
			synced
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			answers      = excluded.answers,
			submitted    = excluded.submitted,
			score        = excluded.score,
			submitted_at = excluded.submitted_at,
			updated_at   = excluded.updated_at,
			synced       = excluded.synced;`

	getAttempt = `
		SELECT
			id,
			user_id,
			subject_id,
			answers,
			submitted,
			score,
			started_at,
			submitted_at,
			updated_at,
			synced
		FROM attempts
		WHERE id = $1;`

	markAttemptSynced = `
		UPDATE attempts SET synced = true WHERE id = $1;`

	countUnsyncedAttempts = `
		SELECT COUNT(*) FROM attempts WHERE synced = false;`

	repairAttemptTimestamps = `
		UPDATE attempts
		SET updated_at = started_at
		WHERE updated_at IS NULL
		   OR updated_at < started_at;`

	countCatalogRecords = `
		SELECT
			(SELECT COUNT(*) FROM users) +
			(SELECT COUNT(*) FROM subjects) +
			(SELECT COUNT(*) FROM questions);`

	upsertUser = `
		INSERT INTO users (id, login, name, role, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			login      = excluded.login,
			name       = excluded.name,
			role       = excluded.role,
			active     = excluded.active,
			updated_at = excluded.updated_at;`

	upsertSubject = `
		INSERT INTO subjects (id, title, active, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			title      = excluded.title,
			active     = excluded.active,
			updated_at = excluded.updated_at;`

	upsertQuestion = `
		INSERT INTO questions (id, subject_id, text, options, correct_option, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			subject_id     = excluded.subject_id,
			text           = excluded.text,
			options        = excluded.options,
			correct_option = excluded.correct_option,
			updated_at     = excluded.updated_at;`

	saveOperation = `
		INSERT INTO sync_queue (
			id,
			kind,
			entity_type,
			record_id,
			payload,
			tier,
			retry_count,
			next_retry_at,
			last_error,
			enqueued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			retry_count   = excluded.retry_count,
			next_retry_at = excluded.next_retry_at,
			last_error    = excluded.last_error;`

	deleteOperation = `
		DELETE FROM sync_queue WHERE id = $1;`

	deleteAllOperations = `
		DELETE FROM sync_queue;`

	appendAuditEntry = `
		INSERT INTO sync_audit (id, operation, entity_type, record_id, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`

	getMetaValue = `
		SELECT value FROM sync_meta WHERE key = $1;`

	setMetaValue = `
		INSERT INTO sync_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value;`
)
