package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveTranscript upserts the transcript owned by an item. Reprocessing
// overwrites the previous transcript wholesale.
func (s *Store) SaveTranscript(ctx context.Context, itemID int64, body, language string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO transcripts (item_id, body, language, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(item_id) DO UPDATE SET
             body = excluded.body,
             language = excluded.language,
             created_at = excluded.created_at`,
		itemID,
		body,
		language,
		now,
	); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// TranscriptFor returns the transcript for an item, or nil when absent.
func (s *Store) TranscriptFor(ctx context.Context, itemID int64) (*Transcript, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT item_id, body, language, created_at FROM transcripts WHERE item_id = ?`,
		itemID,
	)
	var (
		transcript Transcript
		createdRaw sql.NullString
	)
	err := row.Scan(&transcript.ItemID, &transcript.Body, &transcript.Language, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		transcript.CreatedAt = created
	}
	return &transcript, nil
}

// UpsertAnalysis creates or replaces the analysis record for one
// (item, agent kind) pair.
func (s *Store) UpsertAnalysis(ctx context.Context, record AnalysisRecord) error {
	if record.ItemID == 0 {
		return errors.New("analysis record requires an item id")
	}
	if record.AgentKind == "" {
		return errors.New("analysis record requires an agent kind")
	}
	findings := record.Findings
	if findings == nil {
		findings = []Finding{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO analysis_records (item_id, agent_kind, findings_json, summary, confidence, raw_output, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id, agent_kind) DO UPDATE SET
             findings_json = excluded.findings_json,
             summary = excluded.summary,
             confidence = excluded.confidence,
             raw_output = excluded.raw_output,
             updated_at = excluded.updated_at`,
		record.ItemID,
		record.AgentKind,
		string(findingsJSON),
		record.Summary,
		record.Confidence,
		record.RawOutput,
		now,
		now,
	); err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

// AnalysisFor returns the analysis record for one (item, agent kind) pair,
// or nil when absent.
func (s *Store) AnalysisFor(ctx context.Context, itemID int64, agentKind string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, item_id, agent_kind, findings_json, summary, confidence, raw_output, created_at, updated_at
         FROM analysis_records WHERE item_id = ? AND agent_kind = ?`,
		itemID,
		agentKind,
	)
	record, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return record, nil
}

// AnalysesForItem returns every analysis record belonging to an item.
func (s *Store) AnalysesForItem(ctx context.Context, itemID int64) ([]*AnalysisRecord, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, item_id, agent_kind, findings_json, summary, confidence, raw_output, created_at, updated_at
         FROM analysis_records WHERE item_id = ? ORDER BY agent_kind`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		record, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanAnalysis(scanner interface{ Scan(dest ...any) error }) (*AnalysisRecord, error) {
	var (
		record       AnalysisRecord
		findingsJSON string
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&record.ID,
		&record.ItemID,
		&record.AgentKind,
		&findingsJSON,
		&record.Summary,
		&record.Confidence,
		&record.RawOutput,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	if findingsJSON != "" {
		if err := json.Unmarshal([]byte(findingsJSON), &record.Findings); err != nil {
			return nil, fmt.Errorf("decode findings: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return &record, nil
}
