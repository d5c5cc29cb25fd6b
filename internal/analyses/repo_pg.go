package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGStore implements Store using Postgres. Ids come from a BIGSERIAL column, so
// assignment and insertion happen in one statement.
type PGStore struct {
	DB *sql.DB
}

const selectAnalysisColumns = `
SELECT id, facial_features, facial_thirds, skin_conditions, recommendations, color_palette,
       analyzed_image_path, created_at
FROM analyses`

// CreateAnalysis inserts a new analysis and returns it with its assigned id.
func (s *PGStore) CreateAnalysis(ctx context.Context, in InsertAnalysis) (Analysis, error) {
	const query = `
INSERT INTO analyses (facial_features, facial_thirds, skin_conditions, recommendations, color_palette, analyzed_image_path)
VALUES ($1::jsonb, $2::jsonb, $3::jsonb, $4::jsonb, $5::jsonb, $6)
RETURNING id, created_at`
	in = in.normalized()

	payloads := make([]any, 0, 6)
	for _, values := range [][]string{in.FacialFeatures, in.FacialThirds, in.SkinConditions, in.Recommendations, in.ColorPalette} {
		payload, err := marshalJSONB(values)
		if err != nil {
			return Analysis{}, &StorageError{Stage: StageStore, Err: err}
		}
		payloads = append(payloads, payload)
	}
	var imagePath sql.NullString
	if in.AnalyzedImagePath != nil {
		imagePath = sql.NullString{String: *in.AnalyzedImagePath, Valid: true}
	}
	payloads = append(payloads, imagePath)

	var id int64
	var createdAt time.Time
	if err := s.DB.QueryRowContext(ctx, query, payloads...).Scan(&id, &createdAt); err != nil {
		return Analysis{}, &StorageError{Stage: StageStore, Err: fmt.Errorf("insert analysis: %w", err)}
	}
	return newAnalysis(id, in, createdAt.UTC()), nil
}

// GetAnalysis returns an analysis by id.
func (s *PGStore) GetAnalysis(ctx context.Context, id int64) (Analysis, error) {
	row := s.DB.QueryRowContext(ctx, selectAnalysisColumns+`
WHERE id = $1
LIMIT 1`, id)
	return scanAnalysis(row)
}

// GetLatestAnalysis returns the analysis with the highest id.
func (s *PGStore) GetLatestAnalysis(ctx context.Context) (Analysis, error) {
	row := s.DB.QueryRowContext(ctx, selectAnalysisColumns+`
ORDER BY id DESC
LIMIT 1`)
	return scanAnalysis(row)
}

func scanAnalysis(row *sql.Row) (Analysis, error) {
	var a Analysis
	var features, thirds, skin, recs, palette []byte
	var imagePath sql.NullString
	err := row.Scan(&a.ID, &features, &thirds, &skin, &recs, &palette, &imagePath, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, fmt.Errorf("select analysis: %w", err)
	}
	a.FacialFeatures = unmarshalStrings(features)
	a.FacialThirds = unmarshalStrings(thirds)
	a.SkinConditions = unmarshalStrings(skin)
	a.Recommendations = unmarshalStrings(recs)
	a.ColorPalette = unmarshalStrings(palette)
	if imagePath.Valid {
		p := imagePath.String
		a.AnalyzedImagePath = &p
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func marshalJSONB(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalStrings(raw []byte) []string {
	var out []string
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil || out == nil {
		return []string{}
	}
	return out
}
