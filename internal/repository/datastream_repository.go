// Package repository persists standardized datasets to PostgreSQL. A dataset
// is stored as one row per interval plus one row per variable; payloads go
// into JSONB with missing samples written as the configured fill value, since
// JSON has no representation for NaN.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/database"
	"datastream-pipeline/pkg/logging"
)

// ErrNotFound is returned when a requested dataset or datastream is absent
var ErrNotFound = errors.New("not found")

// DatastreamRecord is one row of the datastreams table
type DatastreamRecord struct {
	ID        string    `db:"id"`
	Location  string    `db:"location"`
	Name      string    `db:"name"`
	Level     string    `db:"level"`
	CreatedAt time.Time `db:"created_at"`
}

// DatasetRecord is one row of the datasets table
type DatasetRecord struct {
	ID           uuid.UUID `db:"id"`
	DatastreamID string    `db:"datastream_id"`
	BeginTime    time.Time `db:"begin_time"`
	EndTime      time.Time `db:"end_time"`
	Attrs        []byte    `db:"attrs"`
	CreatedAt    time.Time `db:"created_at"`
}

// variableRecord is one row of the dataset_variables table
type variableRecord struct {
	DatasetID   uuid.UUID `db:"dataset_id"`
	Name        string    `db:"name"`
	Dims        []byte    `db:"dims"`
	Attrs       []byte    `db:"attrs"`
	IsCoord     bool      `db:"is_coord"`
	FloatValues []byte    `db:"float_values"`
	IntValues   []byte    `db:"int_values"`
	RawValues   []byte    `db:"raw_values"`
	Position    int       `db:"position"`
}

// DatastreamRepository stores and retrieves standardized datasets
type DatastreamRepository struct {
	db     *database.PostgresDB
	logger *logging.StructuredLogger
}

// NewDatastreamRepository creates a repository over the given connection
func NewDatastreamRepository(db *database.PostgresDB, logger *logging.StructuredLogger) *DatastreamRepository {
	return &DatastreamRepository{db: db, logger: logger}
}

// SaveDataset persists one standardized dataset, replacing any previously
// stored dataset for the same datastream and begin time. Missing samples are
// written as fill.
func (r *DatastreamRepository) SaveDataset(ctx context.Context, ds *models.Dataset, interval models.Interval, fill float64) (uuid.UUID, error) {
	id := uuid.New()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	location, name, level := splitDatastreamID(ds.Name)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO datastreams (id, location, name, level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		ds.Name, location, name, level,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert datastream %s: %w", ds.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM datasets WHERE datastream_id = $1 AND begin_time = $2`,
		ds.Name, interval.Begin,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to replace prior dataset: %w", err)
	}

	attrs, err := json.Marshal(ds.Attrs)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode dataset attributes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO datasets (id, datastream_id, begin_time, end_time, attrs)
		VALUES ($1, $2, $3, $4, $5)`,
		id, ds.Name, interval.Begin, interval.End, attrs,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert dataset: %w", err)
	}

	position := 0
	insertVar := func(v *models.Variable, isCoord bool) error {
		rec, err := encodeVariable(id, v, isCoord, position, fill)
		if err != nil {
			return err
		}
		position++
		_, err = tx.ExecContext(ctx, `
			INSERT INTO dataset_variables
				(dataset_id, name, dims, attrs, is_coord, float_values, int_values, raw_values, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.DatasetID, rec.Name, rec.Dims, rec.Attrs, rec.IsCoord,
			rec.FloatValues, rec.IntValues, rec.RawValues, rec.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variable %s: %w", v.Name, err)
		}
		return nil
	}

	for _, c := range ds.Coords {
		if err := insertVar(c, true); err != nil {
			return uuid.Nil, err
		}
	}
	for _, v := range ds.DataVars {
		if err := insertVar(v, false); err != nil {
			return uuid.Nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit dataset: %w", err)
	}

	r.logger.Info(ctx, "[REPO_SAVE] Dataset persisted", logging.Fields{
		"dataset_id": id.String(),
		"datastream": ds.Name,
		"interval":   interval.String(),
		"variables":  position,
	})
	return id, nil
}

// FindDatasets returns dataset records for a datastream overlapping the
// interval, ordered by begin time. A zero interval returns everything.
func (r *DatastreamRepository) FindDatasets(ctx context.Context, datastreamID string, interval models.Interval) ([]DatasetRecord, error) {
	var records []DatasetRecord
	var err error
	if interval.IsZero() {
		err = r.db.SelectContext(ctx, "find_datasets", &records, `
			SELECT id, datastream_id, begin_time, end_time, attrs, created_at
			FROM datasets
			WHERE datastream_id = $1
			ORDER BY begin_time`,
			datastreamID)
	} else {
		err = r.db.SelectContext(ctx, "find_datasets", &records, `
			SELECT id, datastream_id, begin_time, end_time, attrs, created_at
			FROM datasets
			WHERE datastream_id = $1 AND end_time > $2 AND begin_time < $3
			ORDER BY begin_time`,
			datastreamID, interval.Begin, interval.End)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find datasets for %s: %w", datastreamID, err)
	}
	return records, nil
}

// LoadDataset rebuilds a stored dataset, converting fill values back to
// missing samples.
func (r *DatastreamRepository) LoadDataset(ctx context.Context, id uuid.UUID, fill float64) (*models.Dataset, error) {
	var rec DatasetRecord
	err := r.db.GetContext(ctx, "load_dataset", &rec, `
		SELECT id, datastream_id, begin_time, end_time, attrs, created_at
		FROM datasets WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", id, err)
	}

	ds := models.NewDataset(rec.DatastreamID)
	if len(rec.Attrs) > 0 {
		if err := json.Unmarshal(rec.Attrs, &ds.Attrs); err != nil {
			return nil, fmt.Errorf("failed to decode dataset attributes: %w", err)
		}
	}

	var vars []variableRecord
	err = r.db.SelectContext(ctx, "load_variables", &vars, `
		SELECT dataset_id, name, dims, attrs, is_coord, float_values, int_values, raw_values, position
		FROM dataset_variables
		WHERE dataset_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load variables of dataset %s: %w", id, err)
	}

	for _, vr := range vars {
		v, err := decodeVariable(vr, fill)
		if err != nil {
			return nil, err
		}
		if vr.IsCoord {
			if err := ds.AddCoord(v); err != nil {
				return nil, fmt.Errorf("stored dataset %s is inconsistent: %w", id, err)
			}
		} else {
			if err := ds.AddDataVar(v); err != nil {
				return nil, fmt.Errorf("stored dataset %s is inconsistent: %w", id, err)
			}
		}
	}
	return ds, nil
}

// ListDatastreams returns all known datastreams ordered by ID
func (r *DatastreamRepository) ListDatastreams(ctx context.Context) ([]DatastreamRecord, error) {
	var records []DatastreamRecord
	err := r.db.SelectContext(ctx, "list_datastreams", &records, `
		SELECT id, location, name, level, created_at
		FROM datastreams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datastreams: %w", err)
	}
	return records, nil
}

// HealthCheck verifies repository connectivity
func (r *DatastreamRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// encodeVariable converts a variable to its storage row
func encodeVariable(datasetID uuid.UUID, v *models.Variable, isCoord bool, position int, fill float64) (variableRecord, error) {
	rec := variableRecord{
		DatasetID: datasetID,
		Name:      v.Name,
		IsCoord:   isCoord,
		Position:  position,
	}

	var err error
	if rec.Dims, err = json.Marshal(v.Dims); err != nil {
		return rec, fmt.Errorf("failed to encode dims of %s: %w", v.Name, err)
	}
	if rec.Attrs, err = json.Marshal(v.Attrs); err != nil {
		return rec, fmt.Errorf("failed to encode attrs of %s: %w", v.Name, err)
	}

	if v.Values != nil {
		filled := make([]float64, len(v.Values))
		for i, val := range v.Values {
			if math.IsNaN(val) {
				filled[i] = fill
			} else {
				filled[i] = val
			}
		}
		if rec.FloatValues, err = json.Marshal(filled); err != nil {
			return rec, fmt.Errorf("failed to encode values of %s: %w", v.Name, err)
		}
	}
	if v.Ints != nil {
		if rec.IntValues, err = json.Marshal(v.Ints); err != nil {
			return rec, fmt.Errorf("failed to encode flags of %s: %w", v.Name, err)
		}
	}
	if v.Raw != nil {
		if rec.RawValues, err = json.Marshal(v.Raw); err != nil {
			return rec, fmt.Errorf("failed to encode raw values of %s: %w", v.Name, err)
		}
	}
	return rec, nil
}

// decodeVariable rebuilds a variable from its storage row
func decodeVariable(rec variableRecord, fill float64) (*models.Variable, error) {
	v := &models.Variable{
		Name:  rec.Name,
		Attrs: make(models.Attributes),
	}
	if len(rec.Dims) > 0 {
		if err := json.Unmarshal(rec.Dims, &v.Dims); err != nil {
			return nil, fmt.Errorf("failed to decode dims of %s: %w", rec.Name, err)
		}
	}
	if len(rec.Attrs) > 0 {
		if err := json.Unmarshal(rec.Attrs, &v.Attrs); err != nil {
			return nil, fmt.Errorf("failed to decode attrs of %s: %w", rec.Name, err)
		}
	}
	if len(rec.FloatValues) > 0 {
		if err := json.Unmarshal(rec.FloatValues, &v.Values); err != nil {
			return nil, fmt.Errorf("failed to decode values of %s: %w", rec.Name, err)
		}
		for i, val := range v.Values {
			if val == fill {
				v.Values[i] = math.NaN()
			}
		}
	}
	if len(rec.IntValues) > 0 {
		if err := json.Unmarshal(rec.IntValues, &v.Ints); err != nil {
			return nil, fmt.Errorf("failed to decode flags of %s: %w", rec.Name, err)
		}
	}
	if len(rec.RawValues) > 0 {
		if err := json.Unmarshal(rec.RawValues, &v.Raw); err != nil {
			return nil, fmt.Errorf("failed to decode raw values of %s: %w", rec.Name, err)
		}
	}
	return v, nil
}

// splitDatastreamID breaks a location.name.level identifier into its parts.
// Identifiers with extra dots keep them in the name component.
func splitDatastreamID(id string) (location, name, level string) {
	first, last := -1, -1
	for i, c := range id {
		if c == '.' {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return "", id, ""
	}
	return id[:first], id[first+1 : last], id[last+1:]
}
