package repository

import (
	"context"
	"fmt"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/models"
)

// SampleRepository handles database operations for samples
type SampleRepository struct {
	db *db.DB
}

// NewSampleRepository creates a new sample repository
func NewSampleRepository(database *db.DB) *SampleRepository {
	return &SampleRepository{db: database}
}

const sampleColumns = `
	s.sample_id, s.accession_id, s.part_no,
	COALESCE(s.block_or_cassette_seq, ''), COALESCE(s.slide_seq, ''),
	s.sample_type_id, s.container_type_id,
	s.workflow_id, s.accession_sample_id,
	COALESCE(s.workflow_id, parent.workflow_id) AS effective_workflow_id,
	COALESCE(s.current_step, ''), COALESCE(s.previous_step, ''),
	COALESCE(s.next_step, ''), COALESCE(s.pending_action, ''),
	s.custodial_department_id, s.custodial_user_id, s.avail_at,
	COALESCE(s.sample_status, ''), s.accession_generated,
	ct.is_liquid = 'Y' AS container_is_liquid,
	COALESCE(s.num_of_blocks, 0), COALESCE(s.num_of_slides, 0),
	COALESCE(s.num_of_manualsmear_slides, 0), COALESCE(s.num_of_thinprep_slides, 0)`

const sampleJoins = `
	FROM sample s
	LEFT JOIN sample parent ON parent.sample_id = s.accession_sample_id
	LEFT JOIN container_type ct ON ct.container_type_id = s.container_type_id`

func scanSample(row interface{ Scan(dest ...any) error }) (*models.Sample, error) {
	s := &models.Sample{}
	err := row.Scan(
		&s.SampleID, &s.AccessionID, &s.PartNo,
		&s.BlockSeq, &s.SlideSeq,
		&s.SampleTypeID, &s.ContainerTypeID,
		&s.WorkflowID, &s.AccessionSampleID,
		&s.EffectiveWorkflowID,
		&s.CurrentStep, &s.PreviousStep,
		&s.NextStep, &s.PendingAction,
		&s.CustodialDepartmentID, &s.CustodialUserID, &s.AvailAt,
		&s.SampleStatus, &s.AccessionGenerated,
		&s.ContainerIsLiquid,
		&s.NumOfBlocks, &s.NumOfSlides,
		&s.NumOfManualSmearSlides, &s.NumOfThinPrepSlides,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LockForRouting loads the batch inside a routing transaction, locking each
// sample row so concurrent routing calls on overlapping units serialize
// instead of losing updates.
func (r *SampleRepository) LockForRouting(ctx context.Context, q db.Querier, sampleIDs []int64) ([]*models.Sample, error) {
	query := `SELECT` + sampleColumns + sampleJoins + `
		WHERE s.sample_id = ANY($1)
		ORDER BY s.sample_id
		FOR UPDATE OF s`

	rows, err := q.Query(ctx, query, sampleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock samples: %w", err)
	}
	defer rows.Close()

	var samples []*models.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// GetByID loads a single sample without locking
func (r *SampleRepository) GetByID(ctx context.Context, sampleID int64) (*models.Sample, error) {
	query := `SELECT` + sampleColumns + sampleJoins + `
		WHERE s.sample_id = $1`

	s, err := scanSample(r.db.QueryRow(ctx, query, sampleID))
	if err != nil {
		return nil, fmt.Errorf("failed to get sample %d: %w", sampleID, err)
	}
	return s, nil
}

// FindBySlide resolves samples by decomposed slide identity. A missing block
// is matched as NULL, mirroring how slide ids without a block segment are
// issued.
func (r *SampleRepository) FindBySlide(ctx context.Context, sp hl7.SlideParts) ([]*models.Sample, error) {
	query := `SELECT` + sampleColumns + sampleJoins + `
		WHERE s.accession_id = $1
		  AND s.part_no = $2
		  AND (s.block_or_cassette_seq = $3 OR ($3 = '' AND s.block_or_cassette_seq IS NULL))
		  AND s.slide_seq = $4`

	rows, err := r.db.Query(ctx, query, sp.AccessionID, sp.PartNo, sp.Block, sp.SlideSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to find samples for slide %s: %w", sp.SlideID, err)
	}
	defer rows.Close()

	var samples []*models.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// Update persists the routing bookkeeping of a sample
func (r *SampleRepository) Update(ctx context.Context, q db.Querier, s *models.Sample) error {
	query := `
		UPDATE sample
		SET current_step = NULLIF($2, ''),
		    previous_step = NULLIF($3, ''),
		    next_step = NULLIF($4, ''),
		    pending_action = NULLIF($5, ''),
		    custodial_department_id = $6,
		    custodial_user_id = $7,
		    avail_at = $8,
		    sample_status = NULLIF($9, ''),
		    accession_generated = $10,
		    num_of_blocks = $11,
		    num_of_slides = $12,
		    num_of_manualsmear_slides = $13,
		    num_of_thinprep_slides = $14
		WHERE sample_id = $1
	`

	_, err := q.Exec(ctx, query,
		s.SampleID,
		s.CurrentStep, s.PreviousStep, s.NextStep, s.PendingAction,
		s.CustodialDepartmentID, s.CustodialUserID, s.AvailAt,
		s.SampleStatus, s.AccessionGenerated,
		s.NumOfBlocks, s.NumOfSlides, s.NumOfManualSmearSlides, s.NumOfThinPrepSlides,
	)
	if err != nil {
		return fmt.Errorf("failed to update sample %d: %w", s.SampleID, err)
	}

	return nil
}

// TestMaps lists the test associations for a sample
func (r *SampleRepository) TestMaps(ctx context.Context, q db.Querier, sampleID int64) ([]models.SampleTestMap, error) {
	query := `
		SELECT stm.sample_id, stm.test_id, stm.workflow_id,
		       COALESCE(stm.test_status, ''), COALESCE(t.smear_process, '')
		FROM sample_test_map stm
		JOIN test t ON t.test_id = stm.test_id
		WHERE stm.sample_id = $1
	`

	rows, err := q.Query(ctx, query, sampleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list test maps for sample %d: %w", sampleID, err)
	}
	defer rows.Close()

	var maps []models.SampleTestMap
	for rows.Next() {
		var m models.SampleTestMap
		if err := rows.Scan(&m.SampleID, &m.TestID, &m.WorkflowID, &m.TestStatus, &m.SmearProcess); err != nil {
			return nil, fmt.Errorf("failed to scan test map: %w", err)
		}
		maps = append(maps, m)
	}

	return maps, rows.Err()
}
