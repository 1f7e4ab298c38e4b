package repository

import (
	"context"
	"fmt"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/hl7"
)

// StainingRepository updates staining lifecycle status on IHC workflow
// records matched by slide identity.
type StainingRepository struct {
	db *db.DB
}

// NewStainingRepository creates a new staining repository
func NewStainingRepository(database *db.DB) *StainingRepository {
	return &StainingRepository{db: database}
}

// UpdateStatusBySlide sets the staining status of the IHC workflow rows
// matching a decomposed slide identity. Returns the number of rows touched;
// zero matches is not an error.
func (r *StainingRepository) UpdateStatusBySlide(ctx context.Context, sp hl7.SlideParts, status string) (int64, error) {
	query := `
		UPDATE ihc_workflow
		SET staining_status = $5
		WHERE accession_id = $1
		  AND part_no = $2
		  AND (block_or_cassette_seq = $3 OR ($3 = '' AND block_or_cassette_seq IS NULL))
		  AND slide_seq = $4
	`

	tag, err := r.db.Exec(ctx, query, sp.AccessionID, sp.PartNo, sp.Block, sp.SlideSeq, status)
	if err != nil {
		return 0, fmt.Errorf("failed to update staining status for slide %s: %w", sp.SlideID, err)
	}

	return tag.RowsAffected(), nil
}
