package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/models"
)

// AccessionRepository reads accession demographics for outbound orders
type AccessionRepository struct {
	db *db.DB
}

// NewAccessionRepository creates a new accession repository
func NewAccessionRepository(database *db.DB) *AccessionRepository {
	return &AccessionRepository{db: database}
}

// GetByID loads an accession with its patient and physician names. A missing
// accession returns nil; callers degrade rather than fail.
func (r *AccessionRepository) GetByID(ctx context.Context, accessionID string) (*models.Accession, error) {
	query := `
		SELECT a.accession_id,
		       COALESCE(p.mrn, ''), COALESCE(p.first_name, ''), COALESCE(p.last_name, ''),
		       ref.first_name, ref.last_name,
		       rep.first_name, rep.last_name
		FROM accession a
		JOIN patient p ON p.patient_id = a.patient_id
		LEFT JOIN doctor ref ON ref.doctor_id = a.doctor_id
		LEFT JOIN doctor rep ON rep.doctor_id = a.reporting_doctor_id
		WHERE a.accession_id = $1
	`

	acc := &models.Accession{}
	var refFirst, refLast, repFirst, repLast *string

	err := r.db.QueryRow(ctx, query, accessionID).Scan(
		&acc.AccessionID,
		&acc.Patient.MRN, &acc.Patient.FirstName, &acc.Patient.LastName,
		&refFirst, &refLast,
		&repFirst, &repLast,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accession %s: %w", accessionID, err)
	}

	if refFirst != nil || refLast != nil {
		acc.ReferringDoctor = &models.Doctor{FirstName: deref(refFirst), LastName: deref(refLast)}
	}
	if repFirst != nil || repLast != nil {
		acc.ReportingDoctor = &models.Doctor{FirstName: deref(repFirst), LastName: deref(repLast)}
	}

	return acc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
