package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/models"
	"github.com/anatraz/limsbridge/common/redis"
)

// TestStepKey scopes a test-workflow-step lookup
type TestStepKey struct {
	SampleTypeID    int64
	ContainerTypeID int64
	TestID          int64
	WorkflowID      int64
}

// WorkflowStepRepository resolves ordered step sequences. Step definitions
// are admin configuration and read-mostly, so resolved sequences are cached
// in Redis with a short TTL when a client is available.
type WorkflowStepRepository struct {
	db       *db.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewWorkflowStepRepository creates a new workflow step repository. The cache
// client may be nil, in which case every lookup hits the database.
func NewWorkflowStepRepository(database *db.DB, cache *redis.Client, cacheTTL time.Duration) *WorkflowStepRepository {
	return &WorkflowStepRepository{db: database, cache: cache, cacheTTL: cacheTTL}
}

// StepsForWorkflow lists the ordered step sequence of a workflow filtered by
// workflow type.
func (r *WorkflowStepRepository) StepsForWorkflow(ctx context.Context, workflowID int64, wt models.WorkflowType) ([]models.ResolvedStep, error) {
	cacheKey := fmt.Sprintf("steps:wf:%d:%s", workflowID, wt)
	if steps, ok := r.cached(ctx, cacheKey); ok {
		return steps, nil
	}

	query := `
		SELECT workflow_step_id, workflow_id, step_id, step_no, department
		FROM workflow_step
		WHERE workflow_id = $1 AND workflow_type = $2
		ORDER BY step_no ASC
	`

	rows, err := r.db.Query(ctx, query, workflowID, wt)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []models.ResolvedStep
	for rows.Next() {
		var s models.ResolvedStep
		if err := rows.Scan(&s.WorkflowStepID, &s.WorkflowID, &s.StepID, &s.StepNo, &s.Department); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.store(ctx, cacheKey, steps)
	return steps, nil
}

// StepsForTest lists the ordered step sequence resolved through the
// test-scoped mapping, used when a unit has no effective workflow.
func (r *WorkflowStepRepository) StepsForTest(ctx context.Context, key TestStepKey, wt models.WorkflowType) ([]models.ResolvedStep, error) {
	cacheKey := fmt.Sprintf("steps:test:%d:%d:%d:%d:%s",
		key.SampleTypeID, key.ContainerTypeID, key.TestID, key.WorkflowID, wt)
	if steps, ok := r.cached(ctx, cacheKey); ok {
		return steps, nil
	}

	query := `
		SELECT tws.test_workflow_step_id,
		       ws.workflow_step_id, ws.workflow_id, ws.step_id, ws.step_no, ws.department
		FROM test_workflow_step tws
		JOIN workflow_step ws ON ws.workflow_step_id = tws.workflow_step_id
		WHERE tws.sample_type_id = $1
		  AND tws.container_type_id = $2
		  AND tws.test_id = $3
		  AND tws.workflow_id = $4
		  AND ws.workflow_id = $4
		  AND ws.workflow_type = $5
		ORDER BY ws.step_no ASC
	`

	rows, err := r.db.Query(ctx, query,
		key.SampleTypeID, key.ContainerTypeID, key.TestID, key.WorkflowID, wt)
	if err != nil {
		return nil, fmt.Errorf("failed to list test workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []models.ResolvedStep
	for rows.Next() {
		var s models.ResolvedStep
		var testStepID int64
		if err := rows.Scan(&testStepID, &s.WorkflowStepID, &s.WorkflowID, &s.StepID, &s.StepNo, &s.Department); err != nil {
			return nil, fmt.Errorf("failed to scan test workflow step: %w", err)
		}
		s.TestWorkflowStepID = &testStepID
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.store(ctx, cacheKey, steps)
	return steps, nil
}

func (r *WorkflowStepRepository) cached(ctx context.Context, key string) ([]models.ResolvedStep, bool) {
	if r.cache == nil {
		return nil, false
	}

	val, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var steps []models.ResolvedStep
	if err := json.Unmarshal([]byte(val), &steps); err != nil {
		return nil, false
	}
	return steps, true
}

func (r *WorkflowStepRepository) store(ctx context.Context, key string, steps []models.ResolvedStep) {
	if r.cache == nil || len(steps) == 0 {
		return
	}

	data, err := json.Marshal(steps)
	if err != nil {
		return
	}
	// Cache failures only cost a database round-trip next time
	_ = r.cache.SetWithExpiry(ctx, key, string(data), r.cacheTTL)
}
