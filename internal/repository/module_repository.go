package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teacher-training-api/internal/models"
)

const moduleColumns = `id, title, description, competency_area, difficulty_level, content_type, full_content, video_url,
       estimated_duration, target_clusters, completion_count, average_rating, created_at, updated_at`

// ModuleRepository manages the training module catalog.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs the repository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// List returns catalog modules ordered by competency and title.
func (r *ModuleRepository) List(ctx context.Context, filter models.ModuleFilter) ([]models.TrainingModule, error) {
	var conditions []string
	var args []interface{}
	if filter.CompetencyArea != "" {
		args = append(args, filter.CompetencyArea)
		conditions = append(conditions, fmt.Sprintf("competency_area = $%d", len(args)))
	}
	if filter.Difficulty != "" {
		args = append(args, filter.Difficulty)
		conditions = append(conditions, fmt.Sprintf("difficulty_level = $%d", len(args)))
	}
	if filter.Cluster != "" {
		args = append(args, filter.Cluster)
		conditions = append(conditions, fmt.Sprintf("($%d = ANY(target_clusters) OR '%s' = ANY(target_clusters))", len(args), models.AllClusters))
	}

	query := `SELECT ` + moduleColumns + ` FROM training_modules`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY competency_area, title"

	var modules []models.TrainingModule
	if err := r.db.SelectContext(ctx, &modules, query, args...); err != nil {
		return nil, fmt.Errorf("list training modules: %w", err)
	}
	return modules, nil
}

// GetByID returns a module by identifier.
func (r *ModuleRepository) GetByID(ctx context.Context, id string) (*models.TrainingModule, error) {
	query := `SELECT ` + moduleColumns + ` FROM training_modules WHERE id = $1`
	var module models.TrainingModule
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get training module: %w", err)
	}
	return &module, nil
}

// Create inserts a new module.
func (r *ModuleRepository) Create(ctx context.Context, module *models.TrainingModule) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	module.CreatedAt = now
	module.UpdatedAt = now

	const query = `INSERT INTO training_modules
	(id, title, description, competency_area, difficulty_level, content_type, full_content, video_url, estimated_duration,
	 target_clusters, completion_count, average_rating, created_at, updated_at)
	VALUES (:id, :title, :description, :competency_area, :difficulty_level, :content_type, :full_content, :video_url, :estimated_duration,
	 :target_clusters, :completion_count, :average_rating, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create training module: %w", err)
	}
	return nil
}

// Update replaces the editable fields of a module.
func (r *ModuleRepository) Update(ctx context.Context, module *models.TrainingModule) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE training_modules SET title = :title, description = :description, competency_area = :competency_area,
	difficulty_level = :difficulty_level, content_type = :content_type, full_content = :full_content, video_url = :video_url,
	estimated_duration = :estimated_duration, target_clusters = :target_clusters, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, module)
	if err != nil {
		return fmt.Errorf("update training module: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update training module rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a module.
func (r *ModuleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM training_modules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete training module: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete training module rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountAssignments returns how many assignments reference the module.
func (r *ModuleRepository) CountAssignments(ctx context.Context, id string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM training_assignments WHERE module_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count module assignments: %w", err)
	}
	return total, nil
}

const refreshStatsQuery = `UPDATE training_modules m SET
	completion_count = COALESCE(c.completed, 0),
	average_rating = COALESCE(f.avg_rating, 0),
	updated_at = $1
FROM training_modules t
LEFT JOIN (SELECT module_id, COUNT(*) AS completed FROM training_assignments WHERE status = 'completed' GROUP BY module_id) c
	ON c.module_id = t.id
LEFT JOIN (SELECT module_id, ROUND(AVG(rating)::numeric, 2) AS avg_rating FROM training_feedback GROUP BY module_id) f
	ON f.module_id = t.id
WHERE m.id = t.id`

// RefreshStats recomputes completion_count and average_rating from the ledger
// and feedback for one module and returns the stored values.
func (r *ModuleRepository) RefreshStats(ctx context.Context, id string) (*models.ModuleStats, error) {
	query := refreshStatsQuery + ` AND m.id = $2 RETURNING m.id AS module_id, m.completion_count, m.average_rating`
	var stats models.ModuleStats
	if err := r.db.GetContext(ctx, &stats, query, time.Now().UTC(), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("refresh module stats: %w", err)
	}
	return &stats, nil
}

// RefreshAllStats recomputes statistics for every module and returns the number updated.
func (r *ModuleRepository) RefreshAllStats(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, refreshStatsQuery, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("refresh all module stats: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("refresh all module stats rows affected: %w", err)
	}
	return affected, nil
}
