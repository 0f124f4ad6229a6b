package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	metadata, err := marshalJSONB(task.Metadata)
	if err != nil {
		return fmt.Errorf("marshal task metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO tasks (id, owner_id, document_id, title, description, priority, status, due_at, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, task.ID, task.OwnerID, nullableString(task.DocumentID), task.Title, task.Description, string(task.Priority),
		string(task.Status), task.DueAt, metadata, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListTasksByDocument(ctx context.Context, documentID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, document_id, title, description, priority, status, due_at, metadata, created_at, updated_at
FROM tasks
WHERE document_id = $1
ORDER BY created_at ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func scanTask(row rowScanner) (domain.Task, error) {
	var task domain.Task
	var documentID sql.NullString
	var priority, status string
	var metadataRaw []byte
	err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&documentID,
		&task.Title,
		&task.Description,
		&priority,
		&status,
		&task.DueAt,
		&metadataRaw,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("scan task: %w", err)
	}
	metadata, err := unmarshalMetadata(metadataRaw)
	if err != nil {
		return domain.Task{}, fmt.Errorf("unmarshal task metadata: %w", err)
	}
	task.DocumentID = documentID.String
	task.Priority = domain.TaskPriority(priority)
	task.Status = domain.TaskStatus(status)
	task.Metadata = metadata
	return task, nil
}
