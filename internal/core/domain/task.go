package domain

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

type Task struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	DocumentID  string         `json:"document_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    TaskPriority   `json:"priority"`
	Status      TaskStatus     `json:"status"`
	DueAt       *time.Time     `json:"due_at,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RiskAlert summarizes high-risk findings for a processed document.
type RiskAlert struct {
	DocumentID    string    `json:"document_id"`
	OwnerID       string    `json:"owner_id"`
	FormType      string    `json:"form_type"`
	FormNumber    string    `json:"form_number"`
	HighRiskCount int       `json:"high_risk_count"`
	CreatedAt     time.Time `json:"created_at"`
}
