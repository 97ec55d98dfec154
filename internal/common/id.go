package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewJobID generates a unique generation job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewTaskID generates a unique queue task ID with the "task_" prefix
func NewTaskID() string {
	return "task_" + uuid.New().String()
}
