// internal/completion/models.go
package completion

import "answer-gateway/internal/models"

// RawResponse is an undecoded completion payload. Its shape differs between
// the synchronous endpoint and job messages; the normalizer handles both.
type RawResponse map[string]interface{}

// ResponseRequest is one synchronous completion call. Grounding is requested
// when IndexID is non-empty.
type ResponseRequest struct {
	Model        string
	Instructions string
	History      []models.Turn
	Question     string
	Temperature  *float64 // nil leaves the service default
	IndexID      string
}

// RunRequest creates a conversation and enqueues a run against an assistant.
type RunRequest struct {
	AssistantID  string
	Model        string
	Instructions string
	History      []models.Turn
	Question     string
	Temperature  *float64 // nil leaves the service default
	IndexID      string
}

// Run is the remote job state for job-based answers.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    string    `json:"status"`
	LastError *apiError `json:"last_error,omitempty"`
}

// IndexFile is a document attached to a document index.
type IndexFile struct {
	ID       string
	Filename string
}

// FileBatch is an asynchronous attach operation on a document index.
type FileBatch struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	FileCounts struct {
		InProgress int `json:"in_progress"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
		Cancelled  int `json:"cancelled"`
		Total      int `json:"total"`
	} `json:"file_counts"`
}

type fileObject struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

type indexObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type indexFileList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

type messageList struct {
	Data []map[string]interface{} `json:"data"`
}
