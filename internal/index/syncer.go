// internal/index/syncer.go
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"answer-gateway/internal/chat/poller"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/completion"
)

const (
	documentExt        = ".pdf"
	defaultConcurrency = 4
)

// API is the document index surface of the completion service.
type API interface {
	CreateIndex(ctx context.Context, name string) (string, error)
	ListFiles(ctx context.Context, indexID string) ([]completion.IndexFile, error)
	UploadFile(ctx context.Context, path string) (string, error)
	AttachFiles(ctx context.Context, indexID string, fileIDs []string) (*completion.FileBatch, error)
	GetFileBatch(ctx context.Context, indexID, batchID string) (*completion.FileBatch, error)
	RemoveFile(ctx context.Context, indexID, fileID string) error
	AttachIndexToAssistant(ctx context.Context, assistantID, indexID string) error
}

type Options struct {
	Force         bool
	DeleteRemoved bool
	// AssistantID, when set, is pointed at the index after the sync.
	AssistantID string
	Concurrency int
}

type Summary struct {
	IndexID      string
	Uploaded     int
	Skipped      []string
	Deleted      int
	DeleteFailed []string
	BatchStatus  string
}

type Syncer struct {
	api    API
	poller *poller.Poller
	logger logger.Logger
}

func NewSyncer(api API, p *poller.Poller, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Syncer{api: api, poller: p, logger: log}
}

// LocalDocuments returns the sorted names of the PDF files directly inside dir.
func LocalDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), documentExt) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no %s files in %s", documentExt, dir)
	}
	sort.Strings(names)
	return names, nil
}

// Create makes a new index named name and uploads every document in dir.
func (s *Syncer) Create(ctx context.Context, dir, name string, opts Options) (*Summary, error) {
	local, err := LocalDocuments(dir)
	if err != nil {
		return nil, err
	}

	indexID, err := s.api.CreateIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	s.logger.Info("index created", map[string]interface{}{"indexId": indexID, "name": name})

	return s.apply(ctx, dir, indexID, SyncPlan{Upload: local}, opts)
}

// Run brings indexID in line with the documents in dir.
func (s *Syncer) Run(ctx context.Context, dir, indexID string, opts Options) (*Summary, error) {
	local, err := LocalDocuments(dir)
	if err != nil {
		return nil, err
	}

	remoteFiles, err := s.api.ListFiles(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("list index files: %w", err)
	}

	plan := Plan(local, RemoteIndex(remoteFiles), opts.Force, opts.DeleteRemoved)
	s.logger.Info("sync planned", map[string]interface{}{
		"indexId": indexID,
		"local":   len(local),
		"remote":  len(remoteFiles),
		"upload":  len(plan.Upload),
		"skip":    len(plan.Skip),
		"delete":  len(plan.Delete),
	})

	return s.apply(ctx, dir, indexID, plan, opts)
}

func (s *Syncer) apply(ctx context.Context, dir, indexID string, plan SyncPlan, opts Options) (*Summary, error) {
	summary := &Summary{IndexID: indexID, Skipped: plan.Skip}

	if len(plan.Upload) > 0 {
		fileIDs, err := s.upload(ctx, dir, plan.Upload, opts.Concurrency)
		if err != nil {
			return summary, err
		}

		batch, err := s.attach(ctx, indexID, fileIDs)
		if batch != nil {
			summary.Uploaded = batch.FileCounts.Completed
			summary.BatchStatus = batch.Status
		}
		if err != nil {
			return summary, fmt.Errorf("attach files: %w", err)
		}
	}

	for _, f := range plan.Delete {
		if err := s.api.RemoveFile(ctx, indexID, f.ID); err != nil {
			s.logger.Warn("could not remove file from index", map[string]interface{}{
				"fileId":   f.ID,
				"filename": f.Filename,
				"error":    err.Error(),
			})
			summary.DeleteFailed = append(summary.DeleteFailed, f.Filename)
			continue
		}
		summary.Deleted++
	}

	if opts.AssistantID != "" {
		if err := s.api.AttachIndexToAssistant(ctx, opts.AssistantID, indexID); err != nil {
			return summary, fmt.Errorf("attach index to assistant: %w", err)
		}
		s.logger.Info("assistant updated", map[string]interface{}{"assistantId": opts.AssistantID, "indexId": indexID})
	}

	return summary, nil
}

// upload sends files with bounded concurrency. The returned ids keep the
// order of names.
func (s *Syncer) upload(ctx context.Context, dir string, names []string, concurrency int) ([]string, error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	ids := make([]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			id, err := s.api.UploadFile(gctx, filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("upload %s: %w", name, err)
			}
			s.logger.Debug("file uploaded", map[string]interface{}{"filename": name, "fileId": id})
			ids[i] = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// attach starts a file batch and polls it to a terminal state.
func (s *Syncer) attach(ctx context.Context, indexID string, fileIDs []string) (*completion.FileBatch, error) {
	submit := func(ctx context.Context) (*poller.Job, error) {
		batch, err := s.api.AttachFiles(ctx, indexID, fileIDs)
		if err != nil {
			return nil, err
		}
		return batchJob(indexID, batch), nil
	}
	status := func(ctx context.Context, job *poller.Job) (*poller.Job, error) {
		batch, err := s.api.GetFileBatch(ctx, job.Scope, job.ID)
		if err != nil {
			return nil, err
		}
		return batchJob(indexID, batch), nil
	}

	job, err := s.poller.Await(ctx, submit, status)
	var batch *completion.FileBatch
	if job != nil {
		batch, _ = job.Result.(*completion.FileBatch)
	}
	if err != nil && apperrors.AsStandardError(err).Code == apperrors.ErrCodePollTimeout {
		s.logger.Warn("file batch still processing, the index will finish it remotely", map[string]interface{}{
			"indexId": indexID,
			"batchId": job.ID,
		})
	}
	return batch, err
}

func batchJob(indexID string, batch *completion.FileBatch) *poller.Job {
	return &poller.Job{
		ID:     batch.ID,
		Scope:  indexID,
		Status: batchStatus(batch.Status),
		Result: batch,
	}
}

func batchStatus(s string) poller.Status {
	switch s {
	case "completed":
		return poller.StatusCompleted
	case "failed":
		return poller.StatusFailed
	case "cancelled", "cancelling":
		return poller.StatusCancelled
	default:
		return poller.StatusRunning
	}
}
