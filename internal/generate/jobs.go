// Package generate writes new reports in the background: reference files
// are extracted, each requested section is drafted by the model, and the
// result is stored as version 1 of a new report.
package generate

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusWriting    JobStatus = "writing"
	StatusBuilding   JobStatus = "building"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// ErrInvalidRequest wraps every Request validation failure.
var ErrInvalidRequest = errors.New("invalid report request")

// SectionSpec is one section the caller wants written.
type SectionSpec struct {
	Title        string `json:"title"`
	Instructions string `json:"instructions,omitempty"`
}

// Upload is a reference file supplied with the request.
type Upload struct {
	Name string
	Data []byte
}

// Request describes a report to generate.
type Request struct {
	Title    string
	Sections []SectionSpec
	Uploads  []Upload
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if len(r.Sections) == 0 {
		return fmt.Errorf("%w: at least one section is required", ErrInvalidRequest)
	}
	for i, s := range r.Sections {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%w: section %d has no title", ErrInvalidRequest, i+1)
		}
	}
	return nil
}

// Job tracks one report generation.
type Job struct {
	mu sync.Mutex

	ID    string
	Title string

	Status   JobStatus
	Phase    string
	Progress Progress
	ReportID int64

	CreatedAt time.Time
	UpdatedAt time.Time

	req    Request
	errors []string
}

type Progress struct {
	Sources         int      `json:"sources"`
	Chunks          int      `json:"chunks"`
	TotalSections   int      `json:"total_sections"`
	SectionsWritten int      `json:"sections_written"`
	Errors          []string `json:"errors"`
}

// NewJob validates req and returns a queued job for it.
func NewJob(req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{TotalSections: len(req.Sections)},
		CreatedAt: now,
		UpdatedAt: now,
		req:       req,
	}, nil
}

// JobStore is an in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

func (j *Job) SetSources(sources, chunks int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Sources = sources
	j.Progress.Chunks = chunks
	j.UpdatedAt = time.Now()
}

func (j *Job) IncrSectionsWritten() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SectionsWritten++
	j.UpdatedAt = time.Now()
}

func (j *Job) SetReport(id int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ReportID = id
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Title     string    `json:"title"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	ReportID  int64     `json:"report_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.errors...)
	return JobSnapshot{
		ID:        j.ID,
		Title:     j.Title,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		ReportID:  j.ReportID,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex is the hex SHA-256 of data. Uploads with the same hash
// are extracted once.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
