// Package batch executes heterogeneous mutation batches against the store,
// either atomically inside one storage transaction or best-effort with
// per-operation error reporting.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/locaidev/locai/internal/config"
	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/metrics"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/store"
)

// OpKind names a batch operation variant.
type OpKind string

const (
	OpCreateMemory       OpKind = "create_memory"
	OpUpdateMemory       OpKind = "update_memory"
	OpDeleteMemory       OpKind = "delete_memory"
	OpCreateRelationship OpKind = "create_relationship"
	OpUpdateRelationship OpKind = "update_relationship"
	OpDeleteRelationship OpKind = "delete_relationship"
	OpUpdateMetadata     OpKind = "update_metadata"
)

// MetadataPatch is a partial metadata update applied to an existing memory.
// Nil and empty fields are left untouched.
type MetadataPatch struct {
	AddTags          []string         `json:"add_tags,omitempty"`
	RemoveTags       []string         `json:"remove_tags,omitempty"`
	Priority         *models.Priority `json:"priority,omitempty"`
	SetProperties    map[string]any   `json:"set_properties,omitempty"`
	RemoveProperties []string         `json:"remove_properties,omitempty"`
}

// Operation is one entry in a batch. Exactly one payload field is consulted,
// selected by Kind; ID addresses the target for deletes and metadata patches.
type Operation struct {
	Kind         OpKind               `json:"kind"`
	Memory       *models.Memory       `json:"memory,omitempty"`
	Relationship *models.Relationship `json:"relationship,omitempty"`
	ID           string               `json:"id,omitempty"`
	Metadata     *MetadataPatch       `json:"metadata,omitempty"`
}

// Options controls batch execution mode.
type Options struct {
	// Transactional runs the whole batch in one storage transaction; any
	// failure rolls back every operation.
	Transactional bool `json:"transactional"`
	// ContinueOnError keeps a non-transactional batch going past failures.
	// Ignored when Transactional is set.
	ContinueOnError bool `json:"continue_on_error"`
}

// ResultStatus describes the outcome of one operation.
type ResultStatus string

const (
	StatusApplied    ResultStatus = "applied"
	StatusFailed     ResultStatus = "failed"
	StatusRolledBack ResultStatus = "rolled_back"
	StatusSkipped    ResultStatus = "skipped"
)

// Result reports the outcome of the operation at the same index in the
// request. CreatedID is set for creates that were applied, including ids the
// executor assigned.
type Result struct {
	Index     int          `json:"index"`
	Kind      OpKind       `json:"kind"`
	Status    ResultStatus `json:"status"`
	CreatedID string       `json:"created_id,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorKind errs.Kind    `json:"error_kind,omitempty"`
}

// Response summarizes a batch execution.
type Response struct {
	Results       []Result `json:"results"`
	Completed     int      `json:"completed"`
	Failed        int      `json:"failed"`
	Transactional bool     `json:"transactional"`
	TransactionID string   `json:"transaction_id,omitempty"`
	Reason        string   `json:"reason,omitempty"` // set when a transactional batch rolls back
}

// Executor applies batches of operations. ExpandRelationship, when set, maps
// each relationship create to the full set of records to write; the engine
// uses it to add enforced symmetric mirrors inside the same transaction.
type Executor struct {
	store              store.Store
	maxBatchSize       int
	expandRelationship func(models.Relationship) []models.Relationship
	logger             *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxBatchSize overrides the batch size limit.
func WithMaxBatchSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxBatchSize = n
		}
	}
}

// WithRelationshipExpander installs the create-relationship expander.
func WithRelationshipExpander(fn func(models.Relationship) []models.Relationship) Option {
	return func(e *Executor) { e.expandRelationship = fn }
}

// NewExecutor creates a batch executor over the given store.
func NewExecutor(st store.Store, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		store:        st,
		maxBatchSize: config.DefaultMaxBatchSize,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxBatchSize returns the configured limit.
func (e *Executor) MaxBatchSize() int { return e.maxBatchSize }

// Execute runs the batch. Over-limit batches are rejected whole with a
// batch_too_large error before any operation runs.
func (e *Executor) Execute(ctx context.Context, ops []Operation, opts Options) (*Response, error) {
	if len(ops) > e.maxBatchSize {
		return nil, errs.E(errs.KindBatchTooLarge,
			"batch of %d operations exceeds limit of %d", len(ops), e.maxBatchSize).
			WithHint(fmt.Sprintf("%d", e.maxBatchSize))
	}

	resp := &Response{
		Results:       make([]Result, len(ops)),
		Transactional: opts.Transactional,
	}
	for i, op := range ops {
		resp.Results[i] = Result{Index: i, Kind: op.Kind, Status: StatusSkipped}
	}
	if len(ops) == 0 {
		return resp, nil
	}

	metrics.Inc(metrics.BatchesExecuted)

	if opts.Transactional {
		e.executeTransactional(ctx, ops, resp)
	} else {
		e.executeSequential(ctx, ops, opts.ContinueOnError, resp)
	}

	e.logger.Info("batch executed",
		"operations", len(ops),
		"completed", resp.Completed,
		"failed", resp.Failed,
		"transactional", opts.Transactional)
	return resp, nil
}

// errBatchAborted signals ExecTx to roll back after an operation failure that
// was already recorded in the response.
var errBatchAborted = fmt.Errorf("batch aborted")

func (e *Executor) executeTransactional(ctx context.Context, ops []Operation, resp *Response) {
	resp.TransactionID = uuid.NewString()

	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		for i := range ops {
			createdID, opErr := e.applyOp(ctx, tx, &ops[i])
			if opErr != nil {
				resp.Results[i].Status = StatusFailed
				resp.Results[i].Error = opErr.Error()
				resp.Results[i].ErrorKind = errs.KindOf(opErr)
				return errBatchAborted
			}
			resp.Results[i].Status = StatusApplied
			resp.Results[i].CreatedID = createdID
		}
		return nil
	})

	if err == nil {
		for i := range resp.Results {
			if resp.Results[i].Status == StatusApplied {
				resp.Completed++
			}
		}
		return
	}

	// Rolled back: nothing completed. Operations that had applied inside the
	// transaction are reported rolled_back, the failing one keeps its error,
	// and later ones stay skipped.
	resp.Completed = 0
	resp.Failed = 1
	for i := range resp.Results {
		switch resp.Results[i].Status {
		case StatusApplied:
			resp.Results[i].Status = StatusRolledBack
			resp.Results[i].CreatedID = ""
		case StatusFailed:
			resp.Reason = fmt.Sprintf("transaction rolled back: operation %d failed: %s",
				resp.Results[i].Index, resp.Results[i].Error)
		}
	}
	if resp.Reason == "" {
		resp.Reason = "transaction rolled back: " + err.Error()
	}
	if err != errBatchAborted {
		// The transaction itself failed (e.g. cancellation at commit).
		resp.Failed = 0
		for i := range resp.Results {
			if resp.Results[i].Status == StatusFailed {
				resp.Failed++
			} else {
				resp.Results[i].Status = StatusSkipped
				resp.Results[i].Error = err.Error()
				resp.Results[i].ErrorKind = errs.KindOf(err)
			}
		}
	}
}

func (e *Executor) executeSequential(ctx context.Context, ops []Operation, continueOnError bool, resp *Response) {
	for i := range ops {
		createdID, opErr := e.applyOp(ctx, e.store, &ops[i])
		if opErr != nil {
			resp.Results[i].Status = StatusFailed
			resp.Results[i].Error = opErr.Error()
			resp.Results[i].ErrorKind = errs.KindOf(opErr)
			resp.Failed++
			if !continueOnError {
				return
			}
			continue
		}
		resp.Results[i].Status = StatusApplied
		resp.Results[i].CreatedID = createdID
		resp.Completed++
	}
}

// applyOp executes one operation against tx and returns the created id, if
// any. Validation failures surface before any write.
func (e *Executor) applyOp(ctx context.Context, tx store.Tx, op *Operation) (string, error) {
	switch op.Kind {
	case OpCreateMemory:
		if op.Memory == nil {
			return "", errs.E(errs.KindValidation, "create_memory requires a memory payload")
		}
		m := op.Memory.Clone()
		if m.Content == "" {
			return "", errs.E(errs.KindValidation, "memory content must not be empty").WithHint("content")
		}
		if !m.MemoryType.IsValid() {
			return "", errs.E(errs.KindValidation, "memory type must not be empty").WithHint("memory_type")
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		m.NormalizeTags()
		if err := tx.CreateMemory(ctx, m); err != nil {
			return "", err
		}
		return m.ID, nil

	case OpUpdateMemory:
		if op.Memory == nil || op.Memory.ID == "" {
			return "", errs.E(errs.KindValidation, "update_memory requires a memory payload with an id")
		}
		m := op.Memory.Clone()
		m.NormalizeTags()
		return "", tx.UpdateMemory(ctx, m)

	case OpDeleteMemory:
		if op.ID == "" {
			return "", errs.E(errs.KindValidation, "delete_memory requires an id").WithHint("id")
		}
		return "", tx.DeleteMemory(ctx, op.ID)

	case OpCreateRelationship:
		if op.Relationship == nil {
			return "", errs.E(errs.KindValidation, "create_relationship requires a relationship payload")
		}
		r := op.Relationship.Clone()
		if r.SourceID == "" || r.TargetID == "" || r.RelationshipType == "" {
			return "", errs.E(errs.KindValidation,
				"relationship requires source_id, target_id and relationship_type")
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		records := []models.Relationship{r}
		if e.expandRelationship != nil {
			records = e.expandRelationship(r)
		}
		for _, rec := range records {
			if err := tx.CreateRelationship(ctx, rec); err != nil {
				return "", err
			}
		}
		return r.ID, nil

	case OpUpdateRelationship:
		if op.Relationship == nil || op.Relationship.ID == "" {
			return "", errs.E(errs.KindValidation, "update_relationship requires a relationship payload with an id")
		}
		r := op.Relationship.Clone()
		r.UpdatedAt = time.Now().UTC()
		return "", tx.UpdateRelationship(ctx, r)

	case OpDeleteRelationship:
		if op.ID == "" {
			return "", errs.E(errs.KindValidation, "delete_relationship requires an id").WithHint("id")
		}
		return "", tx.DeleteRelationship(ctx, op.ID)

	case OpUpdateMetadata:
		if op.ID == "" {
			return "", errs.E(errs.KindValidation, "update_metadata requires an id").WithHint("id")
		}
		if op.Metadata == nil {
			return "", errs.E(errs.KindValidation, "update_metadata requires a metadata patch")
		}
		m, err := tx.GetMemory(ctx, op.ID)
		if err != nil {
			return "", err
		}
		applyMetadataPatch(m, op.Metadata)
		return "", tx.UpdateMemory(ctx, *m)

	default:
		return "", errs.E(errs.KindValidation, "unknown batch operation kind %q", op.Kind).WithHint(string(op.Kind))
	}
}

func applyMetadataPatch(m *models.Memory, p *MetadataPatch) {
	if len(p.AddTags) > 0 {
		m.Tags = append(m.Tags, p.AddTags...)
	}
	if len(p.RemoveTags) > 0 {
		drop := make(map[string]struct{}, len(p.RemoveTags))
		for _, t := range p.RemoveTags {
			drop[t] = struct{}{}
		}
		kept := m.Tags[:0]
		for _, t := range m.Tags {
			if _, ok := drop[t]; !ok {
				kept = append(kept, t)
			}
		}
		m.Tags = kept
	}
	m.NormalizeTags()

	if p.Priority != nil {
		m.Priority = *p.Priority
	}
	if len(p.SetProperties) > 0 {
		if m.Properties == nil {
			m.Properties = make(map[string]any, len(p.SetProperties))
		}
		for k, v := range p.SetProperties {
			m.Properties[k] = v
		}
	}
	for _, k := range p.RemoveProperties {
		delete(m.Properties, k)
	}
}
