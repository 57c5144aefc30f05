package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/queue"
	"github.com/contractflow/proposals_backend/utils"
	"github.com/contractflow/proposals_backend/workflow"
)

var testDBOnce sync.Once

func testDB(t *testing.T) {
	t.Helper()
	testDBOnce.Do(func() {
		os.Setenv("DB_DRIVER", "sqlite")
		os.Setenv("DB_NAME", "file::memory:?cache=shared")
		config.ConnectDatabaseWithRetry()
		models.MigrateTable()
	})
}

func seedDocumentWithUser(t *testing.T) (context.Context, *models.Document) {
	t.Helper()
	testDB(t)

	db := config.GetDB()
	org := models.Organization{ID: uuid.NewString(), Name: "org-" + uuid.NewString()[:8]}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("seeding organization: %v", err)
	}
	user := models.User{
		ID:             uuid.NewString(),
		OrganizationId: org.ID,
		Name:           "Author",
		Email:          fmt.Sprintf("author-%s@example.com", uuid.NewString()[:8]),
		Role:           models.UserRoleMember,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	ctx := context.Background()
	ctx = utils.SetOrganizationIdInContext(ctx, org.ID)
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)

	document, err := models.CreateDocument(ctx, &models.NewDocument{
		Title: "Consulting Proposal",
		Type:  string(models.DocumentTypeProposal),
	})
	if err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	return ctx, document
}

type failingGenerator struct {
	failures int
	calls    int
}

func (g *failingGenerator) Generate(ctx context.Context, document *models.Document) (*workflow.GeneratedSection, error) {
	g.calls++
	if g.calls <= g.failures {
		return nil, errors.New("model endpoint unavailable")
	}
	return &workflow.GeneratedSection{Heading: "Draft", Body: "generated"}, nil
}

func TestEnqueueAndProcessDraftEndToEnd(t *testing.T) {
	ctx, document := seedDocumentWithUser(t)
	broker := queue.NewMemoryBroker()

	job, err := workflow.EnqueueDraft(ctx, broker, document.ID)
	if err != nil {
		t.Fatalf("EnqueueDraft: %v", err)
	}
	if job.Status != models.DraftJobStatusQueued {
		t.Fatalf("job status = %s, want QUEUED", job.Status)
	}

	queued, err := models.GetDocument(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if queued.GenerationStatus != models.GenerationStatusQueued {
		t.Fatalf("generationStatus = %s, want QUEUED", queued.GenerationStatus)
	}

	// Consume exactly the one message, then stop.
	consumeCtx, cancel := context.WithCancel(context.Background())
	processed := make(chan struct{})
	handler := queue.WithRetry(func(hctx context.Context, msg queue.Message) error {
		defer close(processed)
		return workflow.ProcessDraftMessage(hctx, workflow.StubDraftGenerator{}, msg)
	}, func(hctx context.Context, msg queue.Message, lastErr error) {
		workflow.FinalizeDraftFailure(hctx, msg, lastErr)
	})
	go broker.Consume(consumeCtx, workflow.DraftTopic, handler)

	select {
	case <-processed:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the worker")
	}
	cancel()

	succeeded, err := models.GetDocument(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if succeeded.GenerationStatus != models.GenerationStatusSucceeded {
		t.Fatalf("generationStatus = %s, want SUCCEEDED", succeeded.GenerationStatus)
	}
	if succeeded.Version != document.Version+1 {
		t.Fatalf("version = %d, want exactly +1 (%d)", succeeded.Version, document.Version+1)
	}
	if len(succeeded.Sections) != 1 || succeeded.Sections[0].Order != 1 {
		t.Fatalf("sections = %d (first order %v), want exactly one at order 1",
			len(succeeded.Sections), succeeded.Sections)
	}
	if succeeded.Status != models.DocumentStatusReview {
		t.Fatalf("status = %s, want REVIEW", succeeded.Status)
	}

	doneJob, err := models.GetDraftJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetDraftJob: %v", err)
	}
	if doneJob.Status != models.DraftJobStatusSucceeded {
		t.Fatalf("job status = %s, want SUCCEEDED", doneJob.Status)
	}

	action := models.AuditActionDraftSucceeded
	_, total, err := models.ListAuditEvents(ctx, models.AuditEventFilter{Action: &action}, models.PageRequest{})
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	if total != 1 {
		t.Fatalf("DRAFT_SUCCEEDED events = %d, want 1", total)
	}
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	ctx, document := seedDocumentWithUser(t)

	job, err := models.CreateDraftJob(ctx, document.ID)
	if err != nil {
		t.Fatalf("CreateDraftJob: %v", err)
	}

	payload, _ := utils.MarshalToJSON(workflow.DraftMessage{
		DraftJobId:     job.ID,
		DocumentId:     document.ID,
		OrganizationId: document.OrganizationId,
	})
	msg := queue.Message{
		Payload: []byte(payload),
		Policy:  queue.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}

	generator := &failingGenerator{failures: 2}
	handler := queue.WithRetry(func(hctx context.Context, m queue.Message) error {
		return workflow.ProcessDraftMessage(hctx, generator, m)
	}, func(hctx context.Context, m queue.Message, lastErr error) {
		t.Error("exhaustion must not fire when a later attempt succeeds")
	})

	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if generator.calls != 3 {
		t.Fatalf("generator called %d times, want 3", generator.calls)
	}

	doneJob, err := models.GetDraftJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetDraftJob: %v", err)
	}
	if doneJob.Status != models.DraftJobStatusSucceeded {
		t.Fatalf("job status = %s, want SUCCEEDED after retried attempts", doneJob.Status)
	}
	// Broker-level retries never touch the manual retry counter.
	if doneJob.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", doneJob.Attempts)
	}
}

func TestExhaustionWritesTerminalFailure(t *testing.T) {
	ctx, document := seedDocumentWithUser(t)

	job, err := models.CreateDraftJob(ctx, document.ID)
	if err != nil {
		t.Fatalf("CreateDraftJob: %v", err)
	}

	payload, _ := utils.MarshalToJSON(workflow.DraftMessage{
		DraftJobId:     job.ID,
		DocumentId:     document.ID,
		OrganizationId: document.OrganizationId,
	})
	msg := queue.Message{
		Payload: []byte(payload),
		Policy:  queue.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}

	generator := &failingGenerator{failures: 100}
	handler := queue.WithRetry(func(hctx context.Context, m queue.Message) error {
		return workflow.ProcessDraftMessage(hctx, generator, m)
	}, func(hctx context.Context, m queue.Message, lastErr error) {
		workflow.FinalizeDraftFailure(hctx, m, lastErr)
	})

	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}

	failedJob, err := models.GetDraftJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetDraftJob: %v", err)
	}
	if failedJob.Status != models.DraftJobStatusFailed {
		t.Fatalf("job status = %s, want FAILED", failedJob.Status)
	}
	if failedJob.LastError == nil {
		t.Fatal("lastError must carry the failure reason")
	}

	failedDoc, err := models.GetDocument(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if failedDoc.GenerationStatus != models.GenerationStatusFailed {
		t.Fatalf("generationStatus = %s, want FAILED", failedDoc.GenerationStatus)
	}
	// A failed run leaves the document content untouched.
	if failedDoc.Version != document.Version || len(failedDoc.Sections) != 0 {
		t.Fatalf("failed run mutated the document: version %d, %d sections",
			failedDoc.Version, len(failedDoc.Sections))
	}

	action := models.AuditActionDraftFailed
	_, total, err := models.ListAuditEvents(ctx, models.AuditEventFilter{Action: &action, TargetId: &job.ID}, models.PageRequest{})
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	if total != 1 {
		t.Fatalf("DRAFT_FAILED events = %d, want exactly 1", total)
	}
}

func TestGenerationTimeoutReason(t *testing.T) {
	t.Setenv("DRAFT_GENERATION_TIMEOUT_SECONDS", "1")

	ctx, document := seedDocumentWithUser(t)
	job, err := models.CreateDraftJob(ctx, document.ID)
	if err != nil {
		t.Fatalf("CreateDraftJob: %v", err)
	}

	payload, _ := utils.MarshalToJSON(workflow.DraftMessage{
		DraftJobId:     job.ID,
		DocumentId:     document.ID,
		OrganizationId: document.OrganizationId,
	})
	msg := queue.Message{Payload: []byte(payload), Policy: queue.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}}

	hung := hangingGenerator{}
	handler := queue.WithRetry(func(hctx context.Context, m queue.Message) error {
		return workflow.ProcessDraftMessage(hctx, hung, m)
	}, func(hctx context.Context, m queue.Message, lastErr error) {
		workflow.FinalizeDraftFailure(hctx, m, lastErr)
	})
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}

	failedJob, err := models.GetDraftJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetDraftJob: %v", err)
	}
	if failedJob.Status != models.DraftJobStatusFailed {
		t.Fatalf("job status = %s, want FAILED", failedJob.Status)
	}
	if failedJob.LastError == nil || !strings.Contains(*failedJob.LastError, "timed out") {
		t.Fatalf("lastError = %v, want a distinct timeout reason", failedJob.LastError)
	}
}

type hangingGenerator struct{}

func (hangingGenerator) Generate(ctx context.Context, document *models.Document) (*workflow.GeneratedSection, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
