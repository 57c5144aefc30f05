package models_test

import (
	"context"
	"testing"

	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/utils"
)

func TestCreateDocumentDefaults(t *testing.T) {
	ctx, _ := seedOrg(t, 0)

	document, err := models.CreateDocument(ctx, &models.NewDocument{
		Title: "  Q3   Proposal ",
		Type:  string(models.DocumentTypeProposal),
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if document.Title != "Q3 Proposal" {
		t.Fatalf("title = %q, want normalized %q", document.Title, "Q3 Proposal")
	}
	if document.Status != models.DocumentStatusDraft ||
		document.ApprovalStatus != models.ApprovalStatusDraft ||
		document.GenerationStatus != models.GenerationStatusIdle {
		t.Fatalf("defaults = {%s, %s, %s}, want {DRAFT, DRAFT, IDLE}",
			document.Status, document.ApprovalStatus, document.GenerationStatus)
	}
	if document.Version != 1 {
		t.Fatalf("version = %d, want 1", document.Version)
	}

	_, err = models.CreateDocument(ctx, &models.NewDocument{Title: "x", Type: "MEMO"})
	if utils.CodeOf(err) != utils.ErrorCodeValidation {
		t.Fatalf("invalid type: error code = %v, want VALIDATION", utils.CodeOf(err))
	}
}

func TestReplaceSectionsDenseReindex(t *testing.T) {
	ctx, _ := seedOrg(t, 0)
	document := seedDocument(t, ctx)

	updated, err := models.ReplaceDocumentSections(ctx, document.ID, []models.NewDocumentSection{
		{Heading: "Scope", Body: "..."},
		{Heading: "Pricing", Body: "..."},
		{Heading: "Terms", Body: "..."},
	})
	if err != nil {
		t.Fatalf("ReplaceDocumentSections: %v", err)
	}
	if len(updated.Sections) != 3 {
		t.Fatalf("section count = %d, want 3", len(updated.Sections))
	}
	for i, section := range updated.Sections {
		if section.Order != i+1 {
			t.Fatalf("section %d order = %d, want dense 1-based %d", i, section.Order, i+1)
		}
	}
	if updated.Version != document.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, document.Version+1)
	}

	// A shorter replace drops the tail and re-indexes from 1 again.
	updated, err = models.ReplaceDocumentSections(ctx, document.ID, []models.NewDocumentSection{
		{Heading: "Terms", Body: "..."},
	})
	if err != nil {
		t.Fatalf("second ReplaceDocumentSections: %v", err)
	}
	if len(updated.Sections) != 1 || updated.Sections[0].Order != 1 {
		t.Fatalf("after shrink: %d sections, first order %d, want 1 section at order 1",
			len(updated.Sections), updated.Sections[0].Order)
	}
}

func TestDocumentSharingToggle(t *testing.T) {
	ctx, _ := seedOrg(t, 0)
	document := seedDocument(t, ctx)

	shared, err := models.SetDocumentSharing(ctx, document.ID, true)
	if err != nil {
		t.Fatalf("SetDocumentSharing(true): %v", err)
	}
	if !shared.IsPublic || shared.PublicToken == nil || *shared.PublicToken == "" {
		t.Fatal("enabling sharing must mint a public token")
	}
	token := *shared.PublicToken

	// The public fetch needs no tenant context.
	public, err := models.GetDocumentByPublicToken(context.Background(), token)
	if err != nil {
		t.Fatalf("GetDocumentByPublicToken: %v", err)
	}
	if public.ID != document.ID {
		t.Fatalf("public fetch returned %s, want %s", public.ID, document.ID)
	}

	unshared, err := models.SetDocumentSharing(ctx, document.ID, false)
	if err != nil {
		t.Fatalf("SetDocumentSharing(false): %v", err)
	}
	if unshared.IsPublic {
		t.Fatal("sharing still enabled")
	}
	if unshared.PublicToken == nil || *unshared.PublicToken != token {
		t.Fatal("token must survive disabling so re-enabling restores the same link")
	}

	if _, err := models.GetDocumentByPublicToken(context.Background(), token); utils.CodeOf(err) != utils.ErrorCodeNotFound {
		t.Fatalf("disabled link: error code = %v, want NOT_FOUND", utils.CodeOf(err))
	}
}

func TestDocumentCrossTenantIsNotFound(t *testing.T) {
	ctxA, _ := seedOrg(t, 0)
	ctxB, _ := seedOrg(t, 0)
	document := seedDocument(t, ctxA)

	_, err := models.GetDocument(ctxB, document.ID)
	if utils.CodeOf(err) != utils.ErrorCodeNotFound {
		t.Fatalf("cross-tenant get: error code = %v, want NOT_FOUND", utils.CodeOf(err))
	}
}

func TestDeleteDocumentRemovesSections(t *testing.T) {
	ctx, _ := seedOrg(t, 0)
	document := seedDocument(t, ctx)

	if _, err := models.ReplaceDocumentSections(ctx, document.ID, []models.NewDocumentSection{
		{Heading: "Scope", Body: "..."},
	}); err != nil {
		t.Fatalf("ReplaceDocumentSections: %v", err)
	}
	if _, err := models.DeleteDocument(ctx, document.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	_, err := models.GetDocument(ctx, document.ID)
	if utils.CodeOf(err) != utils.ErrorCodeNotFound {
		t.Fatalf("deleted document: error code = %v, want NOT_FOUND", utils.CodeOf(err))
	}

	count, err := utils.ResourceCountWhere[models.DocumentSection](ctx, "", "document_id = ?", document.ID)
	if err != nil {
		t.Fatalf("counting sections: %v", err)
	}
	if count != 0 {
		t.Fatalf("%d orphan sections left behind", count)
	}
}

func TestDuplicateTitleConflict(t *testing.T) {
	ctx, _ := seedOrg(t, 0)
	document := seedDocument(t, ctx)

	_, err := models.CreateDocument(ctx, &models.NewDocument{
		Title: document.Title,
		Type:  string(models.DocumentTypeContract),
	})
	if utils.CodeOf(err) != utils.ErrorCodeConflict {
		t.Fatalf("duplicate title: error code = %v, want CONFLICT", utils.CodeOf(err))
	}

	other, err := models.CreateDocument(ctx, &models.NewDocument{
		Title: "Statement of Work",
		Type:  string(models.DocumentTypeContract),
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	taken := document.Title
	_, err = models.UpdateDocument(ctx, other.ID, &models.UpdateDocumentInput{Title: &taken})
	if utils.CodeOf(err) != utils.ErrorCodeConflict {
		t.Fatalf("rename onto taken title: error code = %v, want CONFLICT", utils.CodeOf(err))
	}

	// Re-saving a document under its own title is not a conflict.
	own := document.Title
	if _, err := models.UpdateDocument(ctx, document.ID, &models.UpdateDocumentInput{Title: &own}); err != nil {
		t.Fatalf("re-saving own title: %v", err)
	}
}
