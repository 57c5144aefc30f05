package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/queue"
	"github.com/contractflow/proposals_backend/utils"
	"github.com/contractflow/proposals_backend/workflow"
)

// respondError maps the typed error taxonomy onto HTTP. Internal errors
// log the full chain and return a generic message.
func respondError(c *gin.Context, err error) {
	code := utils.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case utils.ErrorCodeValidation:
		status = http.StatusBadRequest
	case utils.ErrorCodeNotFound:
		status = http.StatusNotFound
	case utils.ErrorCodeConflict:
		status = http.StatusConflict
	case utils.ErrorCodeRateLimited:
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		logger := config.GetLogger()
		correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"field":          "http",
			"path":           c.FullPath(),
			"correlation_id": correlationId,
		}).Error(err.Error())
	}
	c.JSON(status, gin.H{"error": utils.ClientMessage(err), "code": string(code)})
}

// requireCapability checks the session role against the capability table.
func requireCapability(c *gin.Context, capability models.Capability) bool {
	role, ok := utils.GetUserRoleFromContext(c.Request.Context())
	if !ok || !models.RoleCan(models.UserRole(role), capability) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	return true
}

func pageFromQuery(c *gin.Context) models.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return models.PageRequest{Page: page, PageSize: pageSize}
}

func listResponse(c *gin.Context, items interface{}, total int64) {
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func createDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityUpdateDocument) {
			return
		}
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		document, err := models.CreateDocument(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, document)
	}
}

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityReadDocument) {
			return
		}
		var filter models.DocumentFilter
		if s := c.Query("status"); s != "" {
			status := models.DocumentStatus(s)
			if !status.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
				return
			}
			filter.Status = &status
		}
		if s := c.Query("type"); s != "" {
			docType := models.DocumentType(s)
			if !docType.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type filter"})
				return
			}
			filter.Type = &docType
		}
		documents, total, err := models.ListDocuments(c.Request.Context(), filter, pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, documents, total)
	}
}

func getDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityReadDocument) {
			return
		}
		document, err := models.GetDocument(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, document)
	}
}

func updateDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityUpdateDocument) {
			return
		}
		var input models.UpdateDocumentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		document, err := models.UpdateDocument(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, document)
	}
}

func deleteDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityDeleteDocument) {
			return
		}
		document, err := models.DeleteDocument(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, document)
	}
}

type replaceSectionsRequest struct {
	Sections []models.NewDocumentSection `json:"sections" binding:"required"`
}

func replaceSectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityUpdateDocument) {
			return
		}
		var req replaceSectionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		document, err := models.ReplaceDocumentSections(c.Request.Context(), c.Param("id"), req.Sections)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, document)
	}
}

type sharingRequest struct {
	IsPublic *bool `json:"is_public" binding:"required"`
}

func setSharingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityShareDocument) {
			return
		}
		var req sharingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		document, err := models.SetDocumentSharing(c.Request.Context(), c.Param("id"), utils.DereferencePtr(req.IsPublic))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, document)
	}
}

// publicDocumentHandler serves shared documents by token. No session
// required; the token itself is the capability.
func publicDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		document, err := models.GetDocumentByPublicToken(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, document)
	}
}

type approvalRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

func changeApprovalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req approvalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		target, err := models.ParseApprovalStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval status"})
			return
		}
		// Moving into APPROVED needs the approver capability; other
		// transitions only need write access.
		capability := models.CapabilityUpdateDocument
		if target == models.ApprovalStatusApproved {
			capability = models.CapabilityApproveDocument
		}
		if !requireCapability(c, capability) {
			return
		}
		result, err := models.ChangeApprovalStatus(c.Request.Context(), c.Param("id"), target, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"document":       result.Document,
			"comment":        result.Comment,
			"changed":        result.Changed,
			"notified_count": result.NotifiedCount,
		})
	}
}

func listApprovalCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityReadDocument) {
			return
		}
		comments, total, err := models.ListApprovalComments(c.Request.Context(), c.Param("id"), pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, comments, total)
	}
}

func generateDraftHandler(q queue.Queue, limiterProvider func() *utils.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityGenerateDraft) {
			return
		}
		if limiter := limiterProvider(); limiter != nil {
			result := limiter.Allow(c.Request.Context(), "draft:"+c.ClientIP())
			if !result.Ok {
				retryAfter := int(result.ResetAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Writer.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondError(c, utils.NewRateLimitedError("draft generation limit reached, retry later"))
				return
			}
		}
		job, err := workflow.EnqueueDraft(c.Request.Context(), q, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, job)
	}
}

func listDraftJobsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityManageJobs) {
			return
		}
		var filter models.DraftJobFilter
		if s := c.Query("document_id"); s != "" {
			filter.DocumentId = &s
		}
		if s := c.Query("status"); s != "" {
			status, err := models.ParseDraftJobStatus(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
				return
			}
			filter.Status = &status
		}
		jobs, total, err := models.ListDraftJobs(c.Request.Context(), filter, pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, jobs, total)
	}
}

func getDraftJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityManageJobs) {
			return
		}
		job, err := models.GetDraftJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func retryDraftJobHandler(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityManageJobs) {
			return
		}
		job, err := models.RetryDraftJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if err := workflow.ReEnqueueDraft(c.Request.Context(), q, job); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, job)
	}
}

func listAuditEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityReadDocument) {
			return
		}
		var filter models.AuditEventFilter
		if s := c.Query("action"); s != "" {
			action, err := models.ParseAuditAction(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action filter"})
				return
			}
			filter.Action = &action
		}
		if s := c.Query("target_type"); s != "" {
			targetType, err := models.ParseAuditTargetType(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_type filter"})
				return
			}
			filter.TargetType = &targetType
		}
		if s := c.Query("target_id"); s != "" {
			filter.TargetId = &s
		}
		events, total, err := models.ListAuditEvents(c.Request.Context(), filter, pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, events, total)
	}
}

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		unreadOnly := strings.EqualFold(c.Query("unread_only"), "true")
		notifications, total, unread, err := models.ListNotifications(c.Request.Context(), unreadOnly, pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": notifications, "total": total, "unread_count": unread})
	}
}

func markNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		notification, err := models.MarkNotificationRead(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notification)
	}
}

func listMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, ok := utils.GetOrganizationIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		members, err := models.ListOrganizationMembers(c.Request.Context(), organizationId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": members})
	}
}

func createInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityManageMembers) {
			return
		}
		var input models.NewInvite
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		invite, err := models.CreateInvite(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invite)
	}
}

type acceptInviteRequest struct {
	UserId string `json:"user_id" binding:"required"`
}

func acceptInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req acceptInviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		invite, err := models.AcceptInvite(c.Request.Context(), c.Param("id"), req.UserId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invite)
	}
}

type updateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func updateMemberRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityManageMembers) {
			return
		}
		var req updateMemberRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		role := models.UserRole(strings.ToUpper(strings.TrimSpace(req.Role)))
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		member, err := models.UpdateMemberRole(c.Request.Context(), c.Param("id"), role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

func removeMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCapability(c, models.CapabilityManageMembers) {
			return
		}
		member, err := models.RemoveMember(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}
