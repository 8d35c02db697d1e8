package handler

import (
	"net/http"
	"strconv"
	"time"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/complaint"
	"smartnagrik/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	officialRoles = []models.Role{models.RoleFieldOfficer, models.RoleAdmin}
	adminRoles    = []models.Role{models.RoleAdmin}

	// officerTargets are the statuses a field officer may request.
	officerTargets = map[models.Status]bool{
		models.StatusAssigned:   true,
		models.StatusInProgress: true,
		models.StatusResolved:   true,
		models.StatusEscalated:  true,
	}
)

type submitRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	CategoryID  uint            `json:"category_id"`
	Priority    models.Priority `json:"priority"`
}

type statusRequest struct {
	Status     models.Status `json:"status"`
	Proof      *string       `json:"proof"`
	Notes      string        `json:"notes"`
	AssigneeID string        `json:"assignee_id"`
}

// trackResponse is the public view of a complaint.
type trackResponse struct {
	ComplaintNumber string        `json:"complaint_number"`
	Title           string        `json:"title"`
	Status          models.Status `json:"status"`
	SubmittedAt     string        `json:"submitted_at"`
	UpdatedAt       string        `json:"updated_at"`
}

func (h *Handler) SubmitComplaint(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request: %v", err))
		return
	}

	created, err := h.Complaints.Submit(c.Request.Context(), complaint.Draft{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		SubmitterID: currentUserID(c),
		CategoryID:  req.CategoryID,
		Priority:    req.Priority,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListComplaints lists complaints. Citizens only ever see their own.
func (h *Handler) ListComplaints(c *gin.Context) {
	f := models.ComplaintFilter{
		Status:      models.Status(c.Query("status")),
		SubmitterID: c.Query("submitter"),
		Limit:       defaultPageSize,
	}
	if f.Status != "" && !f.Status.Valid() {
		respondError(c, apperr.Validation("unknown status %q", f.Status))
		return
	}
	if v := c.Query("zone_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(c, apperr.Validation("invalid zone_id"))
			return
		}
		zoneID := uint(id)
		f.ZoneID = &zoneID
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(c, apperr.Validation("invalid limit"))
			return
		}
		f.Limit = min(n, maxPageSize)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, apperr.Validation("invalid offset"))
			return
		}
		f.Offset = n
	}
	if !currentRole(c).IsOfficial() {
		f.SubmitterID = currentUserID(c)
	}

	list, err := h.Complaints.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Complaint{}
	}
	c.JSON(http.StatusOK, gin.H{"complaints": list, "limit": f.Limit, "offset": f.Offset})
}

func (h *Handler) GetComplaint(c *gin.Context) {
	found, ok := h.loadVisibleComplaint(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *Handler) ComplaintHistory(c *gin.Context) {
	found, ok := h.loadVisibleComplaint(c)
	if !ok {
		return
	}
	history, err := h.Complaints.History(c.Request.Context(), found.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaint_number": found.ComplaintNumber, "history": history})
}

// TrackComplaint is the public lookup by complaint number.
func (h *Handler) TrackComplaint(c *gin.Context) {
	found, err := h.Complaints.Track(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trackResponse{
		ComplaintNumber: found.ComplaintNumber,
		Title:           found.Title,
		Status:          found.Status,
		SubmittedAt:     found.SubmittedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       found.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// AdvanceStatus applies the role policy, then asks the engine for the transition.
func (h *Handler) AdvanceStatus(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request: %v", err))
		return
	}
	if !req.Status.Valid() {
		respondError(c, apperr.Validation("unknown status %q", req.Status))
		return
	}

	ctx := c.Request.Context()
	current, err := h.Complaints.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := authorizeTransition(currentRole(c), currentUserID(c), current, req.Status); err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.Complaints.Transition(ctx, id, complaint.TransitionRequest{
		Target:     req.Status,
		Proof:      req.Proof,
		Notes:      req.Notes,
		AssigneeID: req.AssigneeID,
		ActorID:    currentUserID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type proofUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type" binding:"required"`
}

// ProofUpload returns a presigned URL for the resolution proof image.
func (h *Handler) ProofUpload(c *gin.Context) {
	if h.Proofs == nil {
		respondError(c, apperr.New(apperr.CodeStoreUnavailable, "proof uploads are not configured"))
		return
	}
	id, ok := complaintID(c)
	if !ok {
		return
	}
	var req proofUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request: %v", err))
		return
	}

	found, err := h.Complaints.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	upload, err := h.Proofs.PresignUpload(c.Request.Context(), found.ComplaintNumber, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

// authorizeTransition is the presentation-layer role policy. Graph legality
// is left to the engine.
func authorizeTransition(role models.Role, userID string, c *models.Complaint, target models.Status) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleFieldOfficer:
		if officerTargets[target] {
			return nil
		}
		return apperr.Forbidden("field officers cannot move complaints to " + string(target))
	case models.RoleCitizen:
		if c.SubmitterID != userID {
			return apperr.NotFound("complaint")
		}
		if target == models.StatusClosed {
			return nil
		}
		return apperr.Forbidden("citizens can only close their own resolved complaints")
	default:
		return apperr.Forbidden("unknown role")
	}
}

func (h *Handler) loadVisibleComplaint(c *gin.Context) (*models.Complaint, bool) {
	id, ok := complaintID(c)
	if !ok {
		return nil, false
	}
	found, err := h.Complaints.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !currentRole(c).IsOfficial() && found.SubmitterID != currentUserID(c) {
		respondError(c, apperr.NotFound("complaint"))
		return nil, false
	}
	return found, true
}

func complaintID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apperr.Validation("invalid complaint id"))
		return 0, false
	}
	return uint(id), true
}
