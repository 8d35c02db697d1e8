package handler

import (
	"net/http"
	"strings"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

type officialRequest struct {
	FullName   string      `json:"full_name" binding:"required"`
	Email      string      `json:"email" binding:"required,email"`
	Password   string      `json:"password" binding:"required"`
	Role       models.Role `json:"role" binding:"required"`
	EmployeeID string      `json:"employee_id"`
	Department string      `json:"department"`
	Phone      string      `json:"phone"`
}

type zoneRequest struct {
	Name        string    `json:"name" binding:"required"`
	Department  string    `json:"department"`
	CentroidLat *float64  `json:"centroid_lat"`
	CentroidLng *float64  `json:"centroid_lng"`
	Boundary    []float64 `json:"boundary"`
}

type categoryRequest struct {
	Name       string `json:"name" binding:"required"`
	Department string `json:"department"`
}

// CreateOfficial creates a FIELD_OFFICER or ADMIN account.
func (h *Handler) CreateOfficial(c *gin.Context) {
	var req officialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request: %v", err))
		return
	}
	if !req.Role.IsOfficial() {
		respondError(c, apperr.Validation("role must be FIELD_OFFICER or ADMIN"))
		return
	}
	if len(req.Password) < minPasswordLength {
		respondError(c, apperr.Validation("password must be at least %d characters", minPasswordLength))
		return
	}

	u := &models.User{
		FullName:   strings.TrimSpace(req.FullName),
		Email:      req.Email,
		Phone:      req.Phone,
		Role:       req.Role,
		Department: req.Department,
	}
	if req.EmployeeID != "" {
		u.EmployeeID = &req.EmployeeID
	}
	created, err := h.createUser(c, u, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// CreateZone adds a zone and refreshes the router's catalog.
func (h *Handler) CreateZone(c *gin.Context) {
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request: %v", err))
		return
	}
	if err := validateZone(req); err != nil {
		respondError(c, err)
		return
	}

	z := &models.Zone{
		Name:        strings.TrimSpace(req.Name),
		Department:  req.Department,
		CentroidLat: req.CentroidLat,
		CentroidLng: req.CentroidLng,
		Boundary:    pq.Float64Array(req.Boundary),
	}
	if err := h.Storage.SaveZone(c.Request.Context(), z); err != nil {
		respondError(c, err)
		return
	}
	if h.Zones != nil {
		h.Zones.Invalidate()
	}
	c.JSON(http.StatusCreated, z)
}

func validateZone(req zoneRequest) error {
	if (req.CentroidLat == nil) != (req.CentroidLng == nil) {
		return apperr.Validation("centroid needs both centroid_lat and centroid_lng")
	}
	if req.CentroidLat != nil && (*req.CentroidLat < -90 || *req.CentroidLat > 90 || *req.CentroidLng < -180 || *req.CentroidLng > 180) {
		return apperr.Validation("centroid is out of range")
	}
	if len(req.Boundary) > 0 && (len(req.Boundary)%2 != 0 || len(req.Boundary) < 6) {
		return apperr.Validation("boundary must hold at least three lat,lng pairs")
	}
	return nil
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request: %v", err))
		return
	}
	cat := &models.Category{Name: strings.TrimSpace(req.Name), Department: req.Department}
	if err := h.Storage.SaveCategory(c.Request.Context(), cat); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) ListZones(c *gin.Context) {
	zones, err := h.Storage.ListZones(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zones": zones})
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.Storage.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}
