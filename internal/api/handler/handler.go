// Package handler is the HTTP surface of the grievance service.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/complaint"
	"smartnagrik/backend/internal/feed"
	"smartnagrik/backend/internal/proofstore"
	"smartnagrik/backend/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ZoneCache is invalidated after the zone catalog changes.
type ZoneCache interface {
	Invalidate()
}

// ProofPresigner issues upload URLs for proof images.
type ProofPresigner interface {
	PresignUpload(ctx context.Context, complaintNumber, contentType string) (*proofstore.Upload, error)
}

// Handler holds the services the HTTP handlers call.
type Handler struct {
	Complaints *complaint.Service
	Storage    storage.Storage
	Zones      ZoneCache
	Hub        *feed.Hub
	Proofs     ProofPresigner
	Auth       *Authenticator

	// BaseCtx outlives single requests; websocket clients are bound to it.
	BaseCtx context.Context
}

func NewHandler(ctx context.Context, svc *complaint.Service, s storage.Storage, zones ZoneCache, hub *feed.Hub, proofs ProofPresigner, auth *Authenticator) *Handler {
	return &Handler{
		Complaints: svc,
		Storage:    s,
		Zones:      zones,
		Hub:        hub,
		Proofs:     proofs,
		Auth:       auth,
		BaseCtx:    ctx,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router(corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/complaints/track/:number", h.TrackComplaint)
	api.GET("/zones", h.ListZones)
	api.GET("/categories", h.ListCategories)

	authed := api.Group("", h.Auth.AuthMiddleware())
	authed.GET("/me", h.Me)
	authed.GET("/me/notifications", h.MyNotifications)
	authed.PUT("/me/preferences", h.UpdatePreferences)

	authed.POST("/complaints", h.SubmitComplaint)
	authed.GET("/complaints", h.ListComplaints)
	authed.GET("/complaints/:id", h.GetComplaint)
	authed.GET("/complaints/:id/history", h.ComplaintHistory)
	authed.PATCH("/complaints/:id/status", h.AdvanceStatus)
	authed.POST("/complaints/:id/proof-upload", RequireRole(officialRoles...), h.ProofUpload)

	admin := authed.Group("/admin", RequireRole(adminRoles...))
	admin.POST("/users", h.CreateOfficial)
	admin.POST("/zones", h.CreateZone)
	admin.POST("/categories", h.CreateCategory)

	return r
}

type errorResponse struct {
	Error *apperr.AppError `json:"error"`
}

func respondError(c *gin.Context, err error) {
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		appErr = apperr.New(apperr.CodeInternal, "internal error")
	} else if appErr.Code == apperr.CodeStoreUnavailable {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(apperr.HTTPStatus(appErr), errorResponse{Error: appErr})
}

func abortWithError(c *gin.Context, err *apperr.AppError) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), errorResponse{Error: err})
}
