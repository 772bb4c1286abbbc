// holders.go implements handlers for the key holder registries: approval,
// lookup, listing, and deactivation with its key cascade. One instance serves
// the operational registry (/users/*), another the admin registry (/admins/*).
package admin

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/log-center/log-center/internal/config"
	"github.com/log-center/log-center/internal/db/repositories"
	"github.com/log-center/log-center/internal/telemetry"
)

// HolderHandlers handles key holder management endpoints for one namespace
type HolderHandlers struct {
	cfg        *config.Config
	db         *sql.DB
	holderRepo *repositories.KeyHolderRepository
}

// NewHolderHandlers creates handlers over the operational holder registry
func NewHolderHandlers(cfg *config.Config, db *sql.DB) *HolderHandlers {
	return &HolderHandlers{
		cfg:        cfg,
		db:         db,
		holderRepo: repositories.NewKeyHolderRepository(db),
	}
}

// NewAdminHolderHandlers creates handlers over the admin holder registry
func NewAdminHolderHandlers(cfg *config.Config, db *sql.DB) *HolderHandlers {
	return &HolderHandlers{
		cfg:        cfg,
		db:         db,
		holderRepo: repositories.NewAdminKeyHolderRepository(db),
	}
}

// ApproveHolderRequest represents the request to approve a new key holder
type ApproveHolderRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

// DeactivateHolderRequest identifies the holder to deactivate
type DeactivateHolderRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// @Summary      Approve key holder
// @Description  Register an email as an approved key holder so keys can be issued to it. A previously deactivated email is permanently excluded and cannot be re-approved.
// @Tags         Holders
// @Security     AdminKey
// @Accept       json
// @Produce      json
// @Param        body  body  ApproveHolderRequest  true  "Holder approval request"
// @Success      201  {object}  map[string]interface{}  "holder: models.KeyHolder"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      409  {object}  map[string]interface{}  "Holder already exists"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /users/approve [post]
// ApproveHandler registers a new key holder
// POST /users/approve  |  POST /admins/approve
func (h *HolderHandlers) ApproveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ApproveHolderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		holder, err := h.holderRepo.Approve(c.Request.Context(), req.Email, req.Name)
		if err != nil {
			if errors.Is(err, repositories.ErrDuplicateHolder) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "Holder with this email already exists",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to approve holder",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"holder": holder,
		})
	}
}

// @Summary      Deactivate key holder
// @Description  Mark a holder inactive and deactivate every active key it owns, atomically. Already inactive holders are a no-op.
// @Tags         Holders
// @Security     AdminKey
// @Accept       json
// @Produce      json
// @Param        body  body  DeactivateHolderRequest  true  "Holder deactivation request"
// @Success      200  {object}  map[string]interface{}  "holder: models.KeyHolder, deactivated_keys: []models.APIKey"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      404  {object}  map[string]interface{}  "Holder not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /users/deactivate [post]
// DeactivateHandler deactivates a holder and cascades into its keys
// POST /users/deactivate  |  POST /admins/deactivate
func (h *HolderHandlers) DeactivateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DeactivateHolderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		holder, cascaded, err := h.holderRepo.Deactivate(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Holder not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to deactivate holder",
			})
			return
		}

		telemetry.HolderDeactivationsTotal.Inc()
		for _, key := range cascaded {
			telemetry.APIKeysDeactivatedTotal.WithLabelValues(string(key.Kind)).Inc()
		}

		c.JSON(http.StatusOK, gin.H{
			"holder":           holder,
			"deactivated_keys": cascaded,
		})
	}
}

// @Summary      List key holders
// @Description  List every holder in the namespace, newest approval first.
// @Tags         Holders
// @Security     AdminKey
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "holders: []models.KeyHolder"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /users/ [get]
// ListHandler lists all holders in the namespace
// GET /users/  |  GET /admins/
func (h *HolderHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		holders, err := h.holderRepo.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list holders",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"holders": holders,
		})
	}
}

// @Summary      Get key holder
// @Description  Get a single holder by email.
// @Tags         Holders
// @Security     AdminKey
// @Produce      json
// @Param        email  path  string  true  "Holder email"
// @Success      200  {object}  map[string]interface{}  "holder: models.KeyHolder"
// @Failure      404  {object}  map[string]interface{}  "Holder not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /users/{email} [get]
// GetHandler retrieves a holder by email
// GET /users/:email  |  GET /admins/:email
func (h *HolderHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")

		holder, err := h.holderRepo.GetByEmail(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Holder not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve holder",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"holder": holder,
		})
	}
}
