// keys.go implements handlers for API key lifecycle management: issuance,
// deactivation by token or by owner, and active/deactivated listings.
package admin

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/log-center/log-center/internal/config"
	"github.com/log-center/log-center/internal/db/models"
	"github.com/log-center/log-center/internal/db/repositories"
	"github.com/log-center/log-center/internal/telemetry"
)

// APIKeyHandlers handles key management endpoints
type APIKeyHandlers struct {
	cfg     *config.Config
	db      *sql.DB
	keyRepo *repositories.APIKeyRepository
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance
func NewAPIKeyHandlers(cfg *config.Config, db *sql.DB) *APIKeyHandlers {
	return &APIKeyHandlers{
		cfg:     cfg,
		db:      db,
		keyRepo: repositories.NewAPIKeyRepository(db),
	}
}

// CreateKeyRequest represents the request to issue a new API key.
// ProcessName and Environment are required for process kind keys and
// ignored for user and admin kinds.
type CreateKeyRequest struct {
	OwnerEmail  string  `json:"owner_email" binding:"required,email"`
	Kind        string  `json:"kind" binding:"required"`
	ProcessName *string `json:"process_name"`
	Environment *string `json:"environment"`
}

// @Summary      Issue API key
// @Description  Issue a new key of the given kind to an approved holder. The token is returned exactly once; it cannot be retrieved later.
// @Tags         Keys
// @Security     AdminKey
// @Accept       json
// @Produce      json
// @Param        body  body  CreateKeyRequest  true  "Key issuance request"
// @Success      201  {object}  map[string]interface{}  "key: models.APIKey"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      403  {object}  map[string]interface{}  "Owner is not an approved holder"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /keys/create [post]
// CreateKeyHandler issues a new API key
// POST /keys/create
func (h *APIKeyHandlers) CreateKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		kind, err := models.ParseKeyKind(req.Kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid key kind: " + req.Kind,
			})
			return
		}

		var environment *models.Environment
		if req.Environment != nil {
			env, err := models.ParseEnvironment(*req.Environment)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid environment: " + *req.Environment,
				})
				return
			}
			environment = &env
		}

		if kind == models.KeyKindProcess {
			if req.ProcessName == nil || *req.ProcessName == "" {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "process_name is required for process keys",
				})
				return
			}
			if environment == nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "environment is required for process keys",
				})
				return
			}
		}

		key, err := h.keyRepo.Issue(c.Request.Context(), req.OwnerEmail, kind, req.ProcessName, environment)
		if err != nil {
			if errors.Is(err, repositories.ErrHolderNotApproved) {
				c.JSON(http.StatusForbidden, gin.H{
					"error": "Owner is not an approved active holder",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue key",
			})
			return
		}

		telemetry.APIKeysIssuedTotal.WithLabelValues(string(key.Kind)).Inc()

		c.JSON(http.StatusCreated, gin.H{
			"key": key,
		})
	}
}

// @Summary      Deactivate API key
// @Description  Deactivate the key with the given token, whatever its kind. Deactivating an already inactive key is a no-op.
// @Tags         Keys
// @Security     AdminKey
// @Produce      json
// @Param        token  path  string  true  "Key token"
// @Success      200  {object}  map[string]interface{}  "key: models.APIKey"
// @Failure      404  {object}  map[string]interface{}  "Key not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /keys/deactivate/{token} [post]
// DeactivateKeyHandler deactivates a single key by token
// POST /keys/deactivate/:token
func (h *APIKeyHandlers) DeactivateKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")

		key, err := h.keyRepo.DeactivateByToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Key not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to deactivate key",
			})
			return
		}

		telemetry.APIKeysDeactivatedTotal.WithLabelValues(string(key.Kind)).Inc()

		c.JSON(http.StatusOK, gin.H{
			"key": key,
		})
	}
}

// @Summary      Deactivate all keys for owner
// @Description  Deactivate every active operational key (user and process kinds) owned by the given email, in one transaction. Admin keys are excluded; revoke them individually via /keys/deactivate/{token}. An admin email with only admin keys therefore reports 404 here.
// @Tags         Keys
// @Security     AdminKey
// @Produce      json
// @Param        email  path  string  true  "Owner email"
// @Success      200  {object}  map[string]interface{}  "keys: []models.APIKey"
// @Failure      404  {object}  map[string]interface{}  "Owner has no active keys"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /keys/deactivate-by-owner/{email} [post]
// DeactivateByOwnerHandler deactivates all active keys for one owner
// POST /keys/deactivate-by-owner/:email
func (h *APIKeyHandlers) DeactivateByOwnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")

		keys, err := h.keyRepo.DeactivateAllForOwner(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Owner has no active keys",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to deactivate keys",
			})
			return
		}

		for _, key := range keys {
			telemetry.APIKeysDeactivatedTotal.WithLabelValues(string(key.Kind)).Inc()
		}

		c.JSON(http.StatusOK, gin.H{
			"keys": keys,
		})
	}
}

// @Summary      List active keys
// @Description  List all active keys of every kind, newest first.
// @Tags         Keys
// @Security     AdminKey
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "keys: []models.APIKey"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /keys/active/ [get]
// ListActiveHandler lists every active key
// GET /keys/active/
func (h *APIKeyHandlers) ListActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := h.keyRepo.ListActive(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list keys",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"keys": keys,
		})
	}
}

// @Summary      List active keys for owner
// @Description  List the active operational keys (user and process kinds) owned by the given email. Admin keys do not appear here; use /keys/active/ for the full listing.
// @Tags         Keys
// @Security     AdminKey
// @Produce      json
// @Param        email  path  string  true  "Owner email"
// @Success      200  {object}  map[string]interface{}  "keys: []models.APIKey"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /keys/active/{email} [get]
// ListActiveForOwnerHandler lists active keys owned by one email
// GET /keys/active/:email
func (h *APIKeyHandlers) ListActiveForOwnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")

		keys, err := h.keyRepo.ListActiveForOwner(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list keys",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"keys": keys,
		})
	}
}

// @Summary      List deactivated keys
// @Description  List all deactivated keys of every kind.
// @Tags         Keys
// @Security     AdminKey
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "keys: []models.APIKey"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /keys/deactivated/ [get]
// ListDeactivatedHandler lists every deactivated key
// GET /keys/deactivated/
func (h *APIKeyHandlers) ListDeactivatedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := h.keyRepo.ListDeactivated(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list keys",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"keys": keys,
		})
	}
}
