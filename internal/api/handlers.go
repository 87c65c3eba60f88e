package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inmodossier/server/internal/database"
)

// Handler serves the read-only views over properties, change history
// and statistics consumed by the dashboard.
type Handler struct {
	store       *database.Store
	snapshotter *database.Snapshotter
	logger      *logrus.Logger
}

func NewHandler(store *database.Store, snapshotter *database.Snapshotter, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		store:       store,
		snapshotter: snapshotter,
		logger:      logger,
	}
}

func (h *Handler) GetProperties(c *gin.Context) {
	properties, err := h.store.ListActive()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get properties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get properties"})
		return
	}

	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetAllProperties(c *gin.Context) {
	properties, err := h.store.ListAll()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get properties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get properties"})
		return
	}

	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetPropertyHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property id"})
		return
	}

	if _, err := h.store.GetProperty(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property"})
		return
	}

	history, err := h.store.History(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property history"})
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *Handler) DeactivateProperty(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property id"})
		return
	}

	if err := h.store.Deactivate(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to deactivate property")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate property"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Property deactivated"})
}

// GetStats returns the current aggregate computed on the fly, without
// persisting a snapshot.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.snapshotter.Compute()
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetStatsHistory(c *gin.Context) {
	history, err := h.snapshotter.History()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stats history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats history"})
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *Handler) TakeSnapshot(c *gin.Context) {
	snapshot, err := h.snapshotter.TakeSnapshot()
	if err != nil {
		h.logger.WithError(err).Error("Failed to take snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to take snapshot"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
