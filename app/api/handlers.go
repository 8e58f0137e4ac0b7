package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/ingest"
	"github.com/lysyi3m/rss-harvest/app/tasks"
)

const (
	defaultItemLimit = 50
	maxItemLimit     = 500
)

func NewHandler(store FeedReader, executor tasks.Executor, scheduler TaskQueue, configCache *feed.ConfigCache) *Handler {
	return &Handler{
		store:       store,
		executor:    executor,
		scheduler:   scheduler,
		generator:   feed.NewGenerator(),
		configCache: configCache,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	id := c.Param("id")

	stored, err := h.store.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if stored == nil {
		c.Status(http.StatusNotFound)
		return
	}

	items, err := h.store.GetItems(c.Request.Context(), id, defaultItemLimit)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "feed", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*stored, items)
	if err != nil {
		slog.Error("RSS generation error", "feed", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Id", stored.ID)
	c.Header("X-Last-Updated", stored.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.store.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	}

	health["scheduled_feeds"] = h.scheduler.ScheduledCount()
	if h.configCache != nil {
		health["loaded_configurations"] = h.configCache.GetConfigCount()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	stored, err := h.store.ListFeeds(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]gin.H, 0, len(stored))
	for _, f := range stored {
		info := feedSummary(f)
		if itemCount, err := h.store.GetItemCount(c.Request.Context(), f.ID); err == nil {
			info["item_count"] = itemCount
		}
		feeds = append(feeds, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	id := c.Param("id")

	stored, err := h.store.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	details := feedSummary(*stored)
	details["language"] = stored.Language
	details["copyright"] = stored.Copyright
	details["managing_editor"] = stored.ManagingEditor
	details["web_master"] = stored.WebMaster
	details["pub_date"] = stored.PubDate
	details["last_build_date"] = stored.LastBuildDate
	details["categories"] = stored.Categories
	details["image"] = stored.Image
	if stored.TTL != nil {
		details["ttl"] = stored.TTL.String()
	}
	if itemCount, err := h.store.GetItemCount(c.Request.Context(), id); err == nil {
		details["item_count"] = itemCount
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListItems(c *gin.Context) {
	id := c.Param("id")

	limit := defaultItemLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxItemLimit)
	}

	stored, err := h.store.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	items, err := h.store.GetItems(c.Request.Context(), id, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed_id": id,
		"items":   items,
		"total":   len(items),
	})
}

// APICreateFeed registers a feed synchronously so the caller learns right
// away whether the URL serves a usable feed.
func (h *Handler) APICreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must contain a feed url"})
		return
	}

	result, err := h.executor.Execute(c.Request.Context(), ingest.CreateFeedOp{URL: req.URL})
	created, _ := result.(*ingest.CreateResult)
	if created == nil {
		status, message := createErrorStatus(err)
		slog.Warn("Feed creation failed", "url", req.URL, "status", status, "error", err)
		c.JSON(status, gin.H{
			"error":   message,
			"details": errorDetails(err),
		})
		return
	}
	if err != nil {
		// Stored but not yet scheduled; the next start restores the schedule
		slog.Error("Feed created without schedule", "feed", created.Feed.ID, "error", err)
	}

	status := http.StatusOK
	if created.Created {
		status = http.StatusCreated
	}

	response := feedSummary(*created.Feed)
	response["created"] = created.Created
	response["inserted"] = created.Inserted

	c.JSON(status, response)
}

func (h *Handler) APIRefreshFeed(c *gin.Context) {
	id := c.Param("id")

	stored, err := h.store.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.scheduler.EnqueueRefresh(id); err != nil {
		slog.Error("Error enqueueing refresh task", "feed", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue refresh task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Refresh enqueued",
		"feed_id": id,
	})
}

func feedSummary(f database.Feed) gin.H {
	return gin.H{
		"id":            f.ID,
		"url":           f.URL,
		"title":         f.Title,
		"link":          f.Link,
		"description":   f.Description,
		"interval":      f.Interval.String(),
		"next_fetch_at": f.NextFetchAt,
		"created_at":    f.CreatedAt,
		"updated_at":    f.UpdatedAt,
	}
}

func createErrorStatus(err error) (int, string) {
	var fetchErr *feed.FetchError
	var malformedErr *feed.MalformedFeedError

	switch {
	case errors.Is(err, ingest.ErrInvalidURL):
		return http.StatusBadRequest, "Invalid feed URL"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "Failed to fetch feed"
	case errors.As(err, &malformedErr):
		return http.StatusBadGateway, "Source is not a valid feed"
	default:
		return http.StatusInternalServerError, "Failed to create feed"
	}
}

func errorDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
