package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/LJTian/NewsRadar/internal/ai"
	"github.com/LJTian/NewsRadar/internal/scheduler"
	"github.com/LJTian/NewsRadar/internal/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	store     *storage.Store
	search    *ai.Search
	scheduler *scheduler.Scheduler
	// scraping 手动触发采集的单飞标记，避免重复触发堆积
	scraping atomic.Bool
}

func NewServer(store *storage.Store, search *ai.Search, sched *scheduler.Scheduler) *Server {
	return &Server{store: store, search: search, scheduler: sched}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/articles/:id", s.getArticle)
		v1.GET("/sources", s.listSources)
		v1.GET("/stats", s.stats)
		v1.POST("/search", s.searchArticles)
		v1.POST("/scrape", s.triggerScrape)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"ai_search_available": s.search.Available(),
	})
}

func (s *Server) listArticles(c *gin.Context) {
	source := c.Query("source")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	items, err := s.store.List(source, limit, offset)
	if err != nil {
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": items,
		"count":    len(items),
		"source":   source,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) getArticle(c *gin.Context) {
	a, err := s.store.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "not_found",
				"message": "article not found",
			})
			return
		}
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) listSources(c *gin.Context) {
	counts, err := s.store.CountsBySource()
	if err != nil {
		internalError(c)
		return
	}
	lastUpdated, err := s.store.LastUpdated()
	if err != nil {
		internalError(c)
		return
	}

	type sourceCount struct {
		Name  string `json:"name"`
		Count int64  `json:"count"`
	}
	sources := make([]sourceCount, 0, len(counts))
	var total int64
	for name, count := range counts {
		sources = append(sources, sourceCount{Name: name, Count: count})
		total += count
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":        sources,
		"total_articles": total,
		"last_updated":   lastUpdated,
	})
}

func (s *Server) stats(c *gin.Context) {
	counts, err := s.store.CountsBySource()
	if err != nil {
		internalError(c)
		return
	}
	lastUpdated, err := s.store.LastUpdated()
	if err != nil {
		internalError(c)
		return
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	c.JSON(http.StatusOK, gin.H{
		"total_articles": total,
		"sources":        counts,
		"last_updated":   lastUpdated,
	})
}

type searchRequest struct {
	Query       string `json:"query" binding:"required"`
	MaxArticles int    `json:"max_articles"`
}

func (s *Server) searchArticles(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "bad_request",
			"message": "query is required",
		})
		return
	}

	if !s.search.Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "search_unavailable",
			"message": "AI search is not available. Please configure ANTHROPIC_API_KEY.",
		})
		return
	}

	result, err := s.search.Query(c.Request.Context(), req.Query, req.MaxArticles)
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) triggerScrape(c *gin.Context) {
	if !s.scraping.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{
			"status":  "busy",
			"message": "a scrape run is already in progress",
		})
		return
	}

	go func() {
		defer s.scraping.Store(false)
		s.scheduler.RunOnce()
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "started",
		"message": "scrape run started in background",
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
