package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50

	defaultTestTitle = "Test notification"
	defaultTestBody  = "Push notifications are working."

	defaultDigestTime = "07:00"
)

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.log.Error(msg, zap.Error(err), zap.String("userID", UserID(c)))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// bindOptionalJSON binds the request body into req; an empty body, chunked or not, leaves req as is.
func bindOptionalJSON(c *gin.Context, req any) error {
	if c.Request.Body == nil {
		return nil
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// --- subscriptions ---

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		sub := &domain.Subscription{
			UserID:        UserID(c),
			Endpoint:      req.Endpoint,
			AuthSecret:    req.Keys.Auth,
			EncryptionKey: req.Keys.P256dh,
		}
		if err := sub.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := s.store.UpsertSubscription(c.Request.Context(), sub); err != nil {
			s.internalError(c, "upsert subscription failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleUnsubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unsubscribeRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		userID := UserID(c)
		var (
			n   int64
			err error
		)
		if req.Endpoint == "" {
			n, err = s.store.DeactivateAllForUser(c.Request.Context(), userID)
		} else {
			n, err = s.store.DeactivateEndpoint(c.Request.Context(), userID, req.Endpoint)
		}
		if err != nil {
			s.internalError(c, "unsubscribe failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "deactivated": n})
	}
}

func (s *Server) handleVAPIDPublicKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"publicKey": s.publicKey})
	}
}

// --- delivery history ---

type notificationResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Category  string          `json:"category"`
	Data      json.RawMessage `json:"data"`
	IsRead    bool            `json:"isRead"`
	CreatedAt string          `json:"createdAt"`
}

func toNotificationResponse(e domain.LogEntry) notificationResponse {
	data := e.Payload
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return notificationResponse{
		ID:        e.ID,
		Title:     e.Title,
		Body:      e.Body,
		Category:  e.Category,
		Data:      data,
		IsRead:    e.IsRead,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// pagination reads page (1-based) and limit, clamping limit to maxPageLimit.
func pagination(c *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		page, limit := pagination(c)

		entries, total, err := s.store.ListLog(c.Request.Context(), userID, limit, (page-1)*limit)
		if err != nil {
			s.internalError(c, "list notifications failed", err)
			return
		}
		unread, err := s.store.CountUnread(c.Request.Context(), userID)
		if err != nil {
			s.internalError(c, "count unread failed", err)
			return
		}

		res := make([]notificationResponse, 0, len(entries))
		for _, e := range entries {
			res = append(res, toNotificationResponse(e))
		}
		c.JSON(http.StatusOK, gin.H{
			"notifications": res,
			"unreadCount":   unread,
			"page":          page,
			"limit":         limit,
			"total":         total,
		})
	}
}

func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.store.MarkRead(c.Request.Context(), UserID(c), c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		if err != nil {
			s.internalError(c, "mark read failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (s *Server) handleMarkAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.MarkAllRead(c.Request.Context(), UserID(c))
		if err != nil {
			s.internalError(c, "mark all read failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
	}
}

// --- test send ---

type testRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func (s *Server) handleTest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req testRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		target := UserID(c)
		if req.UserID != "" && req.UserID != target {
			if Role(c) != RoleAdmin {
				c.JSON(http.StatusForbidden, gin.H{"error": "only admins may send to other users"})
				return
			}
			target = req.UserID
		}

		n := domain.Notification{Title: req.Title, Body: req.Body, Category: domain.CategoryTest}
		if n.Title == "" {
			n.Title = defaultTestTitle
		}
		if n.Body == "" {
			n.Body = defaultTestBody
		}

		res := s.sender.DeliverToUser(c.Request.Context(), target, n)
		if res.Err != nil {
			s.internalError(c, "test delivery failed", res.Err)
			return
		}
		if res.Skipped {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active subscriptions"})
			return
		}
		s.log.Info("test notification sent",
			zap.String("caller", UserID(c)), zap.String("target", target),
			zap.Int("sent", res.Sent), zap.Int("gone", res.Gone), zap.Int("transient", res.Transient))
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"attempts":  res.Attempts,
			"sent":      res.Sent,
			"gone":      res.Gone,
			"transient": res.Transient,
		})
	}
}

// --- settings ---

type settingsResponse struct {
	Enabled  bool     `json:"enabled"`
	Time     string   `json:"time"`
	Weekdays []string `json:"weekdays"`
}

type settingsRequest struct {
	Enabled  *bool    `json:"enabled"`
	Time     *string  `json:"time"`
	Weekdays []string `json:"weekdays"`
}

func defaultPreference(userID string) *domain.Preference {
	return &domain.Preference{UserID: userID, TimeOfDay: defaultDigestTime, Weekdays: domain.AllWeekdays}
}

func (s *Server) loadPreference(c *gin.Context) (*domain.Preference, error) {
	userID := UserID(c)
	p, err := s.store.GetPreference(c.Request.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		return defaultPreference(userID), nil
	}
	return p, err
}

func (s *Server) handleGetSettings() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.loadPreference(c)
		if err != nil {
			s.internalError(c, "get settings failed", err)
			return
		}
		c.JSON(http.StatusOK, settingsResponse{Enabled: p.Enabled, Time: p.TimeOfDay, Weekdays: p.Weekdays.Labels()})
	}
}

func (s *Server) handlePutSettings() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req settingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		p, err := s.loadPreference(c)
		if err != nil {
			s.internalError(c, "get settings failed", err)
			return
		}

		if req.Time != nil {
			t, err := domain.NormalizeHHMM(*req.Time)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			p.TimeOfDay = t
		}
		if req.Weekdays != nil {
			set, err := domain.ParseWeekdays(req.Weekdays)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			p.Weekdays = set
		}
		if req.Enabled != nil {
			p.Enabled = *req.Enabled
		}
		if p.Enabled && p.Weekdays.Empty() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one weekday is required when enabled"})
			return
		}

		if err := s.store.UpsertPreference(c.Request.Context(), p); err != nil {
			s.internalError(c, "save settings failed", err)
			return
		}

		var deactivated int64
		if req.Enabled != nil && !*req.Enabled {
			deactivated, err = s.store.DeactivateAllForUser(c.Request.Context(), p.UserID)
			if err != nil {
				s.internalError(c, "deactivate subscriptions failed", err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"settings":    settingsResponse{Enabled: p.Enabled, Time: p.TimeOfDay, Weekdays: p.Weekdays.Labels()},
			"deactivated": deactivated,
		})
	}
}
