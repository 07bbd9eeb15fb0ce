package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"github.com/richardliu001/event-lifecycle/internal/service"
)

func RegisterHandlers(r *gin.Engine, svc *service.EventService) {
	v1 := r.Group("/v1")
	{
		v1.POST("/events", createEventHandler(svc))
		v1.PATCH("/events/:id", updateEventHandler(svc))
		v1.DELETE("/events/:id", deleteEventHandler(svc))
		v1.PUT("/events/:id/participants/:user_id", assignRoleHandler(svc))
		v1.DELETE("/events/:id/participants/:user_id", removeParticipantHandler(svc))
		v1.GET("/events/:id/reminders", remindersHandler(svc))
		v1.POST("/users/:id/devices", registerDeviceHandler(svc))
	}
}

type eventView struct {
	ID          uint64    `json:"id"`
	OwnerID     uint64    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	ImageURL    string    `json:"image_url"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

func viewEvent(e *model.Event) eventView {
	return eventView{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Title:       e.Title,
		Description: e.Description,
		Address:     e.Address,
		ImageURL:    e.ImageURL,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
	}
}

type participantView struct {
	ID      uint64     `json:"id"`
	EventID uint64     `json:"event_id"`
	UserID  uint64     `json:"user_id"`
	Role    model.Role `json:"role"`
}

type reminderView struct {
	ID           uint64             `json:"id"`
	ReminderType model.ReminderType `json:"reminder_type"`
	ReminderTime time.Time          `json:"reminder_time"`
	IsSent       bool               `json:"is_sent"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
}

// writeError maps service errors onto status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidDevice),
		errors.Is(err, model.ErrLifecycleReversal):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

type createEventReq struct {
	OwnerID     uint64    `json:"owner_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	ImageURL    string    `json:"image_url"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
}

func createEventHandler(svc *service.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createEventReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		e, err := svc.CreateEvent(c.Request.Context(), service.EventInput{
			OwnerID:     req.OwnerID,
			Title:       req.Title,
			Description: req.Description,
			Address:     req.Address,
			ImageURL:    req.ImageURL,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, viewEvent(e))
	}
}

type updateEventReq struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Address     *string    `json:"address"`
	ImageURL    *string    `json:"image_url"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func updateEventHandler(svc *service.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req updateEventReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		e, err := svc.UpdateEvent(c.Request.Context(), id, service.EventPatch{
			Title:       req.Title,
			Description: req.Description,
			Address:     req.Address,
			ImageURL:    req.ImageURL,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewEvent(e))
	}
}

func deleteEventHandler(svc *service.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteEvent(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type assignRoleReq struct {
	Role string `json:"role" binding:"required"`
}

func assignRoleHandler(svc *service.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := idParam(c, "id")
		if !ok {
			return
		}
		userID, ok := idParam(c, "user_id")
		if !ok {
			return
		}
		var req assignRoleReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := svc.AssignRole(c.Request.Context(), eventID, userID, model.Role(req.Role))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, participantView{ID: p.ID, EventID: p.EventID, UserID: p.UserID, Role: p.Role})
	}
}

func removeParticipantHandler(svc *service.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := idParam(c, "id")
		if !ok {
			return
		}
		userID, ok := idParam(c, "user_id")
		if !ok {
			return
		}
		if err := svc.RemoveParticipant(c.Request.Context(), eventID, userID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func remindersHandler(svc *service.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		rems, err := svc.Reminders(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]reminderView, 0, len(rems))
		for _, r := range rems {
			out = append(out, reminderView{
				ID:           r.ID,
				ReminderType: r.ReminderType,
				ReminderTime: r.ReminderTime,
				IsSent:       r.IsSent,
				SentAt:       r.SentAt,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

type deviceReq struct {
	Token string `json:"token" binding:"required"`
}

func registerDeviceHandler(svc *service.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req deviceReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.RegisterDevice(c.Request.Context(), id, req.Token); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
