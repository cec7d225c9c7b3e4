package service

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"SMSDesk/logger"
	mid "SMSDesk/middleware"
	midsec "SMSDesk/middleware/security"
	"SMSDesk/module/inbox/conversation"
	"SMSDesk/module/inbox/model"
	"SMSDesk/module/inbox/sync"
	"SMSDesk/service/notify"
	"SMSDesk/tools/errs"
)

// ReadStates is the slice of the conversations repo the handlers use.
type ReadStates interface {
	Upsert(ctx context.Context, userID, phone string, at time.Time) (*model.ConversationReadState, error)
	ListByUser(ctx context.Context, userID string) ([]model.ConversationReadState, error)
	Get(ctx context.Context, userID, phone string) (*model.ConversationReadState, error)
}

type Assignments interface {
	Assign(ctx context.Context, userID, phone string) error
	Remove(ctx context.Context, userID string) error
	PhoneOf(ctx context.Context, userID string) (string, error)
	ListAll(ctx context.Context) ([]model.PhoneAssignment, error)
}

type Templates interface {
	ListByUser(ctx context.Context, userID string) ([]model.MessageTemplate, error)
	Create(ctx context.Context, userID, typ, name, content string) (*model.MessageTemplate, error)
	Update(ctx context.Context, userID, id, typ, name, content string) (*model.MessageTemplate, error)
	Delete(ctx context.Context, userID, id string) error
}

type MessageProvider interface {
	ListMessages(ctx context.Context, number string) ([]model.Message, error)
	Send(ctx context.Context, from, to, body string) (*model.Message, error)
}

// MessageCache is optional; a nil cache means every render hits the
// provider.
type MessageCache interface {
	Get(ctx context.Context, number string) ([]model.Message, bool)
	Put(ctx context.Context, number string, msgs []model.Message)
	Invalidate(ctx context.Context, number string)
}

type Server struct {
	ReadStates  ReadStates
	Assignments Assignments
	Templates   Templates
	Provider    MessageProvider
	Cache       MessageCache
	Sessions    *sync.Manager
	Hub         *notify.Hub
}

func (s *Server) Register(r *gin.Engine) {
	// the shim runs unauthenticated, exactly like the serverless
	// function it replaces; everything else needs a session token
	mid.PATCH(r, "/api/conversations/:phone/mark-read", s.MarkRead, mid.RouteOpt{})

	mid.GET(r, "/api/inbox", s.Inbox, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/inbox/:phone", s.Thread, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/messages", s.SendMessage, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/conversations/:phone/read", s.MarkReadSession, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/conversations/:phone/read-state", s.ReadState, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/templates", s.ListTemplates, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/templates", s.CreateTemplate, mid.RouteOpt{IsAuth: true})
	mid.PUT(r, "/api/templates/:id", s.UpdateTemplate, mid.RouteOpt{IsAuth: true})
	mid.DELETE(r, "/api/templates/:id", s.DeleteTemplate, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/admin/assignments", s.ListAssignments, mid.RouteOpt{IsAdmin: true})
	mid.POST(r, "/api/admin/assignments", s.AssignPhone, mid.RouteOpt{IsAdmin: true})
	mid.DELETE(r, "/api/admin/assignments/:userId", s.RemoveAssignment, mid.RouteOpt{IsAdmin: true})

	if s.Hub != nil {
		mid.GET(r, "/ws/inbox", s.Hub.HandleWS, mid.RouteOpt{IsAuth: true})
	}
}

// MarkRead is the REST shim of the mark-as-read workflow: upsert the
// (userId, phone) row with the instant measured here and echo back what
// was persisted. The synchronizer's primary strategy calls this route.
func (s *Server) MarkRead(c *gin.Context) {
	phone := c.Param("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone number is required"})
		return
	}
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required in request body"})
		return
	}

	rs, err := s.ReadStates.Upsert(c.Request.Context(), body.UserID, phone, time.Now().UTC())
	if err != nil {
		logger.Errorf("[inbox] mark-read upsert user=%s phone=%s: %v", body.UserID, phone, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"phone_number": rs.PhoneNumber,
		"last_read_at": rs.LastReadAt,
	})
}

// MarkReadSession drives the synchronizer for the signed-in user:
// optimistic apply, strategy chain, reload, rollback on failure.
func (s *Server) MarkReadSession(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(midsec.CtxUserIDKey)
	phone := c.Param("phone")

	own, err := s.Assignments.PhoneOf(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	syncer := s.Sessions.ForUser(ctx, userID, own)
	syncer.SetMessages(s.messagesFor(ctx, own))

	receipt, err := syncer.MarkAsRead(ctx, phone)
	if err != nil {
		if errs.ErrArgs.Is(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// optimistic state is already rolled back; tell the user
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark conversation as read"})
		return
	}

	unread := syncer.UnreadCount(phone)
	if s.Hub != nil {
		s.Hub.Push(userID, []notify.UnreadUpdate{{PhoneNumber: phone, Unread: unread}})
	}
	c.JSON(http.StatusOK, gin.H{
		"phone_number": receipt.PhoneNumber,
		"last_read_at": receipt.LastReadAt,
		"unread":       unread,
	})
}

// Inbox returns the conversation projections for the signed-in user.
func (s *Server) Inbox(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(midsec.CtxUserIDKey)

	own, err := s.Assignments.PhoneOf(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if own == "" {
		// no number assigned yet: nothing to show, the UI prompts for admin
		c.JSON(http.StatusOK, gin.H{"phone_number": "", "conversations": []model.ConversationProjection{}})
		return
	}

	syncer := s.Sessions.ForUser(ctx, userID, own)
	syncer.SetMessages(s.messagesFor(ctx, own))
	projections := syncer.Projections()

	if s.Hub != nil {
		updates := make([]notify.UnreadUpdate, 0, len(projections))
		for _, p := range projections {
			updates = append(updates, notify.UnreadUpdate{PhoneNumber: p.PhoneNumber, Unread: p.UnreadCount})
		}
		s.Hub.Push(userID, updates)
	}
	c.JSON(http.StatusOK, gin.H{"phone_number": own, "conversations": projections})
}

// Thread returns one conversation's messages, oldest first.
func (s *Server) Thread(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(midsec.CtxUserIDKey)
	phone := c.Param("phone")

	own, err := s.Assignments.PhoneOf(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	msgs := s.messagesFor(ctx, own)
	c.JSON(http.StatusOK, gin.H{
		"phone_number": phone,
		"messages":     conversation.Thread(msgs, phone, own),
	})
}

func (s *Server) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(midsec.CtxUserIDKey)

	var body struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.To == "" || body.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and body are required"})
		return
	}

	own, err := s.Assignments.PhoneOf(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if own == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no phone number assigned"})
		return
	}

	msg, err := s.Provider.Send(ctx, own, body.To, body.Body)
	if err != nil {
		logger.Errorf("[inbox] send user=%s to=%s: %v", userID, body.To, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send message"})
		return
	}
	if s.Cache != nil {
		// next render must refetch and include the new message
		s.Cache.Invalidate(ctx, own)
	}
	c.JSON(http.StatusOK, msg)
}

// ReadState exposes one row for debugging and for clients that only
// need the timestamp. Absent rows come back with a null last_read_at.
func (s *Server) ReadState(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(midsec.CtxUserIDKey)
	phone := c.Param("phone")

	rs, err := s.ReadStates.Get(ctx, userID, phone)
	if err != nil {
		if errs.ErrNotFound.Is(err) {
			c.JSON(http.StatusOK, gin.H{"phone_number": phone, "last_read_at": nil})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone_number": rs.PhoneNumber, "last_read_at": rs.LastReadAt})
}

// messagesFor loads the provider messages for a number through the
// cache. Provider failures degrade to an empty inbox rather than a
// broken page; the error is logged, not surfaced.
func (s *Server) messagesFor(ctx context.Context, number string) []model.Message {
	if number == "" {
		return nil
	}
	if s.Cache != nil {
		if msgs, ok := s.Cache.Get(ctx, number); ok {
			return msgs
		}
	}
	msgs, err := s.Provider.ListMessages(ctx, number)
	if err != nil {
		logger.Warnf("[inbox] list messages %s: %v", number, err)
		return nil
	}
	if s.Cache != nil {
		s.Cache.Put(ctx, number, msgs)
	}
	return msgs
}
