package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	midsec "SMSDesk/middleware/security"
	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

type templateBody struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (b *templateBody) validate() string {
	if b.Content == "" {
		return "content is required"
	}
	if !model.ValidTemplateType(b.Type) {
		return "unknown template type " + b.Type
	}
	return ""
}

func (s *Server) ListTemplates(c *gin.Context) {
	userID := c.GetString(midsec.CtxUserIDKey)
	ts, err := s.Templates.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ts == nil {
		ts = []model.MessageTemplate{}
	}
	c.JSON(http.StatusOK, gin.H{"templates": ts})
}

func (s *Server) CreateTemplate(c *gin.Context) {
	userID := c.GetString(midsec.CtxUserIDKey)
	var body templateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template body"})
		return
	}
	if msg := body.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	t, err := s.Templates.Create(c.Request.Context(), userID, body.Type, body.Name, body.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) UpdateTemplate(c *gin.Context) {
	userID := c.GetString(midsec.CtxUserIDKey)
	id := c.Param("id")
	var body templateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template body"})
		return
	}
	if msg := body.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	t, err := s.Templates.Update(c.Request.Context(), userID, id, body.Type, body.Name, body.Content)
	if err != nil {
		if errs.ErrNotFound.Is(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) DeleteTemplate(c *gin.Context) {
	userID := c.GetString(midsec.CtxUserIDKey)
	id := c.Param("id")
	if err := s.Templates.Delete(c.Request.Context(), userID, id); err != nil {
		if errs.ErrNotFound.Is(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
