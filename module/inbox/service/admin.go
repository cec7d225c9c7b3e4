package service

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"SMSDesk/module/inbox/model"
)

// plus followed by at least 11 digits, same rule the dashboard form uses
var phonePattern = regexp.MustCompile(`^\+\d{11,}$`)

func (s *Server) ListAssignments(c *gin.Context) {
	as, err := s.Assignments.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if as == nil {
		as = []model.PhoneAssignment{}
	}
	c.JSON(http.StatusOK, gin.H{"assignments": as})
}

func (s *Server) AssignPhone(c *gin.Context) {
	var body struct {
		UserID      string `json:"userId"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" || body.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and phoneNumber are required"})
		return
	}
	if !phonePattern.MatchString(body.PhoneNumber) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone number must be E.164, e.g. +15551230000"})
		return
	}
	if err := s.Assignments.Assign(c.Request.Context(), body.UserID, body.PhoneNumber); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// the user's session derives everything from the assigned number
	s.Sessions.Drop(body.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) RemoveAssignment(c *gin.Context) {
	userID := c.Param("userId")
	if err := s.Assignments.Remove(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.Sessions.Drop(userID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
