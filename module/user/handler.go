package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"SMSDesk/module/user/service"
	"SMSDesk/tools/errs"
)

type Handler struct {
	Users *service.UserService
}

func (h *Handler) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, u, err := h.Users.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		switch {
		case errs.ErrArgs.Is(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errs.ErrToken.Is(err):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       u.ID,
			"username": u.Username,
			"name":     u.Name,
			"role":     u.Role,
		},
	})
}
