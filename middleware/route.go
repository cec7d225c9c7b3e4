package middleware

import (
	midsec "SMSDesk/middleware/security"

	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth  bool
	IsAdmin bool
}

func (o RouteOpt) wrap(handler gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, 3)
	if o.IsAuth || o.IsAdmin {
		chain = append(chain, midsec.Middleware())
	}
	if o.IsAdmin {
		chain = append(chain, midsec.AdminOnly())
	}
	return append(chain, handler)
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, opt.wrap(handler)...)
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, opt.wrap(handler)...)
}

func PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.PUT(path, opt.wrap(handler)...)
}

func PATCH(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.PATCH(path, opt.wrap(handler)...)
}

func DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, opt.wrap(handler)...)
}
