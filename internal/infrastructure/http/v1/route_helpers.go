// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// NumberingRouteHandler defines the endpoints of the numbering API.
type NumberingRouteHandler interface {
	Generate(c *gin.Context)
	Exists(c *gin.Context)
	CreateRule(c *gin.Context)
	ListRules(c *gin.Context)
	GetRule(c *gin.Context)
	AdvanceSequence(c *gin.Context)
}

// HistoryRouteHandler is an optional interface for handlers exposing the audit trail.
type HistoryRouteHandler interface {
	HasHistory() bool
	History(c *gin.Context)
}

// RegisterNumberingRoutes registers generation and rule administration routes.
// If the handler also implements HistoryRouteHandler with an audit reader,
// the history route is registered too.
func RegisterNumberingRoutes(group *gin.RouterGroup, handler NumberingRouteHandler) {
	numbers := group.Group("/document-numbers")
	numbers.POST("", handler.Generate)
	numbers.GET("/exists", handler.Exists)

	rules := group.Group("/numbering-rules")
	rules.POST("", handler.CreateRule)
	rules.GET("", handler.ListRules)
	rules.GET("/:id", handler.GetRule)
	rules.PUT("/:id/sequences", handler.AdvanceSequence)

	if h, ok := handler.(HistoryRouteHandler); ok && h.HasHistory() {
		rules.GET("/:id/history", h.History)
	}
}
