package main

import (
	"net/http"

	"watch-gateway/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// buildRouter 装配检查接口路由
func buildRouter(appContext *AppContext) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := httpapi.NewHandler(appContext.RuleStore, appContext.AdminSet, appContext.RecordStore)

	router.GET("/healthz", handler.HandleHealthz)

	v1 := router.Group("/v1")
	{
		v1.GET("/rules", handler.HandleQueryRules)
		v1.GET("/admins", handler.HandleQueryAdmins)
		v1.GET("/records", handler.HandleQueryRecords)
	}

	return router
}

// corsMiddleware 跨域中间件,检查接口默认放开
func corsMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if context.Request.Method == http.MethodOptions {
			context.AbortWithStatus(http.StatusNoContent)
			return
		}
		context.Next()
	}
}
