package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getHome godoc
// @Summary Show the status of server.
// @Description get the status of server and the storage backend it runs on.
// @Tags root
// @Accept */*
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func getHome(storageDriver string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"message": "Ledger Balances API v1",
			"storage": storageDriver,
		})
	}
}

// registerHomeRoutes registers the root status route.
func registerHomeRoutes(r *gin.Engine, storageDriver string) {
	r.GET("/", getHome(storageDriver))
}
