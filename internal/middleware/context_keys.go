package middleware

import "github.com/gin-gonic/gin"

// skipRecomputeKey is the key used to store the per-request skip flag in the Gin context.
const skipRecomputeKey = contextKey("skipRecompute")

// SkipRecomputeFromQuery records the skipRecompute query parameter for ledger mutations.
func SkipRecomputeFromQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(skipRecomputeKey), c.Query("skipRecompute") == "true")
		c.Next()
	}
}

// GetSkipRecompute returns the skip flag recorded by SkipRecomputeFromQuery.
func GetSkipRecompute(c *gin.Context) bool {
	return c.GetBool(string(skipRecomputeKey))
}
