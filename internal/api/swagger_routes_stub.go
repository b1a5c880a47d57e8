//go:build !swagger

package api

import "github.com/gin-gonic/gin"

// registerSwaggerRoutes 非 swagger 构建不挂载 /swagger
func registerSwaggerRoutes(*gin.Engine) {}
