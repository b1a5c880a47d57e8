package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// OpenAPIPath 手写的 OpenAPI 文档
const OpenAPIPath = "docs/api/openapi.yaml"

const (
	redocCDN   = "https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"
	redocLocal = "static/vendors/redoc/redoc.standalone.js"
)

const redocPage = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Obscura API - Redoc</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
      body{margin:0;padding:0;font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif}
      .topbar{position:fixed;top:0;left:0;right:0;height:48px;display:flex;align-items:center;justify-content:space-between;padding:0 12px;background:#f8fafc;border-bottom:1px solid #e5e7eb;z-index:9999}
      .topbar a{margin-left:12px;padding:6px 10px;border:1px solid #d1d5db;border-radius:6px;color:#0f172a;text-decoration:none}
      .wrap{margin-top:48px}
    </style>
  </head>
  <body>
    <div class="topbar">
      <strong>Obscura API</strong>
      <div>
        <a href="/openapi" target="_blank">OpenAPI YAML</a>
        <a href="/docs/ui">Swagger UI</a>
      </div>
    </div>
    <div class="wrap"><redoc spec-url="/openapi"></redoc></div>
    <script src="{{SCRIPT}}"></script>
  </body>
</html>`

const swaggerUIPage = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Obscura API - Swagger UI</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({ url: '/openapi', dom_id: '#swagger-ui', docExpansion: 'none' });
    </script>
  </body>
</html>`

// registerOpenAPIRoutes 提供 /openapi 与 /docs/redoc
func registerOpenAPIRoutes(engine *gin.Engine) {
	engine.GET("/openapi", serveOpenAPI)
	engine.GET("/openapi.yaml", serveOpenAPI)
	engine.GET("/docs/redoc", serveRedoc)
	engine.GET("/docs/ui", serveSwaggerUI)
}

func serveOpenAPI(c *gin.Context) {
	c.Header("Content-Type", "application/yaml; charset=utf-8")
	c.File(OpenAPIPath)
}

func serveRedoc(c *gin.Context) {
	// 优先使用本地 redoc 资源，离线可用；否则回退到 CDN
	script := redocCDN
	if _, err := os.Stat(redocLocal); err == nil {
		script = "/" + redocLocal
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(strings.Replace(redocPage, "{{SCRIPT}}", script, 1)))
}

func serveSwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerUIPage))
}
