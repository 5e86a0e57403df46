package handler

import (
	"bytes"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// openAPIDoc holds the document loaded at startup; nil until SetSwaggerSpec.
var openAPIDoc atomic.Pointer[[]byte]

// SetSwaggerSpec installs the OpenAPI document (YAML or JSON) served at /swagger/spec.
func SetSwaggerSpec(spec []byte) {
	if spec == nil {
		openAPIDoc.Store(nil)
		return
	}
	openAPIDoc.Store(&spec)
}

// SwaggerSpec serves the OpenAPI document.
func SwaggerSpec(c *gin.Context) {
	doc := openAPIDoc.Load()
	if doc == nil {
		c.String(http.StatusNotFound, "OpenAPI document not loaded")
		return
	}
	contentType := "application/yaml"
	if trimmed := bytes.TrimSpace(*doc); len(trimmed) > 0 && trimmed[0] == '{' {
		contentType = "application/json"
	}
	c.Data(http.StatusOK, contentType, *doc)
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>lexpay API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: '/swagger/spec', dom_id: '#swagger-ui', deepLinking: true });
  </script>
</body>
</html>`

// SwaggerUI serves a Swagger UI page backed by /swagger/spec.
func SwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}
