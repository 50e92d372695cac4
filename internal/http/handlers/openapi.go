package handlers

import (
	"bytes"
	_ "embed"
	"net/http"
	"time"
)

//go:embed openapi.json
var openAPISpec []byte

// openAPIModTime lets clients revalidate the embedded document.
var openAPIModTime = time.Now().UTC()

// OpenAPIJSON serves the description of the /v1 task, batch and character
// endpoints.
func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, "openapi.json", openAPIModTime, bytes.NewReader(openAPISpec))
}
