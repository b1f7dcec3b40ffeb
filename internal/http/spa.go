package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"gastos/internal/middleware/security"
)

const assetMaxAge = 31536000

// spaHandler serves the client build from dir. Paths that do not name a file
// get index.html so the client router can resolve them.
func spaHandler(dir string) http.Handler {
	root := http.Dir(dir)
	files := security.StaticAssetMiddleware(assetMaxAge)(http.FileServer(root))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
			return
		}

		name := path.Clean("/" + r.URL.Path)
		if name != "/" && name != "/index.html" {
			if f, err := root.Open(name); err == nil {
				info, statErr := f.Stat()
				_ = f.Close()
				if statErr == nil && !info.IsDir() {
					files.ServeHTTP(w, r)
					return
				}
			}
		}

		if _, err := os.Stat(index); err != nil {
			writeNotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	})
}
