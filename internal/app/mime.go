package app

import (
	"log"
	"mime"
)

// Some minimal container images ship without /etc/mime.types, which makes
// the static file server send stylesheets as text/plain.
func init() {
	registerMimeType(".css", "text/css; charset=utf-8")
	registerMimeType(".js", "text/javascript; charset=utf-8")
}

func registerMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: register MIME type %s: %v", ext, err)
	}
}
