//go:build !prod

package measplot

import "embed"

// Empty in dev builds; the page is served from webui/ by hand while working
// on it.
var webuiFiles embed.FS

func openBrowser(url string) {}
