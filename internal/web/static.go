package web

import (
	"embed"
)

// static holds the embedded operator page and its script.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
