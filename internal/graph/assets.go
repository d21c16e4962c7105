package graph

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
)

//go:embed web/static/* web/templates/*
var embeddedFS embed.FS

const (
	templateBaseName     = "base"
	templateGraphFile    = "web/templates/graph.tmpl"
	templateGraphName    = "graph.tmpl"
	embeddedBaseCSSPath  = "web/static/base.css"
	embeddedGraphJSPath  = "web/static/graph.js"
	embedReadErrorFormat = "embed read %s: %w"
)

func embeddedText(path string) (string, error) {
	content, err := fs.ReadFile(embeddedFS, path)
	if err != nil {
		return "", fmt.Errorf(embedReadErrorFormat, path, err)
	}
	return string(content), nil
}

// StaticAssets exposes the embedded static asset filesystem.
func StaticAssets() (fs.FS, error) {
	return fs.Sub(embeddedFS, "web/static")
}

func parseTemplates(fileSystem fs.FS, files ...string) (*template.Template, error) {
	parsedTemplate, err := template.New(templateBaseName).ParseFS(fileSystem, files...)
	if err != nil {
		return nil, err
	}
	return parsedTemplate, nil
}
