package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
)

// Rendering options for the vis-network canvas. The physics and styling
// values are opaque configuration for the front-end; the pipeline never
// interprets them.
const defaultOptionsJSON = `{
  "autoResize": true,
  "configure": {"enabled": false},
  "edges": {
    "color": {"color": "#007BFF", "highlight": "#000000", "opacity": 0.7},
    "smooth": {"enabled": true, "type": "continuous"},
    "shadow": {"enabled": true, "size": 5}
  },
  "nodes": {
    "font": {"size": 20, "strokeWidth": 3},
    "borderWidthSelected": 15,
    "labelHighlightBold": true,
    "shapeProperties": {"interpolation": false}
  },
  "interaction": {"dragNodes": true, "hideEdgesOnDrag": false, "hideNodesOnDrag": false},
  "physics": {
    "enabled": true,
    "barnesHut": {
      "avoidOverlap": 0.1,
      "centralGravity": 1.5,
      "damping": 0.05,
      "gravitationalConstant": -100000,
      "springConstant": 0.01,
      "springLength": 600
    },
    "stabilization": {"enabled": false, "fit": true, "iterations": 1000}
  },
  "layout": {"improvedLayout": true, "randomSeed": 10}
}`

const (
	errMessageEncodeNodes = "encode graph nodes"
	errMessageEncodeEdges = "encode graph edges"
	templateParseFormat   = "template parse: %w"
	templateExecuteFormat = "template execute: %w"
)

type graphPageViewModel struct {
	Title        string
	BaseCSS      template.CSS
	GraphJS      template.JS
	NodesJSON    template.JS
	EdgesJSON    template.JS
	OptionsJSON  template.JS
	CloseFriends []closeFriendViewModel
}

type closeFriendViewModel struct {
	ID       int64
	Name     string
	PhotoURL string
}

// RenderPage assembles the interactive graph page using the embedded
// template and assets. All edge categories are drawn on one canvas.
func RenderPage(assembled *Graph) (string, error) {
	cssText, err := embeddedText(embeddedBaseCSSPath)
	if err != nil {
		return "", err
	}
	jsText, err := embeddedText(embeddedGraphJSPath)
	if err != nil {
		return "", err
	}

	nodesJSON, err := json.Marshal(assembled.Nodes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errMessageEncodeNodes, err)
	}
	allEdges := make([]Edge, 0, len(assembled.Edges)+len(assembled.Gifts)+len(assembled.Likes)+len(assembled.Comments))
	allEdges = append(allEdges, assembled.Edges...)
	allEdges = append(allEdges, assembled.Gifts...)
	allEdges = append(allEdges, assembled.Likes...)
	allEdges = append(allEdges, assembled.Comments...)
	edgesJSON, err := json.Marshal(allEdges)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errMessageEncodeEdges, err)
	}

	viewModel := graphPageViewModel{
		Title:       assembled.Heading,
		BaseCSS:     template.CSS(cssText),
		GraphJS:     template.JS(jsText),
		NodesJSON:   template.JS(nodesJSON),
		EdgesJSON:   template.JS(edgesJSON),
		OptionsJSON: template.JS(defaultOptionsJSON),
	}
	for _, friend := range assembled.CloseFriends {
		viewModel.CloseFriends = append(viewModel.CloseFriends, closeFriendViewModel{
			ID:       friend.ID,
			Name:     friendDisplayTitle(friend),
			PhotoURL: friend.PhotoURL,
		})
	}

	tmpl, err := parseTemplates(embeddedFS, templateGraphFile)
	if err != nil {
		return "", fmt.Errorf(templateParseFormat, err)
	}
	var buffer bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buffer, templateGraphName, viewModel); err != nil {
		return "", fmt.Errorf(templateExecuteFormat, err)
	}
	return buffer.String(), nil
}
