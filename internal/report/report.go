// Package report renders run reports for terminals (Markdown) and for the
// daemon's job endpoints (HTML).
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/photo2stl/internal/pipeline"
)

// Markdown renders a run report as a Markdown document.
func Markdown(r *pipeline.RunReport) string {
	var sb strings.Builder

	sb.WriteString("# Reconstruction report\n\n")
	fmt.Fprintf(&sb, "- Source: `%s`\n", r.Source)
	fmt.Fprintf(&sb, "- Images: %d\n", r.Images)
	fmt.Fprintf(&sb, "- Duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "- Outcome: %s\n", outcome(r))
	if r.STLPath != "" {
		fmt.Fprintf(&sb, "- STL: `%s`\n", r.STLPath)
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "- Error: %s\n", r.Error)
	}
	sb.WriteString("\n")

	if r.MeshInfo != nil {
		sb.WriteString("## Mesh\n\n")
		fmt.Fprintf(&sb, "- Vertices: %d\n", r.MeshInfo.Vertices)
		fmt.Fprintf(&sb, "- Triangles: %d\n", r.MeshInfo.Triangles)
		if r.MeshInfo.DegenerateRemoved > 0 {
			fmt.Fprintf(&sb, "- Degenerate triangles removed: %d\n", r.MeshInfo.DegenerateRemoved)
		}
		fmt.Fprintf(&sb, "- Watertight: %v\n", r.MeshInfo.Watertight)
		if !r.MeshInfo.Watertight {
			sb.WriteString("\nThe mesh has open edges; most slicers repair small holes, but inspect it before printing.\n")
		}
		sb.WriteString("\n")
	}

	if len(r.Stages) > 0 {
		sb.WriteString("## Stages\n\n")
		sb.WriteString("| Stage | Status | Attempts | Duration |\n")
		sb.WriteString("| --- | --- | ---: | ---: |\n")
		for _, s := range r.Stages {
			fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n",
				s.Stage, s.Status, s.Attempts, s.Duration.Round(time.Millisecond))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// HTML renders a run report as an HTML fragment.
func HTML(r *pipeline.RunReport) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func outcome(r *pipeline.RunReport) string {
	if r.Success {
		return "success"
	}
	return "failed"
}
