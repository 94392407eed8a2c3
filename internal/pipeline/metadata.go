package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/task"
)

// MetadataFile is written into every completed task's directory.
const MetadataFile = "metadata.json"

// Metadata is the persisted record of a completed task: the extracted
// content plus where each part of the result came from.
type Metadata struct {
	TaskID      string                `json:"task_id"`
	Request     task.Request          `json:"request"`
	Content     *paper.Content        `json:"content"`
	Outline     *paper.Outline        `json:"outline,omitempty"`
	Related     paper.Recommendations `json:"related"`
	Provenance  Provenance            `json:"provenance"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Provenance records which strategy or tier produced each part.
type Provenance struct {
	LinkType           string               `json:"link_type,omitempty"`
	PDFURL             string               `json:"pdf_url,omitempty"`
	ExtractionStrategy string               `json:"extraction_strategy,omitempty"`
	DefaultOutline     bool                 `json:"default_outline"`
	Chunks             int                  `json:"chunks"`
	Illustrations      []paper.Illustration `json:"illustrations"`
	RecommendationTier paper.Tier           `json:"recommendation_tier"`
	ExportTier         string               `json:"export_tier,omitempty"`
	Degradations       []string             `json:"degradations"`
}

func writeMetadata(s *State) error {
	m := Metadata{
		TaskID:      s.Task.ID,
		Request:     s.Task.Request,
		Content:     s.Content,
		Outline:     s.Outline,
		Related:     s.Related,
		GeneratedAt: time.Now().UTC(),
		Provenance: Provenance{
			Illustrations:      s.Illustrations,
			RecommendationTier: s.Related.Tier,
			Degradations:       s.Degradations,
		},
	}
	if d := s.Document; d != nil {
		m.Provenance.LinkType = string(d.Link)
		m.Provenance.PDFURL = d.PDFURL
	}
	if s.Content != nil {
		m.Provenance.ExtractionStrategy = s.Content.Strategy
	}
	if s.Outline != nil {
		m.Provenance.DefaultOutline = s.Outline.Default
	}
	if s.Text != nil {
		m.Provenance.Chunks = len(s.Text.Chunks)
	}
	if s.Export != nil {
		m.Provenance.ExportTier = s.Export.PDFTier
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	path := filepath.Join(s.Dir, MetadataFile)
	if err := os.WriteFile(path+".tmp", data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return os.Rename(path+".tmp", path)
}

// ReadMetadata loads a task's metadata file.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &m, nil
}
