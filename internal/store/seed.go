package store

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"collabdocs/internal/models"
)

//go:embed seeds/*.yaml
var seedFS embed.FS

// DefaultDocumentID names the document served when a join asks for an unknown id.
const DefaultDocumentID = "welcome"

// SeedDocument is one preloaded document as written in YAML.
type SeedDocument struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Language string `yaml:"language"`
	Content  string `yaml:"content"`
}

func (s SeedDocument) toCreate() models.CreateDocument {
	return models.CreateDocument{ID: s.ID, Title: s.Title, Content: s.Content, Language: s.Language}
}

// embeddedSeeds returns the built-in documents, default document first.
func embeddedSeeds() ([]SeedDocument, error) {
	entries, err := seedFS.ReadDir("seeds")
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds directory: %w", err)
	}

	var seeds []SeedDocument
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := seedFS.ReadFile("seeds/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file %s: %w", entry.Name(), err)
		}
		var doc SeedDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse seed file %s: %w", entry.Name(), err)
		}
		seeds = append(seeds, doc)
	}

	sort.SliceStable(seeds, func(i, j int) bool { return seeds[i].ID == DefaultDocumentID && seeds[j].ID != DefaultDocumentID })
	return seeds, nil
}

// LoadSeedFile reads a YAML list of documents from disk.
func LoadSeedFile(path string) ([]SeedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var docs []SeedDocument
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return docs, nil
}
