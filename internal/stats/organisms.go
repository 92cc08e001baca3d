package stats

import (
	"fmt"
	"os"
	"path/filepath"

	"bendgen/internal/model"
	"bendgen/internal/render"
	"bendgen/internal/scape"
)

const (
	coordinatesDir   = "coordinates"
	crossSectionsDir = "cross_sections"
)

func CoordinatesPath(runDir string, generation, index int) string {
	return filepath.Join(runDir, coordinatesDir, fmt.Sprintf("Individual%d_%d.json", generation, index))
}

func CrossSectionPath(runDir string, generation, index int) string {
	return filepath.Join(runDir, crossSectionsDir, fmt.Sprintf("Individual_%d_%d.png", generation, index))
}

// WriteGenerationFiles writes the exported outline and a rendered image for
// every organism of an evaluated generation, keyed by generation and the
// organism's evaluation index.
func WriteGenerationFiles(runDir string, canvas render.Canvas, scale int, population []model.Organism) error {
	for _, dir := range []string{coordinatesDir, crossSectionsDir} {
		if err := os.MkdirAll(filepath.Join(runDir, dir), 0o755); err != nil {
			return err
		}
	}
	for _, o := range population {
		points := scape.ExportCoordinates(o.Phenotype, canvas)
		if err := scape.WriteCoordinatesJSON(CoordinatesPath(runDir, o.Generation, o.Index), points); err != nil {
			return fmt.Errorf("coordinates for %s: %w", o.ID, err)
		}
		if err := writeCrossSection(CrossSectionPath(runDir, o.Generation, o.Index), o.Phenotype, canvas, scale); err != nil {
			return fmt.Errorf("cross section for %s: %w", o.ID, err)
		}
	}
	return nil
}

func writeCrossSection(path string, phenotype []model.Coord, canvas render.Canvas, scale int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.EncodePNG(f, phenotype, canvas, scale); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
