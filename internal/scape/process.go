package scape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultInputFile  = "input_data.json"
	DefaultResultFile = "angle.txt"
)

// ProcessEvaluator hands a cross-section to an external simulator through
// files: the outline goes to InputFile, Command runs inside WorkDir and the
// bend angle is read back from ResultFile.
type ProcessEvaluator struct {
	ID         string
	Command    []string
	WorkDir    string
	InputFile  string
	ResultFile string
}

func (p *ProcessEvaluator) Name() string {
	if p.ID == "" {
		return "process"
	}
	return p.ID
}

func (p *ProcessEvaluator) Evaluate(ctx context.Context, req Request) (float64, Trace, error) {
	if len(p.Command) == 0 {
		return 0, nil, errors.New("evaluator command is required")
	}
	if len(req.Phenotype) == 0 {
		return 0, nil, ErrEmptyPhenotype
	}

	inputPath := filepath.Join(p.WorkDir, p.inputFile())
	resultPath := filepath.Join(p.WorkDir, p.resultFile())

	points := ExportCoordinates(req.Phenotype, req.Canvas)
	if err := WriteCoordinatesJSON(inputPath, points); err != nil {
		return 0, nil, fmt.Errorf("write evaluator input: %w", err)
	}
	if err := os.Remove(resultPath); err != nil && !os.IsNotExist(err) {
		return 0, nil, fmt.Errorf("clear previous result: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Dir = p.WorkDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, nil, fmt.Errorf("run %s: %w: %s", p.Command[0], err, strings.TrimSpace(string(out)))
	}

	angle, err := ReadAngle(resultPath)
	if err != nil {
		return 0, nil, err
	}
	return angle, Trace{
		"points":      len(points),
		"result_file": resultPath,
	}, nil
}

func (p *ProcessEvaluator) inputFile() string {
	if p.InputFile == "" {
		return DefaultInputFile
	}
	return p.InputFile
}

func (p *ProcessEvaluator) resultFile() string {
	if p.ResultFile == "" {
		return DefaultResultFile
	}
	return p.ResultFile
}

// ReadAngle parses the single scalar written by the simulator.
func ReadAngle(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrMissingResult, path)
		}
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	angle, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResult, text)
	}
	return angle, nil
}
