package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configFileName = "config.json"
	imagesDirName  = "images"
	recordsDirName = "records"
)

// Layout maps plan and record identifiers onto the on-disk directory
// structure: one directory per plan holding a config file, an images
// directory and one JSON file per record.
type Layout struct {
	Root string
}

// PlanDir returns the directory owned by the named plan.
func (l Layout) PlanDir(planName string) string {
	return filepath.Join(l.Root, planName)
}

// ConfigPath returns the plan configuration file path.
func (l Layout) ConfigPath(planName string) string {
	return filepath.Join(l.PlanDir(planName), configFileName)
}

// ImagesDir returns the directory storing a plan's uploaded images.
func (l Layout) ImagesDir(planName string) string {
	return filepath.Join(l.PlanDir(planName), imagesDirName)
}

// RecordsDir returns the directory storing a plan's grading records.
func (l Layout) RecordsDir(planName string) string {
	return filepath.Join(l.PlanDir(planName), recordsDirName)
}

// RecordPath returns the file path for a single grading record.
func (l Layout) RecordPath(planName, recordID string) string {
	return filepath.Join(l.RecordsDir(planName), recordID+".json")
}

// writeJSON persists v atomically: the payload is written to a temporary
// file in the target directory and renamed into place, so readers never
// observe a truncated document.
func writeJSON(path string, v interface{}) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

func readJSON(path string, v interface{}) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
