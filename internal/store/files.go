package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rcliao/growthbot/internal/model"
)

// LoadClusters reads the cluster file. A missing or empty file returns
// ErrClustersNotFound.
func LoadClusters(path string) (model.ClusterSet, error) {
	var set model.ClusterSet
	ok, err := readJSON(path, &set)
	if err != nil {
		return set, err
	}
	if !ok {
		return set, fmt.Errorf("%w: %s", ErrClustersNotFound, path)
	}
	return set, nil
}

// SaveClusters replaces the cluster file.
func SaveClusters(path string, set model.ClusterSet) error {
	return writeJSON(path, set)
}

// LoadConcept reads the last synthesized concept. ok is false when none has
// been written yet.
func LoadConcept(path string) (c model.Concept, ok bool, err error) {
	ok, err = readJSON(path, &c)
	return c, ok, err
}

// SaveConcept overwrites the concept file wholesale.
func SaveConcept(path string, c model.Concept) error {
	return writeJSON(path, c)
}

// SaveText writes a plain text artifact such as the concept report.
func SaveText(path, text string) error {
	return writeFile(path, []byte(text))
}

// Exists reports whether a regular file is present at path.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}
