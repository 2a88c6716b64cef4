package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BookToConvert represents a single book to process.
type BookToConvert struct {
	InputPath string
	OutputDir string // empty = next to the book
}

// discoverBooks finds all PDF files to convert under inputPath.
func discoverBooks(inputPath, outputDir string) ([]BookToConvert, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if !looksLikePDF(inputPath) {
			return nil, fmt.Errorf("%w: got %q", ErrInvalidExtension, filepath.Ext(inputPath))
		}
		return []BookToConvert{{InputPath: inputPath, OutputDir: bookOutputDir(inputPath, outputDir, "")}}, nil
	}

	var books []BookToConvert
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if d.IsDir() || !looksLikePDF(path) {
			return nil
		}
		books = append(books, BookToConvert{InputPath: path, OutputDir: bookOutputDir(path, outputDir, inputPath)})
		return nil
	})

	return books, err
}
