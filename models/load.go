package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrEmptyInput is returned when the input holds no JSON at all
	ErrEmptyInput = errors.New("empty container input")

	// ErrNotAContainer is returned when the input is valid JSON but not an object
	ErrNotAContainer = errors.New("input is not a GTM container object")
)

// ParseContainer decodes a container export from raw JSON.
func ParseContainer(data []byte) (*Container, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if data[0] != '{' {
		if json.Valid(data) {
			return nil, ErrNotAContainer
		}
		return nil, fmt.Errorf("invalid JSON: %w", ErrNotAContainer)
	}
	var c Container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode container: %w", err)
	}
	return &c, nil
}

// LoadContainer reads and decodes a container export from r.
func LoadContainer(r io.Reader) (*Container, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read container: %w", err)
	}
	return ParseContainer(data)
}

// LoadContainerFile reads a container export from path; "-" reads stdin.
func LoadContainerFile(path string) (*Container, error) {
	if path == "-" {
		return LoadContainer(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container file: %w", err)
	}
	defer f.Close()
	return LoadContainer(f)
}
