package config

import (
	"errors"
	"os"
	"strings"
)

// SaveToken stores the session token.
func SaveToken(path, token string) error {
	return writeFileAtomic(path, []byte(token+"\n"))
}

// LoadToken returns the stored token, or "" when logged out.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// RemoveToken deletes the token file. A missing file is not an error.
func RemoveToken(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
