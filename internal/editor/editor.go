// Package editor launches the user's text editor on a file.
package editor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var fallbackEditors = []string{"nvim", "vim", "vi", "nano"}

// Find returns the editor command to use.
// $VISUAL wins over $EDITOR; without either it falls back to nvim, vim, vi, nano.
func Find() (string, error) {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if ed := os.Getenv(env); ed != "" {
			return ed, nil
		}
	}
	for _, ed := range fallbackEditors {
		if path, err := exec.LookPath(ed); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no editor found: set $EDITOR environment variable")
}

// Open opens the given file in the specified editor.
// The editor string is split by whitespace to support values like "code --wait".
// The editor runs in the foreground with stdin/stdout/stderr connected.
func Open(editor, filePath string) error {
	args := strings.Fields(editor)
	if len(args) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	args = append(args, filePath)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %s: %w", editor, err)
	}
	return nil
}

// Seed writes initial to filePath when the file does not exist yet, creating
// parent directories. It reports whether the file was created.
func Seed(filePath string, initial []byte) (bool, error) {
	if _, err := os.Stat(filePath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", filePath, err)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return false, fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(filePath, initial, 0644); err != nil {
		return false, fmt.Errorf("write %s: %w", filePath, err)
	}
	return true, nil
}
