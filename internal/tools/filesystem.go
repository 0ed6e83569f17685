package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileManagerSkill reads, writes, lists, creates and deletes files and
// directories, optionally restricted to a set of allowed directories.
type FileManagerSkill struct {
	allowedDirectories []string // nil = unrestricted
}

func NewFileManagerSkill(allowedDirectories []string) *FileManagerSkill {
	return &FileManagerSkill{allowedDirectories: allowedDirectories}
}

func (t *FileManagerSkill) Name() string { return "file_manager" }

func (t *FileManagerSkill) Description() string {
	return "Manages files: read, write, list, create and delete files and directories."
}

func (t *FileManagerSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"read", "write", "list", "mkdir", "delete", "info"},
				"description": "The action to perform",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "The file or directory path",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write (only for action=write)",
			},
		},
		"required": []string{"action", "path"},
	}
}

func (t *FileManagerSkill) checkAccess(path string) bool {
	if t.allowedDirectories == nil {
		return true
	}
	resolved, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, d := range t.allowedDirectories {
		da, err := filepath.Abs(expandHome(d))
		if err != nil {
			continue
		}
		if strings.HasPrefix(resolved, da) {
			return true
		}
	}
	return false
}

func (t *FileManagerSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	action, _ := args["action"].(string)
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	path = expandHome(path)

	if !t.checkAccess(path) {
		return fmt.Sprintf("access denied: %q is outside the allowed directories", path), nil
	}

	switch action {
	case "read":
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return fmt.Sprintf("file not found: %s", path), nil
		}
		if err != nil {
			return "", err
		}
		text := string(data)
		if len(text) > 10000 {
			text = text[:10000] + "\n... (truncated)"
		}
		return text, nil

	case "write":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", err
		}
		return fmt.Sprintf("file written: %s", path), nil

	case "list":
		entries, err := os.ReadDir(path)
		if os.IsNotExist(err) {
			return fmt.Sprintf("directory not found: %s", path), nil
		}
		if err != nil {
			return "", err
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].IsDir() != entries[j].IsDir() {
				return entries[i].IsDir()
			}
			return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
		})
		var lines []string
		limit := len(entries)
		if limit > 100 {
			limit = 100
		}
		for _, e := range entries[:limit] {
			prefix := "[FILE] "
			size := ""
			if e.IsDir() {
				prefix = "[DIR]  "
			} else if info, err := e.Info(); err == nil {
				size = fmt.Sprintf(" (%d bytes)", info.Size())
			}
			lines = append(lines, prefix+e.Name()+size)
		}
		result := strings.Join(lines, "\n")
		if len(entries) > 100 {
			result += fmt.Sprintf("\n... and %d more entries", len(entries)-100)
		}
		if result == "" {
			result = "(empty directory)"
		}
		return result, nil

	case "mkdir":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", err
		}
		return fmt.Sprintf("directory created: %s", path), nil

	case "delete":
		if err := os.RemoveAll(path); err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted: %s", path), nil

	case "info":
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return fmt.Sprintf("not found: %s", path), nil
		}
		if err != nil {
			return "", err
		}
		kind := "file"
		if info.IsDir() {
			kind = "directory"
		}
		return fmt.Sprintf("%s: %s, %d bytes, modified %s", kind, path, info.Size(), info.ModTime()), nil

	default:
		return fmt.Sprintf("unknown action: %s", action), nil
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
