package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"coho/internal/requests"
)

// Manual is a Collaborator for destinations without an API binding.
// Uploads are exported to a drop folder as ready-to-submit artifacts
// (payload location, torrent file, description text); the operator
// finishes the submission by hand.
//
// Two optional files under the drop folder feed the earlier pipeline
// stages: recent.txt supplies the duplicate index (one release per line,
// `Artist - Title [Format] {Year}`), and requests.json supplies open
// requests.
type Manual struct {
	DestName  string
	ExportDir string
}

// NewManual builds a Manual collaborator exporting under dir.
func NewManual(name, dir string) *Manual {
	return &Manual{DestName: name, ExportDir: dir}
}

func (m *Manual) Name() string { return m.DestName }

func (m *Manual) RecentUploads(context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.ExportDir, "recent.txt"))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read recent uploads index: %w", err)
	}
	return string(data), nil
}

func (m *Manual) OpenRequests(context.Context) ([]requests.Request, error) {
	data, err := os.ReadFile(filepath.Join(m.ExportDir, "requests.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read requests file: %w", err)
	}
	var open []requests.Request
	if err := json.Unmarshal(data, &open); err != nil {
		return nil, fmt.Errorf("parse requests file: %w", err)
	}
	return open, nil
}

func (m *Manual) Upload(_ context.Context, sub Submission) error {
	dir := filepath.Join(m.ExportDir, exportFolderName(sub))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export folder: %w", err)
	}

	description := filepath.Join(dir, "description.bbcode")
	if err := os.WriteFile(description, []byte(sub.Description), 0o644); err != nil {
		return fmt.Errorf("write description: %w", err)
	}

	if sub.DescriptorPath != "" {
		target := filepath.Join(dir, filepath.Base(sub.DescriptorPath))
		if err := copyFile(sub.DescriptorPath, target); err != nil {
			return fmt.Errorf("copy torrent descriptor: %w", err)
		}
	}

	manifest := fmt.Sprintf("release: %s\nformat: %s\npayload: %s\n", sub.ReleaseTitle, sub.Format, sub.PayloadDir)
	if sub.RequestID != "" {
		manifest += "request: " + sub.RequestID + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, "submission.txt"), []byte(manifest), 0o644); err != nil {
		return fmt.Errorf("write submission manifest: %w", err)
	}
	return nil
}

func exportFolderName(sub Submission) string {
	name := sub.ReleaseTitle
	if name == "" {
		name = "release"
	}
	if sub.Format != "" {
		name += " [" + sub.Format + "]"
	}
	// Path separators would splinter the export folder.
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	return name
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
