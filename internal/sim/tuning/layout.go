package tuning

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CheckLayout rejects directory layouts where regenerating the staging tree
// or writing the artifact would clobber or feed back into the audio source.
// The staging tree is removed wholesale on every build, so it must be a
// dedicated directory.
func CheckLayout(audioDir, stagingDir, artifactPath string) error {
	if strings.TrimSpace(stagingDir) == "" {
		return fmt.Errorf("staging_dir must not be empty")
	}
	staging, err := filepath.Abs(stagingDir)
	if err != nil {
		return fmt.Errorf("staging_dir: %w", err)
	}
	if filepath.Dir(staging) == staging {
		return fmt.Errorf("staging_dir must not be a filesystem root: %s", stagingDir)
	}

	if strings.TrimSpace(audioDir) != "" {
		audio, err := filepath.Abs(audioDir)
		if err != nil {
			return fmt.Errorf("audio_dir: %w", err)
		}
		if within(audio, staging) || within(staging, audio) {
			return fmt.Errorf("staging_dir %s overlaps audio_dir %s", stagingDir, audioDir)
		}
		if strings.TrimSpace(artifactPath) != "" {
			artifact, err := filepath.Abs(artifactPath)
			if err != nil {
				return fmt.Errorf("artifact_path: %w", err)
			}
			if within(audio, artifact) {
				return fmt.Errorf("artifact_path %s is inside audio_dir %s", artifactPath, audioDir)
			}
		}
	}

	if strings.TrimSpace(artifactPath) != "" {
		artifact, err := filepath.Abs(artifactPath)
		if err != nil {
			return fmt.Errorf("artifact_path: %w", err)
		}
		if within(staging, artifact) {
			return fmt.Errorf("artifact_path %s is inside staging_dir %s", artifactPath, stagingDir)
		}
	}
	return nil
}

// within reports whether path is dir or lies below it. Both must be absolute.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
