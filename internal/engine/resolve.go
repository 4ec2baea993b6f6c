package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrEngineNotFound is returned when no whisper.cpp binary can be located.
	ErrEngineNotFound = errors.New("whisper.cpp binary not found")
	// ErrModelNotFound is returned when the model file is missing.
	ErrModelNotFound = errors.New("whisper model not found")
	// ErrUnknownModel is returned for model names outside KnownModels.
	ErrUnknownModel = errors.New("unknown whisper model")
)

// KnownModels lists the ggml model names accepted by the CLI.
var KnownModels = []string{
	"tiny", "tiny.en",
	"base", "base.en",
	"small", "small.en",
	"medium", "medium.en",
	"large-v1", "large-v2", "large-v3", "large-v3-turbo",
}

var binaryNames = []string{"whisper-cli", "whisper-cpp", "whisper"}

// fallbackDirs is searched after PATH; "~" expands to the home directory.
var fallbackDirs = []string{"/opt/homebrew/bin", "/usr/local/bin", "~/.local/bin"}

// ResolveBinary returns the engine executable. An explicit path must exist;
// otherwise PATH and the usual install directories are searched.
func ResolveBinary(explicit string) (string, error) {
	if explicit != "" {
		path := expandHome(explicit)
		if !strings.ContainsRune(path, filepath.Separator) {
			found, err := exec.LookPath(path)
			if err != nil {
				return "", fmt.Errorf("%w: %s", ErrEngineNotFound, explicit)
			}
			return found, nil
		}
		if !isExecutable(path) {
			return "", fmt.Errorf("%w: %s", ErrEngineNotFound, path)
		}
		return path, nil
	}

	for _, name := range binaryNames {
		if found, err := exec.LookPath(name); err == nil {
			return found, nil
		}
	}
	for _, dir := range fallbackDirs {
		for _, name := range binaryNames {
			path := filepath.Join(expandHome(dir), name)
			if isExecutable(path) {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: install whisper.cpp or set --engine-bin", ErrEngineNotFound)
}

// IsKnownModel reports whether name is one of KnownModels.
func IsKnownModel(name string) bool {
	for _, m := range KnownModels {
		if m == name {
			return true
		}
	}
	return false
}

// ModelPath returns <dir>/ggml-<model>.bin.
func ModelPath(dir, model string) string {
	return filepath.Join(expandHome(dir), fmt.Sprintf("ggml-%s.bin", model))
}

// ResolveModel validates the model name and checks that its file exists.
func ResolveModel(dir, model string) (string, error) {
	if !IsKnownModel(model) {
		return "", fmt.Errorf("%w: %q (choose one of %s)", ErrUnknownModel, model, strings.Join(KnownModels, ", "))
	}
	path := ModelPath(dir, model)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	return path, nil
}

// ResourceEnv asks Homebrew where whisper-cpp keeps its Metal resources.
// It returns nil when brew is absent or the query fails, which is normal
// outside macOS.
func ResourceEnv(ctx context.Context, brew string) []string {
	if brew == "" {
		brew = "brew"
	}
	if _, err := exec.LookPath(brew); err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := run(ctx, command{Binary: brew, Args: []string{"--prefix", "whisper-cpp"}})
	if err != nil {
		return nil
	}
	prefix := strings.TrimSpace(string(res.Stdout))
	if prefix == "" {
		return nil
	}
	return []string{"GGML_METAL_PATH_RESOURCES=" + filepath.Join(prefix, "share", "whisper-cpp")}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
