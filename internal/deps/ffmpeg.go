package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// bundledFFmpegDir is the relative location of a bundled FFmpeg build.
var bundledFFmpegDir = filepath.Join("thirdparty", "ffmpeg", "bin")

// BundledFFmpegDir returns the bundled FFmpeg directory when one exists under
// the working directory or next to the running executable.
func BundledFFmpegDir() (string, bool) {
	var roots []string
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	return findBundledFFmpeg(roots...)
}

func findBundledFFmpeg(roots ...string) (string, bool) {
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		dir := filepath.Join(root, bundledFFmpegDir)
		if info, err := os.Stat(filepath.Join(dir, executableName("ffmpeg"))); err == nil && isExecutable(info) {
			return dir, true
		}
	}
	return "", false
}

// FFmpegLocation resolves the directory or binary handed to yt-dlp as its
// ffmpeg location. An explicit configuration value wins; otherwise a bundled
// build is used when present. Empty means yt-dlp searches PATH itself.
func FFmpegLocation(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if dir, ok := BundledFFmpegDir(); ok {
		return dir
	}
	return ""
}

// CheckMediaTool reports where yt-dlp will find a media tool ("ffmpeg" or
// "ffprobe"), honouring the same lookup order as FFmpegLocation.
func CheckMediaTool(name, location, description string) Status {
	result := Status{
		Name:        strings.ToUpper(name[:2]) + name[2:],
		Description: description,
	}
	binary := executableName(name)

	if location = strings.TrimSpace(location); location != "" {
		candidate := location
		if info, err := os.Stat(location); err == nil && info.IsDir() {
			candidate = filepath.Join(location, binary)
		} else if filepath.Base(location) != binary {
			candidate = filepath.Join(filepath.Dir(location), binary)
		}
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = candidate
			result.Available = true
			return result
		}
	}

	if resolved, err := exec.LookPath(binary); err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}

	result.Command = binary
	result.Detail = fmt.Sprintf("binary %q not found", binary)
	return result
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
