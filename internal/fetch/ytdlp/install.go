package ytdlp

import (
	"context"
	"fmt"

	goytdlp "github.com/lrstanley/go-ytdlp"
)

// Install downloads a yt-dlp release into go-ytdlp's cache when no usable
// executable is present, and returns the executable path.
func Install(ctx context.Context) (string, error) {
	resolved, err := goytdlp.Install(ctx, &goytdlp.InstallOptions{})
	if err != nil {
		return "", fmt.Errorf("install yt-dlp: %w", err)
	}
	return resolved.Executable, nil
}
