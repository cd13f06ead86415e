package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"yayd/internal/config"
	"yayd/internal/deps"
	"yayd/internal/fetch"
	"yayd/internal/logging"
)

const (
	defaultBinary           = "yt-dlp"
	defaultProgressInterval = 500 * time.Millisecond
)

// Options configures the yt-dlp provider.
type Options struct {
	Binary            string
	FFmpegLocation    string
	MergeOutputFormat string
	RestrictFilenames bool
	WindowsFilenames  bool
	ProgressInterval  time.Duration
	Logger            *slog.Logger
}

// OptionsFromConfig derives provider options from application config.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Binary:            cfg.YtdlpBinary(),
		FFmpegLocation:    deps.FFmpegLocation(cfg.Fetch.FFmpegLocation),
		MergeOutputFormat: cfg.Fetch.MergeOutputFormat,
		RestrictFilenames: cfg.Fetch.RestrictFilenames,
		WindowsFilenames:  cfg.Fetch.WindowsFilenames,
		Logger:            logger,
	}
}

// Provider runs yt-dlp for each fetch.
type Provider struct {
	opts   Options
	logger *slog.Logger
}

// NewProvider constructs a yt-dlp backed provider.
func NewProvider(opts Options) *Provider {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{opts: opts, logger: logging.NewComponentLogger(logger, "ytdlp")}
}

// Fetch downloads source according to cfg, reporting progress to sink. A sink
// error stops yt-dlp and is returned wrapped in fetch.ErrAborted.
func (p *Provider) Fetch(ctx context.Context, source string, cfg fetch.Config, sink fetch.Sink) (fetch.Info, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr := newTracker(cfg, p.opts.MergeOutputFormat)
	var (
		mu      sync.Mutex
		sinkErr error
	)
	cmd := p.command(cfg)
	cmd.ProgressFunc(p.opts.ProgressInterval, func(update goytdlp.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()
		if sinkErr != nil {
			return
		}
		ev, ok := tr.event(update, time.Now())
		if !ok || sink == nil {
			return
		}
		if err := sink(ev); err != nil {
			sinkErr = err
			cancel()
		}
	})

	p.logger.Debug("running yt-dlp",
		logging.String(logging.FieldSource, source),
		logging.String("format", cfg.Format),
		logging.Bool("collection", cfg.Collection),
	)
	result, err := cmd.Run(runCtx, source)

	mu.Lock()
	aborted := sinkErr
	mu.Unlock()
	if aborted != nil {
		if errors.Is(aborted, fetch.ErrAborted) {
			return fetch.Info{}, aborted
		}
		return fetch.Info{}, fmt.Errorf("%w: %v", fetch.ErrAborted, aborted)
	}
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		return fetch.Info{}, providerError(err, stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	return fetch.Info{
		Title:      tr.title,
		Collection: cfg.Collection,
		ItemCount:  tr.itemCount,
		Files:      tr.existingFiles(),
	}, nil
}

func (p *Provider) command(cfg fetch.Config) *goytdlp.Command {
	cmd := goytdlp.New().
		Format(cfg.Format).
		Output(cfg.OutputTemplate)

	if bin := strings.TrimSpace(p.opts.Binary); bin != "" && bin != defaultBinary {
		cmd.SetExecutable(bin)
	}
	if p.opts.FFmpegLocation != "" {
		cmd.FFmpegLocation(p.opts.FFmpegLocation)
	}
	if p.opts.RestrictFilenames {
		cmd.RestrictFilenames()
	}
	if p.opts.WindowsFilenames {
		cmd.WindowsFilenames()
	}
	if cfg.Collection {
		cmd.YesPlaylist()
	} else {
		cmd.NoPlaylist()
	}
	if cfg.Proxy != "" {
		cmd.Proxy(cfg.Proxy)
	}
	if cfg.Verbose {
		cmd.Verbose()
	}

	if cfg.AudioOnly {
		cmd.ExtractAudio().
			AudioFormat(firstNonEmpty(cfg.AudioFormat, "mp3")).
			AudioQuality(firstNonEmpty(cfg.AudioQuality, "192"))
	} else if p.opts.MergeOutputFormat != "" {
		cmd.MergeOutputFormat(p.opts.MergeOutputFormat)
	}
	return cmd
}

// providerError keeps yt-dlp's own diagnostic when one was printed.
func providerError(err error, stderr string) error {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "ERROR:") {
			last = line
		}
	}
	if last != "" {
		return errors.New(last)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
