package challenge

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpcloud/tail"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FeedGenerator reads challenges from a JSON-lines file, one object per line.
// Blank lines and lines starting with '#' are skipped. When following, the
// file is tailed like a log and Next blocks until a new line is written.
type FeedGenerator struct {
	logger *zap.Logger
	path   string
	t      *tail.Tail
	lineNo int
}

// NewFeed opens path for reading. The file must exist.
func NewFeed(logger *zap.Logger, path string, follow bool) (*FeedGenerator, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: challenges.feed_path must be set for a feed source", models.ErrInvalidInput)
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open challenge feed %s: %w", path, err)
	}
	logger.Info("Challenge feed opened.", zap.String("path", path), zap.Bool("follow", follow))
	return &FeedGenerator{
		logger: logger.Named("challenge-feed"),
		path:   path,
		t:      t,
	}, nil
}

// Next returns the next challenge on the feed. A malformed line is consumed and
// reported as ErrInvalidInput; a closed feed yields ErrExhaustedCatalog.
func (f *FeedGenerator) Next(ctx context.Context) (models.Challenge, error) {
	for {
		select {
		case <-ctx.Done():
			return models.Challenge{}, ctx.Err()
		case line, ok := <-f.t.Lines:
			if !ok {
				return models.Challenge{}, fmt.Errorf("%w: feed %s closed", models.ErrExhaustedCatalog, f.path)
			}
			f.lineNo++
			if line.Err != nil {
				return models.Challenge{}, fmt.Errorf("%w: feed %s line %d: %v", models.ErrInvalidInput, f.path, f.lineNo, line.Err)
			}
			text := strings.TrimSpace(line.Text)
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}

			var ch models.Challenge
			if err := json.UnmarshalFromString(text, &ch); err != nil {
				f.logger.Warn("Skipping malformed challenge line.", zap.Int("line", f.lineNo), zap.Error(err))
				return models.Challenge{}, fmt.Errorf("%w: feed %s line %d: %v", models.ErrInvalidInput, f.path, f.lineNo, err)
			}
			if err := ch.Validate(); err != nil {
				return models.Challenge{}, fmt.Errorf("feed %s line %d: %w", f.path, f.lineNo, err)
			}
			if ch.ID == "" {
				ch.ID = fmt.Sprintf("feed-%d", f.lineNo)
			}
			return ch, nil
		}
	}
}

// Close stops tailing and releases the file.
func (f *FeedGenerator) Close() error {
	err := f.t.Stop()
	f.t.Cleanup()
	return err
}
