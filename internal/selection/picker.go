package selection

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/contract"
)

// PathPicker returns a fixed list of file paths, e.g. from command-line
// arguments. A path that exists but cannot be opened is reported as a
// permission failure, mirroring a refused photo-library prompt.
type PathPicker struct {
	Paths  []string
	Source contract.Source
}

// Pick implements Picker.
func (p PathPicker) Pick(ctx context.Context) ([]Asset, error) {
	assets := make([]Asset, 0, len(p.Paths))
	for _, path := range p.Paths {
		if f, err := os.Open(path); err != nil {
			if os.IsPermission(err) {
				return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
			}
		} else {
			f.Close()
		}
		assets = append(assets, Asset{URI: path, Source: p.Source})
	}
	return assets, nil
}

// DialogPicker opens the native file dialog. The dialog allows multiple
// selection so that a multi-pick reaches the phase and is rejected there
// with a proper message.
type DialogPicker struct {
	Title string
}

// Pick implements Picker. A cancelled dialog yields zero assets.
func (p DialogPicker) Pick(ctx context.Context) ([]Asset, error) {
	title := p.Title
	if title == "" {
		title = "Select a photo"
	}

	selected, err := zenity.SelectFileMultiple(
		zenity.Context(ctx),
		zenity.Title(title),
		zenity.FileFilters{
			{
				Name:     "Photos",
				Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp", "*.bmp", "*.tif", "*.tiff"},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			log.Info().Msg("Photo picker cancelled")
			return nil, nil
		}
		return nil, fmt.Errorf("photo picker failed: %w", err)
	}

	assets := make([]Asset, 0, len(selected))
	for _, path := range selected {
		assets = append(assets, Asset{URI: path, Source: contract.SourceLibrary})
	}
	log.Info().Int("count", len(assets)).Msg("Photos picked via native dialog")
	return assets, nil
}
