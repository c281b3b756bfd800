// Package filehandler inspects picked media files on local disk: existence,
// MIME type, intrinsic pixel size (a decode probe), and EXIF metadata.
//
// Two providers are combined here:
//   - Pixel size and full decode: the standard image codecs plus the
//     golang.org/x/image WebP, BMP and TIFF decoders.
//   - EXIF (capture date, GPS): evanoberholster/imagemeta, which reads only
//     the metadata block instead of the whole file.
package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// MediaFile describes a local image file that passed the basic checks.
type MediaFile struct {
	Path     string
	MIMEType string
	Size     int64
	Metadata *ImageMetadata
}

// LoadMediaFile stats a file, resolves its MIME type from the extension and
// extracts EXIF metadata when available. Missing metadata is not an error.
// The pixel data is not read; use ProbeImage for that.
func LoadMediaFile(filePath string) (*MediaFile, error) {
	log.Debug().Str("path", filePath).Msg("Loading media file")

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	mimeType, err := GetMIMEType(ext)
	if err != nil {
		return nil, err
	}

	mediaFile := &MediaFile{
		Path:     filePath,
		MIMEType: mimeType,
		Size:     info.Size(),
	}

	imgMeta, err := ExtractImageMetadata(filePath)
	if err != nil {
		log.Debug().Err(err).Str("path", filePath).Msg("No EXIF metadata, continuing without it")
	} else {
		mediaFile.Metadata = imgMeta
	}

	log.Info().
		Str("path", filePath).
		Str("mime_type", mimeType).
		Int64("size_bytes", info.Size()).
		Bool("has_exif", mediaFile.Metadata != nil).
		Msg("Media file loaded")

	return mediaFile, nil
}
