package session

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/grafov/m3u8"
	sErrors "github.com/mantonx/rtsphls/internal/modules/streammodule/errors"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
)

// ValidateSource checks that source is an rtsp:// or rtsps:// URL with a host
func ValidateSource(source string) error {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return sErrors.ValidationError("validate_source", sErrors.ErrInvalidSource)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "rtsp" && scheme != "rtsps") || u.Host == "" {
		return sErrors.ValidationError("validate_source", sErrors.ErrInvalidSource)
	}
	return nil
}

// manifestReady reports whether the manifest exists and has content
func manifestReady(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// inspectManifest parses the live media playlist. The encoder rewrites the
// file constantly, so callers treat any failure as "no information".
func inspectManifest(path string) (*types.PlaylistInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(f), false)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("manifest is not a media playlist")
	}
	media := playlist.(*m3u8.MediaPlaylist)

	info := &types.PlaylistInfo{
		MediaSequence:  media.SeqNo,
		TargetDuration: media.TargetDuration,
		SegmentURIs:    []string{},
	}
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		info.SegmentURIs = append(info.SegmentURIs, seg.URI)
	}
	info.Segments = len(info.SegmentURIs)
	return info, nil
}
