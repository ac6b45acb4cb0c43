package process

import "path/filepath"

// Output artifact names. The encoder profile is fixed and not configurable.
const (
	ManifestName   = "stream.m3u8"
	SegmentPattern = "seg_%03d.ts"
	LogFileName    = "ffmpeg.log"
)

// ManifestPath returns where the encoder writes the manifest for outputDir
func ManifestPath(outputDir string) string {
	return filepath.Join(outputDir, ManifestName)
}

// BuildArgs returns the encoder arguments for a low-latency live HLS rendition
// of source written into outputDir: 1 second segments, a rolling window of
// three, keyframe every 30 frames.
func BuildArgs(source, outputDir string) []string {
	args := []string{
		// Input
		"-rtsp_transport", "tcp",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-strict", "experimental",
		"-i", source,
	}

	// Video
	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-g", "30",
		"-keyint_min", "30",
		"-sc_threshold", "0",
	)

	// Audio
	args = append(args,
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "44100",
	)

	// HLS muxer
	args = append(args,
		"-f", "hls",
		"-hls_time", "1",
		"-hls_list_size", "3",
		"-hls_flags", "delete_segments+append_list+independent_segments",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		ManifestPath(outputDir),
	)

	return args
}
