package ffmpeg

import (
	"context"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// Prober adapts FFprobe to the orchestrator's actors.FileProber interface,
// translating the raw ProbeResult accessor methods into a single
// domain.TechnicalMetadata value for MediaAnalyze.
type Prober struct {
	probe *FFprobe
}

func NewProber(path string) *Prober {
	return &Prober{probe: NewFFprobe(path)}
}

func (p *Prober) Probe(ctx context.Context, path string) (domain.TechnicalMetadata, error) {
	result, err := p.probe.Probe(path)
	if err != nil {
		return domain.TechnicalMetadata{}, err
	}

	return domain.TechnicalMetadata{
		Codec:          result.GetVideoCodec(),
		Width:          result.GetWidth(),
		Height:         result.GetHeight(),
		Bitrate:        result.GetBitrate(),
		DurationMs:     int64(result.GetDurationSeconds()) * 1000,
		HDRFormat:      result.GetHDRFormat(),
		AudioCodec:     result.GetAudioCodec(),
		AudioTracks:    len(result.GetAudioTracks()),
		SubtitleTracks: len(result.GetSubtitleTracks()),
	}, nil
}
