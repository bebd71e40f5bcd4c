package media

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

const (
	rtpClockRate = 48000

	// opusPayloadType is the conventional dynamic payload type for Opus.
	opusPayloadType = 111
)

// SynthesizedTrack packetizes encoded synthesized audio frames onto a local
// RTP track suitable for Coordinator.UseSynthesized.
type SynthesizedTrack struct {
	track *webrtc.TrackLocalStaticRTP

	ssrc uint32
	seq  uint16
	ts   uint32
}

func NewSynthesizedTrack(id, streamID string) (*SynthesizedTrack, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: rtpClockRate, Channels: 2},
		id, streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create synthesized track: %w", err)
	}

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("generate ssrc: %w", err)
	}

	return &SynthesizedTrack{
		track: track,
		ssrc:  binary.BigEndian.Uint32(buf[:]),
	}, nil
}

// Track returns the underlying local track.
func (s *SynthesizedTrack) Track() webrtc.TrackLocal {
	return s.track
}

// WriteFrame sends one encoded frame covering the given number of RTP clock
// ticks. Frames must arrive in playback order; sequence numbers and
// timestamps advance monotonically.
func (s *SynthesizedTrack) WriteFrame(payload []byte, samples uint32) error {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.ts,
			SSRC:           s.ssrc,
			Marker:         s.seq == 0,
		},
		Payload: payload,
	}

	if err := s.track.WriteRTP(pkt); err != nil {
		return fmt.Errorf("write synthesized frame: %w", err)
	}

	s.seq++
	s.ts += samples

	return nil
}
