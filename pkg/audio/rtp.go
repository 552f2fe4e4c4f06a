package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"
)

// OpusSampleRate is the decode rate for Opus streams.
const OpusSampleRate = 48000

// maxFrame is 120ms at 48kHz, the largest Opus frame.
const maxFrame = 5760

// FrameDecoder decodes one compressed audio packet into PCM.
type FrameDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// NewOpusDecoder returns a mono libopus decoder at 48kHz.
func NewOpusDecoder() (FrameDecoder, error) {
	dec, err := opus.NewDecoder(OpusSampleRate, 1)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// RTPOpus decodes RTP packets carrying Opus into an analyser.
type RTPOpus struct {
	dec    FrameDecoder
	an     *Analyser
	frame  []int16
	logger *slog.Logger

	Packets      uint64
	DecodeErrors uint64
}

// NewRTPOpus creates a depacketiser. A nil dec uses libopus.
func NewRTPOpus(dec FrameDecoder, a *Analyser, logger *slog.Logger) (*RTPOpus, error) {
	if dec == nil {
		d, err := NewOpusDecoder()
		if err != nil {
			return nil, fmt.Errorf("audio: opus decoder: %w", err)
		}
		dec = d
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RTPOpus{dec: dec, an: a, frame: make([]int16, maxFrame), logger: logger.With("component", "audio.rtp")}, nil
}

// HandlePacket decodes one parsed packet.
func (r *RTPOpus) HandlePacket(pkt *rtp.Packet) error {
	r.Packets++
	if len(pkt.Payload) == 0 {
		return nil
	}
	n, err := r.dec.Decode(pkt.Payload, r.frame)
	if err != nil {
		r.DecodeErrors++
		if r.DecodeErrors <= 5 {
			r.logger.Warn("opus decode failed", "seq", pkt.SequenceNumber, "bytes", len(pkt.Payload), "error", err)
		}
		return err
	}
	r.an.WritePCM(r.frame[:n])
	return nil
}

// HandleRaw parses and decodes one raw RTP datagram.
func (r *RTPOpus) HandleRaw(b []byte) error {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(b); err != nil {
		return fmt.Errorf("audio: rtp: %w", err)
	}
	return r.HandlePacket(&pkt)
}

// PacketReader yields RTP packets.
type PacketReader interface {
	ReadRTP() (*rtp.Packet, error)
}

// Pump reads packets until the reader fails, then closes the analyser.
// Decode errors are counted and skipped.
func (r *RTPOpus) Pump(ctx context.Context, pr PacketReader) error {
	defer r.an.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := pr.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		r.HandlePacket(pkt)
	}
}

// ListenUDP receives raw RTP datagrams on addr until ctx is cancelled.
func (r *RTPOpus) ListenUDP(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("audio: listen %s: %w", addr, err)
	}
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()
	r.logger.Info("listening for rtp", "addr", conn.LocalAddr().String())
	return r.Pump(ctx, &udpReader{conn: conn, buf: make([]byte, 1500)})
}

type udpReader struct {
	conn net.PacketConn
	buf  []byte
}

func (u *udpReader) ReadRTP() (*rtp.Packet, error) {
	for {
		n, _, err := u.conn.ReadFrom(u.buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}
			return nil, err
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(u.buf[:n]); err != nil {
			continue
		}
		return pkt, nil
	}
}

type trackReader struct {
	track *webrtc.TrackRemote
}

func (t trackReader) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := t.track.ReadRTP()
	return pkt, err
}

// CheckTrack verifies that a remote track is Opus audio.
func CheckTrack(kind webrtc.RTPCodecType, mimeType string) error {
	if kind != webrtc.RTPCodecTypeAudio {
		return ErrNotAudio
	}
	if !strings.EqualFold(mimeType, webrtc.MimeTypeOpus) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, mimeType)
	}
	return nil
}

// FromTrack decodes a WebRTC remote audio track into a. Call it from
// PeerConnection.OnTrack; it blocks until the track ends.
func FromTrack(ctx context.Context, track *webrtc.TrackRemote, a *Analyser, logger *slog.Logger) error {
	if err := CheckTrack(track.Kind(), track.Codec().MimeType); err != nil {
		return err
	}
	r, err := NewRTPOpus(nil, a, logger)
	if err != nil {
		return err
	}
	return r.Pump(ctx, trackReader{track: track})
}
