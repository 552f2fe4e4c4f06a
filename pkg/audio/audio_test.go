package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

func TestToTimeDomain(t *testing.T) {
	tests := []struct {
		in   int16
		want byte
	}{
		{0, 128},
		{32767, 255},
		{-32768, 0},
		{256, 129},
		{-256, 127},
	}
	for _, tt := range tests {
		if got := ToTimeDomain(tt.in); got != tt.want {
			t.Errorf("ToTimeDomain(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAnalyserWindow(t *testing.T) {
	a := NewAnalyser(4)
	buf := make([]byte, 4)

	if err := a.ReadTimeDomain(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{128, 128, 128, 128}) {
		t.Errorf("empty analyser: got %v, want silence", buf)
	}

	a.WritePCM([]int16{256, 512})
	a.ReadTimeDomain(buf)
	if !bytes.Equal(buf, []byte{128, 128, 129, 130}) {
		t.Errorf("partial: got %v", buf)
	}

	a.WritePCM([]int16{768, 1024, 1280})
	a.ReadTimeDomain(buf)
	if !bytes.Equal(buf, []byte{130, 131, 132, 133}) {
		t.Errorf("wrapped: got %v", buf)
	}
	if a.Samples() != 5 {
		t.Errorf("Samples: got %d, want 5", a.Samples())
	}

	a.Close()
	if err := a.ReadTimeDomain(buf); !errors.Is(err, ErrDisconnected) {
		t.Errorf("after close: got %v, want ErrDisconnected", err)
	}
}

func TestPCM16LE(t *testing.T) {
	got := PCM16LE([]byte{0x00, 0x01, 0xff, 0xff, 0x07})
	if len(got) != 2 || got[0] != 256 || got[1] != -1 {
		t.Errorf("got %v, want [256 -1]", got)
	}
}

func writeWAV(t *testing.T, path string, rate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenWAVDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.wav")
	writeWAV(t, path, 8000, 2, []int{1000, 3000, -2000, -4000, 0, 0})

	clip, err := OpenWAV(path)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	if clip.SampleRate != 8000 {
		t.Errorf("SampleRate: got %d", clip.SampleRate)
	}
	want := []int16{2000, -3000, 0}
	if len(clip.Samples) != len(want) {
		t.Fatalf("samples: got %v, want %v", clip.Samples, want)
	}
	for i := range want {
		if clip.Samples[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, clip.Samples[i], want[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		channels int
		want     []int16
	}{
		{"mono passthrough", []int16{1, -2, 3}, 1, []int16{1, -2, 3}},
		{"unset channels", []int16{5}, 0, []int16{5}},
		{"stereo", []int16{100, 300, -100, -300}, 2, []int16{200, -200}},
		{"partial frame dropped", []int16{10, 20, 30}, 2, []int16{15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downmix(tt.in, tt.channels)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	if _, err := ReadWAV(bytes.NewReader([]byte("definitely not riff"))); !errors.Is(err, ErrNotAudio) {
		t.Errorf("got %v, want ErrNotAudio", err)
	}
}

func TestPlayClosesAnalyser(t *testing.T) {
	clip := Clip{Samples: make([]int16, 400), SampleRate: 8000}
	for i := range clip.Samples {
		clip.Samples[i] = 8000
	}
	a := NewAnalyser(64)
	if err := Play(context.Background(), clip, a, 5*time.Millisecond); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !a.Closed() {
		t.Error("analyser not closed after clip")
	}
	if a.Samples() != 400 {
		t.Errorf("Samples: got %d, want 400", a.Samples())
	}
}

type fakeDecoder struct {
	fail bool
}

func (d fakeDecoder) Decode(data []byte, pcm []int16) (int, error) {
	if d.fail {
		return 0, errors.New("corrupt")
	}
	for i, b := range data {
		pcm[i] = int16(b) << 8
	}
	return len(data), nil
}

type sliceReader struct {
	pkts []*rtp.Packet
}

func (s *sliceReader) ReadRTP() (*rtp.Packet, error) {
	if len(s.pkts) == 0 {
		return nil, errors.New("eof-ish")
	}
	p := s.pkts[0]
	s.pkts = s.pkts[1:]
	return p, nil
}

func TestRTPOpusHandleRaw(t *testing.T) {
	a := NewAnalyser(8)
	r, err := NewRTPOpus(fakeDecoder{}, a, nil)
	if err != nil {
		t.Fatal(err)
	}

	pkt := rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: 7, Timestamp: 960, SSRC: 1},
		Payload: []byte{1, 2, 3},
	}
	raw, err := pkt.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.HandleRaw(raw); err != nil {
		t.Fatalf("HandleRaw: %v", err)
	}
	if a.Samples() != 3 {
		t.Errorf("Samples: got %d, want 3", a.Samples())
	}
	if err := r.HandleRaw([]byte{0x01}); err == nil {
		t.Error("expected error for truncated packet")
	}
}

func TestRTPOpusPumpSkipsDecodeErrors(t *testing.T) {
	a := NewAnalyser(8)
	r, _ := NewRTPOpus(fakeDecoder{fail: true}, a, nil)
	reader := &sliceReader{pkts: []*rtp.Packet{{Payload: []byte{1}}, {Payload: []byte{2}}}}

	err := r.Pump(context.Background(), reader)
	if err == nil || err.Error() != "eof-ish" {
		t.Errorf("Pump: got %v", err)
	}
	if r.Packets != 2 || r.DecodeErrors != 2 {
		t.Errorf("counters: packets=%d errors=%d", r.Packets, r.DecodeErrors)
	}
	if !a.Closed() {
		t.Error("analyser not closed")
	}
}

func TestCheckTrack(t *testing.T) {
	if err := CheckTrack(webrtc.RTPCodecTypeAudio, "audio/opus"); err != nil {
		t.Errorf("opus audio: %v", err)
	}
	if err := CheckTrack(webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8); !errors.Is(err, ErrNotAudio) {
		t.Errorf("video: got %v, want ErrNotAudio", err)
	}
	if err := CheckTrack(webrtc.RTPCodecTypeAudio, webrtc.MimeTypePCMU); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("pcmu: got %v, want ErrUnsupportedCodec", err)
	}
}

type countCloser struct {
	mu sync.Mutex
	n  int
}

func (c *countCloser) Close() error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countCloser) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestCloseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &countCloser{}
	stop := closeOnCancel(ctx, c)
	cancel()
	deadline := time.Now().Add(time.Second)
	for c.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	stop()
	if got := c.count(); got != 1 {
		t.Errorf("after cancel: got %d closes, want 1", got)
	}

	// Stopped before cancellation: the watcher has exited and never closes.
	ctx, cancel = context.WithCancel(context.Background())
	c = &countCloser{}
	stop = closeOnCancel(ctx, c)
	stop()
	time.Sleep(10 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	if got := c.count(); got != 0 {
		t.Errorf("after stop: got %d closes, want 0", got)
	}
}

func TestWebSocketSource(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x00, 0x10, 0x00, 0x20})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
	defer server.Close()

	a := NewAnalyser(16)
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	src, err := DialWebSocket(context.Background(), url, a, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := src.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Samples() != 2 {
		t.Errorf("Samples: got %d, want 2", a.Samples())
	}
	if !a.Closed() {
		t.Error("analyser not closed")
	}
}
