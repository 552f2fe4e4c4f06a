package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/audio"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/llm"
	"github.com/teslashibe/go-avatar/pkg/protocol"
)

type fixture struct {
	srv        *Server
	session    *avatar.Session
	analyser   *audio.Analyser
	classifier *llm.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	classifier := llm.NewMock(llm.Reply{Response: "ok", Emotion: face.EmotionHappy, EmotionIntensity: 0.6})
	session := avatar.New(
		avatar.WithLogger(log.Discard()),
		avatar.WithClassifier(classifier),
		avatar.WithSpeaker(&avatar.MockSpeaker{}),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	analyser := audio.NewAnalyser(64)
	srv := NewServer(Config{Port: "0", Session: session, Analyser: analyser, Logger: log.Discard()})
	return &fixture{srv: srv, session: session, analyser: analyser, classifier: classifier}
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.session.Flush(ctx))
}

func (f *fixture) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := f.srv.App().Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStateEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state protocol.StateData
	decode(t, resp, &state)
	require.Equal(t, f.session.ID().String(), state.Session)
	require.Equal(t, face.ExpressionIdle, state.Expression)
	require.InDelta(t, face.DefaultMouthOpenness, state.Params.MouthOpenness, 1e-9)
}

func TestEmotionEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, jsonRequest(http.MethodPost, "/api/emotion", `{"emotion":"sad","intensity":0.5}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	f.flush(t)

	snap := f.session.Snapshot()
	require.Equal(t, face.EmotionSad, snap.Emotion)
	require.Equal(t, face.ExpressionSad, snap.Expression)
	require.InDelta(t, 0.35, snap.Params.MouthCurvature, 1e-9)

	resp = f.do(t, jsonRequest(http.MethodPost, "/api/emotion", `{"emotion":"bored"}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	require.Equal(t, "neutral", body["emotion"])
	require.Equal(t, 0.5, body["intensity"])

	resp = f.do(t, jsonRequest(http.MethodPost, "/api/emotion", `{`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFlagsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, jsonRequest(http.MethodPost, "/api/flags", `{"thinking":true}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	f.flush(t)
	require.Equal(t, face.ExpressionThinking, f.session.Snapshot().Expression)

	resp = f.do(t, jsonRequest(http.MethodPost, "/api/flags", `{"listening":true}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	f.flush(t)
	snap := f.session.Snapshot()
	require.True(t, snap.Thinking)
	require.Equal(t, face.ExpressionListening, snap.Expression)
}

func TestSayEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, jsonRequest(http.MethodPost, "/api/say", `{"text":"olá"}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	require.NotEmpty(t, body["id"])

	require.Eventually(t, func() bool {
		snap := f.session.Snapshot()
		return snap.Emotion == face.EmotionHappy && !snap.Speaking
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"olá"}, f.classifier.Calls())

	resp = f.do(t, jsonRequest(http.MethodPost, "/api/say", `{"text":""}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func halfImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 5; x < 10; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestContoursEndpoint(t *testing.T) {
	f := newFixture(t)
	data := halfImage(t)

	resp := f.do(t, httptest.NewRequest(http.MethodPost, "/api/contours", bytes.NewReader(data)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ContoursResponse
	decode(t, resp, &out)
	require.Equal(t, 10, out.Width)
	require.NotZero(t, out.Count)
	for _, p := range out.Points {
		require.True(t, p.X == 4 || p.X == 5, "edge at unexpected column %d", p.X)
		require.True(t, p.Y > 0 && p.Y < 9, "border row %d evaluated", p.Y)
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("image", "face.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/contours?format=png", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp = f.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	raw, _ := io.ReadAll(resp.Body)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 10, img.Bounds().Dx())
}

func TestContoursErrors(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, httptest.NewRequest(http.MethodPost, "/api/contours?threshold=abc", bytes.NewReader(halfImage(t))))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, httptest.NewRequest(http.MethodPost, "/api/contours", nil))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, httptest.NewRequest(http.MethodPost, "/api/contours", strings.NewReader("not an image")))
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestFrameEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, httptest.NewRequest(http.MethodGet, "/api/frame.png", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	f.srv.Frame(image.NewRGBA(image.Rect(0, 0, 4, 3)), face.Snapshot{}, 0)

	resp = f.do(t, httptest.NewRequest(http.MethodGet, "/api/frame.png", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/ws/state", "/ws/frames", "/ws/ingest"} {
		resp := f.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode, path)
	}
}

func mustBytes(t *testing.T, m *protocol.Message, err error) []byte {
	t.Helper()
	require.NoError(t, err)
	b, err := m.Bytes()
	require.NoError(t, err)
	return b
}

func TestIngestDispatch(t *testing.T) {
	f := newFixture(t)

	reply, err := f.srv.ingest(mustBytes(t, protocol.NewEmotionMessage(face.EmotionSurprised, 1)))
	require.NoError(t, err)
	require.Nil(t, reply)

	yes := true
	_, err = f.srv.ingest(mustBytes(t, protocol.NewFlagsMessage(protocol.FlagsData{Speaking: &yes})))
	require.NoError(t, err)
	f.flush(t)
	snap := f.session.Snapshot()
	require.Equal(t, face.EmotionSurprised, snap.Emotion)
	require.True(t, snap.Speaking)

	_, err = f.srv.ingest(mustBytes(t, protocol.NewTranscriptMessage("estou feliz", true)))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.classifier.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	reply, err = f.srv.ingest(mustBytes(t, protocol.NewPingMessage("p1")))
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, protocol.TypePong, reply.Type)
	pong, err := reply.GetPongData()
	require.NoError(t, err)
	require.Equal(t, "p1", pong.ID)
}

func TestIngestEmotionDefaultsIntensity(t *testing.T) {
	f := newFixture(t)

	reply, err := f.srv.ingest([]byte(`{"type":"emotion","data":{"emotion":"happy"}}`))
	require.NoError(t, err)
	require.Nil(t, reply)
	f.flush(t)

	snap := f.session.Snapshot()
	require.Equal(t, face.EmotionHappy, snap.Emotion)
	require.InDelta(t, llm.DefaultIntensity, snap.Intensity, 1e-9)
	require.InDelta(t, 0.7, snap.Params.MouthCurvature, 1e-9)
}

func TestIngestAudio(t *testing.T) {
	f := newFixture(t)

	pcm := make([]byte, 2*64)
	for i := 0; i < 64; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(16384)))
	}
	_, err := f.srv.ingest(mustBytes(t, protocol.NewAudioMessage(pcm, 16000)))
	require.NoError(t, err)
	require.Equal(t, uint64(64), f.analyser.Samples())

	buf := make([]byte, 64)
	require.NoError(t, f.analyser.ReadTimeDomain(buf))
	require.Equal(t, audio.ToTimeDomain(16384), buf[63])

	stereo := protocol.AudioData{Format: "pcm16", Channels: 2, Data: base64.StdEncoding.EncodeToString(pcm)}
	_, err = f.srv.dispatch(mustMessage(t, protocol.TypeAudio, stereo))
	require.NoError(t, err)
	require.Equal(t, uint64(96), f.analyser.Samples())

	opus := protocol.AudioData{Format: "opus", Data: ""}
	_, err = f.srv.dispatch(mustMessage(t, protocol.TypeAudio, opus))
	require.ErrorIs(t, err, audio.ErrUnsupportedCodec)
}

func mustMessage(t *testing.T, typ protocol.MessageType, data any) *protocol.Message {
	t.Helper()
	m, err := protocol.NewMessage(typ, data)
	require.NoError(t, err)
	return m
}

func TestIngestRejects(t *testing.T) {
	f := newFixture(t)

	_, err := f.srv.ingest([]byte("garbage"))
	require.Error(t, err)

	_, err = f.srv.ingest([]byte(`{"type":"state"}`))
	require.Error(t, err)

	noAudio := NewServer(Config{Session: f.session, Logger: log.Discard()})
	_, err = noAudio.dispatch(mustMessage(t, protocol.TypeAudio, protocol.AudioData{Format: "pcm16"}))
	require.ErrorIs(t, err, ErrNoAnalyser)
}
