package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// YawStep is the automatic rotation applied per mesh frame, in radians.
const YawStep = 0.005

// Mouth colours by curvature band.
var (
	MouthHappy   = color.RGBA{0x00, 0xff, 0x00, 0xff}
	MouthSad     = color.RGBA{0x00, 0x66, 0xff, 0xff}
	MouthNeutral = color.RGBA{0xff, 0x00, 0x00, 0xff}
)

// MeshPose is the 3D face transform for one frame. Lengths are in face
// radii; angles in radians.
type MeshPose struct {
	Params     face.Params
	Emotion    face.Emotion
	Expression face.Expression
	Phase      float64

	// EyeScaleY squashes both eyes vertically.
	EyeScaleY float64

	// EyeEmissive lights the eyes while they are nearly closed.
	EyeEmissive bool

	MouthScale float64
	MouthY     float64
	MouthColor color.RGBA

	// Roll tilts the whole face with the mouth curvature.
	Roll float64

	// Yaw is the accumulated auto rotation.
	Yaw float64

	Opacity float64
}

// ComputePose maps parameters to a mesh pose at the given yaw.
func ComputePose(p face.Params, yaw float64) MeshPose {
	p = p.Clamped()
	curve := p.MouthCurvature - face.Neutral

	mouth := MouthNeutral
	switch {
	case p.MouthCurvature > 0.6:
		mouth = MouthHappy
	case p.MouthCurvature < 0.4:
		mouth = MouthSad
	}

	return MeshPose{
		Params:      p,
		EyeScaleY:   p.EyeOpenness,
		EyeEmissive: p.EyeOpenness < 0.2,
		MouthScale:  0.5 + p.MouthOpenness,
		MouthY:      -0.3 + curve*0.5,
		MouthColor:  mouth,
		Roll:        curve * 0.1,
		Yaw:         yaw,
		Opacity:     0.7 + math.Abs(curve)*2*0.3,
	}
}

// Device is a hardware-style 3D context that draws a posed face.
type Device interface {
	Draw(pose MeshPose) (image.Image, error)
	Close() error
}

// DeviceFactory acquires a device for a width x height surface.
type DeviceFactory func(width, height int) (Device, error)

// Mesh drives a Device with one pose per frame.
type Mesh struct {
	mu     sync.Mutex
	dev    Device
	w, h   int
	yaw    float64
	last   MeshPose
	closed bool
}

// NewMesh acquires the configured device.
func NewMesh(cfg Config) (*Mesh, error) {
	if cfg.DeviceFactory == nil {
		return nil, ErrNoDevice
	}
	dev, err := cfg.DeviceFactory(cfg.Width, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("render: acquire mesh device: %w", err)
	}
	if dev == nil {
		return nil, ErrNoDevice
	}
	return &Mesh{dev: dev, w: cfg.Width, h: cfg.Height}, nil
}

// Kind implements Renderer.
func (m *Mesh) Kind() string { return string(ModeMesh) }

// Size implements Renderer.
func (m *Mesh) Size() (int, int) { return m.w, m.h }

// LastPose returns the pose submitted by the most recent frame.
func (m *Mesh) LastPose() MeshPose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Render implements Renderer.
func (m *Mesh) Render(f Frame) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	m.yaw += YawStep
	pose := ComputePose(f.Snapshot.Params, m.yaw)
	pose.Emotion = f.Snapshot.Emotion
	pose.Expression = f.Snapshot.Expression
	pose.Phase = f.Phase
	m.last = pose
	return m.dev.Draw(pose)
}

// Close releases the device.
func (m *Mesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.dev.Close()
}

// ProjectDevice is a software Device that orthographically projects the
// posed face: a wireframe head sphere, two eyes and a ring mouth, with the
// expression pattern around it.
type ProjectDevice struct {
	img   *image.RGBA
	nodes []vec2
}

// NewProjectDevice is a DeviceFactory for ProjectDevice.
func NewProjectDevice(width, height int) (Device, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	w, h := float64(width), float64(height)
	nodes := make([]vec2, neuralNodes)
	for i := range nodes {
		// Deterministic golden-angle placement.
		a := float64(i) * 2.399963
		rad := math.Sqrt(float64(i)+0.5) / math.Sqrt(neuralNodes) * math.Min(w, h) / 2
		nodes[i] = vec2{w/2 + math.Cos(a)*rad, h/2 + math.Sin(a)*rad}
	}
	return &ProjectDevice{img: image.NewRGBA(image.Rect(0, 0, width, height)), nodes: nodes}, nil
}

// Draw implements Device.
func (d *ProjectDevice) Draw(pose MeshPose) (image.Image, error) {
	r := newRaster(d.img)
	r.clear(black)

	w, h := d.img.Rect.Dx(), d.img.Rect.Dy()
	g := ComputeGeometry(pose.Params, w, h)
	drawExpression(r, pose.Expression, pose.Phase, g, d.nodes)

	cx, cy := g.Outline.CX, g.Outline.CY
	R := g.Outline.RY
	tint := EmotionColor(pose.Emotion)

	// project maps face-space (x, y, z) to pixels after yaw then roll.
	project := func(x, y, z float64) (px, py, depth float64) {
		xr := x*math.Cos(pose.Yaw) + z*math.Sin(pose.Yaw)
		zr := -x*math.Sin(pose.Yaw) + z*math.Cos(pose.Yaw)
		xs := xr*math.Cos(pose.Roll) - y*math.Sin(pose.Roll)
		ys := xr*math.Sin(pose.Roll) + y*math.Cos(pose.Roll)
		return cx + xs*R, cy - ys*R, zr
	}

	// Wireframe sphere: meridians then parallels.
	lw := math.Max(1, g.Scale)
	for k := 0; k < 8; k++ {
		a := float64(k)*math.Pi/8 + pose.Yaw
		r.ellipse(cx, cy, R*math.Abs(math.Cos(a)), R, -pose.Roll, lw, tint, pose.Opacity*0.5)
	}
	for k := -3; k <= 3; k++ {
		lat := float64(k) * math.Pi / 8
		y := math.Sin(lat)
		half := math.Cos(lat)
		x0, y0, _ := project(-half, y, 0)
		x1, y1, _ := project(half, y, 0)
		r.line(x0, y0, x1, y1, lw, tint, pose.Opacity*0.5)
	}

	eye := color.RGBA{0x00, 0xff, 0x00, 0xff}
	if pose.EyeEmissive {
		eye = color.RGBA{0x44, 0xff, 0x44, 0xff}
	}
	for _, ex := range []float64{-0.3, 0.3} {
		px, py, depth := project(ex, 0.2, 0.8)
		if depth <= 0 {
			continue
		}
		rx := 0.1 * R
		ry := 0.1 * R * pose.EyeScaleY
		if ry < 0.5 {
			r.line(px-rx, py, px+rx, py, lw, eye, 1)
			continue
		}
		r.ellipse(px, py, rx, ry, -pose.Roll, lw*1.5, eye, 1)
	}

	if px, py, depth := project(0, pose.MouthY, 0.8); depth > 0 {
		rx := 0.2 * R * pose.MouthScale
		ry := 0.06 * R * pose.MouthScale
		r.ellipse(px, py, rx, ry, -pose.Roll, lw*2, pose.MouthColor, 1)
	}

	return d.img, nil
}

// Close implements Device.
func (d *ProjectDevice) Close() error { return nil }
