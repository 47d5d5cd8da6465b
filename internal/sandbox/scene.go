// Package sandbox provides an in-memory host with a software viewport.
// It backs `scenebridge serve` when no 3D application is attached and is the
// host used throughout the test suite.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/d2verb/scenebridge/internal/host"
)

// meshStats holds default primitive topology (faces, vertices, edges).
var meshStats = map[host.ObjectType][3]int{
	host.TypeCube:     {6, 8, 12},
	host.TypeSphere:   {512, 482, 992},
	host.TypeCylinder: {34, 64, 96},
	host.TypeCone:     {33, 33, 64},
	host.TypePlane:    {1, 4, 4},
	host.TypeTorus:    {576, 576, 1152},
	host.TypeMonkey:   {500, 507, 1005},
}

// Bytes per element used for the mesh memory estimate.
const (
	bytesPerVertex = 32
	bytesPerFace   = 24
	bytesPerEdge   = 8
)

// Scene is an in-memory host implementation. It satisfies host.Host and
// host.SceneEditor.
type Scene struct {
	mu        sync.Mutex
	name      string
	objects   map[string]*host.Object
	order     []string
	materials map[string]host.Color
	fps       float64
	frame     int
	start     int
	end       int

	viewportW int
	viewportH int
	// lastRenderBytes feeds the image memory counter.
	lastRenderBytes int64
}

var (
	_ host.Host        = (*Scene)(nil)
	_ host.SceneEditor = (*Scene)(nil)
)

// Default native viewport size.
const (
	DefaultViewportWidth  = 960
	DefaultViewportHeight = 540
)

// NewEmpty creates a scene with no objects.
func NewEmpty() *Scene {
	return &Scene{
		name:      "Scene",
		objects:   make(map[string]*host.Object),
		materials: make(map[string]host.Color),
		fps:       24,
		frame:     1,
		start:     1,
		end:       250,
		viewportW: DefaultViewportWidth,
		viewportH: DefaultViewportHeight,
	}
}

// NewDefault creates a scene with a camera, a light and a cube.
func NewDefault() *Scene {
	s := NewEmpty()
	ctx := context.Background()
	cam := host.Vec3{7.4, -6.5, 5.3}
	light := host.Vec3{4.1, 1.0, 5.9}
	_, _ = s.CreateObject(ctx, host.ObjectSpec{Type: host.TypeCamera, Name: "Camera", Location: &cam})
	_, _ = s.CreateObject(ctx, host.ObjectSpec{Type: host.TypeLight, Name: "Light", Location: &light})
	_, _ = s.CreateObject(ctx, host.ObjectSpec{Type: host.TypeCube, Name: "Cube"})
	_ = s.EnsureMaterial(ctx, "Material", host.Color{0.8, 0.8, 0.8, 1})
	_ = s.AssignMaterial(ctx, "Cube", "Material")
	return s
}

// SetViewportSize changes the native viewport resolution.
func (s *Scene) SetViewportSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewportW = width
	s.viewportH = height
}

// EnumerateObjects implements host.Host.
func (s *Scene) EnumerateObjects(ctx context.Context) ([]host.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	objs := make([]host.Object, 0, len(s.order))
	for _, name := range s.order {
		objs = append(objs, *s.objects[name])
	}
	return objs, nil
}

// CollectSceneStats implements host.Host.
func (s *Scene) CollectSceneStats(ctx context.Context) (host.SceneStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meshBytes int64
	for _, o := range s.objects {
		meshBytes += int64(o.Vertices*bytesPerVertex + o.Polygons*bytesPerFace + o.Edges*bytesPerEdge)
	}
	return host.SceneStats{
		SceneName:    s.name,
		FPS:          s.fps,
		FrameCurrent: s.frame,
		FrameStart:   s.start,
		FrameEnd:     s.end,
		Materials:    len(s.materials),
		MemoryTotal:  meshBytes + s.lastRenderBytes,
		MemoryMeshes: meshBytes,
		MemoryImages: s.lastRenderBytes,
		CollectedAt:  time.Now(),
	}, nil
}

// CreateObject implements host.SceneEditor.
func (s *Scene) CreateObject(ctx context.Context, spec host.ObjectSpec) (host.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validType(spec.Type) {
		return host.Object{}, fmt.Errorf("unknown object type %q", spec.Type)
	}
	name := spec.Name
	if name == "" {
		name = s.uniqueName(defaultName(spec.Type))
	} else if _, exists := s.objects[name]; exists {
		name = s.uniqueName(name)
	}

	obj := &host.Object{
		Name:       name,
		Type:       spec.Type,
		Scale:      host.Vec3{1, 1, 1},
		Dimensions: baseDimensions(spec.Type),
		Visible:    true,
	}
	if spec.Location != nil {
		obj.Location = *spec.Location
	}
	if spec.Rotation != nil {
		obj.Rotation = *spec.Rotation
	}
	if spec.Scale != nil {
		obj.Scale = *spec.Scale
	}
	obj.Dimensions = scaled(baseDimensions(spec.Type), obj.Scale)
	if st, ok := meshStats[spec.Type]; ok {
		obj.Polygons, obj.Vertices, obj.Edges = st[0], st[1], st[2]
	}

	s.objects[name] = obj
	s.order = append(s.order, name)
	return *obj, nil
}

// DeleteObject implements host.SceneEditor.
func (s *Scene) DeleteObject(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		return &host.NotFoundError{Kind: "object", Name: name}
	}
	delete(s.objects, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetLocation implements host.SceneEditor.
func (s *Scene) SetLocation(ctx context.Context, name string, v host.Vec3) error {
	return s.update(name, func(o *host.Object) error {
		o.Location = v
		return nil
	})
}

// SetRotation implements host.SceneEditor.
func (s *Scene) SetRotation(ctx context.Context, name string, v host.Vec3) error {
	return s.update(name, func(o *host.Object) error {
		o.Rotation = v
		return nil
	})
}

// SetScale implements host.SceneEditor. Zero components are rejected, as a
// zero scale makes the object's transform singular.
func (s *Scene) SetScale(ctx context.Context, name string, v host.Vec3) error {
	return s.update(name, func(o *host.Object) error {
		for _, c := range v {
			if c == 0 {
				return fmt.Errorf("scale components must be non-zero")
			}
		}
		o.Scale = v
		o.Dimensions = scaled(baseDimensions(o.Type), v)
		return nil
	})
}

// SetVisible implements host.SceneEditor.
func (s *Scene) SetVisible(ctx context.Context, name string, visible bool) error {
	return s.update(name, func(o *host.Object) error {
		o.Visible = visible
		return nil
	})
}

// EnsureMaterial implements host.SceneEditor. An existing material keeps its
// name and takes the new color.
func (s *Scene) EnsureMaterial(ctx context.Context, name string, color host.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return fmt.Errorf("material name is empty")
	}
	s.materials[name] = color
	return nil
}

// AssignMaterial implements host.SceneEditor.
func (s *Scene) AssignMaterial(ctx context.Context, objectName, materialName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[materialName]; !ok {
		return &host.NotFoundError{Kind: "material", Name: materialName}
	}
	obj, ok := s.objects[objectName]
	if !ok {
		return &host.NotFoundError{Kind: "object", Name: objectName}
	}
	if !obj.Type.IsMesh() {
		return fmt.Errorf("object '%s' of type %s cannot hold materials", objectName, obj.Type)
	}
	obj.Material = materialName
	return nil
}

// Material returns a material's color.
func (s *Scene) Material(name string) (host.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.materials[name]
	return c, ok
}

func (s *Scene) update(name string, fn func(o *host.Object) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[name]
	if !ok {
		return &host.NotFoundError{Kind: "object", Name: name}
	}
	return fn(obj)
}

// uniqueName appends .001, .002, ... until the name is free.
func (s *Scene) uniqueName(base string) string {
	if _, exists := s.objects[base]; !exists {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", base, i)
		if _, exists := s.objects[candidate]; !exists {
			return candidate
		}
	}
}

func validType(t host.ObjectType) bool {
	for _, known := range host.ObjectTypes {
		if t == known {
			return true
		}
	}
	return false
}

func defaultName(t host.ObjectType) string {
	lower := strings.ToLower(string(t))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func baseDimensions(t host.ObjectType) host.Vec3 {
	switch t {
	case host.TypePlane:
		return host.Vec3{2, 2, 0}
	case host.TypeTorus:
		return host.Vec3{2.5, 2.5, 0.5}
	case host.TypeMonkey:
		return host.Vec3{2.73, 1.97, 1.7}
	case host.TypeEmpty, host.TypeCamera, host.TypeLight:
		return host.Vec3{}
	default:
		return host.Vec3{2, 2, 2}
	}
}

func scaled(d, s host.Vec3) host.Vec3 {
	return host.Vec3{d[0] * abs(s[0]), d[1] * abs(s[1]), d[2] * abs(s[2])}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
