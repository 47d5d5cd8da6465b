// Package host defines the capability interface scenebridge requires from the
// 3D application and the executor that serializes access to it.
package host

import (
	"context"
	"time"
)

// Host is the narrow set of operations the server needs from the 3D application.
// Implementations are only ever called from the Executor goroutine.
type Host interface {
	// RenderViewport renders the active 3D view at the requested size.
	RenderViewport(ctx context.Context, width, height int) (*Pixels, error)
	// EnumerateObjects lists every object in the current scene.
	EnumerateObjects(ctx context.Context) ([]Object, error)
	// RunScript executes arbitrary host code and returns its captured output.
	RunScript(ctx context.Context, code string) (string, error)
	// CollectSceneStats returns counters for the current scene.
	CollectSceneStats(ctx context.Context) (SceneStats, error)
}

// SceneEditor is implemented by hosts that support typed scene mutation.
// Each method is a single host step so callers can report partial application.
type SceneEditor interface {
	CreateObject(ctx context.Context, spec ObjectSpec) (Object, error)
	DeleteObject(ctx context.Context, name string) error
	SetLocation(ctx context.Context, name string, v Vec3) error
	SetRotation(ctx context.Context, name string, v Vec3) error
	SetScale(ctx context.Context, name string, v Vec3) error
	SetVisible(ctx context.Context, name string, visible bool) error
	EnsureMaterial(ctx context.Context, name string, color Color) error
	AssignMaterial(ctx context.Context, objectName, materialName string) error
}

// Vec3 is an XYZ triple.
type Vec3 [3]float64

// Color is a linear RGBA color with components in [0, 1].
type Color [4]float64

// ObjectType names the kind of a scene object.
type ObjectType string

const (
	TypeCube     ObjectType = "CUBE"
	TypeSphere   ObjectType = "SPHERE"
	TypeCylinder ObjectType = "CYLINDER"
	TypeCone     ObjectType = "CONE"
	TypePlane    ObjectType = "PLANE"
	TypeTorus    ObjectType = "TORUS"
	TypeMonkey   ObjectType = "MONKEY"
	TypeEmpty    ObjectType = "EMPTY"
	TypeCamera   ObjectType = "CAMERA"
	TypeLight    ObjectType = "LIGHT"
)

// ObjectTypes lists every creatable object type.
var ObjectTypes = []ObjectType{
	TypeCube, TypeSphere, TypeCylinder, TypeCone, TypePlane,
	TypeTorus, TypeMonkey, TypeEmpty, TypeCamera, TypeLight,
}

// IsMesh reports whether objects of this type carry mesh geometry.
func (t ObjectType) IsMesh() bool {
	switch t {
	case TypeEmpty, TypeCamera, TypeLight:
		return false
	default:
		return true
	}
}

// Object describes one scene object.
type Object struct {
	Name       string     `json:"name"`
	Type       ObjectType `json:"type"`
	Location   Vec3       `json:"location"`
	Rotation   Vec3       `json:"rotation"`
	Scale      Vec3       `json:"scale"`
	Dimensions Vec3       `json:"dimensions"`
	Visible    bool       `json:"visible"`
	Material   string     `json:"material,omitempty"`
	Polygons   int        `json:"polygons"`
	Vertices   int        `json:"vertices"`
	Edges      int        `json:"edges"`
}

// ObjectSpec describes an object to create. Nil fields use host defaults.
type ObjectSpec struct {
	Type     ObjectType
	Name     string
	Location *Vec3
	Rotation *Vec3
	Scale    *Vec3
}

// SceneStats holds host-side counters not derivable from the object list.
type SceneStats struct {
	SceneName    string
	FPS          float64
	FrameCurrent int
	FrameStart   int
	FrameEnd     int
	Materials    int
	MemoryTotal  int64
	MemoryMeshes int64
	MemoryImages int64
	CollectedAt  time.Time
}

// Pixels is a raw 8-bit RGBA framebuffer.
type Pixels struct {
	Width  int
	Height int
	Stride int // bytes per row, at least 4*Width
	// BottomUp marks buffers whose first row is the bottom of the image,
	// as read back from OpenGL framebuffers.
	BottomUp bool
	Data     []byte
}
