package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/host"
	"github.com/d2verb/scenebridge/internal/preview"
	"github.com/d2verb/scenebridge/internal/protocol"
)

// Viewport capture defaults.
const (
	DefaultViewportWidth  = 512
	DefaultViewportHeight = 512
)

func (d *Dispatcher) registerBuiltins() {
	d.Register(protocol.CmdGetSceneInfo, d.handleGetSceneInfo)
	d.Register(protocol.CmdGetObjectInfo, d.handleGetObjectInfo)
	d.Register(protocol.CmdCreateObject, d.handleCreateObject)
	d.Register(protocol.CmdModifyObject, d.handleModifyObject)
	d.Register(protocol.CmdDeleteObject, d.handleDeleteObject)
	d.Register(protocol.CmdSetMaterial, d.handleSetMaterial)
	d.Register(protocol.CmdExecuteCode, d.handleExecuteCode)
	d.Register(protocol.CmdGetViewportImage, d.handleGetViewportImage)
	d.Register(protocol.CmdGetSceneMetrics, d.handleGetSceneMetrics)
	if d.opts.Previews != nil {
		d.Register(protocol.CmdStartLivePreview, d.handleStartLivePreview)
		d.Register(protocol.CmdStopLivePreview, d.handleStopLivePreview)
		d.Register(protocol.CmdListLivePreviews, d.handleListLivePreviews)
	}
}

// ObjectSummary is the short form of an object in scene listings.
type ObjectSummary struct {
	Name     string          `json:"name"`
	Type     host.ObjectType `json:"type"`
	Location host.Vec3       `json:"location"`
}

// SceneInfo is the result of get_scene_info.
type SceneInfo struct {
	Name           string          `json:"name"`
	ObjectCount    int             `json:"object_count"`
	Objects        []ObjectSummary `json:"objects"`
	MaterialsCount int             `json:"materials_count"`
	FrameCurrent   int             `json:"frame_current"`
}

func (d *Dispatcher) handleGetSceneInfo(ctx context.Context, params Params) (any, error) {
	info := SceneInfo{Objects: []ObjectSummary{}}
	err := d.exec.Do(ctx, protocol.CmdGetSceneInfo, func(ctx context.Context, h host.Host) error {
		objs, err := h.EnumerateObjects(ctx)
		if err != nil {
			return err
		}
		stats, err := h.CollectSceneStats(ctx)
		if err != nil {
			return err
		}
		info.Name = stats.SceneName
		info.MaterialsCount = stats.Materials
		info.FrameCurrent = stats.FrameCurrent
		for _, o := range objs {
			info.Objects = append(info.Objects, ObjectSummary{Name: o.Name, Type: o.Type, Location: o.Location})
		}
		info.ObjectCount = len(objs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Dispatcher) handleGetObjectInfo(ctx context.Context, params Params) (any, error) {
	name, err := params.requireString("name")
	if err != nil {
		return nil, err
	}
	var obj host.Object
	err = d.exec.Do(ctx, protocol.CmdGetObjectInfo, func(ctx context.Context, h host.Host) error {
		var err error
		obj, err = findObject(ctx, h, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *Dispatcher) handleCreateObject(ctx context.Context, params Params) (any, error) {
	typeName, err := params.optString("type", string(host.TypeCube))
	if err != nil {
		return nil, err
	}
	objType, err := parseObjectType(typeName)
	if err != nil {
		return nil, err
	}
	name, err := params.optString("name", "")
	if err != nil {
		return nil, err
	}
	spec := host.ObjectSpec{Type: objType, Name: name}
	if spec.Location, err = params.optVec3("location"); err != nil {
		return nil, err
	}
	if spec.Rotation, err = params.optVec3("rotation"); err != nil {
		return nil, err
	}
	if spec.Scale, err = params.optVec3("scale"); err != nil {
		return nil, err
	}

	var obj host.Object
	err = d.exec.Do(ctx, protocol.CmdCreateObject, func(ctx context.Context, h host.Host) error {
		ed, err := editor(h)
		if err != nil {
			return err
		}
		obj, err = ed.CreateObject(ctx, spec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// modifyStep is one host call applied by modify_object.
type modifyStep struct {
	name  string
	apply func(ctx context.Context, ed host.SceneEditor) error
}

func (d *Dispatcher) handleModifyObject(ctx context.Context, params Params) (any, error) {
	name, err := params.requireString("name")
	if err != nil {
		return nil, err
	}

	var steps []modifyStep
	loc, err := params.optVec3("location")
	if err != nil {
		return nil, err
	}
	if loc != nil {
		steps = append(steps, modifyStep{"location", func(ctx context.Context, ed host.SceneEditor) error {
			return ed.SetLocation(ctx, name, *loc)
		}})
	}
	rot, err := params.optVec3("rotation")
	if err != nil {
		return nil, err
	}
	if rot != nil {
		steps = append(steps, modifyStep{"rotation", func(ctx context.Context, ed host.SceneEditor) error {
			return ed.SetRotation(ctx, name, *rot)
		}})
	}
	scale, err := params.optVec3("scale")
	if err != nil {
		return nil, err
	}
	if scale != nil {
		steps = append(steps, modifyStep{"scale", func(ctx context.Context, ed host.SceneEditor) error {
			return ed.SetScale(ctx, name, *scale)
		}})
	}
	visible, err := params.optBool("visible")
	if err != nil {
		return nil, err
	}
	if visible != nil {
		steps = append(steps, modifyStep{"visible", func(ctx context.Context, ed host.SceneEditor) error {
			return ed.SetVisible(ctx, name, *visible)
		}})
	}
	if len(steps) == 0 {
		return nil, &ValidationError{Reason: "nothing to modify: provide location, rotation, scale or visible"}
	}

	var obj host.Object
	err = d.exec.Do(ctx, protocol.CmdModifyObject, func(ctx context.Context, h host.Host) error {
		ed, err := editor(h)
		if err != nil {
			return err
		}
		// Resolve first so a missing object fails before any step runs.
		if _, err := findObject(ctx, h, name); err != nil {
			return err
		}
		if err := applySteps(ctx, ed, steps); err != nil {
			return err
		}
		obj, err = findObject(ctx, h, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// applySteps runs steps in order. A failure after at least one applied step
// is reported as a PartialFailureError naming what was already applied.
func applySteps(ctx context.Context, ed host.SceneEditor, steps []modifyStep) error {
	var applied []string
	for _, s := range steps {
		if err := s.apply(ctx, ed); err != nil {
			if len(applied) == 0 {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			return &PartialFailureError{Applied: applied, Failed: s.name, Err: err}
		}
		applied = append(applied, s.name)
	}
	return nil
}

func (d *Dispatcher) handleDeleteObject(ctx context.Context, params Params) (any, error) {
	name, err := params.requireString("name")
	if err != nil {
		return nil, err
	}
	err = d.exec.Do(ctx, protocol.CmdDeleteObject, func(ctx context.Context, h host.Host) error {
		ed, err := editor(h)
		if err != nil {
			return err
		}
		return ed.DeleteObject(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": name}, nil
}

func (d *Dispatcher) handleSetMaterial(ctx context.Context, params Params) (any, error) {
	objectName, err := params.requireString("object_name")
	if err != nil {
		return nil, err
	}
	color, err := params.optColor("color")
	if err != nil {
		return nil, err
	}
	materialName, err := params.optString("material_name", "")
	if err != nil {
		return nil, err
	}
	if materialName == "" {
		if color == nil {
			return nil, &ValidationError{Reason: "provide color, material_name, or both"}
		}
		materialName = objectName + "_Material"
	}

	var steps []modifyStep
	if color != nil {
		steps = append(steps, modifyStep{"material", func(ctx context.Context, ed host.SceneEditor) error {
			return ed.EnsureMaterial(ctx, materialName, *color)
		}})
	}
	steps = append(steps, modifyStep{"assign", func(ctx context.Context, ed host.SceneEditor) error {
		return ed.AssignMaterial(ctx, objectName, materialName)
	}})

	err = d.exec.Do(ctx, protocol.CmdSetMaterial, func(ctx context.Context, h host.Host) error {
		ed, err := editor(h)
		if err != nil {
			return err
		}
		if _, err := findObject(ctx, h, objectName); err != nil {
			return err
		}
		return applySteps(ctx, ed, steps)
	})
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"object":   objectName,
		"material": materialName,
	}
	if color != nil {
		result["color"] = color[:]
	}
	return result, nil
}

func (d *Dispatcher) handleExecuteCode(ctx context.Context, params Params) (any, error) {
	if !d.opts.AllowExec {
		return nil, ErrExecDisabled
	}
	code, err := params.requireString("code")
	if err != nil {
		return nil, err
	}

	var output string
	err = d.exec.Do(ctx, protocol.CmdExecuteCode, func(ctx context.Context, h host.Host) error {
		var err error
		output, err = h.RunScript(ctx, code)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("code execution error: %w", err)
	}
	return map[string]any{"executed": true, "output": output}, nil
}

// ViewportImage is the result of get_viewport_image.
type ViewportImage struct {
	Image  string `json:"image"` // base64
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int    `json:"size"`
}

func (d *Dispatcher) handleGetViewportImage(ctx context.Context, params Params) (any, error) {
	req, err := parseCaptureParams(params, frame.Request{
		Width:  DefaultViewportWidth,
		Height: DefaultViewportHeight,
		Format: frame.FormatJPEG,
	})
	if err != nil {
		return nil, err
	}
	img, err := d.capturer.Capture(ctx, req)
	if err != nil {
		return nil, err
	}
	return ViewportImage{
		Image:  img.Base64(),
		Width:  img.Width,
		Height: img.Height,
		Format: string(img.Format),
		Size:   len(img.Data),
	}, nil
}

func (d *Dispatcher) handleGetSceneMetrics(ctx context.Context, params Params) (any, error) {
	return d.collector.Collect(ctx)
}

func (d *Dispatcher) handleStartLivePreview(ctx context.Context, params Params) (any, error) {
	def := d.opts.PreviewDefaults
	req, err := parseCaptureParams(params, frame.Request{
		Width:   def.Width,
		Height:  def.Height,
		Format:  def.Format,
		Quality: def.Quality,
	})
	if err != nil {
		return nil, err
	}
	port, err := params.optIntRange("port", def.Port, 0, 65535)
	if err != nil {
		return nil, err
	}
	fps, err := params.optFloat("fps", def.FPS)
	if err != nil {
		return nil, err
	}
	transport, err := params.optString("transport", string(def.Transport))
	if err != nil {
		return nil, err
	}

	opts := preview.Options{
		Host:      def.Host,
		Port:      port,
		FPS:       fps,
		Width:     req.Width,
		Height:    req.Height,
		Format:    req.Format,
		Quality:   req.Quality,
		Transport: preview.Transport(strings.ToLower(transport)),
	}
	if err := opts.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	info, err := d.opts.Previews.Start(opts)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":   fmt.Sprintf("Live preview started on port %d at %g fps", info.Port, info.FPS),
		"port":      info.Port,
		"fps":       info.FPS,
		"transport": info.Transport,
		"state":     info.State,
	}, nil
}

func (d *Dispatcher) handleStopLivePreview(ctx context.Context, params Params) (any, error) {
	if !params.has("port") {
		n := d.opts.Previews.StopAll()
		return map[string]any{
			"message": fmt.Sprintf("Stopped %d live preview session(s)", n),
			"stopped": n,
		}, nil
	}
	port, err := params.optIntRange("port", 0, 1, 65535)
	if err != nil {
		return nil, err
	}
	if err := d.opts.Previews.Stop(port); err != nil {
		return nil, err
	}
	return map[string]any{
		"message": fmt.Sprintf("Live preview on port %d stopped", port),
		"stopped": 1,
	}, nil
}

func (d *Dispatcher) handleListLivePreviews(ctx context.Context, params Params) (any, error) {
	sessions := d.opts.Previews.List()
	if sessions == nil {
		sessions = []preview.Info{}
	}
	return map[string]any{"sessions": sessions}, nil
}

func parseCaptureParams(params Params, def frame.Request) (frame.Request, error) {
	var err error
	req := def
	if req.Width, err = params.optInt("width", def.Width); err != nil {
		return req, err
	}
	if req.Height, err = params.optInt("height", def.Height); err != nil {
		return req, err
	}
	if err := frame.ValidateSize(req.Width, req.Height); err != nil {
		return req, err
	}
	formatName, err := params.optString("format", string(def.Format))
	if err != nil {
		return req, err
	}
	if formatName == "" {
		formatName = string(frame.FormatJPEG)
	}
	if req.Format, err = frame.ParseFormat(formatName); err != nil {
		return req, &ValidationError{Param: "format", Reason: fmt.Sprintf("unsupported format %q", formatName)}
	}
	if req.Quality, err = params.optIntRange("quality", def.Quality, 0, 100); err != nil {
		return req, err
	}
	return req, nil
}

func parseObjectType(s string) (host.ObjectType, error) {
	t := host.ObjectType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range host.ObjectTypes {
		if t == known {
			return t, nil
		}
	}
	names := make([]string, len(host.ObjectTypes))
	for i, known := range host.ObjectTypes {
		names[i] = string(known)
	}
	return "", &ValidationError{Param: "type", Reason: fmt.Sprintf("unknown object type %q (expected one of %s)", s, strings.Join(names, ", "))}
}

func editor(h host.Host) (host.SceneEditor, error) {
	ed, ok := h.(host.SceneEditor)
	if !ok {
		return nil, host.ErrUnsupported
	}
	return ed, nil
}

func findObject(ctx context.Context, h host.Host, name string) (host.Object, error) {
	objs, err := h.EnumerateObjects(ctx)
	if err != nil {
		return host.Object{}, err
	}
	for _, o := range objs {
		if o.Name == name {
			return o, nil
		}
	}
	return host.Object{}, &host.NotFoundError{Kind: "object", Name: name}
}
