package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/d2verb/scenebridge/internal/host"
)

// ScriptError reports the failing line of a sandbox script.
type ScriptError struct {
	Line int
	Msg  string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// RunScript implements host.Host with a small line-oriented language:
//
//	create <TYPE> [name]
//	delete <name>
//	move <name> <x> <y> <z>
//	color <name> <r> <g> <b>
//	frame <n>
//	print <text>
//	clear
//	fail <message>
//
// Blank lines and lines starting with '#' are ignored. Statements before a
// failing line stay applied, matching how a host interpreter behaves.
func (s *Scene) RunScript(ctx context.Context, code string) (string, error) {
	var out strings.Builder
	for i, raw := range strings.Split(code, "\n") {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.runStatement(ctx, line, &out); err != nil {
			return out.String(), &ScriptError{Line: i + 1, Msg: err.Error()}
		}
	}
	return out.String(), nil
}

func (s *Scene) runStatement(ctx context.Context, line string, out *strings.Builder) error {
	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]

	switch verb {
	case "print":
		out.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "print")))
		out.WriteByte('\n')
		return nil

	case "fail":
		msg := strings.TrimSpace(strings.TrimPrefix(line, "fail"))
		if msg == "" {
			msg = "script failed"
		}
		return fmt.Errorf("%s", msg)

	case "create":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: create <TYPE> [name]")
		}
		spec := host.ObjectSpec{Type: host.ObjectType(strings.ToUpper(args[0]))}
		if len(args) == 2 {
			spec.Name = args[1]
		}
		obj, err := s.CreateObject(ctx, spec)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s\n", obj.Name)
		return nil

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <name>")
		}
		return s.DeleteObject(ctx, args[0])

	case "move":
		if len(args) != 4 {
			return fmt.Errorf("usage: move <name> <x> <y> <z>")
		}
		v, err := parseFloats(args[1:])
		if err != nil {
			return err
		}
		return s.SetLocation(ctx, args[0], host.Vec3{v[0], v[1], v[2]})

	case "color":
		if len(args) != 4 {
			return fmt.Errorf("usage: color <name> <r> <g> <b>")
		}
		v, err := parseFloats(args[1:])
		if err != nil {
			return err
		}
		mat := args[0] + ".Material"
		if err := s.EnsureMaterial(ctx, mat, host.Color{v[0], v[1], v[2], 1}); err != nil {
			return err
		}
		return s.AssignMaterial(ctx, args[0], mat)

	case "frame":
		if len(args) != 1 {
			return fmt.Errorf("usage: frame <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid frame %q", args[0])
		}
		s.mu.Lock()
		s.frame = n
		s.mu.Unlock()
		return nil

	case "clear":
		s.mu.Lock()
		s.objects = make(map[string]*host.Object)
		s.order = nil
		s.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("unknown statement %q", verb)
	}
}

func parseFloats(args []string) ([]float64, error) {
	vals := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		vals[i] = f
	}
	return vals, nil
}
