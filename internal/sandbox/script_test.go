package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestScene_RunScript(t *testing.T) {
	// Arrange
	s := NewEmpty()
	code := `
# build a small scene
create SPHERE Ball
move Ball 1 2 3
color Ball 0 0 1
print done
`

	// Act
	out, err := s.RunScript(context.Background(), code)

	// Assert
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
	if out != "created Ball\ndone\n" {
		t.Errorf("output = %q", out)
	}
	objs, _ := s.EnumerateObjects(context.Background())
	if len(objs) != 1 || objs[0].Location[2] != 3 || objs[0].Material != "Ball.Material" {
		t.Errorf("objects = %+v", objs)
	}
}

func TestScene_RunScript_Errors(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantLine int
		wantMsg  string
	}{
		{"unknown statement", "import bpy", 1, "unknown statement"},
		{"explicit failure", "print ok\nfail NameError: name 'foo' is not defined", 2, "NameError"},
		{"bad number", "create CUBE\nmove Cube x 0 0", 2, "invalid number"},
		{"missing object", "delete Ghost", 1, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewEmpty()

			_, err := s.RunScript(context.Background(), tt.code)

			var se *ScriptError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *ScriptError", err)
			}
			if se.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", se.Line, tt.wantLine)
			}
			if !strings.Contains(se.Msg, tt.wantMsg) {
				t.Errorf("Msg = %q, want substring %q", se.Msg, tt.wantMsg)
			}
		})
	}
}

func TestScene_RunScript_KeepsEarlierStatements(t *testing.T) {
	s := NewEmpty()

	_, err := s.RunScript(context.Background(), "create CUBE\nfail stop")

	if err == nil {
		t.Fatal("RunScript() expected error")
	}
	objs, _ := s.EnumerateObjects(context.Background())
	if len(objs) != 1 {
		t.Errorf("len(objects) = %d, want 1", len(objs))
	}
}

func TestScene_RunScript_Clear(t *testing.T) {
	s := NewDefault()

	if _, err := s.RunScript(context.Background(), "clear"); err != nil {
		t.Fatal(err)
	}

	objs, _ := s.EnumerateObjects(context.Background())
	if len(objs) != 0 {
		t.Errorf("len(objects) = %d, want 0", len(objs))
	}
}
