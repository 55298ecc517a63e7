package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/cork/pkg/kernel"
	"github.com/chazu/cork/pkg/mesh"
	"github.com/chazu/cork/pkg/primitive"
	"github.com/chazu/cork/pkg/transform"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms cork script source before passing it to
// zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids registering keyword symbols as globals, which would
//     conflict with user variables of the same name.
//
//  2. Kebab-case to underscore: def-mesh -> def_mesh
//     zygomys reads a hyphen inside an identifier as subtraction.
//
//  3. Comments: ; and ;; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	out := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := skipQuoted(b, i)
			out = append(out, b[i:j]...)
			i = j

		case b[i] == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			j = min(j+1, len(b))
			out = append(out, b[i:j]...)
			i = j

		case b[i] == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, b[i], b[i+1])
			i += 2

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, b[i])
			i++
		}
	}
	return string(out)
}

// skipQuoted returns the index just past the double-quoted literal that
// starts at i, honouring backslash escapes.
func skipQuoted(b []byte, i int) int {
	j := i + 1
	for j < len(b) && b[j] != '"' {
		if b[j] == '\\' && j+1 < len(b) {
			j++
		}
		j++
	}
	return min(j+1, len(b))
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpMesh wraps a kernel mesh. Builtins never modify the wrapped mesh.
type sexpMesh struct {
	m *kernel.Mesh
}

func (s *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh %d vertices %d triangles)", s.m.VertexCount(), s.m.TriangleCount())
}
func (s *sexpMesh) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a position or offset.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	res := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		switch {
		case !ok:
			res.positional = append(res.positional, args[i])
		case i+1 < len(args):
			res.kw[name] = args[i+1]
			i++
		default:
			// Trailing keyword with no value is a flag.
			res.kw[name] = zygo.SexpNull
		}
	}
	return res
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts both a preprocessed keyword (:x) and a plain
// string ("x").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toMesh accepts a mesh value or the name of a registered mesh.
func toMesh(reg *Registry, s zygo.Sexp) (*kernel.Mesh, error) {
	switch v := s.(type) {
	case *sexpMesh:
		return v.m, nil
	case *zygo.SexpStr:
		if m := reg.Get(v.S); m != nil {
			return m, nil
		}
		return nil, fmt.Errorf("no mesh named %q", v.S)
	}
	return nil, fmt.Errorf("expected mesh or mesh name, got %T (%s)", s, s.SexpString(nil))
}

// sizeArgs reads three dimensions given either positionally or by the
// named keywords.
func sizeArgs(pa kwArgs, names [3]string) ([3]float64, error) {
	var dims [3]float64
	for i, name := range names {
		var v zygo.Sexp
		if i < len(pa.positional) {
			v = pa.positional[i]
		}
		if kv, ok := pa.kw[name]; ok {
			v = kv
		}
		if v == nil {
			return dims, fmt.Errorf("missing %s", name)
		}
		f, err := toFloat64(v)
		if err != nil {
			return dims, fmt.Errorf("%s: %w", name, err)
		}
		dims[i] = f
	}
	return dims, nil
}

func meshResult(m *kernel.Mesh) zygo.Sexp {
	return &sexpMesh{m: m}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

type binaryOp func(a, b *kernel.Mesh) (*kernel.Mesh, error)

// registerBuiltins installs the cork builtins into a zygomys environment.
// Named meshes live in reg; Boolean operations run on k. Primitives are
// placed through a frame stack private to this environment.
//
// Source code must be preprocessed with preprocessSource() before
// evaluation so that :keyword tokens are recognizable.
func registerBuiltins(env *zygo.Zlisp, reg *Registry, k kernel.Kernel) {
	frames := &transform.Stack{}

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (box 2 1 1 :at (vec3 0 0 1)) or (box :x 2 :y 1 :z 1)
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		dims, err := sizeArgs(pa, [3]string{"x", "y", "z"})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		var at v3.Vec
		if v, ok := pa.kw["at"]; ok {
			if at, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("box: at: %w", err)
			}
		}
		m, err := primitive.BoxAt(at, at.Add(v3.Vec{X: dims[0], Y: dims[1], Z: dims[2]}))
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return meshResult(frames.Place(m)), nil
	})

	// (cylinder :height 2 :radius 0.5 :segments 32 :at (vec3 0 0 0))
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var height, radius float64
		segments := 32
		for _, f := range []struct {
			key string
			dst *float64
		}{{"height", &height}, {"radius", &radius}} {
			v, ok := pa.kw[f.key]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("cylinder: missing :%s", f.key)
			}
			x, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: %s: %w", f.key, err)
			}
			*f.dst = x
		}
		if v, ok := pa.kw["segments"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: segments: %w", err)
			}
			segments = n
		}
		m, err := primitive.Cylinder(height, radius, segments)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		if v, ok := pa.kw["at"]; ok {
			at, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: at: %w", err)
			}
			m = transform.Translate(m, at.X, at.Y, at.Z)
		}
		return meshResult(frames.Place(m)), nil
	})

	// (push-frame :translate (vec3 1 0 0)) or (push-frame :flip :x)
	env.AddFunction("push_frame", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		switch {
		case pa.kw["translate"] != nil:
			v, err := toVec3(pa.kw["translate"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("push-frame: translate: %w", err)
			}
			frames.Push(sdf.Translate3d(v))
		case pa.kw["flip"] != nil:
			axis, err := toKeywordString(pa.kw["flip"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("push-frame: flip: %w", err)
			}
			switch axis {
			case "x":
				frames.Push(transform.HalfTurnX())
			case "y":
				frames.Push(transform.HalfTurnY())
			default:
				return zygo.SexpNull, fmt.Errorf("push-frame: flip: invalid axis %q, expected x or y", axis)
			}
		default:
			return zygo.SexpNull, fmt.Errorf("push-frame requires :translate or :flip")
		}
		return &zygo.SexpInt{Val: int64(frames.Depth())}, nil
	})

	// (pop-frame)
	env.AddFunction("pop_frame", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if frames.Depth() == 0 {
			return zygo.SexpNull, fmt.Errorf("pop-frame: no frame to pop")
		}
		frames.Pop()
		return &zygo.SexpInt{Val: int64(frames.Depth())}, nil
	})

	// (def-mesh "name" (box 1 1 1))
	env.AddFunction("def_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("def-mesh requires a name and a mesh")
		}
		id, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("def-mesh: name: %w", err)
		}
		m, err := toMesh(reg, args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("def-mesh: %w", err)
		}
		reg.Set(id, m)
		return meshResult(m), nil
	})

	// (mesh "name")
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("mesh requires a name argument")
		}
		m, err := toMesh(reg, args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh: %w", err)
		}
		return meshResult(m), nil
	})

	// (copy-mesh "src" "dst")
	env.AddFunction("copy_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("copy-mesh requires source and destination names")
		}
		src, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("copy-mesh: source: %w", err)
		}
		dst, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("copy-mesh: destination: %w", err)
		}
		if err := reg.Copy(src, dst); err != nil {
			return zygo.SexpNull, fmt.Errorf("copy-mesh: %w", err)
		}
		return meshResult(reg.Get(dst)), nil
	})

	// (delete-mesh "name")
	env.AddFunction("delete_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("delete-mesh requires a name argument")
		}
		id, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("delete-mesh: name: %w", err)
		}
		reg.Delete(id)
		return zygo.SexpNull, nil
	})

	// (clear-meshes)
	env.AddFunction("clear_meshes", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		reg.Clear()
		return zygo.SexpNull, nil
	})

	// Boolean operations: (union a b), (cut-difference a b), ...
	ops := map[string]binaryOp{
		"union":            k.Union,
		"difference":       k.Difference,
		"intersection":     k.Intersection,
		"xor":              k.SymmetricDifference,
		"cut_difference":   k.CutDifference,
		"cut_intersection": k.CutIntersection,
		"resolve":          k.ResolveIntersections,
	}
	for opName, op := range ops {
		label := strings.ReplaceAll(opName, "_", "-")
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires two meshes, got %d arguments", label, len(args))
			}
			a, err := toMesh(reg, args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: first operand: %w", label, err)
			}
			b, err := toMesh(reg, args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: second operand: %w", label, err)
			}
			out, err := op(a, b)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", label, err)
			}
			return meshResult(out), nil
		})
	}

	// Unary transforms: (translate-z m 1.5), (rotate180x m), (translate m (vec3 ...))
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a mesh and a vec3")
		}
		m, err := toMesh(reg, args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		v, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		return meshResult(transform.Translate(m, v.X, v.Y, v.Z)), nil
	})
	env.AddFunction("translate_z", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate-z requires a mesh and a distance")
		}
		m, err := toMesh(reg, args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate-z: %w", err)
		}
		dz, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate-z: %w", err)
		}
		return meshResult(transform.TranslateZ(m, dz)), nil
	})
	unary := map[string]func(*kernel.Mesh) *kernel.Mesh{
		"rotate180x": transform.Rotate180X,
		"rotate180y": transform.Rotate180Y,
	}
	for opName, fn := range unary {
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires one mesh", opName)
			}
			m, err := toMesh(reg, args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", opName, err)
			}
			return meshResult(fn(m)), nil
		})
	}

	// Queries: (solid? m), (volume m), (area m), (triangle-count m), (vertex-count m)
	env.AddFunction("solid?", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("solid? requires one mesh")
		}
		m, err := toMesh(reg, args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid?: %w", err)
		}
		return &zygo.SexpBool{Val: k.IsSolid(m)}, nil
	})
	measures := map[string]func(*mesh.Mesh) float64{
		"volume": (*mesh.Mesh).Volume,
		"area":   (*mesh.Mesh).Area,
	}
	for opName, fn := range measures {
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires one mesh", opName)
			}
			km, err := toMesh(reg, args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", opName, err)
			}
			m, err := mesh.FromKernel(km, mesh.SourceA)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", opName, err)
			}
			return &zygo.SexpFloat{Val: fn(m)}, nil
		})
	}
	counts := map[string]func(*kernel.Mesh) int{
		"triangle_count": (*kernel.Mesh).TriangleCount,
		"vertex_count":   (*kernel.Mesh).VertexCount,
	}
	for opName, fn := range counts {
		label := strings.ReplaceAll(opName, "_", "-")
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires one mesh", label)
			}
			m, err := toMesh(reg, args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", label, err)
			}
			return &zygo.SexpInt{Val: int64(fn(m))}, nil
		})
	}
}
