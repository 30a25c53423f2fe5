// Package valuewire implements spec.md §6's value serialization table: the
// single codec the snapshot engine, state reader, and route handlers share
// to turn engine-native values into JSON-safe ones and back.
package valuewire

import (
	"encoding/base64"
	"fmt"
)

// Vector2 is a 2-component vector, serialized as [x, y].
type Vector2 struct{ X, Y float64 }

// Vector3 is a 3-component vector, serialized as [x, y, z].
type Vector3 struct{ X, Y, Z float64 }

// Vector4 is a 4-component vector, serialized as [x, y, z, w].
type Vector4 struct{ X, Y, Z, W float64 }

// Color is serialized as {r, g, b, a}.
type Color struct{ R, G, B, A float64 }

// Rect2 is serialized as {position: [x,y], size: [w,h]}.
type Rect2 struct{ X, Y, W, H float64 }

// Transform2D is serialized as {origin: [x,y], rotation}.
type Transform2D struct {
	OriginX, OriginY float64
	Rotation         float64
}

// Basis3 is a 3x3 row-major basis, serialized as a 3x3 array.
type Basis3 struct{ Rows [3][3]float64 }

// Quaternion is serialized as [x, y, z, w].
type Quaternion struct{ X, Y, Z, W float64 }

// AABB is a 3D bounding box, serialized as {position, size} in 3 dims.
type AABB struct{ X, Y, Z, W, H, D float64 }

// NodePath is a string node path, serialized as a plain string.
type NodePath string

// ResourcePath is a resource reference, serialized as its res:// path.
type ResourcePath string

// Bytes is a raw byte array, serialized as base64.
type Bytes []byte

// Serialize converts an engine-native value into a JSON-safe value: scalars
// pass through, the typed value families above become the wire shapes
// spec.md §6 defines, slices/maps of any of the above serialize
// element-wise, and anything else falls back to its string representation.
func Serialize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, string, int, int32, int64, float32, float64:
		return t
	case Vector2:
		return []float64{t.X, t.Y}
	case Vector3:
		return []float64{t.X, t.Y, t.Z}
	case Vector4:
		return []float64{t.X, t.Y, t.Z, t.W}
	case Color:
		return map[string]any{"r": t.R, "g": t.G, "b": t.B, "a": t.A}
	case Rect2:
		return map[string]any{"position": []float64{t.X, t.Y}, "size": []float64{t.W, t.H}}
	case Transform2D:
		return map[string]any{"origin": []float64{t.OriginX, t.OriginY}, "rotation": t.Rotation}
	case Basis3:
		rows := make([][]float64, 3)
		for i, row := range t.Rows {
			rows[i] = []float64{row[0], row[1], row[2]}
		}
		return rows
	case Quaternion:
		return []float64{t.X, t.Y, t.Z, t.W}
	case AABB:
		return map[string]any{"position": []float64{t.X, t.Y, t.Z}, "size": []float64{t.W, t.H, t.D}}
	case NodePath:
		return string(t)
	case ResourcePath:
		return string(t)
	case Bytes:
		return base64.StdEncoding.EncodeToString(t)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Serialize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Serialize(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Deserialize converts a JSON-decoded value back into the engine-native
// shape hinted by sample, which should be a zero (or representative) value
// of the target type — mirroring how property type metadata on the
// receiving end drives deserialization in the original engine (spec.md
// §6). Returns an error if the wire value cannot populate the shape.
func Deserialize(sample any, wire any) (any, error) {
	switch sample.(type) {
	case Vector2:
		arr, err := floatArray(wire, 2)
		if err != nil {
			return nil, err
		}
		return Vector2{arr[0], arr[1]}, nil
	case Vector3:
		arr, err := floatArray(wire, 3)
		if err != nil {
			return nil, err
		}
		return Vector3{arr[0], arr[1], arr[2]}, nil
	case Vector4:
		arr, err := floatArray(wire, 4)
		if err != nil {
			return nil, err
		}
		return Vector4{arr[0], arr[1], arr[2], arr[3]}, nil
	case Quaternion:
		arr, err := floatArray(wire, 4)
		if err != nil {
			return nil, err
		}
		return Quaternion{arr[0], arr[1], arr[2], arr[3]}, nil
	case Color:
		m, ok := wire.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("valuewire: expected color object, got %T", wire)
		}
		return Color{numberField(m, "r"), numberField(m, "g"), numberField(m, "b"), numberField(m, "a")}, nil
	case Rect2:
		m, ok := wire.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("valuewire: expected rect object, got %T", wire)
		}
		pos, err := floatArray(m["position"], 2)
		if err != nil {
			return nil, err
		}
		size, err := floatArray(m["size"], 2)
		if err != nil {
			return nil, err
		}
		return Rect2{pos[0], pos[1], size[0], size[1]}, nil
	case Transform2D:
		m, ok := wire.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("valuewire: expected transform object, got %T", wire)
		}
		origin, err := floatArray(m["origin"], 2)
		if err != nil {
			return nil, err
		}
		return Transform2D{origin[0], origin[1], numberField(m, "rotation")}, nil
	case Bytes:
		s, ok := wire.(string)
		if !ok {
			return nil, fmt.Errorf("valuewire: expected base64 string, got %T", wire)
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("valuewire: invalid base64: %w", err)
		}
		return Bytes(decoded), nil
	case NodePath:
		s, ok := wire.(string)
		if !ok {
			return nil, fmt.Errorf("valuewire: expected string node path, got %T", wire)
		}
		return NodePath(s), nil
	case ResourcePath:
		s, ok := wire.(string)
		if !ok {
			return nil, fmt.Errorf("valuewire: expected string resource path, got %T", wire)
		}
		return ResourcePath(s), nil
	default:
		// Scalars and untyped JSON values pass through unchanged.
		return wire, nil
	}
}

func floatArray(wire any, n int) ([]float64, error) {
	if fs, ok := wire.([]float64); ok {
		if len(fs) != n {
			return nil, fmt.Errorf("valuewire: expected %d-element array, got %d elements", n, len(fs))
		}
		return append([]float64(nil), fs...), nil
	}
	arr, ok := wire.([]any)
	if !ok || len(arr) != n {
		return nil, fmt.Errorf("valuewire: expected %d-element array, got %T", n, wire)
	}
	out := make([]float64, n)
	for i, v := range arr {
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("valuewire: expected numeric array element, got %T", v)
		}
		out[i] = f
	}
	return out, nil
}

func numberField(m map[string]any, key string) float64 {
	f, _ := asFloat(m[key])
	return f
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
