package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// plyFormat enumerates the supported PLY encodings.
type plyFormat int

const (
	plyAscii plyFormat = iota
	plyBinaryLE
)

// plyProperty is one declared scalar or list property of an element.
type plyProperty struct {
	name     string
	typ      string // scalar type, or list element type
	list     bool
	countTyp string // list count type
}

// plyElement is one element block (vertex, face, ...) from the header.
type plyElement struct {
	name  string
	count int
	props []plyProperty
}

var plyTypeSizes = map[string]int{
	"char": 1, "int8": 1,
	"uchar": 1, "uint8": 1,
	"short": 2, "int16": 2,
	"ushort": 2, "uint16": 2,
	"int": 4, "int32": 4,
	"uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

// DecodePLYFile reads a PLY mesh from disk.
func DecodePLYFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ply: %w", err)
	}
	defer f.Close()
	return DecodePLY(f)
}

// DecodePLY reads a PLY mesh (ascii or binary_little_endian). Vertex
// positions and triangular faces are extracted; every other declared
// property is skipped by its declared size. Polygons with more than three
// vertices are fan-split into triangles.
func DecodePLY(r io.Reader) (*Mesh, error) {
	br := bufio.NewReader(r)

	format, elements, err := parsePLYHeader(br)
	if err != nil {
		return nil, err
	}

	mesh := &Mesh{}
	maxList := maxListLen(elements)
	for _, elem := range elements {
		switch format {
		case plyAscii:
			err = readAsciiElement(br, elem, mesh)
		case plyBinaryLE:
			err = readBinaryElement(br, elem, mesh, maxList)
		}
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", elem.name, err)
		}
	}

	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

func parsePLYHeader(br *bufio.Reader) (plyFormat, []plyElement, error) {
	magic, err := readHeaderLine(br)
	if err != nil || magic != "ply" {
		return 0, nil, fmt.Errorf("not a PLY file")
	}

	format := plyFormat(-1)
	var elements []plyElement

	for {
		line, err := readHeaderLine(br)
		if err != nil {
			return 0, nil, fmt.Errorf("truncated header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
			continue
		case "format":
			if len(fields) < 2 {
				return 0, nil, fmt.Errorf("malformed format line %q", line)
			}
			switch fields[1] {
			case "ascii":
				format = plyAscii
			case "binary_little_endian":
				format = plyBinaryLE
			default:
				return 0, nil, fmt.Errorf("unsupported PLY format %q", fields[1])
			}
		case "element":
			if len(fields) != 3 {
				return 0, nil, fmt.Errorf("malformed element line %q", line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return 0, nil, fmt.Errorf("bad element count in %q", line)
			}
			elements = append(elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(elements) == 0 {
				return 0, nil, fmt.Errorf("property before element: %q", line)
			}
			elem := &elements[len(elements)-1]
			if len(fields) >= 5 && fields[1] == "list" {
				elem.props = append(elem.props, plyProperty{
					name: fields[4], list: true, countTyp: fields[2], typ: fields[3],
				})
			} else if len(fields) == 3 {
				elem.props = append(elem.props, plyProperty{name: fields[2], typ: fields[1]})
			} else {
				return 0, nil, fmt.Errorf("malformed property line %q", line)
			}
		case "end_header":
			if format < 0 {
				return 0, nil, fmt.Errorf("missing format line")
			}
			return format, elements, nil
		default:
			return 0, nil, fmt.Errorf("unknown header keyword %q", fields[0])
		}
	}
}

func readHeaderLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// appendFace fan-splits an arbitrary polygon into triangles.
func appendFace(mesh *Mesh, indices []uint32) error {
	if len(indices) < 3 {
		return fmt.Errorf("face with %d vertices", len(indices))
	}
	for i := 2; i < len(indices); i++ {
		mesh.Faces = append(mesh.Faces, Triangle{indices[0], indices[i-1], indices[i]})
	}
	return nil
}

// --- ascii body ---

func readAsciiElement(br *bufio.Reader, elem plyElement, mesh *Mesh) error {
	isVertex := elem.name == "vertex"
	isFace := elem.name == "face"

	for range elem.count {
		line, err := readHeaderLine(br)
		if err != nil {
			return fmt.Errorf("truncated body: %w", err)
		}
		fields := strings.Fields(line)
		pos := 0

		var v Vec3
		for _, prop := range elem.props {
			if prop.list {
				if pos >= len(fields) {
					return fmt.Errorf("short row %q", line)
				}
				count, err := strconv.Atoi(fields[pos])
				if err != nil {
					return fmt.Errorf("bad list count in %q", line)
				}
				pos++
				if pos+count > len(fields) {
					return fmt.Errorf("short list in %q", line)
				}
				if isFace && (prop.name == "vertex_indices" || prop.name == "vertex_index") {
					indices := make([]uint32, count)
					for i := range count {
						idx, err := strconv.ParseUint(fields[pos+i], 10, 32)
						if err != nil {
							return fmt.Errorf("bad vertex index in %q", line)
						}
						indices[i] = uint32(idx)
					}
					if err := appendFace(mesh, indices); err != nil {
						return err
					}
				}
				pos += count
				continue
			}

			if pos >= len(fields) {
				return fmt.Errorf("short row %q", line)
			}
			if isVertex {
				switch prop.name {
				case "x", "y", "z":
					val, err := strconv.ParseFloat(fields[pos], 64)
					if err != nil {
						return fmt.Errorf("bad coordinate in %q", line)
					}
					switch prop.name {
					case "x":
						v.X = val
					case "y":
						v.Y = val
					case "z":
						v.Z = val
					}
				}
			}
			pos++
		}
		if isVertex {
			mesh.Vertices = append(mesh.Vertices, v)
		}
	}
	return nil
}

// --- binary little endian body ---

// maxListLen bounds list counts read from the binary body. A face cannot
// reference more vertices than the header declares, so anything larger marks
// a corrupt file; the floor keeps tiny meshes from rejecting per-face
// attribute lists.
func maxListLen(elements []plyElement) int {
	limit := 256
	for _, e := range elements {
		if e.name == "vertex" && e.count > limit {
			limit = e.count
		}
	}
	return limit
}

func readBinaryElement(br *bufio.Reader, elem plyElement, mesh *Mesh, maxList int) error {
	isVertex := elem.name == "vertex"
	isFace := elem.name == "face"

	for range elem.count {
		var v Vec3
		for _, prop := range elem.props {
			if prop.list {
				elemSize, ok := plyTypeSizes[prop.typ]
				if !ok {
					return fmt.Errorf("unknown property type %q", prop.typ)
				}
				count, err := readBinaryUint(br, prop.countTyp)
				if err != nil {
					return err
				}
				if count > uint64(maxList) {
					return fmt.Errorf("list count %d in property %q exceeds declared mesh size", count, prop.name)
				}
				if isFace && (prop.name == "vertex_indices" || prop.name == "vertex_index") {
					indices := make([]uint32, count)
					for i := range indices {
						idx, err := readBinaryUint(br, prop.typ)
						if err != nil {
							return err
						}
						indices[i] = uint32(idx)
					}
					if err := appendFace(mesh, indices); err != nil {
						return err
					}
				} else {
					if err := skipBytes(br, int(count)*elemSize); err != nil {
						return err
					}
				}
				continue
			}

			if isVertex && (prop.name == "x" || prop.name == "y" || prop.name == "z") {
				val, err := readBinaryFloat(br, prop.typ)
				if err != nil {
					return err
				}
				switch prop.name {
				case "x":
					v.X = val
				case "y":
					v.Y = val
				case "z":
					v.Z = val
				}
				continue
			}

			size, ok := plyTypeSizes[prop.typ]
			if !ok {
				return fmt.Errorf("unknown property type %q", prop.typ)
			}
			if err := skipBytes(br, size); err != nil {
				return err
			}
		}
		if isVertex {
			mesh.Vertices = append(mesh.Vertices, v)
		}
	}
	return nil
}

func skipBytes(br *bufio.Reader, n int) error {
	_, err := br.Discard(n)
	return err
}

func readBinaryUint(br *bufio.Reader, typ string) (uint64, error) {
	size, ok := plyTypeSizes[typ]
	if !ok {
		return 0, fmt.Errorf("unknown integer type %q", typ)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(br, buf); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf)), nil
	default:
		return binary.LittleEndian.Uint64(buf), nil
	}
}

func readBinaryFloat(br *bufio.Reader, typ string) (float64, error) {
	switch typ {
	case "float", "float32":
		var buf [4]byte
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))), nil
	case "double", "float64":
		var buf [8]byte
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
	default:
		return 0, fmt.Errorf("coordinate property has non-float type %q", typ)
	}
}
