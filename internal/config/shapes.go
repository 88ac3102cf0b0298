package config

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultDiskGB is the disk size of every built-in shape.
const DefaultDiskGB = 4

var (
	defaultShapeMemoryMB = []int{512, 1024, 1536, 2048, 4096, 8192, 12288, 16384}
	defaultShapeCPUs     = []int{1, 2, 4, 8}
)

// Shape is a compute shape machines can be launched with.
type Shape struct {
	ID       string `yaml:"id" json:"id"`
	CPU      int    `yaml:"cpu" json:"cpu" validate:"gte=1"`
	MemoryMB int    `yaml:"memory_mb" json:"memoryMb" validate:"gte=1"`
	DiskGB   int    `yaml:"disk_gb" json:"diskGb" validate:"gte=0"`
}

// ShapeID returns the identifier of a shape with the given memory and CPUs.
func ShapeID(memoryMB, cpu int) string {
	return fmt.Sprintf("%d:%d", memoryMB, cpu)
}

// ParseShapeID splits "<memoryMB>:<cpu>".
func ParseShapeID(id string) (memoryMB, cpu int, err error) {
	mem, c, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid shape id %q: want <memory_mb>:<cpu>", id)
	}
	if memoryMB, err = strconv.Atoi(mem); err != nil || memoryMB <= 0 {
		return 0, 0, fmt.Errorf("invalid shape id %q: bad memory", id)
	}
	if cpu, err = strconv.Atoi(c); err != nil || cpu <= 0 {
		return 0, 0, fmt.Errorf("invalid shape id %q: bad cpu count", id)
	}
	return memoryMB, cpu, nil
}

// ShapeCatalog is an immutable set of shapes. The zero value is empty.
type ShapeCatalog struct {
	shapes []Shape
	byID   map[string]int
}

// NewShapeCatalog builds a catalog. Shapes without an ID get ShapeID; a
// duplicate ID is an error.
func NewShapeCatalog(shapes []Shape) (ShapeCatalog, error) {
	c := ShapeCatalog{
		shapes: make([]Shape, 0, len(shapes)),
		byID:   make(map[string]int, len(shapes)),
	}
	for _, s := range shapes {
		if s.CPU <= 0 || s.MemoryMB <= 0 {
			return ShapeCatalog{}, fmt.Errorf("shape %q: cpu and memory must be positive", s.ID)
		}
		if s.ID == "" {
			s.ID = ShapeID(s.MemoryMB, s.CPU)
		}
		if _, dup := c.byID[s.ID]; dup {
			return ShapeCatalog{}, fmt.Errorf("duplicate shape %q", s.ID)
		}
		c.byID[s.ID] = len(c.shapes)
		c.shapes = append(c.shapes, s)
	}
	return c, nil
}

// DefaultShapeCatalog returns the built-in grid of memory sizes and CPU
// counts.
func DefaultShapeCatalog() ShapeCatalog {
	shapes := make([]Shape, 0, len(defaultShapeMemoryMB)*len(defaultShapeCPUs))
	for _, mem := range defaultShapeMemoryMB {
		for _, cpu := range defaultShapeCPUs {
			shapes = append(shapes, Shape{
				ID:       ShapeID(mem, cpu),
				CPU:      cpu,
				MemoryMB: mem,
				DiskGB:   DefaultDiskGB,
			})
		}
	}
	c, _ := NewShapeCatalog(shapes)
	return c
}

// Lookup returns the shape with the given id.
func (c ShapeCatalog) Lookup(id string) (Shape, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Shape{}, false
	}
	return c.shapes[i], true
}

// All returns a copy of every shape in catalog order.
func (c ShapeCatalog) All() []Shape {
	return append([]Shape(nil), c.shapes...)
}

// Len returns the number of shapes.
func (c ShapeCatalog) Len() int { return len(c.shapes) }
