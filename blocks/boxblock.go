package blocks

import (
	"fmt"
	"slices"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/protocol"
)

type Shape byte

const (
	Cube Shape = iota
	Cylinder
	Sphere
	Slope
)

var shapeNames = []string{"Cube", "Cylinder", "Sphere", "Slope"}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", byte(s))
}

func ParseShape(name string) (Shape, bool) {
	i := slices.Index(shapeNames, name)
	if i < 0 {
		return Cube, false
	}
	return Shape(i), true
}

type PalletKind string

const (
	Gray   PalletKind = "Gray"
	Red    PalletKind = "Red"
	Orange PalletKind = "Orange"
	Yellow PalletKind = "Yellow"
	Green  PalletKind = "Green"
	Blue   PalletKind = "Blue"
	Purple PalletKind = "Purple"
	Pink   PalletKind = "Pink"
)

// Pallet is a color picked from a named palette row.
type Pallet struct {
	Kind  PalletKind
	Index int
	Alpha int
}

func (p Pallet) pack() protocol.Value {
	return protocol.Object{"kind": string(p.Kind), "idx": float64(p.Index), "alpha": float64(p.Alpha)}
}

func unpackPallet(f *fields, name string) (p Pallet) {
	sub := readFields(f.kind, f.value(name))
	p.Kind = PalletKind(sub.str("kind"))
	p.Index = sub.integer("idx")
	p.Alpha = sub.integer("alpha")
	if sub.err != nil {
		f.fail(name)
	}
	return
}

// Boxblock is a solid placed on a table.
type Boxblock struct {
	Name            string
	DisplayName     [2]string
	Origin          ba.Handle[*Boxblock]
	Size            [3]float64
	Position        [3]float64
	Shape           Shape
	Color           Pallet
	Texture         ba.Ref[*ImageData]
	IsFixedPosition bool
	IsBindToGrid    bool
}

func NewBoxblock(name string) *Boxblock {
	return &Boxblock{
		Name:  name,
		Size:  [3]float64{1, 1, 1},
		Shape: Cube,
		Color: Pallet{Kind: Blue, Index: 5, Alpha: 100},
	}
}

func (b *Boxblock) Kind() ba.Kind { return KindBoxblock }

func (b *Boxblock) Release() {
	b.Origin.Release()
	b.Origin = ba.Handle[*Boxblock]{}
}

// CreateClone copies the block behind origin into a new, unstored
// boxblock whose Origin points back at it.
func CreateClone(origin ba.Handle[*Boxblock]) (*Boxblock, bool) {
	return ba.MapHandle(origin, func(src *Boxblock) *Boxblock {
		clone := *src
		clone.Origin = origin.Clone()
		return &clone
	})
}

func (b *Boxblock) Pack(p *ba.Packer) protocol.Value {
	return protocol.Object{
		"name":              b.Name,
		"display_name":      protocol.Array{b.DisplayName[0], b.DisplayName[1]},
		"origin":            ba.PackHandle(p, b.Origin),
		"size":              protocol.PackFloat3(b.Size),
		"position":          protocol.PackFloat3(b.Position),
		"shape":             b.Shape.String(),
		"color":             b.Color.pack(),
		"texture":           ba.PackRef(p, b.Texture),
		"is_fixed_position": b.IsFixedPosition,
		"is_bind_to_grid":   b.IsBindToGrid,
	}
}

func (b *Boxblock) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindBoxblock, v)
	b.Name = f.str("name")
	if dn := f.strings("display_name"); len(dn) == 2 {
		b.DisplayName = [2]string{dn[0], dn[1]}
	} else {
		f.fail("display_name")
	}
	b.Origin = ba.UnpackHandle[*Boxblock](u, f.value("origin"))
	b.Size = f.float3("size")
	b.Position = f.float3("position")
	var ok bool
	if b.Shape, ok = ParseShape(f.str("shape")); !ok {
		f.fail("shape")
	}
	b.Color = unpackPallet(f, "color")
	b.Texture = ba.UnpackRef[*ImageData](u, f.value("texture"))
	b.IsFixedPosition = f.flag("is_fixed_position")
	b.IsBindToGrid = f.flag("is_bind_to_grid")
	return f.err
}
