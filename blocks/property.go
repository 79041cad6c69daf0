package blocks

import (
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/pkg/errors"
)

// Value is one cell of a property sheet. Wire form:
//
//	{"_tag": "NumberMinMax", "_val": [3, 0, 10]}
type Value interface {
	Tag() string
	pack() protocol.Value
}

type (
	Number       float64
	NumberMinMax struct{ Value, Min, Max float64 }
	NumberMid    struct{ Value, Mid float64 }
	Normal       string
	Note         string
	Check        bool
	Select       struct {
		Selected int
		Options  []string
	}
)

func (Number) Tag() string       { return "Number" }
func (NumberMinMax) Tag() string { return "NumberMinMax" }
func (NumberMid) Tag() string    { return "NumberMid" }
func (Normal) Tag() string       { return "Normal" }
func (Note) Tag() string         { return "Note" }
func (Check) Tag() string        { return "Check" }
func (Select) Tag() string       { return "Select" }

func (v Number) pack() protocol.Value       { return float64(v) }
func (v NumberMinMax) pack() protocol.Value { return protocol.Array{v.Value, v.Min, v.Max} }
func (v NumberMid) pack() protocol.Value    { return protocol.Array{v.Value, v.Mid} }
func (v Normal) pack() protocol.Value       { return string(v) }
func (v Note) pack() protocol.Value         { return string(v) }
func (v Check) pack() protocol.Value        { return bool(v) }
func (v Select) pack() protocol.Value {
	return protocol.Array{float64(v.Selected), packStrings(v.Options)}
}

func PackValue(v Value) protocol.Value {
	return protocol.Object{"_tag": v.Tag(), "_val": v.pack()}
}

func numbers(v protocol.Value, n int) ([]float64, bool) {
	arr, ok := protocol.AsArray(v)
	if !ok || len(arr) != n {
		return nil, false
	}
	ret := make([]float64, n)
	for i := range arr {
		if ret[i], ok = protocol.Number[float64](arr[i]); !ok {
			return nil, false
		}
	}
	return ret, true
}

func UnpackValue(v protocol.Value) (Value, error) {
	tag, _ := protocol.StringField(v, "_tag")
	val, _ := protocol.Field(v, "_val")
	switch tag {
	case "Number":
		if n, ok := protocol.Number[float64](val); ok {
			return Number(n), nil
		}
	case "NumberMinMax":
		if n, ok := numbers(val, 3); ok {
			return NumberMinMax{n[0], n[1], n[2]}, nil
		}
	case "NumberMid":
		if n, ok := numbers(val, 2); ok {
			return NumberMid{n[0], n[1]}, nil
		}
	case "Normal":
		if s, ok := protocol.String(val); ok {
			return Normal(s), nil
		}
	case "Note":
		if s, ok := protocol.String(val); ok {
			return Note(s), nil
		}
	case "Check":
		if b, ok := protocol.Bool(val); ok {
			return Check(b), nil
		}
	case "Select":
		arr, _ := protocol.AsArray(val)
		if len(arr) == 2 {
			sel, ok1 := protocol.Number[int](arr[0])
			options, ok2 := stringList(arr[1])
			if ok1 && ok2 {
				return Select{Selected: sel, Options: options}, nil
			}
		}
	}
	return nil, errors.Wrapf(arena_errors.ErrMalformed, "property value %q", tag)
}

type DataView string

const (
	Tabular  DataView = "Tabular"
	ListData DataView = "List"
)

type PropertyView string

const (
	Board    PropertyView = "Board"
	ListView PropertyView = "List"
)

type Data struct {
	View   DataView
	Values [][]Value
}

// Property is a node of a character sheet tree.
type Property struct {
	Name     string
	View     PropertyView
	Data     Data
	Children []ba.Handle[*Property]
}

func NewProperty(name string) *Property {
	return &Property{Name: name, View: ListView, Data: Data{View: ListData}}
}

func (p *Property) Kind() ba.Kind { return KindProperty }

func (p *Property) Release() {
	p.Children = releaseAll(p.Children)
}

func (p *Property) Pack(pk *ba.Packer) protocol.Value {
	rows := make(protocol.Array, 0, len(p.Data.Values))
	for _, row := range p.Data.Values {
		cells := make(protocol.Array, 0, len(row))
		for _, v := range row {
			cells = append(cells, PackValue(v))
		}
		rows = append(rows, cells)
	}
	return protocol.Object{
		"name": p.Name,
		"view": string(p.View),
		"data": protocol.Object{
			"view":   string(p.Data.View),
			"values": rows,
		},
		"children": ba.PackHandles(pk, p.Children),
	}
}

func (p *Property) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindProperty, v)
	p.Name = f.str("name")
	p.View = PropertyView(f.str("view"))
	data := readFields(KindProperty, f.value("data"))
	p.Data.View = DataView(data.str("view"))
	rows, ok := protocol.AsArray(data.value("values"))
	if !ok {
		data.fail("values")
	}
	p.Data.Values = make([][]Value, 0, len(rows))
	for _, r := range rows {
		cells, ok := protocol.AsArray(r)
		if !ok {
			data.fail("values")
			break
		}
		row := make([]Value, 0, len(cells))
		for _, c := range cells {
			val, err := UnpackValue(c)
			if err != nil {
				return err
			}
			row = append(row, val)
		}
		p.Data.Values = append(p.Data.Values, row)
	}
	p.Children = handles[*Property](f, u, "children")
	if f.err != nil {
		return f.err
	}
	return data.err
}
