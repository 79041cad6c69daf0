package blocks

import (
	"regexp"
	"strings"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
)

var (
	palletSubSection = regexp.MustCompile(`^//----+\s*(.*)$`)
	palletSection    = regexp.MustCompile(`^//---\s*(.*)$`)
	palletDefinition = regexp.MustCompile(`^//(.+)=(.*)$`)
)

type ChatPalletSubSection struct {
	Name     string
	Children []string
}

type ChatPalletSection struct {
	Name        string
	Children    []string
	SubSections []ChatPalletSubSection
}

type chatDef struct {
	pattern *regexp.Regexp
	text    string
}

// ChatPallet is a character's list of canned chat lines. The source
// text is line based:
//
//	//--- section
//	//---- sub section
//	//name=text, a definition; a trailing \ continues the text
//	anything else is an item of the innermost open section
//
// Only the source text travels; the rest is parsed from it.
type ChatPallet struct {
	data        string
	defs        []chatDef
	Children    []string
	SubSections []ChatPalletSubSection
	Sections    []ChatPalletSection
}

func (c *ChatPallet) Data() string {
	return c.data
}

func (c *ChatPallet) SetData(data string) {
	*c = ChatPallet{data: data}
	lines := strings.Split(data, "\n")
	if n := len(lines); lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if m := palletSubSection.FindStringSubmatch(line); m != nil {
			sub := ChatPalletSubSection{Name: m[1]}
			if n := len(c.Sections); n > 0 {
				c.Sections[n-1].SubSections = append(c.Sections[n-1].SubSections, sub)
			} else {
				c.SubSections = append(c.SubSections, sub)
			}
		} else if m := palletSection.FindStringSubmatch(line); m != nil {
			c.Sections = append(c.Sections, ChatPalletSection{Name: m[1]})
		} else if m := palletDefinition.FindStringSubmatch(line); m != nil {
			text := m[2]
			for strings.HasSuffix(text, `\`) && i+1 < len(lines) {
				i++
				text = strings.TrimSuffix(text, `\`) + "\n" + lines[i]
			}
			// a definition that is not a valid pattern is ignored
			if re, err := regexp.Compile(`^(?:` + m[1] + `)$`); err == nil {
				c.defs = append(c.defs, chatDef{pattern: re, text: text})
			}
		} else {
			c.push(strings.ReplaceAll(line, `\n`, "\n"))
		}
	}
}

func (c *ChatPallet) push(item string) {
	if n := len(c.Sections); n > 0 {
		s := &c.Sections[n-1]
		if m := len(s.SubSections); m > 0 {
			s.SubSections[m-1].Children = append(s.SubSections[m-1].Children, item)
		} else {
			s.Children = append(s.Children, item)
		}
		return
	}
	if m := len(c.SubSections); m > 0 {
		c.SubSections[m-1].Children = append(c.SubSections[m-1].Children, item)
		return
	}
	c.Children = append(c.Children, item)
}

// Expand resolves a reference like {HP} against the definitions, the
// first matching one wins. The text may use ${1} style groups.
func (c *ChatPallet) Expand(name string) (string, bool) {
	for _, def := range c.defs {
		if def.pattern.MatchString(name) {
			return def.pattern.ReplaceAllString(name, def.text), true
		}
	}
	return "", false
}

// StandingTexture is a named picture a character can switch to.
type StandingTexture struct {
	Name  string
	Image ba.Ref[*ImageData]
}

// Character is a player or NPC standee with its sheet.
type Character struct {
	Name            string
	DisplayName     [2]string
	ChatPallet      ChatPallet
	Position        [3]float64
	Size            [3]float64
	Color           Pallet
	Textures        []StandingTexture
	SelectedTexture int
	Description     string
	IsFixedPosition bool
	IsBindToGrid    bool
	Properties      []ba.Handle[*Property]
}

func NewCharacter(name string) *Character {
	return &Character{
		Name:        name,
		DisplayName: [2]string{name, ""},
		Size:        [3]float64{1, 1.5, 1},
		Color:       Pallet{Kind: Gray, Index: 5, Alpha: 100},
		Textures:    []StandingTexture{{Name: "[default]"}},
	}
}

func (c *Character) Kind() ba.Kind { return KindCharacter }

func (c *Character) Release() {
	c.Properties = releaseAll(c.Properties)
}

// Width is the footprint edge, the mean of the x and z sizes.
func (c *Character) Width() float64 {
	return (c.Size[0] + c.Size[2]) / 2
}

// SetWidth scales the footprint and keeps the height to width ratio.
func (c *Character) SetWidth(w float64) {
	if old := c.Width(); old > 0 {
		c.Size[1] *= w / old
	}
	c.Size[0], c.Size[2] = w, w
}

// Texture returns the selected standing texture.
func (c *Character) Texture() (StandingTexture, bool) {
	if c.SelectedTexture < 0 || c.SelectedTexture >= len(c.Textures) {
		return StandingTexture{}, false
	}
	return c.Textures[c.SelectedTexture], true
}

func (c *Character) SelectTexture(i int) bool {
	if i < 0 || i >= len(c.Textures) {
		return false
	}
	c.SelectedTexture = i
	return true
}

func (c *Character) PushProperty(p ba.Handle[*Property]) {
	c.Properties = append(c.Properties, p)
}

func (c *Character) RemoveProperty(id u128.ID) (ok bool) {
	c.Properties, ok = remove(c.Properties, id)
	return
}

func (c *Character) Pack(p *ba.Packer) protocol.Value {
	textures := make(protocol.Array, 0, len(c.Textures))
	for _, tex := range c.Textures {
		textures = append(textures, protocol.Object{
			"name":  tex.Name,
			"image": ba.PackRef(p, tex.Image),
		})
	}
	return protocol.Object{
		"name":         c.Name,
		"display_name": protocol.Array{c.DisplayName[0], c.DisplayName[1]},
		"chatpallet":   c.ChatPallet.Data(),
		"position":     protocol.PackFloat3(c.Position),
		"size":         protocol.PackFloat3(c.Size),
		"color":        c.Color.pack(),
		"textures": protocol.Object{
			"selected": float64(c.SelectedTexture),
			"items":    textures,
		},
		"description":       c.Description,
		"is_fixed_position": c.IsFixedPosition,
		"is_bind_to_grid":   c.IsBindToGrid,
		"properties":        ba.PackHandles(p, c.Properties),
	}
}

func (c *Character) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindCharacter, v)
	c.Name = f.str("name")
	if dn := f.strings("display_name"); len(dn) == 2 {
		c.DisplayName = [2]string{dn[0], dn[1]}
	} else {
		f.fail("display_name")
	}
	c.ChatPallet.SetData(f.str("chatpallet"))
	c.Position = f.float3("position")
	c.Size = f.float3("size")
	c.Color = unpackPallet(f, "color")

	textures := readFields(KindCharacter, f.value("textures"))
	c.SelectedTexture = textures.integer("selected")
	items, ok := protocol.AsArray(textures.value("items"))
	if !ok {
		textures.fail("items")
	}
	c.Textures = make([]StandingTexture, 0, len(items))
	for _, item := range items {
		tex := readFields(KindCharacter, item)
		c.Textures = append(c.Textures, StandingTexture{
			Name:  tex.str("name"),
			Image: ba.UnpackRef[*ImageData](u, tex.value("image")),
		})
		if tex.err != nil {
			textures.fail("items")
		}
	}
	if textures.err != nil {
		f.fail("textures")
	}

	c.Description = f.str("description")
	c.IsFixedPosition = f.flag("is_fixed_position")
	c.IsBindToGrid = f.flag("is_bind_to_grid")
	c.Properties = handles[*Property](f, u, "properties")
	return f.err
}
