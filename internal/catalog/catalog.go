// Package catalog loads the built-in machine presets from CUE.
//
// The preset table is a CUE list so preset indices follow declaration
// order. Saved maps refer to presets by index, so presets are only ever
// appended.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/machine"
)

//go:embed presets.cue
var presetsCUE []byte

// Preset is one buildable machine type and what building it costs.
type Preset struct {
	Type *machine.Type
	Cost flow.Amounts
}

// Catalog is an immutable preset table.
type Catalog struct {
	presets []Preset
	types   []*machine.Type
	byName  map[string]int
}

// CompileError reports a preset that does not decode or validate.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Compile(presetsCUE, "presets.cue")
})

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// MustDefault is Default for callers that cannot continue without presets.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile compiles a catalog from a CUE file on disk.
func LoadFile(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Compile(src, path)
}

// Compile decodes the presets list of a CUE source.
func Compile(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	list := v.LookupPath(cue.ParsePath("presets"))
	if !list.Exists() {
		return nil, &CompileError{Field: "presets", Message: "presets list is required", Pos: v.Pos()}
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{byName: make(map[string]int)}
	for i := 0; iter.Next(); i++ {
		p, err := compilePreset(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byName[p.Type.Name]; dup {
			return nil, &CompileError{
				Field:   fmt.Sprintf("presets[%d].name", i),
				Message: fmt.Sprintf("duplicate preset %q", p.Type.Name),
				Pos:     iter.Value().Pos(),
			}
		}
		c.byName[p.Type.Name] = len(c.presets)
		c.presets = append(c.presets, p)
		c.types = append(c.types, p.Type)
	}
	if len(c.presets) == 0 {
		return nil, &CompileError{Field: "presets", Message: "at least one preset is required", Pos: list.Pos()}
	}
	return c, nil
}

func compilePreset(v cue.Value, i int) (Preset, error) {
	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return Preset{}, formatCUEError(err)
	}
	field := fmt.Sprintf("presets[%d](%s)", i, name)
	radius, err := v.LookupPath(cue.ParsePath("radius")).Int64()
	if err != nil {
		return Preset{}, formatCUEError(err)
	}
	typ := &machine.Type{Name: name, Radius: radius}

	present := map[string]cue.Value{}
	fields, err := v.Fields()
	if err != nil {
		return Preset{}, formatCUEError(err)
	}
	for fields.Next() {
		present[fields.Selector().String()] = fields.Value()
	}

	switch {
	case hasBoth(present):
		return Preset{}, &CompileError{Field: field, Message: "distributor and assembler are exclusive", Pos: v.Pos()}
	case present["distributor"].Exists():
		typ.Kind = machine.KindDistributor
		typ.Distributor, err = compileDistributor(present["distributor"])
	case present["assembler"].Exists():
		typ.Kind = machine.KindAssembler
		typ.Assembler, err = compileAssembler(present["assembler"])
	default:
		return Preset{}, &CompileError{Field: field, Message: "one of distributor or assembler is required", Pos: v.Pos()}
	}
	if err != nil {
		return Preset{}, err
	}
	if err := typ.Validate(); err != nil {
		return Preset{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}

	cost, err := compileAmounts(v.LookupPath(cue.ParsePath("cost")))
	if err != nil {
		return Preset{}, err
	}
	return Preset{Type: typ, Cost: cost}, nil
}

func hasBoth(present map[string]cue.Value) bool {
	return present["distributor"].Exists() && present["assembler"].Exists()
}

func compileDistributor(v cue.Value) (*machine.Distributor, error) {
	d := &machine.Distributor{}
	var err error
	if d.Inputs, err = compileLocations(v.LookupPath(cue.ParsePath("inputs"))); err != nil {
		return nil, err
	}
	if d.Outputs, err = compileLocations(v.LookupPath(cue.ParsePath("outputs"))); err != nil {
		return nil, err
	}
	return d, nil
}

func compileAssembler(v cue.Value) (*machine.Assembler, error) {
	a := &machine.Assembler{}
	var err error
	if a.Duration, err = v.LookupPath(cue.ParsePath("duration")).Int64(); err != nil {
		return nil, formatCUEError(err)
	}

	ins, err := v.LookupPath(cue.ParsePath("inputs")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for ins.Next() {
		loc, mat, err := compileSlot(ins.Value())
		if err != nil {
			return nil, err
		}
		cost, err := ins.Value().LookupPath(cue.ParsePath("cost")).Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		a.Inputs = append(a.Inputs, machine.AssemblerInput{Location: loc, Material: mat, Cost: cost})
	}

	outs, err := v.LookupPath(cue.ParsePath("outputs")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for outs.Next() {
		loc, mat, err := compileSlot(outs.Value())
		if err != nil {
			return nil, err
		}
		amount, err := outs.Value().LookupPath(cue.ParsePath("amount")).Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		a.Outputs = append(a.Outputs, machine.AssemblerOutput{Location: loc, Material: mat, Amount: amount})
	}
	return a, nil
}

func compileSlot(v cue.Value) (geom.Location, flow.Material, error) {
	loc, err := compileLocation(v)
	if err != nil {
		return geom.Location{}, 0, err
	}
	name, err := v.LookupPath(cue.ParsePath("material")).String()
	if err != nil {
		return geom.Location{}, 0, formatCUEError(err)
	}
	mat, err := flow.ParseMaterial(name)
	if err != nil {
		return geom.Location{}, 0, &CompileError{Field: "material", Message: err.Error(), Pos: v.Pos()}
	}
	return loc, mat, nil
}

func compileLocations(v cue.Value) ([]geom.Location, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []geom.Location
	for iter.Next() {
		l, err := compileLocation(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func compileLocation(v cue.Value) (geom.Location, error) {
	x, err := v.LookupPath(cue.ParsePath("x")).Int64()
	if err != nil {
		return geom.Location{}, formatCUEError(err)
	}
	y, err := v.LookupPath(cue.ParsePath("y")).Int64()
	if err != nil {
		return geom.Location{}, formatCUEError(err)
	}
	s, err := v.LookupPath(cue.ParsePath("facing")).String()
	if err != nil {
		return geom.Location{}, formatCUEError(err)
	}
	f, err := geom.ParseFacing(s)
	if err != nil {
		return geom.Location{}, &CompileError{Field: "facing", Message: err.Error(), Pos: v.Pos()}
	}
	return geom.Loc(x, y, f), nil
}

func compileAmounts(v cue.Value) (flow.Amounts, error) {
	out := flow.Amounts{}
	if !v.Exists() {
		return out, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		mat, err := flow.ParseMaterial(iter.Selector().Unquoted())
		if err != nil {
			return nil, &CompileError{Field: "cost", Message: err.Error(), Pos: iter.Value().Pos()}
		}
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out[mat] = n
	}
	return out, nil
}

// formatCUEError keeps the position of the first CUE error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// Len returns the number of presets.
func (c *Catalog) Len() int {
	return len(c.presets)
}

// Preset returns preset i.
func (c *Catalog) Preset(i int) (Preset, bool) {
	if i < 0 || i >= len(c.presets) {
		return Preset{}, false
	}
	return c.presets[i], true
}

// Types returns the machine types indexed like the presets. The slice is
// shared and must not be modified.
func (c *Catalog) Types() []*machine.Type {
	return c.types
}

// Lookup returns the index of the named preset.
func (c *Catalog) Lookup(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// MustLookup is Lookup for names known to exist.
func (c *Catalog) MustLookup(name string) int {
	i, ok := c.byName[name]
	if !ok {
		panic(fmt.Sprintf("catalog: no preset %q", name))
	}
	return i
}

// Names lists preset names in index order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.presets))
	for i, p := range c.presets {
		out[i] = p.Type.Name
	}
	return out
}
