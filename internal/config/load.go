package config

import (
	"sort"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/phylogen/internal/distribution"
)

const (
	defaultOutputDir = "phylogen-outputs"
	defaultRetries   = 10
)

// Load parses and decodes a single HCL configuration file into a Model.
func Load(path string) (*Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, NewError(ErrInvalidConfig, path, "failed to parse HCL: %s", diags.Error())
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, NewError(ErrInvalidConfig, path, "unexpected body type from parser")
	}
	return decodeModel(path, body)
}

// LoadSource decodes configuration from an in-memory buffer; used by tests.
func LoadSource(src []byte, filename string) (*Model, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, NewError(ErrInvalidConfig, filename, "failed to parse HCL: %s", diags.Error())
	}
	return decodeModel(filename, file.Body.(*hclsyntax.Body))
}

func decodeModel(filename string, body *hclsyntax.Body) (*Model, error) {
	model := &Model{
		Dataset: &DatasetSpec{
			OutputDir: defaultOutputDir,
			Retries:   defaultRetries,
		},
	}

	if len(body.Attributes) > 0 {
		for name := range body.Attributes {
			return nil, NewError(ErrInvalidConfig, filename, "unexpected top-level attribute %q", name)
		}
	}

	seenNames := make(map[string]string)
	for _, block := range body.Blocks {
		switch block.Type {
		case "dataset":
			if err := decodeDataset(block, model.Dataset); err != nil {
				return nil, err
			}
		case "variable":
			entry, err := decodeVariable(block)
			if err != nil {
				return nil, err
			}
			if prev, dup := seenNames[entry.Name]; dup {
				return nil, NewError(ErrInvalidConfig, entry.Name, "declared twice (first as %s)", prev)
			}
			seenNames[entry.Name] = "variable"
			model.Variables = append(model.Variables, entry)
		case "parameter":
			param, err := decodeParameter(block)
			if err != nil {
				return nil, err
			}
			if prev, dup := seenNames[param.Name]; dup {
				return nil, NewError(ErrInvalidConfig, param.Name, "declared twice (first as %s)", prev)
			}
			seenNames[param.Name] = "parameter"
			model.Params = append(model.Params, param)
		case "simulator":
			if model.Simulator != nil {
				return nil, NewError(ErrInvalidConfig, filename, "multiple simulator blocks")
			}
			sim, err := decodeSimulator(block)
			if err != nil {
				return nil, err
			}
			model.Simulator = sim
		default:
			return nil, NewError(ErrInvalidConfig, filename, "unknown block type %q", block.Type)
		}
	}

	if len(model.Dataset.Splits) == 0 {
		model.Dataset.Splits = []Split{{Name: "", Count: 1}}
	}
	return model, nil
}

func decodeDataset(block *hclsyntax.Block, ds *DatasetSpec) error {
	if len(block.Labels) != 0 {
		return NewError(ErrInvalidConfig, "dataset", "dataset block takes no labels")
	}

	for name, attr := range block.Body.Attributes {
		v, err := staticValue(attr)
		if err != nil {
			return err
		}
		switch name {
		case "output_dir":
			s, err := ctyString(v, name)
			if err != nil {
				return err
			}
			ds.OutputDir = s
		case "seed":
			n, err := ctyInt(v, name)
			if err != nil {
				return err
			}
			seed := uint64(n)
			ds.Seed = &seed
		case "workers":
			n, err := ctyInt(v, name)
			if err != nil {
				return err
			}
			if n < 0 {
				return NewError(ErrInvalidConfig, "dataset", "workers must be >= 0")
			}
			ds.Workers = int(n)
		case "retries":
			n, err := ctyInt(v, name)
			if err != nil {
				return err
			}
			if n < 0 {
				return NewError(ErrInvalidConfig, "dataset", "retries must be >= 0")
			}
			ds.Retries = int(n)
		case "samples":
			n, err := ctyInt(v, name)
			if err != nil {
				return err
			}
			if n <= 0 {
				return NewError(ErrInvalidConfig, "dataset", "samples must be > 0")
			}
			ds.Splits = []Split{{Name: "", Count: int(n)}}
		case "populations":
			pops, err := ctyStrings(v, name)
			if err != nil {
				return err
			}
			ds.Populations = pops
		default:
			return NewError(ErrInvalidConfig, "dataset", "unknown attribute %q", name)
		}
	}

	for _, inner := range block.Body.Blocks {
		if inner.Type != "samples" {
			return NewError(ErrInvalidConfig, "dataset", "unknown block type %q", inner.Type)
		}
		splits, err := decodeSplits(inner)
		if err != nil {
			return err
		}
		ds.Splits = splits
	}
	return nil
}

// decodeSplits reads the named splits of a samples block in declaration
// order. HCL attribute maps are unordered, so order is recovered from source
// positions.
func decodeSplits(block *hclsyntax.Block) ([]Split, error) {
	attrs := make([]*hclsyntax.Attribute, 0, len(block.Body.Attributes))
	for _, attr := range block.Body.Attributes {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})

	splits := make([]Split, 0, len(attrs))
	for _, attr := range attrs {
		v, err := staticValue(attr)
		if err != nil {
			return nil, err
		}
		n, err := ctyInt(v, attr.Name)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, NewError(ErrInvalidConfig, attr.Name, "split sample count must be > 0")
		}
		splits = append(splits, Split{Name: attr.Name, Count: int(n)})
	}
	if len(splits) == 0 {
		return nil, NewError(ErrInvalidConfig, "samples", "samples block declares no splits")
	}
	return splits, nil
}

func decodeVariable(block *hclsyntax.Block) (*ContextEntry, error) {
	if len(block.Labels) != 1 {
		return nil, NewError(ErrInvalidConfig, "variable", "variable block requires exactly one label")
	}
	name := block.Labels[0]
	if len(block.Body.Blocks) > 0 {
		return nil, NewError(ErrInvalidConfig, name, "variable block takes no nested blocks")
	}

	entry := &ContextEntry{Name: name}
	distArgs := make(map[string]cty.Value)
	var distKind string

	for attrName, attr := range block.Body.Attributes {
		switch attrName {
		case "expr":
			v, err := staticValue(attr)
			if err != nil {
				return nil, err
			}
			text, err := ctyString(v, attrName)
			if err != nil {
				return nil, err
			}
			parsed, err := parseExpressionString(text, name)
			if err != nil {
				return nil, err
			}
			entry.Expr = parsed
			entry.Text = text
		case "distribution":
			v, err := staticValue(attr)
			if err != nil {
				return nil, err
			}
			kind, err := ctyString(v, attrName)
			if err != nil {
				return nil, err
			}
			distKind = kind
		case "size":
			v, err := staticValue(attr)
			if err != nil {
				return nil, err
			}
			size, err := decodeSize(v, name)
			if err != nil {
				return nil, err
			}
			entry.Size = size
		case "zero_diagonal":
			v, err := staticValue(attr)
			if err != nil {
				return nil, err
			}
			if v.Type() != cty.Bool {
				return nil, NewError(ErrInvalidConfig, name, "zero_diagonal must be a bool")
			}
			entry.ZeroDiagonal = v.True()
		default:
			v, err := staticValue(attr)
			if err != nil {
				return nil, err
			}
			distArgs[attrName] = v
		}
	}

	if entry.Expr != nil {
		if distKind != "" || len(entry.Size) > 0 || entry.ZeroDiagonal || len(distArgs) > 0 {
			return nil, NewError(ErrInvalidConfig, name, "an expression entry takes no distribution, size or zero_diagonal")
		}
		return entry, nil
	}

	if distKind == "" {
		return nil, NewError(ErrInvalidConfig, name, "variable requires either expr or distribution")
	}
	spec, err := distribution.New(distKind, distArgs)
	if err != nil {
		return nil, WrapError(ErrInvalidDistribution, name, err)
	}
	entry.Dist = spec

	if entry.ZeroDiagonal && (len(entry.Size) != 2 || entry.Size[0] != entry.Size[1]) {
		return nil, NewError(ErrInvalidShape, name, "zero_diagonal requires a square matrix size (got %v)", entry.Size)
	}
	if entry.IsShaped() && spec.IsDiscrete() {
		return nil, NewError(ErrInvalidShape, name, "shaped entries cannot draw from a categorical distribution")
	}
	return entry, nil
}

func decodeSize(v cty.Value, subject string) ([]int, error) {
	if v.Type() == cty.Number {
		n, err := ctyInt(v, "size")
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, NewError(ErrInvalidShape, subject, "size must be positive (got %d)", n)
		}
		return []int{int(n)}, nil
	}
	if v.Type().IsTupleType() || v.Type().IsListType() {
		elems := v.AsValueSlice()
		if len(elems) < 1 || len(elems) > 2 {
			return nil, NewError(ErrInvalidShape, subject, "size must have one or two dimensions (got %d)", len(elems))
		}
		size := make([]int, len(elems))
		for i, e := range elems {
			n, err := ctyInt(e, "size")
			if err != nil {
				return nil, err
			}
			if n <= 0 {
				return nil, NewError(ErrInvalidShape, subject, "size dimensions must be positive (got %d)", n)
			}
			size[i] = int(n)
		}
		return size, nil
	}
	return nil, NewError(ErrInvalidShape, subject, "size must be an integer or a list of integers")
}

func decodeParameter(block *hclsyntax.Block) (*ParameterSpec, error) {
	if len(block.Labels) != 1 {
		return nil, NewError(ErrInvalidConfig, "parameter", "parameter block requires exactly one label")
	}
	name := block.Labels[0]
	if len(block.Body.Blocks) > 0 {
		return nil, NewError(ErrInvalidConfig, name, "parameter block takes no nested blocks")
	}

	param := &ParameterSpec{Name: name, Dims: DimsScalar}
	for attrName, attr := range block.Body.Attributes {
		v, err := staticValue(attr)
		if err != nil {
			return nil, err
		}
		switch attrName {
		case "dims":
			s, err := ctyString(v, attrName)
			if err != nil {
				return nil, err
			}
			switch Dims(s) {
			case DimsScalar, DimsVector, DimsMatrix:
				param.Dims = Dims(s)
			default:
				return nil, NewError(ErrInvalidConfig, name, "dims must be scalar, vector or matrix (got %q)", s)
			}
		case "value":
			elem, err := elementFromCty(v, name)
			if err != nil {
				return nil, err
			}
			param.Value = elem
		case "change_times":
			elem, err := elementFromCty(v, name)
			if err != nil {
				return nil, err
			}
			param.ChangeTimes = elem
		default:
			return nil, NewError(ErrInvalidConfig, name, "unknown attribute %q", attrName)
		}
	}

	if param.Value == nil {
		return nil, NewError(ErrInvalidConfig, name, "parameter requires a value")
	}
	return param, nil
}

// elementFromCty translates a statically evaluated config value into the
// element tree used by skyline resolution: numbers stay literal, strings are
// parsed as expressions over context variables, lists recurse.
func elementFromCty(v cty.Value, subject string) (*Element, error) {
	switch {
	case v.Type() == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return &Element{Literal: &f}, nil
	case v.Type() == cty.String:
		text := v.AsString()
		parsed, err := parseExpressionString(text, subject)
		if err != nil {
			return nil, err
		}
		return &Element{Expr: parsed, Text: text}, nil
	case v.Type().IsTupleType() || v.Type().IsListType():
		elems := v.AsValueSlice()
		list := make([]*Element, len(elems))
		for i, e := range elems {
			child, err := elementFromCty(e, subject)
			if err != nil {
				return nil, err
			}
			list[i] = child
		}
		return &Element{List: list}, nil
	}
	return nil, NewError(ErrInvalidConfig, subject, "values must be numbers, expression strings or lists of them")
}

func decodeSimulator(block *hclsyntax.Block) (*SimulatorSpec, error) {
	if len(block.Labels) != 0 {
		return nil, NewError(ErrInvalidConfig, "simulator", "simulator block takes no labels")
	}

	sim := &SimulatorSpec{}
	for name, attr := range block.Body.Attributes {
		v, err := staticValue(attr)
		if err != nil {
			return nil, err
		}
		switch name {
		case "command":
			argv, err := ctyStrings(v, name)
			if err != nil {
				return nil, err
			}
			if len(argv) == 0 {
				return nil, NewError(ErrInvalidConfig, "simulator", "command must not be empty")
			}
			sim.Command = argv
		case "timeout":
			s, err := ctyString(v, name)
			if err != nil {
				return nil, err
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, NewError(ErrInvalidConfig, "simulator", "invalid timeout %q: %s", s, err)
			}
			sim.Timeout = d
		default:
			return nil, NewError(ErrInvalidConfig, "simulator", "unknown attribute %q", name)
		}
	}
	if len(sim.Command) == 0 {
		return nil, NewError(ErrInvalidConfig, "simulator", "simulator requires a command")
	}
	return sim, nil
}

// parseExpressionString parses a phylogenie-style expression string from a
// config value into an HCL expression.
func parseExpressionString(text, subject string) (hclsyntax.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(text), subject, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, NewError(ErrUnsafeExpression, subject, "cannot parse expression %q: %s", text, diags.Error())
	}
	return expr, nil
}

// staticValue evaluates a config attribute with no variable scope. Config
// literals must be statically known; anything referencing variables belongs
// inside an expression string instead.
func staticValue(attr *hclsyntax.Attribute) (cty.Value, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, NewError(ErrInvalidConfig, attr.Name, "attribute must be a static value: %s", diags.Error())
	}
	return v, nil
}

func ctyString(v cty.Value, name string) (string, error) {
	if v.Type() != cty.String {
		return "", NewError(ErrInvalidConfig, name, "must be a string")
	}
	return v.AsString(), nil
}

func ctyInt(v cty.Value, name string) (int64, error) {
	if v.Type() != cty.Number {
		return 0, NewError(ErrInvalidConfig, name, "must be a number")
	}
	bf := v.AsBigFloat()
	if !bf.IsInt() {
		return 0, NewError(ErrInvalidConfig, name, "must be an integer")
	}
	n, _ := bf.Int64()
	return n, nil
}

func ctyStrings(v cty.Value, name string) ([]string, error) {
	if !v.Type().IsTupleType() && !v.Type().IsListType() {
		return nil, NewError(ErrInvalidConfig, name, "must be a list of strings")
	}
	elems := v.AsValueSlice()
	out := make([]string, len(elems))
	for i, e := range elems {
		if e.Type() != cty.String {
			return nil, NewError(ErrInvalidConfig, name, "must contain only strings")
		}
		out[i] = e.AsString()
	}
	return out, nil
}
