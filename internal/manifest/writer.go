package manifest

import (
	"fmt"
	"io"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/paramfn/internal/model"
	"github.com/zclconf/go-cty/cty"
)

// Write renders defs as one manifest, in order.
func Write(w io.Writer, defs []*model.Definition) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for i, def := range defs {
		if i > 0 {
			body.AppendNewline()
		}
		appendFunction(body, def)
	}

	if _, err := w.Write(hclwrite.Format(f.Bytes())); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func appendFunction(body *hclwrite.Body, def *model.Definition) {
	block := body.AppendNewBlock("function", []string{def.Name})
	b := block.Body()

	if def.Description != "" {
		b.SetAttributeValue("description", cty.StringVal(def.Description))
	}
	b.SetAttributeValue("source", cty.StringVal(def.Source))

	if independent := def.Independent(); independent != "" {
		b.SetAttributeValue("independent", cty.StringVal(independent))
	}
	if returns, ok := def.OutputSignature.Get(model.ReturnKey); ok {
		b.SetAttributeValue("returns", cty.StringVal(returns))
	}

	for _, p := range def.Parameters {
		b.AppendNewline()
		pb := b.AppendNewBlock("parameter", []string{p.Name}).Body()
		pb.SetAttributeValue("type", cty.StringVal(p.Type))
		if p.Default != nil {
			pb.SetAttributeValue("default", cty.NumberFloatVal(*p.Default))
		}
	}
}
