package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/imageburst/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. The HCL decoder populates omitted optional fields with zero-width
// expression objects, so a nil check is not enough: a real attribute
// occupies bytes in the file.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	isDefined := r.End.Byte > r.Start.Byte

	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", r.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// decodeAttr evaluates expr into target when the attribute is present. It
// reports whether it was.
func decodeAttr(ctx context.Context, expr hcl.Expression, attrName string, evalCtx *hcl.EvalContext, target any) (bool, error) {
	if !isExprDefined(ctx, expr, attrName) {
		return false, nil
	}
	if diags := gohcl.DecodeExpression(expr, evalCtx, target); diags.HasErrors() {
		return false, fmt.Errorf("invalid %s: %w", attrName, diags)
	}
	return true, nil
}

// decodeDuration evaluates a duration string such as "10s". Omitted
// attributes decode to zero.
func decodeDuration(ctx context.Context, expr hcl.Expression, attrName string, evalCtx *hcl.EvalContext) (time.Duration, error) {
	var raw string
	ok, err := decodeAttr(ctx, expr, attrName, evalCtx, &raw)
	if err != nil || !ok {
		return 0, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q at %s: %w", attrName, raw, expr.Range(), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q at %s: must be positive", attrName, raw, expr.Range())
	}
	return d, nil
}

// newEvalContext exposes env as the `env` object and a small set of string
// functions.
func newEvalContext(env map[string]string) *hcl.EvalContext {
	envVal := cty.EmptyObjectVal
	if len(env) > 0 {
		vars := make(map[string]cty.Value, len(env))
		for k, v := range env {
			vars[k] = cty.StringVal(v)
		}
		envVal = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
		Functions: map[string]function.Function{
			"upper":     stdlib.UpperFunc,
			"lower":     stdlib.LowerFunc,
			"format":    stdlib.FormatFunc,
			"join":      stdlib.JoinFunc,
			"trimspace": stdlib.TrimSpaceFunc,
		},
	}
}

// processEnv returns the process environment as a map.
func processEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}
