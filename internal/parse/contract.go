package parse

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// responseSchema is the shape every reply must have. Entry kinds are only
// checked to be strings here; unknown kinds are a validation matter for
// the reconciler, not a transport one.
const responseSchema = `
#Entry: [string, string]

#Response: {
	error!: [...string]
	order?: [...#Entry]
	...
}
`

// Contract validates raw reply bodies against #Response.
//
// Thread-safety: cue.Context is not safe for concurrent use, so every
// check holds mu.
type Contract struct {
	mu       sync.Mutex
	ctx      *cue.Context
	response cue.Value
}

// NewContract compiles the response schema.
func NewContract() (*Contract, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(responseSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Response"))
	if !def.Exists() {
		return nil, fmt.Errorf("response schema: #Response not defined")
	}
	return &Contract{ctx: ctx, response: def}, nil
}

// Check reports whether body is a JSON document satisfying #Response.
func (c *Contract) Check(body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.ctx.CompileBytes(body)
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: not a JSON document: %v", ErrContract, err)
	}
	if err := c.response.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}
	return nil
}
