package manifest

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

const schemaSource = `
#Dependency: {
	git:  string
	tag:  string
	path: string
}

#Manifest: {
	project: {
		name:    string
		version: string
	}
	source: {
		dirs?: [...string]
		entry: "" | =~"\\.sel$"
	}
	runtime: {
		"max-call-depth": int & >=0
	}
	server: {
		port: int & >=0 & <=65535
	}
	journal: {
		path: string
	}
	dependencies?: [string]: #Dependency
}
`

// A cue.Context is not safe for concurrent use.
var (
	cueMu       sync.Mutex
	cueCtx      = cuecontext.New()
	manifestDef cue.Value
)

func init() {
	schema := cueCtx.CompileString(schemaSource, cue.Filename("sel.cue"))
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("manifest: invalid schema: %v", err))
	}
	manifestDef = schema.LookupPath(cue.ParsePath("#Manifest"))
}

// Validate checks the manifest against the schema and the dependency rules.
func (m *Manifest) Validate() error {
	cueMu.Lock()
	v := manifestDef.Unify(cueCtx.Encode(m))
	err := v.Validate(cue.Concrete(true))
	cueMu.Unlock()
	if err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	for name, dep := range m.Dependencies {
		if (dep.Git == "") == (dep.Path == "") {
			return fmt.Errorf("invalid manifest: dependency %q needs exactly one of git or path", name)
		}
	}
	return nil
}
