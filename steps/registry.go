//
// Copyright (c) 2016-2026 Snowplow Analytics Ltd. All rights reserved.
//
// This program is licensed to you under the Apache License Version 2.0,
// and you may not use this file except in compliance with the Apache License Version 2.0.
// You may obtain a copy of the Apache License Version 2.0 at http://www.apache.org/licenses/LICENSE-2.0.
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the Apache License Version 2.0 is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the Apache License Version 2.0 for the specific language governing permissions and limitations there under.
//

package steps

import (
	"errors"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go/service/emr"
)

// UnsupportedStepKindError is returned when no renderer is registered for a kind
type UnsupportedStepKindError string

func (u UnsupportedStepKindError) Error() string { return string(u) }

// Registry maps step kinds to the renderer able to handle them
type Registry struct {
	mu        sync.RWMutex
	renderers map[Kind]Renderer
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		renderers: make(map[Kind]Renderer),
	}
}

// DefaultRegistry creates a Registry holding a renderer for every built-in kind
func DefaultRegistry(config RendererConfig) *Registry {
	r := NewRegistry()

	r.Register(ShellRenderer{Config: config})
	r.Register(HiveRenderer{})
	r.Register(PigRenderer{})
	r.Register(OozieRenderer{Config: config})
	r.Register(HadoopJarRenderer{})

	return r
}

// Register adds a renderer, replacing any previous one for the same kind
func (r *Registry) Register(renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[renderer.Kind()] = renderer
}

// Resolve returns the renderer registered for kind
func (r *Registry) Resolve(kind Kind) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	renderer, ok := r.renderers[kind]
	if !ok {
		return nil, UnsupportedStepKindError("Unsupported EMR step kind \"" + string(kind) + "\".")
	}
	return renderer, nil
}

// Has checks whether a renderer is registered for kind
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.renderers[kind]
	return ok
}

// Kinds lists the registered kinds in sorted order
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.renderers))
	for k := range r.renderers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Render resolves the renderer for the step and renders it
func (r *Registry) Render(step Step) (*emr.StepConfig, error) {
	if step == nil {
		return nil, errors.New("A step must be specified")
	}
	renderer, err := r.Resolve(step.Kind())
	if err != nil {
		return nil, err
	}
	return renderer.Render(step)
}
