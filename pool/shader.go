package pool

import (
	"embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// shaderModule returns the compiled module for an embedded WGSL source,
// compiling and caching it on first use. Sources compile through naga to
// SPIR-V; a compile failure is a pipeline-construction error and fatal to
// the requesting frame.
//
// Callers hold p.mu.
func (p *Pool) shaderModule(name string) (hal.ShaderModule, error) {
	if m, ok := p.shaders[name]; ok {
		return m, nil
	}

	src, err := shaderFS.ReadFile("shaders/" + name + ".wgsl")
	if err != nil {
		return nil, fmt.Errorf("pool: missing shader %q: %w", name, err)
	}

	spirvBytes, err := naga.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("pool: compile shader %q: %w", name, err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	module, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "ember_" + name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("pool: create shader module %q: %w", name, err)
	}

	p.shaders[name] = module
	slogger().Debug("shader compiled", "name", name, "spirv_words", len(spirv))
	return module, nil
}

// Sampler returns the shared linear clamping sampler used by every pipeline
// that samples textures, creating it on first use.
func (p *Pool) Sampler() (hal.Sampler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sharedSampler()
}

// sharedSampler returns the linear clamping sampler used by every pipeline
// that samples textures, creating it on first use.
//
// Callers hold p.mu.
func (p *Pool) sharedSampler() (hal.Sampler, error) {
	if p.sampler != nil {
		return p.sampler, nil
	}
	s, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "ember_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("pool: create sampler: %w", err)
	}
	p.sampler = s
	return s, nil
}
