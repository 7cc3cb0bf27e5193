package engine

import "context"

// TransformManager applies a completed global dimension's section-rewrite
// transform (or the plugin-wide TransformSections hook fallback) to the
// current section vector (C8).
type TransformManager struct {
	catalog    *Catalog
	dispatcher *Dispatcher
	state      *ProcessState
	onError    func(tag string, err error)
}

// NewTransformManager builds a TransformManager bound to one process's state.
func NewTransformManager(catalog *Catalog, dispatcher *Dispatcher, state *ProcessState, onError func(tag string, err error)) *TransformManager {
	return &TransformManager{catalog: catalog, dispatcher: dispatcher, state: state, onError: onError}
}

// Apply runs dim's Transform (if the dimension declares one and its result
// is not an error or skip) against the current sections; a skipped or failed
// global dimension never rewrites sections. A non-empty returned slice
// replaces the process state's section vector. Transform errors are
// reported and the section vector is left unchanged.
func (m *TransformManager) Apply(ctx context.Context, dim string, result Result) {
	if result.IsError() || result.IsSkipped() {
		return
	}

	dimCfg, err := m.catalog.Config(dim)
	if err != nil {
		return
	}

	if dimCfg.Transform != nil {
		sections := m.state.Sections()
		rewritten, err := dimCfg.Transform(ctx, result, sections)
		if err != nil {
			m.report("transform:"+dim, err)
			return
		}
		if len(rewritten) > 0 {
			m.state.ReplaceSections(rewritten)
		}
		return
	}

	if m.dispatcher.hooks == nil || m.dispatcher.hooks.TransformSections == nil {
		return
	}
	sections := m.state.Sections()
	rewritten := m.dispatcher.TransformSections(ctx, sections)
	if len(rewritten) > 0 {
		m.state.ReplaceSections(rewritten)
	}
}

func (m *TransformManager) report(tag string, err error) {
	if m.onError != nil {
		m.onError(tag, err)
	}
}
