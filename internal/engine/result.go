package engine

// SectionResultEntry pairs one section (in its final, possibly
// transform-rewritten form) with every dimension result recorded against it.
type SectionResultEntry struct {
	Section Section          `json:"section"`
	Results map[string]Result `json:"results"`
}

// DimensionCost is the cost attributed to one dimension or provider across a
// run. Model/Provider are populated on ByDimension entries (the model and
// provider that produced the dimension's results); Models is populated on
// ByProvider entries (every distinct model billed through that provider).
type DimensionCost struct {
	Cost     float64  `json:"cost"`
	Tokens   int      `json:"tokens"`
	Model    string   `json:"model,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Models   []string `json:"models,omitempty"`
}

// Costs is the Cost Accountant's (C9) output, present on ProcessResult only
// when EngineConfig.Pricing is configured.
type Costs struct {
	TotalCost   float64                  `json:"totalCost"`
	TotalTokens int                      `json:"totalTokens"`
	Currency    string                   `json:"currency"`
	ByDimension map[string]DimensionCost `json:"byDimension"`
	ByProvider  map[string]DimensionCost `json:"byProvider"`
}

// ProcessResult is the full outcome of one Engine.Process call (§6).
type ProcessResult struct {
	ProcessID          string                `json:"processId"`
	Sections           []SectionResultEntry  `json:"sections"`
	GlobalResults       map[string]Result     `json:"globalResults"`
	TransformedSections []Section            `json:"transformedSections"`
	Costs               *Costs               `json:"costs,omitempty"`
	Metadata             map[string]any       `json:"metadata,omitempty"`
}

// ProcessOptions are the observer callbacks a caller may pass to Process.
// All fields are optional; a nil callback is simply not invoked.
type ProcessOptions struct {
	OnDimensionStart    func(dimension string, scope Scope, sectionIndex int)
	OnDimensionComplete func(dimension string, scope Scope, sectionIndex int, result Result)
	OnSectionStart      func(sectionIndex int)
	OnSectionComplete   func(sectionIndex int)
	OnError             func(tag string, err error)
}

func (o *ProcessOptions) onDimensionStart(dimension string, scope Scope, sectionIndex int) {
	if o != nil && o.OnDimensionStart != nil {
		o.OnDimensionStart(dimension, scope, sectionIndex)
	}
}

func (o *ProcessOptions) onDimensionComplete(dimension string, scope Scope, sectionIndex int, result Result) {
	if o != nil && o.OnDimensionComplete != nil {
		o.OnDimensionComplete(dimension, scope, sectionIndex, result)
	}
}

func (o *ProcessOptions) onSectionStart(sectionIndex int) {
	if o != nil && o.OnSectionStart != nil {
		o.OnSectionStart(sectionIndex)
	}
}

func (o *ProcessOptions) onSectionComplete(sectionIndex int) {
	if o != nil && o.OnSectionComplete != nil {
		o.OnSectionComplete(sectionIndex)
	}
}

func (o *ProcessOptions) onError(tag string, err error) {
	if o != nil && o.OnError != nil {
		o.OnError(tag, err)
	}
}
