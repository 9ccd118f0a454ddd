package mount

// Plan is the ordered list of operations assembling the sandbox view
type Plan struct {
	Ops []Op `yaml:"ops"`
}

// Args renders the plan as bubblewrap arguments
func (p *Plan) Args() []string {
	ret := make([]string, 0, len(p.Ops)*3)
	for i := range p.Ops {
		ret = append(ret, p.Ops[i].Args()...)
	}
	return ret
}

// Binds returns the host paths the plan exposes
func (p *Plan) Binds() []string {
	var ret []string
	for i := range p.Ops {
		if p.Ops[i].IsBind() {
			ret = append(ret, p.Ops[i].Source)
		}
	}
	return ret
}
