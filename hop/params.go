package hop

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/maps"
)

// ParamMap maps parameter names of a named-parameter operator to positions
// in its input list. It is read-only after construction and shared between a
// node and its clones.
type ParamMap struct {
	names []string
	index map[string]int
}

func NewParamMap(names []string) (*ParamMap, error) {
	p := &ParamMap{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for idx, n := range names {
		if _, ok := p.index[n]; ok {
			return nil, errors.Newf("duplicate parameter %q", n)
		}
		p.index[n] = idx
		p.names = append(p.names, n)
	}
	return p, nil
}

func (self *ParamMap) Len() int {
	if self == nil {
		return 0
	}
	return len(self.names)
}

// Names returns the parameter names in input order.
func (self *ParamMap) Names() []string {
	if self == nil {
		return nil
	}
	out := make([]string, len(self.names))
	copy(out, self.names)
	return out
}

func (self *ParamMap) Index(name string) (int, bool) {
	if self == nil {
		return -1, false
	}
	idx, ok := self.index[name]
	return idx, ok
}

func (self *ParamMap) Has(name string) bool {
	_, ok := self.Index(name)
	return ok
}

func (self *ParamMap) Equal(that *ParamMap) bool {
	if self == nil || that == nil {
		return self == that
	}
	return maps.Equal(self.index, that.index)
}
