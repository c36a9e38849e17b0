package hop

import (
	"math"

	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/config"
	"github.com/dianpeng/dmlc/stats"
	"go.uber.org/zap"
)

// SelectExecType decides the backend of a node. The decision is made once
// and memoized on the node, later calls return it without re-estimating.
func (self *Graph) SelectExecType(id ID) common.ExecType {
	n := self.nodes[id]
	if n.Exec.Valid() {
		return n.Exec
	}

	et, reason := self.selectExecType(n)
	n.Exec = et
	n.RequiresRecompile = et == common.ExecDist &&
		self.cfg.DynamicRecompile &&
		!n.DimsKnown()

	self.log.Debug("exec type selected",
		zap.Int("hop", int(n.ID)),
		zap.Stringer("op", n.Op),
		zap.Stringer("exec", et),
		zap.String("reason", reason),
		zap.Float64("mem", n.MemEstimate),
	)
	return et
}

func (self *Graph) selectExecType(n *Node) (common.ExecType, string) {
	if n.ForcedExec.Valid() {
		return n.ForcedExec, "forced"
	}

	var et common.ExecType
	reason := ""
	platform := false

	switch self.cfg.Platform {
	case config.PlatformSingleNode:
		et, reason, platform = common.ExecLocal, "platform", true
		break
	case config.PlatformSpark:
		et, reason, platform = common.ExecDist, "platform", true
		break
	default:
		if self.cfg.IsMemoryBasedOptLevel() {
			et, reason = self.memoryBasedExecType(n)
		} else {
			et, reason = self.staticExecType(n)
		}
		break
	}

	if !platform && et == common.ExecLocal && self.hasInvalidLocalDims(n) {
		et, reason = common.ExecDist, "invalid local dims"
	}

	if n.IsScalar() && self.allScalarInputs(n) {
		et, reason = common.ExecLocal, "scalar"
	}

	if n.Op.AlwaysLocal() {
		et, reason = common.ExecLocal, "always local"
	}
	return et, reason
}

func (self *Graph) memoryBasedExecType(n *Node) (common.ExecType, string) {
	self.CostEvaluations++
	mem := self.ComputeMemEstimate(n.ID, self.memo)
	total := stats.Add(self.cfg.ReservedLocalMemory.Float(), mem)
	if total <= self.cfg.LocalMemoryBudget.Float() {
		return common.ExecLocal, "memory"
	}
	return common.ExecDist, "memory"
}

// staticExecType decides on dimensions alone.
func (self *Graph) staticExecType(n *Node) (common.ExecType, string) {
	threshold := self.cfg.DimsThreshold

	switch {
	case n.Op == OpGroupedAgg:
		if t := self.target(n); t != nil && t.areDimsBelowThreshold(threshold) {
			return common.ExecLocal, "static"
		}
		return common.ExecDist, "static"

	case n.Op.IsParamBuiltin():
		return common.ExecDist, "static"

	case n.Op == OpRead:
		if n.areDimsBelowThreshold(threshold) {
			return common.ExecLocal, "static"
		}
		return common.ExecDist, "static"

	default:
		if len(n.Inputs) == 0 {
			return common.ExecLocal, "static"
		}
		in := self.nodes[n.Inputs[0]]
		if !in.DataType.IsBlocked() || in.areDimsBelowThreshold(threshold) {
			return common.ExecLocal, "static"
		}
		return common.ExecDist, "static"
	}
}

// the local backend addresses cells with 32 bit indices
func (self *Graph) hasInvalidLocalDims(n *Node) bool {
	if !n.DataType.IsBlocked() {
		return false
	}
	return n.Rows > math.MaxInt32 || n.Cols > math.MaxInt32
}

func (self *Graph) allScalarInputs(n *Node) bool {
	for _, in := range n.Inputs {
		if !self.nodes[in].IsScalar() {
			return false
		}
	}
	return true
}
