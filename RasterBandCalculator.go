/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package xraster

import (
	"strconv"

	"github.com/sirupsen/logrus"
)

// Operator 阈值比较运算符（封闭集合）
type Operator int

const (
	Less Operator = iota + 1
	Greater
	LessEqual
	GreaterEqual
)

var operatorTable = []struct {
	op     Operator
	symbol string
}{
	{Less, "<"},
	{Greater, ">"},
	{LessEqual, "<="},
	{GreaterEqual, ">="},
}

// ParseOperator 解析运算符字符串
func ParseOperator(s string) (Operator, error) {
	for _, e := range operatorTable {
		if e.symbol == s {
			return e.op, nil
		}
	}
	return 0, &UnsupportedOperatorError{Op: s}
}

func (op Operator) String() string {
	for _, e := range operatorTable {
		if e.op == op {
			return e.symbol
		}
	}
	return "Operator(" + strconv.Itoa(int(op)) + ")"
}

// Valid 是否为支持的运算符
func (op Operator) Valid() bool {
	return op >= Less && op <= GreaterEqual
}

// Holds 计算 p op boundary；NaN 总是返回 false
func (op Operator) Holds(p, boundary float64) bool {
	switch op {
	case Less:
		return p < boundary
	case Greater:
		return p > boundary
	case LessEqual:
		return p <= boundary
	case GreaterEqual:
		return p >= boundary
	}
	return false
}

func operatorSymbols() []string {
	out := make([]string, len(operatorTable))
	for i, e := range operatorTable {
		out[i] = e.symbol
	}
	return out
}

// Threshold 一条阈值替换规则
type Threshold struct {
	Op       Operator
	Boundary float64
	Replace  float64
}

// Preprocess 对所有波段逐像素比较：满足 p op boundary 保留原值，否则替换为 replace。
// 例: Preprocess(Greater, 0, 0) 把所有 <=0 的像素置为0。
func (ri *RasterImage) Preprocess(op Operator, boundary, replace float64) error {
	if !op.Valid() {
		return &UnsupportedOperatorError{Op: op.String()}
	}
	if err := ri.materialize(); err != nil {
		return err
	}
	for _, m := range ri.data {
		m.Apply(func(_, _ int, v float64) float64 {
			if op.Holds(v, boundary) {
				return v
			}
			return replace
		}, m)
	}
	ri.logger().WithFields(logrus.Fields{
		"op":       op.String(),
		"boundary": boundary,
		"replace":  replace,
	}).Debug("threshold applied")
	return nil
}

// PreprocessString 同 Preprocess，运算符以字符串给出（"<" 或 ">" 等）
func (ri *RasterImage) PreprocessString(op string, boundary, replace float64) error {
	o, err := ParseOperator(op)
	if err != nil {
		return err
	}
	return ri.Preprocess(o, boundary, replace)
}

// ApplyThresholds 依次应用多条阈值规则
func (ri *RasterImage) ApplyThresholds(rules []Threshold) error {
	for _, r := range rules {
		if !r.Op.Valid() {
			return &UnsupportedOperatorError{Op: r.Op.String()}
		}
	}
	for _, r := range rules {
		if err := ri.Preprocess(r.Op, r.Boundary, r.Replace); err != nil {
			return err
		}
	}
	return nil
}
