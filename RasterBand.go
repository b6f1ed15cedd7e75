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
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Statistics 波段统计信息
type Statistics struct {
	Min, Max, Mean, Std float64
}

// bandIndex 按名称查找波段位置
func bandIndex(bands []string, name string) (int, error) {
	for i, b := range bands {
		if b == name {
			return i, nil
		}
	}
	return -1, &InvalidBandError{Names: []string{name}}
}

// HasBand 判断波段是否存在
func (ri *RasterImage) HasBand(name string) bool {
	_, err := bandIndex(ri.bands, name)
	return err == nil
}

// Band 返回指定波段数据的副本
func (ri *RasterImage) Band(name string) (*mat.Dense, error) {
	i, err := bandIndex(ri.bands, name)
	if err != nil {
		return nil, err
	}
	if err := ri.materialize(); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(ri.data[i]), nil
}

// DropIndices 按名称删除波段，剩余波段保持原有顺序。
// 任一名称不存在时返回 InvalidBandError，影像不变。加载时捕获的NoData不受影响。
func (ri *RasterImage) DropIndices(names []string) error {
	var missing []string
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := bandIndex(ri.bands, name); err != nil {
			missing = append(missing, name)
			continue
		}
		drop[name] = true
	}
	if len(missing) > 0 {
		return &InvalidBandError{Names: missing}
	}
	if err := ri.materialize(); err != nil {
		return err
	}

	keep := len(ri.bands) - len(drop)
	bands := make([]string, 0, keep)
	data := make([]*mat.Dense, 0, keep)
	scales := make([]float64, 0, keep)
	offsets := make([]float64, 0, keep)
	for i, b := range ri.bands {
		if drop[b] {
			continue
		}
		bands = append(bands, b)
		data = append(data, ri.data[i])
		scales = append(scales, ri.scales[i])
		offsets = append(offsets, ri.offsets[i])
	}

	ri.bands, ri.data, ri.scales, ri.offsets = bands, data, scales, offsets
	ri.logger().WithFields(logrus.Fields{
		"dropped": len(drop),
		"bands":   len(ri.bands),
	}).Debug("bands dropped")
	return nil
}

// Min 返回全部波段像素的最小值
func (ri *RasterImage) Min() (float64, error) {
	return ri.reduce(floats.Min)
}

// Max 返回全部波段像素的最大值
func (ri *RasterImage) Max() (float64, error) {
	return ri.reduce(floats.Max)
}

func (ri *RasterImage) reduce(fn func([]float64) float64) (float64, error) {
	if err := ri.materialize(); err != nil {
		return 0, err
	}
	if len(ri.data) == 0 {
		return 0, configErrorf("raster has no bands")
	}
	acc := make([]float64, 0, len(ri.data))
	for _, m := range ri.data {
		acc = append(acc, fn(denseValues(m)))
	}
	return fn(acc), nil
}

// BandStatistics 计算指定波段的统计信息
func (ri *RasterImage) BandStatistics(name string) (Statistics, error) {
	i, err := bandIndex(ri.bands, name)
	if err != nil {
		return Statistics{}, err
	}
	if err := ri.materialize(); err != nil {
		return Statistics{}, err
	}
	values := denseValues(ri.data[i])
	mean, std := stat.MeanStdDev(values, nil)
	return Statistics{
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Mean: mean,
		Std:  std,
	}, nil
}

// denseValues 返回矩阵的行优先数据（必要时复制以去掉stride）
func denseValues(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for r := 0; r < raw.Rows; r++ {
		out = append(out, raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols]...)
	}
	return out
}
