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
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"gonum.org/v1/gonum/mat"
)

// 后处理默认参数
const (
	DefaultSieveSize    = 350
	DefaultConnectivity = 8
	DefaultMedianKernel = 20
)

// Sieve 去除面积小于 size 像素的连通区域（GDAL筛选滤波），结果写入 out。
// connectivity 取 4 或 8；mask 不为nil时，值为0的像素不参与处理。
// 像素值按int32处理。
func Sieve(prediction, out *mat.Dense, size int, mask *mat.Dense, connectivity int) (err error) {
	rows, cols := prediction.Dims()
	if r, c := out.Dims(); r != rows || c != cols {
		return configErrorf("sieve output is %dx%d, prediction is %dx%d", r, c, rows, cols)
	}
	if mask != nil {
		if r, c := mask.Dims(); r != rows || c != cols {
			return configErrorf("sieve mask is %dx%d, prediction is %dx%d", r, c, rows, cols)
		}
	}
	if connectivity != 4 && connectivity != 8 {
		return configErrorf("connectivity must be 4 or 8, got %d", connectivity)
	}
	if size < 0 {
		return configErrorf("sieve size must not be negative, got %d", size)
	}

	ensureDrivers()
	gdalSlots().acquire()
	defer gdalSlots().release()
	nBands := 1
	if mask != nil {
		nBands = 2
	}
	ds, err := godal.Create(godal.Memory, "", nBands, godal.Int32, cols, rows)
	if err != nil {
		return &ComputationError{Op: "sieve", Err: fmt.Errorf("create memory dataset: %w", err)}
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			err = &ComputationError{Op: "sieve", Err: cerr}
		}
	}()
	bands := ds.Bands()

	buf := toInt32(prediction)
	if err := bands[0].Write(0, 0, buf, cols, rows); err != nil {
		return &ComputationError{Op: "sieve", Err: fmt.Errorf("write prediction: %w", err)}
	}

	var opts []godal.SieveFilterOption
	if connectivity == 8 {
		opts = append(opts, godal.EightConnected())
	}
	if mask != nil {
		if err := bands[1].Write(0, 0, toInt32(mask), cols, rows); err != nil {
			return &ComputationError{Op: "sieve", Err: fmt.Errorf("write mask: %w", err)}
		}
		opts = append(opts, godal.Mask(bands[1]))
	}
	if err := bands[0].SieveFilter(size, opts...); err != nil {
		return &ComputationError{Op: "sieve", Err: err}
	}

	if err := bands[0].Read(0, 0, buf, cols, rows); err != nil {
		return &ComputationError{Op: "sieve", Err: fmt.Errorf("read result: %w", err)}
	}
	raw := out.RawMatrix()
	for r := 0; r < rows; r++ {
		row := raw.Data[r*raw.Stride : r*raw.Stride+cols]
		for c := range row {
			row[c] = float64(buf[r*cols+c])
		}
	}
	return nil
}

// Median 方形窗口中值滤波，边界按反射方式延拓 (d c b a | a b c d | d c b a)，
// 取窗口升序第 k*k/2 个值。返回新矩阵。
func Median(prediction *mat.Dense, kernelSize int) (*mat.Dense, error) {
	if kernelSize < 1 {
		return nil, configErrorf("median kernel size must be positive, got %d", kernelSize)
	}
	rows, cols := prediction.Dims()
	lo := -(kernelSize / 2)
	rowIdx := reflectTable(rows, kernelSize, lo)
	colIdx := reflectTable(cols, kernelSize, lo)

	src := prediction.RawMatrix()
	out := mat.NewDense(rows, cols, nil)
	dst := out.RawMatrix()
	window := make([]float64, kernelSize*kernelSize)
	rank := len(window) / 2
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			n := 0
			for _, rr := range rowIdx[r] {
				line := src.Data[rr*src.Stride:]
				for _, cc := range colIdx[c] {
					window[n] = line[cc]
					n++
				}
			}
			dst.Data[r*dst.Stride+c] = selectRank(window, rank)
		}
	}
	return out, nil
}

// selectRank 三路快速选择，原地重排 a 并返回升序第 k 个值。
// 顺序与 sort.Float64s 一致（NaN 最小）。
func selectRank(a []float64, k int) float64 {
	lo, hi := 0, len(a)
	for hi-lo > 1 {
		pivot := a[lo+(hi-lo)/2]
		lt, i, gt := lo, lo, hi
		for i < gt {
			switch {
			case floatLess(a[i], pivot):
				a[lt], a[i] = a[i], a[lt]
				lt++
				i++
			case floatLess(pivot, a[i]):
				gt--
				a[i], a[gt] = a[gt], a[i]
			default:
				i++
			}
		}
		switch {
		case k < lt:
			hi = lt
		case k >= gt:
			lo = gt
		default:
			return a[k]
		}
	}
	return a[k]
}

func floatLess(a, b float64) bool {
	return a < b || (math.IsNaN(a) && !math.IsNaN(b))
}

// reflectTable 预计算每个位置窗口内的反射下标
func reflectTable(n, k, lo int) [][]int {
	table := make([][]int, n)
	for i := range table {
		idx := make([]int, k)
		for d := 0; d < k; d++ {
			idx[d] = reflectIndex(i+lo+d, n)
		}
		table[i] = idx
	}
	return table
}

func reflectIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

func toInt32(m *mat.Dense) []int32 {
	rows, cols := m.Dims()
	buf := make([]int32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			buf[r*cols+c] = int32(clamp(math.Trunc(m.At(r, c)), math.MinInt32, math.MaxInt32))
		}
	}
	return buf
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
