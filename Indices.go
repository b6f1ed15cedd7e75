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
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Index 光谱指数。实现集合是封闭的：FDI、SI、NDWI、NDVI。
// Compute 读取按名称标注的波段，返回新波段及其名称。
type Index interface {
	Name() string
	Compute(pixels []*mat.Dense, bands []string, factor float64) (*mat.Dense, string, error)
	index()
}

// FDI 漂浮物指数 NIR1 - (Red + Blue)
type FDI struct{}

// SI 浮油指数 cbrt((f - Blue) * (f - Green) * (f - Red))
type SI struct{}

// NDWI 归一化水体指数 f * (Green - NIR1) / (Green + NIR1)
type NDWI struct{}

// NDVI 归一化植被指数 f * (NIR1 - Red) / (NIR1 + Red)
type NDVI struct{}

func (FDI) Name() string  { return "FDI" }
func (SI) Name() string   { return "SI" }
func (NDWI) Name() string { return "NDWI" }
func (NDVI) Name() string { return "NDVI" }

func (FDI) index()  {}
func (SI) index()   {}
func (NDWI) index() {}
func (NDVI) index() {}

func (i FDI) Compute(pixels []*mat.Dense, bands []string, _ float64) (*mat.Dense, string, error) {
	in, err := lookupBands(pixels, bands, "NIR1", "Red", "Blue")
	if err != nil {
		return nil, "", err
	}
	nir, red, blue := in[0], in[1], in[2]
	var out mat.Dense
	out.Add(red, blue)
	out.Sub(nir, &out)
	truncate(&out)
	return &out, i.Name(), nil
}

func (i SI) Compute(pixels []*mat.Dense, bands []string, factor float64) (*mat.Dense, string, error) {
	in, err := lookupBands(pixels, bands, "Blue", "Green", "Red")
	if err != nil {
		return nil, "", err
	}
	blue, green, red := in[0], in[1], in[2]
	rows, cols := blue.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(r, c int, _ float64) float64 {
		v := (factor - blue.At(r, c)) * (factor - green.At(r, c)) * (factor - red.At(r, c))
		return math.Trunc(math.Cbrt(v))
	}, out)
	return out, i.Name(), nil
}

func (i NDWI) Compute(pixels []*mat.Dense, bands []string, factor float64) (*mat.Dense, string, error) {
	in, err := lookupBands(pixels, bands, "Green", "NIR1")
	if err != nil {
		return nil, "", err
	}
	return normalizedDifference(in[0], in[1], factor), i.Name(), nil
}

func (i NDVI) Compute(pixels []*mat.Dense, bands []string, factor float64) (*mat.Dense, string, error) {
	in, err := lookupBands(pixels, bands, "NIR1", "Red")
	if err != nil {
		return nil, "", err
	}
	return normalizedDifference(in[0], in[1], factor), i.Name(), nil
}

// normalizedDifference factor*(a-b)/(a+b)，分母为0时结果为0
func normalizedDifference(a, b *mat.Dense, factor float64) *mat.Dense {
	var num, den mat.Dense
	num.Sub(a, b)
	den.Add(a, b)
	rows, cols := a.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(r, c int, _ float64) float64 {
		d := den.At(r, c)
		if d == 0 {
			return 0
		}
		return math.Trunc(factor * num.At(r, c) / d)
	}, out)
	return out
}

// truncate 向零取整，与写出整型波段时的截断一致
func truncate(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 { return math.Trunc(v) }, m)
}

func lookupBands(pixels []*mat.Dense, bands []string, names ...string) ([]*mat.Dense, error) {
	if len(pixels) != len(bands) {
		return nil, fmt.Errorf("%d bands of pixels but %d band names", len(pixels), len(bands))
	}
	var missing []string
	out := make([]*mat.Dense, 0, len(names))
	for _, name := range names {
		i, err := bandIndex(bands, name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		out = append(out, pixels[i])
	}
	if len(missing) > 0 {
		return nil, &InvalidBandError{Names: missing}
	}
	return out, nil
}

var indexRegistry = map[string]Index{
	"fdi":  FDI{},
	"si":   SI{},
	"ndwi": NDWI{},
	"ndvi": NDVI{},
}

// LookupIndex 按名称（不区分大小写）查找指数
func LookupIndex(name string) (Index, error) {
	idx, ok := indexRegistry[strings.ToLower(name)]
	if !ok {
		return nil, configErrorf("unknown index %q (known: %s)", name, strings.Join(IndexNames(), ", "))
	}
	return idx, nil
}

// IndexNames 返回全部已注册指数名称
func IndexNames() []string {
	names := make([]string, 0, len(indexRegistry))
	for _, idx := range indexRegistry {
		names = append(names, idx.Name())
	}
	sort.Strings(names)
	return names
}

// AddIndices 依次计算指数并追加为新波段。后面的指数可以读取前面刚追加的波段。
// 追加后缩放/偏移数组按第1个波段的值扩展到新的波段数，NoData不变。
// 任一指数失败时返回 ComputationError，影像不变。
func (ri *RasterImage) AddIndices(indices []Index, factor float64) error {
	if err := ri.materialize(); err != nil {
		return err
	}
	bands := ri.Bands()
	data := append([]*mat.Dense(nil), ri.data...)
	rows, cols := ri.rows, ri.cols

	for _, idx := range indices {
		if idx == nil {
			return &ComputationError{Op: "add index", Err: fmt.Errorf("nil index")}
		}
		band, name, err := idx.Compute(data, bands, factor)
		if err != nil {
			return &ComputationError{Op: "index " + idx.Name(), Err: err}
		}
		if r, c := band.Dims(); r != rows || c != cols {
			return &ComputationError{
				Op:  "index " + idx.Name(),
				Err: fmt.Errorf("result is %dx%d, raster is %dx%d", r, c, rows, cols),
			}
		}
		if _, err := bandIndex(bands, name); err == nil {
			return &ComputationError{Op: "index " + idx.Name(), Err: fmt.Errorf("band %q already present", name)}
		}
		bands = append(bands, name)
		data = append(data, band)
	}

	n := len(bands)
	first := len(ri.bands)
	ri.bands = bands
	ri.data = data
	ri.scales = repeat(firstOr(ri.scales, 1), n)
	ri.offsets = repeat(firstOr(ri.offsets, 0), n)
	for i := first; i < n; i++ {
		ri.logger().WithFields(logrus.Fields{"index": bands[i], "band": i + 1}).Debug("index added")
	}
	return nil
}

func firstOr(v []float64, def float64) float64 {
	if len(v) == 0 {
		return def
	}
	return v[0]
}
