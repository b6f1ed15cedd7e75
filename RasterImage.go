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
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// RasterImage 多波段影像：band×row×column 像素、波段名称、NoData值
//
// RasterImage 独占其内部切片；访问器返回副本，Pixels 除外。
// 任何失败的操作都不会修改影像状态。
type RasterImage struct {
	data         []*mat.Dense
	bands        []string
	noData       []float64 // 加载时捕获，之后不再修改
	scales       []float64
	offsets      []float64
	rows         int
	cols         int
	geoTransform [6]float64
	projection   string
	bounds       orb.Bound
	source       *deferredSource
	log          logrus.FieldLogger
}

type loadOptions struct {
	chunkSize     int
	lazy          bool
	defaultNoData float64
	log           logrus.FieldLogger
}

// LoadOption 读取选项
type LoadOption func(*loadOptions)

// WithChunkSize 设置分块读取窗口大小
func WithChunkSize(n int) LoadOption {
	return func(o *loadOptions) { o.chunkSize = n }
}

// WithLazyRead 延迟读取像素，直到第一次访问
func WithLazyRead() LoadOption {
	return func(o *loadOptions) { o.lazy = true }
}

// WithDefaultNoData 文件元数据中没有NoData时使用的值
func WithDefaultNoData(v float64) LoadOption {
	return func(o *loadOptions) { o.defaultNoData = v }
}

// WithLogger 指定日志
func WithLogger(l logrus.FieldLogger) LoadOption {
	return func(o *loadOptions) { o.log = l }
}

func newLoadOptions(opts []LoadOption) loadOptions {
	o := loadOptions{chunkSize: DefaultChunkSize, defaultNoData: math.NaN()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewEmptyRasterImage 创建空影像，之后通过 ReadRaster 读取
func NewEmptyRasterImage(opts ...LoadOption) *RasterImage {
	o := newLoadOptions(opts)
	return &RasterImage{log: componentLogger(o.log, "raster")}
}

// NewRasterImage 打开栅格文件并读取，bands 为按波段顺序排列的名称
func NewRasterImage(path string, bands []string, opts ...LoadOption) (*RasterImage, error) {
	ri := NewEmptyRasterImage(opts...)
	if err := ri.ReadRaster(path, bands, opts...); err != nil {
		return nil, err
	}
	return ri, nil
}

// NewRasterImageFromBands 由内存矩阵构造影像。noData 可以为空（无NoData）、
// 单个值（所有波段共用）或与波段数相同。矩阵会被复制。
func NewRasterImageFromBands(data []*mat.Dense, bands []string, noData []float64) (*RasterImage, error) {
	if err := validateBandNames(bands); err != nil {
		return nil, err
	}
	if len(data) != len(bands) {
		return nil, configErrorf("%d band names given for %d bands", len(bands), len(data))
	}
	rows, cols := data[0].Dims()
	copied := make([]*mat.Dense, len(data))
	for i, m := range data {
		r, c := m.Dims()
		if r != rows || c != cols {
			return nil, configErrorf("band %q is %dx%d, expected %dx%d", bands[i], r, c, rows, cols)
		}
		copied[i] = mat.DenseCopyOf(m)
	}

	nd := make([]float64, len(bands))
	switch len(noData) {
	case 0:
		for i := range nd {
			nd[i] = math.NaN()
		}
	case 1:
		for i := range nd {
			nd[i] = noData[0]
		}
	case len(bands):
		copy(nd, noData)
	default:
		return nil, configErrorf("%d nodata values given for %d bands", len(noData), len(bands))
	}

	ri := &RasterImage{
		data:         copied,
		bands:        append([]string(nil), bands...),
		noData:       nd,
		scales:       repeat(1, len(bands)),
		offsets:      repeat(0, len(bands)),
		rows:         rows,
		cols:         cols,
		geoTransform: identityGeoTransform,
		log:          componentLogger(nil, "raster"),
	}
	ri.bounds = boundsFromGeoTransform(ri.geoTransform, cols, rows)
	return ri, nil
}

// ReadRaster 读取栅格文件到当前影像，替换已有状态
func (ri *RasterImage) ReadRaster(path string, bands []string, opts ...LoadOption) error {
	o := newLoadOptions(opts)
	if o.log != nil || ri.log == nil {
		ri.log = componentLogger(o.log, "raster")
	}

	loaded, err := ri.load(path, bands, o)
	if err != nil {
		return err
	}
	*ri = *loaded
	ri.log.WithFields(logrus.Fields{
		"path":  path,
		"bands": len(ri.bands),
		"rows":  ri.rows,
		"cols":  ri.cols,
		"lazy":  ri.source != nil,
	}).Debug("raster loaded")
	return nil
}

func (ri *RasterImage) load(path string, bands []string, o loadOptions) (loaded *RasterImage, err error) {
	if err := checkExists(path); err != nil {
		return nil, err
	}
	if bands == nil {
		return nil, configErrorf("must specify band names")
	}
	if err := validateBandNames(bands); err != nil {
		return nil, err
	}
	if o.chunkSize < 1 {
		return nil, configErrorf("chunk size must be positive, got %d", o.chunkSize)
	}

	ds, err := openDataset(path, ri.log)
	if err != nil {
		return nil, err
	}
	defer closeDataset(ds, &err)

	meta := readMeta(ds, o.defaultNoData)
	if meta.bandCount != len(bands) {
		return nil, configErrorf("%d band names given for %d-band raster %s", len(bands), meta.bandCount, path)
	}

	loaded = &RasterImage{
		bands:        append([]string(nil), bands...),
		noData:       meta.noData,
		scales:       meta.scales,
		offsets:      meta.offsets,
		rows:         meta.height,
		cols:         meta.width,
		geoTransform: meta.geoTransform,
		projection:   meta.projection,
		bounds:       boundsFromGeoTransform(meta.geoTransform, meta.width, meta.height),
		log:          ri.log,
	}
	if o.lazy {
		loaded.source = &deferredSource{path: path, chunkSize: o.chunkSize}
		return loaded, nil
	}
	loaded.data, err = readAllBands(ds, o.chunkSize, ri.log)
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

// materialize 延迟模式下读取像素
func (ri *RasterImage) materialize() error {
	if ri.source == nil {
		return nil
	}
	data, err := ri.source.materialize(ri.logger())
	if err != nil {
		return err
	}
	if len(data) != len(ri.bands) {
		return &ComputationError{
			Op:  "materialize " + ri.source.path,
			Err: fmt.Errorf("file now has %d bands, expected %d", len(data), len(ri.bands)),
		}
	}
	ri.data = data
	ri.source = nil
	return nil
}

func (ri *RasterImage) logger() logrus.FieldLogger {
	if ri.log == nil {
		ri.log = componentLogger(nil, "raster")
	}
	return ri.log
}

// Pixels 返回各波段矩阵（rows×cols）。返回的是内部矩阵本身，调用方不应在
// 之后的影像操作中继续持有。
func (ri *RasterImage) Pixels() ([]*mat.Dense, error) {
	if err := ri.materialize(); err != nil {
		return nil, err
	}
	return ri.data, nil
}

// Bands 返回波段名称副本
func (ri *RasterImage) Bands() []string {
	return append([]string(nil), ri.bands...)
}

// NoData 返回加载时捕获的各波段NoData值副本，NaN表示该波段没有NoData。
// 追加或删除波段不会改变它，ToRaster 使用第1个值。
func (ri *RasterImage) NoData() []float64 {
	return append([]float64(nil), ri.noData...)
}

// Scales 返回各波段缩放系数副本
func (ri *RasterImage) Scales() []float64 {
	return append([]float64(nil), ri.scales...)
}

// Offsets 返回各波段偏移量副本
func (ri *RasterImage) Offsets() []float64 {
	return append([]float64(nil), ri.offsets...)
}

// Shape 返回 (波段数, 行数, 列数)
func (ri *RasterImage) Shape() (bands, rows, cols int) {
	return len(ri.bands), ri.rows, ri.cols
}

// GeoTransform 返回地理变换参数
func (ri *RasterImage) GeoTransform() [6]float64 {
	return ri.geoTransform
}

// Projection 返回投影WKT
func (ri *RasterImage) Projection() string {
	return ri.projection
}

// Bounds 返回影像在其投影坐标系下的外包矩形
func (ri *RasterImage) Bounds() orb.Bound {
	return ri.bounds
}

// Clone 深拷贝影像
func (ri *RasterImage) Clone() *RasterImage {
	c := *ri
	c.bands = ri.Bands()
	c.noData = ri.NoData()
	c.scales = ri.Scales()
	c.offsets = ri.Offsets()
	if ri.source != nil {
		src := *ri.source
		c.source = &src
	}
	c.data = make([]*mat.Dense, len(ri.data))
	for i, m := range ri.data {
		c.data[i] = mat.DenseCopyOf(m)
	}
	return &c
}

// checkExists 检查文件是否存在
func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Path: path}
		}
		return &ComputationError{Op: "stat " + path, Err: err}
	}
	return nil
}

// validateBandNames 波段名称必须非空且唯一
func validateBandNames(bands []string) error {
	if len(bands) == 0 {
		return configErrorf("must specify band names")
	}
	seen := make(map[string]bool, len(bands))
	for i, b := range bands {
		if b == "" {
			return configErrorf("band name %d is empty", i+1)
		}
		if seen[b] {
			return configErrorf("duplicate band name %q", b)
		}
		seen[b] = true
	}
	return nil
}

// boundsFromGeoTransform 由地理变换计算四角外包矩形（支持旋转项）
func boundsFromGeoTransform(gt [6]float64, width, height int) orb.Bound {
	corner := func(px, py float64) orb.Point {
		return orb.Point{
			gt[0] + px*gt[1] + py*gt[2],
			gt[3] + px*gt[4] + py*gt[5],
		}
	}
	w, h := float64(width), float64(height)
	return orb.MultiPoint{corner(0, 0), corner(w, 0), corner(0, h), corner(w, h)}.Bound()
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
