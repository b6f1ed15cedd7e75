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

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// DefaultChunkSize 分块读取窗口边长（像素），每次只读一个波段
const DefaultChunkSize = 2048

// identityGeoTransform GDAL在缺少地理变换时使用的默认值
var identityGeoTransform = [6]float64{0, 1, 0, 0, 0, 1}

// rasterMeta 从数据集读取的元数据
type rasterMeta struct {
	width        int
	height       int
	bandCount    int
	noData       []float64
	scales       []float64
	offsets      []float64
	geoTransform [6]float64
	projection   string
}

// readMeta 读取尺寸、波段NoData、缩放/偏移以及地理参考
func readMeta(ds *godal.Dataset, defaultNoData float64) rasterMeta {
	st := ds.Structure()
	meta := rasterMeta{
		width:        st.SizeX,
		height:       st.SizeY,
		bandCount:    st.NBands,
		geoTransform: identityGeoTransform,
		projection:   ds.Projection(),
	}
	if gt, err := ds.GeoTransform(); err == nil {
		meta.geoTransform = gt
	}
	for _, band := range ds.Bands() {
		nd, ok := band.NoData()
		if !ok {
			nd = defaultNoData
		}
		bs := band.Structure()
		meta.noData = append(meta.noData, nd)
		meta.scales = append(meta.scales, bs.Scale)
		meta.offsets = append(meta.offsets, bs.Offset)
	}
	return meta
}

// readBandChunked 按 chunk×chunk 窗口读取单个波段
func readBandChunked(band godal.Band, width, height, chunk int) (*mat.Dense, error) {
	m := mat.NewDense(height, width, nil)
	raw := m.RawMatrix()
	buf := make([]float64, min(chunk, width)*min(chunk, height))
	for y0 := 0; y0 < height; y0 += chunk {
		h := min(chunk, height-y0)
		for x0 := 0; x0 < width; x0 += chunk {
			w := min(chunk, width-x0)
			win := buf[:w*h]
			if err := band.Read(x0, y0, win, w, h); err != nil {
				return nil, fmt.Errorf("read window (%d,%d %dx%d): %w", x0, y0, w, h, err)
			}
			for r := 0; r < h; r++ {
				copy(raw.Data[(y0+r)*raw.Stride+x0:(y0+r)*raw.Stride+x0+w], win[r*w:(r+1)*w])
			}
		}
	}
	return m, nil
}

// readAllBands 依次读取全部波段
func readAllBands(ds *godal.Dataset, chunk int, log logrus.FieldLogger) ([]*mat.Dense, error) {
	st := ds.Structure()
	bands := ds.Bands()
	data := make([]*mat.Dense, 0, len(bands))
	for i, band := range bands {
		m, err := readBandChunked(band, st.SizeX, st.SizeY, chunk)
		if err != nil {
			return nil, &ComputationError{Op: fmt.Sprintf("read band %d", i+1), Err: err}
		}
		log.WithField("band", i+1).Debug("band materialized")
		data = append(data, m)
	}
	return data, nil
}

// deferredSource 延迟读取：只记录路径，第一次访问像素时再打开文件读取
type deferredSource struct {
	path      string
	chunkSize int
}

func (s *deferredSource) materialize(log logrus.FieldLogger) (data []*mat.Dense, err error) {
	ds, err := openDataset(s.path, log)
	if err != nil {
		return nil, err
	}
	defer closeDataset(ds, &err)
	return readAllBands(ds, s.chunkSize, log)
}

// ReadPrediction 读取单波段栅格（如分类器输出）的第1波段
func ReadPrediction(path string, opts ...LoadOption) (pred *mat.Dense, err error) {
	o := newLoadOptions(opts)
	log := componentLogger(o.log, "reader")
	if err := checkExists(path); err != nil {
		return nil, err
	}
	if o.chunkSize < 1 {
		return nil, configErrorf("chunk size must be positive, got %d", o.chunkSize)
	}
	ds, err := openDataset(path, log)
	if err != nil {
		return nil, err
	}
	defer closeDataset(ds, &err)

	st := ds.Structure()
	if st.NBands < 1 {
		return nil, configErrorf("%s has no bands", path)
	}
	pred, err = readBandChunked(ds.Bands()[0], st.SizeX, st.SizeY, o.chunkSize)
	if err != nil {
		return nil, &ComputationError{Op: "read prediction " + path, Err: err}
	}
	return pred, nil
}
