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
	"os"
	"strconv"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// referenceProfile 参考影像的元数据及第1波段有效性掩膜
type referenceProfile struct {
	width           int
	height          int
	geoTransform    [6]float64
	hasGeoTransform bool
	projection      string
	compression     string
	blockX, blockY  int
	mask            []uint8
}

// readReference 读取参考影像元数据和掩膜，读取完成后立即关闭
func readReference(path string, log logrus.FieldLogger) (ref *referenceProfile, err error) {
	ds, err := openDataset(path, log)
	if err != nil {
		return nil, err
	}
	defer closeDataset(ds, &err)

	st := ds.Structure()
	if st.NBands < 1 {
		return nil, configErrorf("reference %s has no bands", path)
	}
	ref = &referenceProfile{
		width:       st.SizeX,
		height:      st.SizeY,
		projection:  ds.Projection(),
		compression: ds.Metadata("COMPRESSION", godal.Domain("IMAGE_STRUCTURE")),
		blockX:      st.BlockSizeX,
		blockY:      st.BlockSizeY,
	}
	if gt, gerr := ds.GeoTransform(); gerr == nil {
		ref.geoTransform = gt
		ref.hasGeoTransform = true
	}

	ref.mask = make([]uint8, st.SizeX*st.SizeY)
	if err := ds.Bands()[0].MaskBand().Read(0, 0, ref.mask, st.SizeX, st.SizeY); err != nil {
		return nil, &ComputationError{Op: "read mask of " + path, Err: err}
	}
	return ref, nil
}

// creationOptions 沿用参考影像的压缩和分块设置
func (ref *referenceProfile) creationOptions() []string {
	var opts []string
	if ref.compression != "" {
		opts = append(opts, "COMPRESS="+ref.compression)
	}
	if ref.blockX < ref.width && ref.blockX%16 == 0 && ref.blockY%16 == 0 && ref.blockX > 0 && ref.blockY > 0 {
		opts = append(opts,
			"TILED=YES",
			"BLOCKXSIZE="+strconv.Itoa(ref.blockX),
			"BLOCKYSIZE="+strconv.Itoa(ref.blockY),
		)
	}
	return opts
}

// reconcileNoData 掩膜为0（无效）的像素写为 noData，其余取预测值（截断到int16）
func reconcileNoData(prediction *mat.Dense, mask []uint8, noData int16) []int16 {
	rows, cols := prediction.Dims()
	out := make([]int16, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if mask[i] == 0 {
				out[i] = noData
				continue
			}
			out[i] = int16(clamp(math.Trunc(prediction.At(r, c)), math.MinInt16, math.MaxInt16))
		}
	}
	return out
}

// ToRaster 以 reference 的地理参考写出单波段Int16预测结果。
// 参考影像第1波段掩膜无效的像素被写为影像的 NoData 值。
func (ri *RasterImage) ToRaster(reference string, prediction *mat.Dense, output string) error {
	log := ri.logger()
	if err := checkExists(reference); err != nil {
		return err
	}
	if len(ri.noData) == 0 || math.IsNaN(ri.noData[0]) {
		return configErrorf("raster has no nodata value, load it with WithDefaultNoData")
	}
	if nd := ri.noData[0]; nd < math.MinInt16 || nd > math.MaxInt16 {
		return configErrorf("nodata %g does not fit the int16 output", nd)
	}
	noData := int16(ri.noData[0])

	ref, err := readReference(reference, log)
	if err != nil {
		return err
	}
	rows, cols := prediction.Dims()
	if rows != ref.height || cols != ref.width {
		return &WriteError{
			Path: output,
			Err:  fmt.Errorf("prediction is %dx%d, reference is %dx%d", rows, cols, ref.height, ref.width),
		}
	}

	buf := reconcileNoData(prediction, ref.mask, noData)
	if err := writeInt16GeoTiff(output, ref, buf, noData); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"output":    output,
		"reference": reference,
		"nodata":    noData,
	}).Info("prediction saved")
	return nil
}

// writeInt16GeoTiff 先写临时文件再重命名，失败时不留下半成品
func writeInt16GeoTiff(output string, ref *referenceProfile, buf []int16, noData int16) (err error) {
	ensureDrivers()
	gdalSlots().acquire()
	defer gdalSlots().release()
	tmp := output + "." + uuid.New().String() + ".tmp"
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	ds, err := godal.Create(godal.GTiff, tmp, 1, godal.Int16, ref.width, ref.height,
		godal.CreationOption(ref.creationOptions()...))
	if err != nil {
		return &WriteError{Path: output, Err: err}
	}
	if err := fillDataset(ds, ref, buf, noData); err != nil {
		ds.Close()
		return &WriteError{Path: output, Err: err}
	}
	if err := ds.Close(); err != nil {
		return &WriteError{Path: output, Err: fmt.Errorf("flush: %w", err)}
	}
	if err := os.Rename(tmp, output); err != nil {
		return &WriteError{Path: output, Err: err}
	}
	return nil
}

func fillDataset(ds *godal.Dataset, ref *referenceProfile, buf []int16, noData int16) error {
	if ref.hasGeoTransform {
		if err := ds.SetGeoTransform(ref.geoTransform); err != nil {
			return fmt.Errorf("set geotransform: %w", err)
		}
	}
	if ref.projection != "" {
		if err := ds.SetProjection(ref.projection); err != nil {
			return fmt.Errorf("set projection: %w", err)
		}
	}
	band := ds.Bands()[0]
	if err := band.SetNoData(float64(noData)); err != nil {
		return fmt.Errorf("set nodata: %w", err)
	}
	if err := band.Write(0, 0, buf, ref.width, ref.height); err != nil {
		return fmt.Errorf("write band: %w", err)
	}
	return nil
}
