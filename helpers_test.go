package xraster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"gonum.org/v1/gonum/mat"
)

var worldView = []string{"CoastalBlue", "Blue", "Green", "Yellow", "Red", "RedEdge", "NIR1", "NIR2"}

var testGeoTransform = [6]float64{100, 10, 0, 200, 0, -10}

// writeTestRaster 写出一个Float64 GeoTIFF，每个波段为 rows×cols 行优先数据。
// noData 为NaN时不设置NoData。
func writeTestRaster(t *testing.T, name string, rows, cols int, bands [][]float64, noData float64) string {
	t.Helper()
	ensureDrivers()
	path := filepath.Join(t.TempDir(), name)
	ds, err := godal.Create(godal.GTiff, path, len(bands), godal.Float64, cols, rows)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := ds.SetGeoTransform(testGeoTransform); err != nil {
		t.Fatalf("set geotransform: %v", err)
	}
	for i, b := range ds.Bands() {
		if !math.IsNaN(noData) {
			if err := b.SetNoData(noData); err != nil {
				t.Fatalf("set nodata: %v", err)
			}
		}
		if err := b.Write(0, 0, bands[i], cols, rows); err != nil {
			t.Fatalf("write band %d: %v", i+1, err)
		}
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
	return path
}

// rampBands 生成 n 个波段，波段 b 的像素值为 base*(b+1) + 行优先序号
func rampBands(n, rows, cols int, base float64) [][]float64 {
	bands := make([][]float64, n)
	for b := range bands {
		bands[b] = make([]float64, rows*cols)
		for i := range bands[b] {
			bands[b][i] = base*float64(b+1) + float64(i)
		}
	}
	return bands
}

func denseFrom(rows, cols int, values ...float64) *mat.Dense {
	return mat.NewDense(rows, cols, values)
}

func constDense(rows, cols int, v float64) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return v }, m)
	return m
}

// memImage 由每个波段的常量/切片快速构造内存影像
func memImage(t *testing.T, rows, cols int, names []string, values [][]float64) *RasterImage {
	t.Helper()
	data := make([]*mat.Dense, len(values))
	for i, v := range values {
		data[i] = mat.NewDense(rows, cols, append([]float64(nil), v...))
	}
	ri, err := NewRasterImageFromBands(data, names, []float64{-9999})
	if err != nil {
		t.Fatalf("NewRasterImageFromBands: %v", err)
	}
	return ri
}
