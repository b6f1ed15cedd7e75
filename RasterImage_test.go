package xraster

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewRasterImageEightBands(t *testing.T) {
	path := writeTestRaster(t, "wv.tif", 3, 4, rampBands(8, 3, 4, 100), -9999)

	ri, err := NewRasterImage(path, worldView)
	if err != nil {
		t.Fatalf("NewRasterImage: %v", err)
	}
	nb, rows, cols := ri.Shape()
	if nb != 8 || rows != 3 || cols != 4 {
		t.Fatalf("shape = (%d,%d,%d), want (8,3,4)", nb, rows, cols)
	}
	pixels, err := ri.Pixels()
	if err != nil {
		t.Fatalf("Pixels: %v", err)
	}
	if len(pixels) != 8 {
		t.Fatalf("band dimension = %d, want 8", len(pixels))
	}
	if !reflect.DeepEqual(ri.Bands(), worldView) {
		t.Errorf("bands = %v", ri.Bands())
	}
	if got := pixels[6].At(2, 3); got != 700+11 {
		t.Errorf("NIR1[2,3] = %v, want 711", got)
	}
	for i, nd := range ri.NoData() {
		if nd != -9999 {
			t.Errorf("nodata[%d] = %v, want -9999", i, nd)
		}
	}
	if ri.GeoTransform() != testGeoTransform {
		t.Errorf("geotransform = %v", ri.GeoTransform())
	}
	b := ri.Bounds()
	if b.Min.X() != 100 || b.Max.X() != 140 || b.Min.Y() != 170 || b.Max.Y() != 200 {
		t.Errorf("bounds = %v", b)
	}
}

func assertSameState(t *testing.T, a, b *RasterImage) {
	t.Helper()
	pa, err := a.Pixels()
	if err != nil {
		t.Fatal(err)
	}
	pb, err := b.Pixels()
	if err != nil {
		t.Fatal(err)
	}
	if len(pa) != len(pb) {
		t.Fatalf("band count %d != %d", len(pa), len(pb))
	}
	for i := range pa {
		if !mat.Equal(pa[i], pb[i]) {
			t.Errorf("band %d differs", i)
		}
	}
	if !reflect.DeepEqual(a.Bands(), b.Bands()) {
		t.Errorf("bands %v != %v", a.Bands(), b.Bands())
	}
	if !reflect.DeepEqual(a.NoData(), b.NoData()) {
		t.Errorf("nodata %v != %v", a.NoData(), b.NoData())
	}
	if !reflect.DeepEqual(a.Scales(), b.Scales()) || !reflect.DeepEqual(a.Offsets(), b.Offsets()) {
		t.Errorf("scale/offset differ")
	}
	if a.GeoTransform() != b.GeoTransform() || a.Bounds() != b.Bounds() {
		t.Errorf("georeference differs")
	}
}

func TestReadRasterTwoPhaseMatchesEager(t *testing.T) {
	path := writeTestRaster(t, "wv.tif", 5, 3, rampBands(8, 5, 3, 10), 0)

	eager, err := NewRasterImage(path, worldView)
	if err != nil {
		t.Fatal(err)
	}
	twoPhase := NewEmptyRasterImage()
	if err := twoPhase.ReadRaster(path, worldView); err != nil {
		t.Fatal(err)
	}
	assertSameState(t, eager, twoPhase)
}

func TestLazyAndChunkedReadMatchEager(t *testing.T) {
	path := writeTestRaster(t, "wv.tif", 7, 5, rampBands(8, 7, 5, 1000), -1)

	eager, err := NewRasterImage(path, worldView)
	if err != nil {
		t.Fatal(err)
	}
	lazy, err := NewRasterImage(path, worldView, WithLazyRead())
	if err != nil {
		t.Fatal(err)
	}
	if lazy.source == nil {
		t.Fatal("lazy image read pixels at load time")
	}
	chunked, err := NewRasterImage(path, worldView, WithChunkSize(2))
	if err != nil {
		t.Fatal(err)
	}
	assertSameState(t, eager, lazy)
	assertSameState(t, eager, chunked)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewRasterImage(filepath.Join(t.TempDir(), "nope.tif"), worldView)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err is %T, want *NotFoundError", err)
	}
}

func TestLoadBandNameErrors(t *testing.T) {
	path := writeTestRaster(t, "wv.tif", 2, 2, rampBands(8, 2, 2, 1), math.NaN())

	tests := []struct {
		name  string
		bands []string
	}{
		{"absent", nil},
		{"empty", []string{}},
		{"too few", worldView[:7]},
		{"too many", append(append([]string(nil), worldView...), "SWIR")},
		{"duplicate", []string{"Blue", "Blue", "Green", "Yellow", "Red", "RedEdge", "NIR1", "NIR2"}},
		{"blank", []string{"", "Blue", "Green", "Yellow", "Red", "RedEdge", "NIR1", "NIR2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ri := NewEmptyRasterImage()
			err := ri.ReadRaster(path, tt.bands)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
			if nb, _, _ := ri.Shape(); nb != 0 {
				t.Errorf("failed load left %d bands", nb)
			}
		})
	}
}

func TestLoadWithoutNoDataMetadata(t *testing.T) {
	path := writeTestRaster(t, "wv.tif", 2, 2, rampBands(8, 2, 2, 1), math.NaN())

	ri, err := NewRasterImage(path, worldView)
	if err != nil {
		t.Fatal(err)
	}
	if nd := ri.NoData()[0]; !math.IsNaN(nd) {
		t.Errorf("nodata = %v, want NaN", nd)
	}
	ri, err = NewRasterImage(path, worldView, WithDefaultNoData(-1))
	if err != nil {
		t.Fatal(err)
	}
	if nd := ri.NoData()[0]; nd != -1 {
		t.Errorf("nodata = %v, want -1", nd)
	}
}

func TestNewRasterImageFromBands(t *testing.T) {
	a := constDense(2, 2, 1)
	b := constDense(2, 2, 2)

	ri, err := NewRasterImageFromBands([]*mat.Dense{a, b}, []string{"A", "B"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	a.Set(0, 0, 42)
	got, _ := ri.Band("A")
	if got.At(0, 0) != 1 {
		t.Error("image aliases the caller's matrix")
	}
	if !math.IsNaN(ri.NoData()[1]) {
		t.Errorf("nodata = %v, want NaN", ri.NoData())
	}

	if _, err := NewRasterImageFromBands([]*mat.Dense{a, constDense(3, 2, 0)}, []string{"A", "B"}, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("mismatched dims: err = %v", err)
	}
	if _, err := NewRasterImageFromBands([]*mat.Dense{a}, []string{"A", "B"}, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("mismatched names: err = %v", err)
	}
	if _, err := NewRasterImageFromBands([]*mat.Dense{a, b}, []string{"A", "B"}, []float64{1, 2, 3}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("bad nodata length: err = %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ri := memImage(t, 1, 2, []string{"A"}, [][]float64{{1, 2}})
	c := ri.Clone()
	if err := c.Preprocess(Greater, 5, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.DropIndices([]string{"A"}); err != nil {
		t.Fatal(err)
	}
	if nb, _, _ := ri.Shape(); nb != 1 {
		t.Fatalf("original lost its band")
	}
	got, _ := ri.Band("A")
	if got.At(0, 1) != 2 {
		t.Errorf("original pixels changed")
	}
}

func TestReadPrediction(t *testing.T) {
	values := []float64{0, 1, 1, 0, 2, 2}
	path := writeTestRaster(t, "pred.tif", 2, 3, [][]float64{values}, math.NaN())

	pred, err := ReadPrediction(path, WithChunkSize(1))
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(pred, denseFrom(2, 3, values...)) {
		t.Errorf("prediction = %v", mat.Formatted(pred))
	}
	if _, err := ReadPrediction(filepath.Join(t.TempDir(), "missing.tif")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: err = %v", err)
	}
}
