package ft2engine

import (
	"math"
	"testing"
)

func TestAcquireInterpTablesReturnsSameTableToEveryCaller(t *testing.T) {
	a := acquireInterpTables()
	defer releaseInterpTables()
	b := acquireInterpTables()
	defer releaseInterpTables()

	if a != b {
		t.Error("acquireInterpTables() returned different tables to two callers, want the same process-wide singleton")
	}
}

// TestReleaseInterpTablesFreesOnlyAfterLastRelease checks the refcount
// delta rather than an absolute zero, since other tests in this package
// (e.g. engine_test.go's NewEngine helpers) acquire tables of their own
// without ever releasing them - the singleton is process-wide and shared
// across the whole test binary.
func TestReleaseInterpTablesFreesOnlyAfterLastRelease(t *testing.T) {
	lutMu.Lock()
	baseRefs := lutRefs
	lutMu.Unlock()

	acquireInterpTables()
	acquireInterpTables()

	releaseInterpTables()
	lutMu.Lock()
	afterOne := lutRefs
	lutMu.Unlock()
	if afterOne != baseRefs+1 {
		t.Fatalf("lutRefs after one of two releases = %d, want %d", afterOne, baseRefs+1)
	}
	if lutTable == nil {
		t.Fatal("lutTable freed while references remain outstanding")
	}

	releaseInterpTables()
	lutMu.Lock()
	afterTwo := lutRefs
	lutMu.Unlock()
	if afterTwo != baseRefs {
		t.Errorf("lutRefs after both releases = %d, want back to baseline %d", afterTwo, baseRefs)
	}
}

func TestQuadraticWeightsSumToOneAtEveryFraction(t *testing.T) {
	tbl := buildInterpTables()
	for _, i := range []int{0, 1, lutFracSize / 4, lutFracSize / 2, lutFracSize - 1} {
		sum := tbl.quadratic[i*3+0] + tbl.quadratic[i*3+1] + tbl.quadratic[i*3+2]
		if math.Abs(float64(sum)-1) > 1e-4 {
			t.Errorf("quadratic weights at i=%d sum to %v, want ~1", i, sum)
		}
	}
}

func TestCubicWeightsSumToOneAtEveryFraction(t *testing.T) {
	tbl := buildInterpTables()
	for _, i := range []int{0, 1, lutFracSize / 4, lutFracSize / 2, lutFracSize - 1} {
		sum := tbl.cubic[i*4+0] + tbl.cubic[i*4+1] + tbl.cubic[i*4+2] + tbl.cubic[i*4+3]
		if math.Abs(float64(sum)-1) > 1e-4 {
			t.Errorf("cubic weights at i=%d sum to %v, want ~1", i, sum)
		}
	}
}

func TestQuadraticWeightsAtZeroFracIsIdentity(t *testing.T) {
	tbl := buildInterpTables()
	// At frac=0 the sample position is exactly the centre tap, so weight
	// should be 1 on the centre tap and 0 on its neighbours.
	if tbl.quadratic[0] != 0 || tbl.quadratic[1] != 1 || tbl.quadratic[2] != 0 {
		t.Errorf("quadratic weights at frac=0 = (%v,%v,%v), want (0,1,0)",
			tbl.quadratic[0], tbl.quadratic[1], tbl.quadratic[2])
	}
}

func TestBuildSincTableRowsAreNormalized(t *testing.T) {
	tbl := buildSincTable(sinc8Taps, sincKernelSpecs[0])
	for _, i := range []int{0, lutFracSize / 3, lutFracSize - 1} {
		var sum float64
		for tap := 0; tap < sinc8Taps; tap++ {
			sum += float64(tbl[i*sinc8Taps+tap])
		}
		if math.Abs(sum-1) > 1e-3 {
			t.Errorf("sinc8 row %d sums to %v, want ~1", i, sum)
		}
	}
}

func TestBuildSincTableProducesDistinctKernelFamilies(t *testing.T) {
	a := buildSincTable(sinc8Taps, sincKernelSpecs[0])
	b := buildSincTable(sinc8Taps, sincKernelSpecs[2])
	identical := true
	for i := range a {
		if a[i] != b[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Error("the narrowest and widest sinc kernel specs produced identical tables")
	}
}

func TestSincFnAtZeroIsOne(t *testing.T) {
	if got := sincFn(0); got != 1 {
		t.Errorf("sincFn(0) = %v, want 1", got)
	}
}

func TestSincFnAtNonZeroIntegerIsZero(t *testing.T) {
	if got := sincFn(2); math.Abs(got) > 1e-9 {
		t.Errorf("sincFn(2) = %v, want ~0", got)
	}
}

func TestBesselI0AtZeroIsOne(t *testing.T) {
	if got := besselI0(0); math.Abs(got-1) > 1e-9 {
		t.Errorf("besselI0(0) = %v, want 1", got)
	}
}

func TestBesselI0IsIncreasingForPositiveArguments(t *testing.T) {
	a := besselI0(1)
	b := besselI0(5)
	if !(a < b) {
		t.Errorf("besselI0(1)=%v should be less than besselI0(5)=%v", a, b)
	}
}

func TestKaiserWindowIsZeroOutsideSupport(t *testing.T) {
	if got := kaiserWindow(1000, sinc8Taps, sincKernelSpecs[0].beta); got != 0 {
		t.Errorf("kaiserWindow() far outside the tap range = %v, want 0", got)
	}
}

func TestChooseSincKernelThresholds(t *testing.T) {
	tests := []struct {
		name     string
		delta    uint64
		wantTaps int
		wantKern int
	}{
		{"at unity speed", scale, sinc16Taps, 0},
		{"just under 1.1875x", uint64(float64(scale) * 1.18), sinc16Taps, 0},
		{"just over 1.1875x", uint64(float64(scale)*1.1875) + 1, sinc8Taps, 1},
		{"at 1.5x", uint64(float64(scale) * 1.5), sinc8Taps, 1},
		{"well past 1.5x", uint64(float64(scale) * 3), sinc8Taps, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taps, kern := chooseSincKernel(tt.delta)
			if taps != tt.wantTaps || kern != tt.wantKern {
				t.Errorf("chooseSincKernel(%d) = (%d,%d), want (%d,%d)", tt.delta, taps, kern, tt.wantTaps, tt.wantKern)
			}
		})
	}
}
