package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMMStepsRoundTrip(t *testing.T) {
	// 一圈 0.8mm = 2048 步
	assert.Equal(t, 2048, MMToSteps(0.8))
	assert.InDelta(t, 0.8, StepsToMM(2048), 1e-9)

	// 极小位移至少 1 步
	assert.Equal(t, 1, MMToSteps(0.0000001))
	assert.Equal(t, 0, MMToSteps(0))
	assert.Equal(t, 0, MMToSteps(-1))
}

func TestVolumeScale(t *testing.T) {
	scale, ok := VolumeScale("nL")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, scale)

	scale, ok = VolumeScale("uL")
	assert.True(t, ok)
	assert.Equal(t, 1.0, scale)

	scale, ok = VolumeScale("mL")
	assert.True(t, ok)
	assert.Equal(t, 0.001, scale)

	_, ok = VolumeScale("gallon")
	assert.False(t, ok)
}

func TestSyringeCalibration(t *testing.T) {
	// 10µL 注射器，行程 60mm
	cal := SyringeCalibration{VolumeUL: 10, StrokeMM: 60}
	assert.True(t, cal.Valid())

	// 每微升 = (60/10) * 2560 = 15360 步
	assert.InDelta(t, 15360, cal.StepsPerUL(), 1e-6)
	assert.Equal(t, 15360, cal.ULToSteps(1))
	assert.InDelta(t, 1.0, cal.StepsToUL(15360), 1e-9)
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 1, ClampDistance(0))
	assert.Equal(t, 2048, ClampDistance(2048))

	assert.Equal(t, 1, ClampSpeed(0, 1000))
	assert.Equal(t, 1000, ClampSpeed(5000, 1000))
	assert.Equal(t, 300, ClampSpeed(300, 1000))

	assert.Equal(t, 0, ClampAccel(-5, 1000))
	assert.Equal(t, 1000, ClampAccel(5000, 1000))
	assert.Equal(t, 100, ClampAccel(100, 1000))
}

func TestSyringeCalibrationInvalid(t *testing.T) {
	cal := SyringeCalibration{}
	assert.False(t, cal.Valid())
	assert.Equal(t, 0.0, cal.StepsPerUL())
	assert.Equal(t, 0, cal.ULToSteps(5))
	assert.Equal(t, 0.0, cal.StepsToUL(100))
}
