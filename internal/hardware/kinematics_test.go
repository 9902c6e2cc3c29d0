package hardware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func TestStepDurationTrapezoid(t *testing.T) {
	// d_a = 300²/(2*100) = 450，2*450 < 2048 → 梯形
	// t = 2*(300/100) + (2048-900)/300 = 9.82666...
	step := MotionStep{Forward: true, Distance: 2048, Speed: 300, Accel: 100}
	assert.InDelta(t, 9.826666, seconds(StepDuration(step)), 1e-4)
}

func TestStepDurationTriangular(t *testing.T) {
	// d_a = 450，2*450 >= 100 → 三角形
	// v_p = sqrt(100*100) = 100，t = 2*100/100 = 2.0
	step := MotionStep{Forward: true, Distance: 100, Speed: 300, Accel: 100}
	assert.InDelta(t, 2.0, seconds(StepDuration(step)), 1e-6)
}

func TestStepDurationTriangularLongMove(t *testing.T) {
	// d_a = 1000²/(2*100) = 5000 >= 2048 → 永远到不了峰值速度
	// t = 2*sqrt(100*2048)/100 = 9.0509...
	step := MotionStep{Forward: true, Distance: 2048, Speed: 1000, Accel: 100}
	assert.InDelta(t, 9.050966, seconds(StepDuration(step)), 1e-4)
}

func TestStepDurationTriangularBoundary(t *testing.T) {
	// 2*d_a == d 时两条公式应给出同一结果
	step := MotionStep{Forward: true, Distance: 900, Speed: 300, Accel: 100}
	assert.InDelta(t, 6.0, seconds(StepDuration(step)), 1e-6)
}

func TestStepDurationConstantSpeed(t *testing.T) {
	// a=0 → 恒速 t = d/v
	step := MotionStep{Forward: false, Distance: 2048, Speed: 300, Accel: 0}
	assert.InDelta(t, 2048.0/300.0, seconds(StepDuration(step)), 1e-6)
}

func TestStepDurationDegenerate(t *testing.T) {
	assert.Equal(t, time.Duration(0), StepDuration(MotionStep{Distance: 0, Speed: 300, Accel: 100}))
	assert.Equal(t, time.Duration(0), StepDuration(MotionStep{Distance: 100, Speed: 0, Accel: 100}))
}

func TestProgramDuration(t *testing.T) {
	steps := []MotionStep{
		{Forward: true, Distance: 2048, Speed: 300, Accel: 100}, // 9.82666s
		{Forward: false, Distance: 2048, Speed: 300, Accel: 0},  // 6.82666s
	}
	assert.InDelta(t, 9.826666+6.826666, seconds(ProgramDuration(steps)), 1e-4)
	assert.Equal(t, time.Duration(0), ProgramDuration(nil))
}
