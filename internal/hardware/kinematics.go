package hardware

import (
	"math"
	"time"
)

// StepDuration 计算单条步骤的理论运动时间
// 与固件的梯形速度曲线一致：
//   - a<=0 或 v<=0：恒速，t = d/v（v<=0 时为 0）
//   - 加速段距离 d_a = v²/(2a)
//   - 2*d_a >= d：三角形曲线，峰值速度 v_p = sqrt(a*d)，t = 2*v_p/a
//   - 否则梯形：t = 2*(v/a) + (d-2*d_a)/v
func StepDuration(step MotionStep) time.Duration {
	d := float64(step.Distance)
	v := float64(step.Speed)
	a := float64(step.Accel)

	if d <= 0 {
		return 0
	}
	if v <= 0 {
		return 0
	}
	if a <= 0 {
		return secondsToDuration(d / v)
	}

	dAccel := v * v / (2 * a)
	if 2*dAccel >= d {
		peak := math.Sqrt(a * d)
		return secondsToDuration(2 * peak / a)
	}
	return secondsToDuration(2*(v/a) + (d-2*dAccel)/v)
}

// ProgramDuration 程序全部步骤的总时间
func ProgramDuration(steps []MotionStep) time.Duration {
	var total time.Duration
	for _, s := range steps {
		total += StepDuration(s)
	}
	return total
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
