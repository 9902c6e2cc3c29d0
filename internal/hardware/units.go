package hardware

import "math"

// 丝杆与步进电机的机械常数
const (
	StepsPerRev  = 2048               // 28BYJ-48 半步模式每圈步数
	ScrewPitchMM = 0.8                // 丝杆导程（毫米/圈）
	MMPerStep    = ScrewPitchMM / StepsPerRev
	StepsPerMM   = StepsPerRev / ScrewPitchMM
)

// MMToSteps 毫米转步数（四舍五入，至少 1 步）
func MMToSteps(mm float64) int {
	if mm <= 0 {
		return 0
	}
	steps := int(math.Round(mm * StepsPerMM))
	if steps < 1 {
		steps = 1
	}
	return steps
}

// StepsToMM 步数转毫米
func StepsToMM(steps int) float64 {
	return float64(steps) * MMPerStep
}

// ClampDistance 距离收拢到至少 1 步
func ClampDistance(d int) int {
	if d < 1 {
		return 1
	}
	return d
}

// ClampSpeed 速度收拢到 [1, max]
func ClampSpeed(v, max int) int {
	if v < 1 {
		return 1
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// ClampAccel 加速度收拢到 [0, max]
func ClampAccel(a, max int) int {
	if a < 0 {
		return 0
	}
	if max > 0 && a > max {
		return max
	}
	return a
}

// VolumeScale 体积单位相对微升的倍率
func VolumeScale(unit string) (float64, bool) {
	switch unit {
	case "nL":
		return 1000, true
	case "uL", "µL":
		return 1, true
	case "mL":
		return 0.001, true
	}
	return 0, false
}

// SyringeCalibration 注射器标定：满量程体积与活塞行程
type SyringeCalibration struct {
	VolumeUL float64 `json:"volume_ul"` // 满量程体积（微升）
	StrokeMM float64 `json:"stroke_mm"` // 活塞行程（毫米）
}

// Valid 两项都为正才可用于换算
func (c SyringeCalibration) Valid() bool {
	return c.VolumeUL > 0 && c.StrokeMM > 0
}

// StepsPerUL 每微升对应的步数
func (c SyringeCalibration) StepsPerUL() float64 {
	if !c.Valid() {
		return 0
	}
	return (c.StrokeMM / c.VolumeUL) * StepsPerMM
}

// ULToSteps 体积转步数（四舍五入，至少 1 步）
func (c SyringeCalibration) ULToSteps(ul float64) int {
	if !c.Valid() || ul <= 0 {
		return 0
	}
	steps := int(math.Round(ul * c.StepsPerUL()))
	if steps < 1 {
		steps = 1
	}
	return steps
}

// StepsToUL 步数转体积（微升）
func (c SyringeCalibration) StepsToUL(steps int) float64 {
	per := c.StepsPerUL()
	if per == 0 {
		return 0
	}
	return float64(steps) / per
}
