// Package metrics evaluates body-composition formulas for a decoded scale
// reading.
//
// The engine is parameterized by a profile (height, age, sex) and is
// stateless across calls: the same measurement and parameters always produce
// the same result. Formula constants come from the scale vendor's published
// impedance model; they are intentionally kept verbatim, including the odd
// branch constants, so results line up with the vendor app's numbers.
package metrics

import (
	"fmt"
	"math"

	"github.com/banshee-data/scale.report/internal/packet"
)

// Validation limits. Readings outside these are biologically implausible and
// rejected before any formula runs.
const (
	MaxHeightCm     = 220
	MinWeightKg     = 10
	MaxWeightKg     = 200
	MaxAgeYears     = 99
	MaxImpedanceOhm = 3000
)

// Sex selects the female/male branch of the formula set.
type Sex int

const (
	Male Sex = iota
	Female
)

// ParseSex converts the on-disk representation ("male" or "female").
func ParseSex(s string) (Sex, error) {
	switch s {
	case "male":
		return Male, nil
	case "female":
		return Female, nil
	default:
		return Male, fmt.Errorf("invalid sex %q: must be male or female", s)
	}
}

func (s Sex) String() string {
	if s == Female {
		return "female"
	}
	return "male"
}

// OutOfRangeError reports a reading or parameter outside the validation
// limits. The cycle that produced it is discarded; the pipeline keeps
// running.
type OutOfRangeError struct {
	Field string
	Value float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s out of range: %g", e.Field, e.Value)
}

// BodyComposition is the full derived metric set for one reading. All
// values except the raw impedance are rounded to two decimal places.
type BodyComposition struct {
	WeightKg     float64 `json:"weight"`
	ImpedanceOhm int     `json:"impedance"`
	LeanBodyMass float64 `json:"lbm"`
	FatPercent   float64 `json:"fat_percentage"`
	WaterPercent float64 `json:"water_percentage"`
	MuscleMass   float64 `json:"muscle_mass"`
	BoneMass     float64 `json:"bone_mass"`
	VisceralFat  float64 `json:"visceral_fat"`
	BMI          float64 `json:"bmi"`
	BMR          float64 `json:"bmr"`
	IdealWeight  float64 `json:"ideal_weight"`
	MetabolicAge float64 `json:"metabolic_age"`
}

// Engine evaluates the formula set for one fixed profile.
type Engine struct {
	height float64
	age    float64
	sex    Sex
}

// NewEngine returns an engine for the given profile parameters.
func NewEngine(heightCm, ageYears int, sex Sex) *Engine {
	return &Engine{
		height: float64(heightCm),
		age:    float64(ageYears),
		sex:    sex,
	}
}

// Analyze validates the reading against the engine's profile and computes
// the full metric set.
func (e *Engine) Analyze(m packet.Measurement) (BodyComposition, error) {
	switch {
	case e.height > MaxHeightCm:
		return BodyComposition{}, &OutOfRangeError{Field: "height", Value: e.height}
	case m.WeightKg < MinWeightKg || m.WeightKg > MaxWeightKg:
		return BodyComposition{}, &OutOfRangeError{Field: "weight", Value: m.WeightKg}
	case e.age > MaxAgeYears:
		return BodyComposition{}, &OutOfRangeError{Field: "age", Value: e.age}
	case m.ImpedanceOhm > MaxImpedanceOhm:
		return BodyComposition{}, &OutOfRangeError{Field: "impedance", Value: float64(m.ImpedanceOhm)}
	}

	c := calc{
		weight:    m.WeightKg,
		impedance: float64(m.ImpedanceOhm),
		height:    e.height,
		age:       e.age,
		female:    e.sex == Female,
	}

	return BodyComposition{
		WeightKg:     round2(c.weight),
		ImpedanceOhm: m.ImpedanceOhm,
		LeanBodyMass: round2(c.leanBodyMass()),
		FatPercent:   round2(c.fatPercent()),
		WaterPercent: round2(c.waterPercent()),
		MuscleMass:   round2(c.muscleMass()),
		BoneMass:     round2(c.boneMass()),
		VisceralFat:  round2(c.visceralFat()),
		BMI:          round2(c.bmi()),
		BMR:          round2(c.bmr()),
		IdealWeight:  round2(c.idealWeight()),
		MetabolicAge: round2(c.metabolicAge()),
	}, nil
}

// calc holds one validated reading plus profile parameters. Each metric
// method is a direct transcription of the vendor formula; the order of
// floating-point operations is deliberately preserved.
type calc struct {
	weight    float64
	impedance float64
	height    float64
	age       float64
	female    bool
}

func (c calc) leanBodyMass() float64 {
	lbm := (c.height * 9.058 / 100) * (c.height / 100)
	lbm += c.weight*0.32 + 12.226
	lbm -= c.impedance * 0.0068
	lbm -= c.age * 0.0542
	return lbm
}

func (c calc) fatPercent() float64 {
	lbm := c.leanBodyMass()

	var constant float64
	switch {
	case c.female && c.age <= 49:
		constant = 9.25
	case c.female:
		constant = 7.25
	default:
		constant = 0.8
	}

	var coefficient float64
	switch {
	case !c.female && c.weight < 61:
		coefficient = 0.98
	case c.female && c.weight > 60:
		coefficient = 0.96
		if c.height > 160 {
			coefficient *= 1.03
		}
	case c.female && c.weight < 50:
		coefficient = 1.02
		if c.height > 160 {
			coefficient *= 1.03
		}
	default:
		coefficient = 1.0
	}

	fat := (1.0 - (((lbm - constant) * coefficient) / c.weight)) * 100
	if fat > 63 {
		fat = 75
	}
	return clamp(fat, 5, 75)
}

func (c calc) waterPercent() float64 {
	water := (100 - c.fatPercent()) * 0.7
	coefficient := 0.98
	if water <= 50 {
		coefficient = 1.02
	}
	// The coefficient stays applied after forcing, so the forced branch
	// reports clamp(75*coefficient), not a flat 75.
	if water*coefficient >= 65 {
		water = 75
	}
	return clamp(water*coefficient, 35, 75)
}

func (c calc) boneMass() float64 {
	base := 0.18016894
	if c.female {
		base = 0.245691014
	}

	bone := (base - c.leanBodyMass()*0.05158) * -1
	if bone > 2.2 {
		bone += 0.1
	} else {
		bone -= 0.1
	}

	if c.female && bone > 5.1 {
		bone = 8
	} else if !c.female && bone > 5.2 {
		bone = 8
	}
	return clamp(bone, 0.5, 8)
}

func (c calc) muscleMass() float64 {
	muscle := c.weight - (c.fatPercent()*0.01)*c.weight - c.boneMass()
	if c.female && muscle >= 84 {
		muscle = 120
	} else if !c.female && muscle >= 93.5 {
		muscle = 120
	}
	return clamp(muscle, 10, 120)
}

func (c calc) visceralFat() float64 {
	var vf float64
	if c.female {
		if c.weight > (13-c.height*0.5)*-1 {
			subsub := (c.height*1.45 + (c.height*0.1158)*c.height) - 120
			sub := c.weight * 500 / subsub
			vf = (sub - 6) + c.age*0.07
		} else {
			sub := 0.691 + c.height*-0.0024 + c.height*-0.0024
			vf = (c.height*0.027-sub*c.weight)*-1 + c.age*0.07 - c.age
		}
	} else {
		if c.height < c.weight*1.6 {
			sub := (c.height*0.4 - c.height*(c.height*0.0826)) * -1
			vf = (c.weight*305)/(sub+48) - 2.9 + c.age*0.15
		} else {
			sub := 0.765 + c.height*-0.0015
			vf = (c.height*0.143-c.weight*sub)*-1 + c.age*0.15 - 5.0
		}
	}
	return clamp(vf, 1, 50)
}

func (c calc) bmi() float64 {
	return clamp(c.weight/((c.height/100)*(c.height/100)), 10, 90)
}

func (c calc) bmr() float64 {
	var bmr float64
	if c.female {
		bmr = 864.6 + c.weight*10.2036
		bmr -= c.height * 0.39336
		bmr -= c.age * 6.204
		if bmr > 2996 {
			bmr = 5000
		}
	} else {
		bmr = 877.8 + c.weight*14.916
		bmr -= c.height * 0.726
		bmr -= c.age * 8.976
		if bmr > 2322 {
			bmr = 5000
		}
	}
	return clamp(bmr, 500, 10000)
}

func (c calc) idealWeight() float64 {
	if c.female {
		return (c.height - 70) * 0.6
	}
	return (c.height - 80) * 0.7
}

func (c calc) metabolicAge() float64 {
	var age float64
	if c.female {
		age = c.height*-1.1165 + c.weight*1.5784 + c.age*0.4615 + c.impedance*0.0415 + 83.2548
	} else {
		age = c.height*-0.7471 + c.weight*0.9161 + c.age*0.4184 + c.impedance*0.0517 + 54.2267
	}
	return clamp(age, 15, 80)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
