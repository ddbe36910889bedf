package probe

import (
	"crypto/rand"
	"math"
	"math/big"

	"github.com/google/uuid"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	mutationKinds      = 7
)

// In-domain bounds used when generating passengers.
const (
	maxAge    = 100
	maxFare   = 500
	maxFamily = 10
)

var (
	sexes = []string{"male", "female"}
	ports = []string{"S", "C", "Q"}
)

// getRandomFloat returns a random float64 in [0, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, n).
func getRandomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateCases creates n passengers. Broken cases are spread evenly so
// that floor(n*invalidRatio) of them carry exactly one out-of-domain,
// missing or mistyped field, and the broken field cycles through every
// mutation kind in turn.
func generateCases(n int, invalidRatio float64) []Case {
	invalidRatio = math.Max(0, math.Min(1, invalidRatio))
	cases := make([]Case, n)
	broken := 0
	for i := range cases {
		c := Case{ID: uuid.NewString(), Passenger: generatePassenger()}
		if int(float64(i+1)*invalidRatio) > broken {
			c.WantField = mutate(c.Passenger, broken%mutationKinds)
			broken++
		}
		cases[i] = c
	}
	return cases
}

// generatePassenger returns a passenger inside the accepted domain.
func generatePassenger() map[string]any {
	return map[string]any{
		"pclass":   1 + getRandomInt(3),
		"sex":      sexes[getRandomInt(len(sexes))],
		"age":      roundTo(getRandomFloat()*maxAge, 1),
		"sibsp":    getRandomInt(maxFamily + 1),
		"parch":    getRandomInt(maxFamily + 1),
		"fare":     roundTo(getRandomFloat()*maxFare, 2),
		"embarked": ports[getRandomInt(len(ports))],
	}
}

// mutate breaks one field of p and returns its name.
func mutate(p map[string]any, kind int) string {
	switch kind {
	case 0:
		p["age"] = maxAge + 0.5 + roundTo(getRandomFloat()*50, 1)
		return "age"
	case 1:
		p["pclass"] = 4
		return "pclass"
	case 2:
		p["embarked"] = "X"
		return "embarked"
	case 3:
		delete(p, "sex")
		return "sex"
	case 4:
		p["fare"] = "cheap"
		return "fare"
	case 5:
		p["sibsp"] = -1
		return "sibsp"
	default:
		p["parch"] = maxFamily + 1
		return "parch"
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
