// Package encoder turns validated passenger records into the numeric feature
// vector the fitted model expects.
package encoder

import "github.com/okian/lifeboat/internal/domain/schema"

// Vector is an encoded feature vector laid out in schema.FeatureOrder.
type Vector []float64

// Encode maps rec to its feature vector. rec must already have passed
// schema validation; Encode does not check domains and never fails.
//
// Categoricals use the drop-first one-hot layout the model was fitted with:
// female is Sex_male=0, and Cherbourg is Embarked_Q=0 with Embarked_S=0.
func Encode(rec schema.PassengerRecord) Vector {
	v := make(Vector, schema.FeatureCount)
	v[schema.IndexPclass] = float64(rec.Pclass)
	v[schema.IndexAge] = rec.Age
	v[schema.IndexSibSp] = float64(rec.SibSp)
	v[schema.IndexParch] = float64(rec.Parch)
	v[schema.IndexFare] = rec.Fare
	v[schema.IndexSexMale] = indicator(rec.Sex == schema.SexMale)
	v[schema.IndexEmbarkedQ] = indicator(rec.Embarked == schema.PortQueenstown)
	v[schema.IndexEmbarkedS] = indicator(rec.Embarked == schema.PortSouthampton)
	return v
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
