// Package schema is the single source of truth for passenger input fields,
// their domains, and the feature order the fitted model was trained on.
package schema

// Sex is the passenger's recorded sex.
type Sex string

// Accepted Sex values.
const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Port is the port of embarkation.
type Port string

// Accepted Port values.
const (
	PortSouthampton Port = "S"
	PortCherbourg   Port = "C"
	PortQueenstown  Port = "Q"
)

// PassengerRecord carries the raw, already-parsed passenger attributes.
// Field order here is the order violations are reported in.
type PassengerRecord struct {
	Pclass   int     `json:"pclass" validate:"oneof=1 2 3"`
	Sex      Sex     `json:"sex" validate:"oneof=male female"`
	Age      float64 `json:"age" validate:"finite,min=0,max=100"`
	SibSp    int     `json:"sibsp" validate:"min=0,max=10"`
	Parch    int     `json:"parch" validate:"min=0,max=10"`
	Fare     float64 `json:"fare" validate:"finite,min=0,max=500"`
	Embarked Port    `json:"embarked" validate:"oneof=S C Q"`
}

// Positions of each model feature in the encoded vector.
const (
	IndexPclass = iota
	IndexAge
	IndexSibSp
	IndexParch
	IndexFare
	IndexSexMale
	IndexEmbarkedQ
	IndexEmbarkedS

	// FeatureCount is the length of every encoded vector.
	FeatureCount
)

// featureOrder must match the column order the model was fitted with.
var featureOrder = [FeatureCount]string{
	IndexPclass:    "Pclass",
	IndexAge:       "Age",
	IndexSibSp:     "SibSp",
	IndexParch:     "Parch",
	IndexFare:      "Fare",
	IndexSexMale:   "Sex_male",
	IndexEmbarkedQ: "Embarked_Q",
	IndexEmbarkedS: "Embarked_S",
}

// FeatureOrder returns the fixed model feature order. The returned slice is
// a copy and may be modified by the caller.
func FeatureOrder() []string {
	out := make([]string, FeatureCount)
	copy(out, featureOrder[:])
	return out
}

// FieldSpec describes one raw input field for clients building a form.
type FieldSpec struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Domain string `json:"domain"`
	Help   string `json:"help"`
}

var fieldSpecs = []FieldSpec{
	{Name: "pclass", Kind: "integer", Domain: "{1, 2, 3}", Help: "Ticket class: 1 is first class (wealthiest), 3 is third class."},
	{Name: "sex", Kind: "enum", Domain: "{male, female}", Help: "Sex of the passenger."},
	{Name: "age", Kind: "real", Domain: "[0, 100]", Help: "Age in years."},
	{Name: "sibsp", Kind: "integer", Domain: "[0, 10]", Help: "Number of siblings or spouses aboard."},
	{Name: "parch", Kind: "integer", Domain: "[0, 10]", Help: "Number of parents or children aboard."},
	{Name: "fare", Kind: "real", Domain: "[0.0, 500.0]", Help: "Ticket fare paid."},
	{Name: "embarked", Kind: "enum", Domain: "{S, C, Q}", Help: "Port of embarkation: S Southampton, C Cherbourg, Q Queenstown."},
}

// Fields returns the raw input field descriptions in record order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fieldSpecs))
	copy(out, fieldSpecs)
	return out
}
